// Package normalize provides canonical forms for names, emails, and domains.
// Every function is idempotent: applying it to its own output is a no-op.
package normalize

import (
	"strings"
	"unicode"
)

// personSuffixes are generational and credential suffixes stripped from person names.
var personSuffixes = []string{" jr.", " jr", " sr.", " sr", " iii", " ii", " iv", " phd", " md", " dds", " esq"}

// companySuffixes are legal-form suffixes stripped from company names.
// Ordered longest-first so "incorporated" wins over "inc".
var companySuffixes = []string{
	"incorporated", "corporation", "company", "limited", "holdings",
	"gmbh", "inc", "corp", "llc", "ltd", "plc", "srl", "co", "lp", "llp", "sa", "ag", "bv", "nv",
}

// PersonName normalizes a person's name for matching: lowercase, suffixes
// removed, punctuation dropped, whitespace collapsed.
func PersonName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, suffix := range personSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}

	return collapse(s)
}

// CompanyName normalizes a company name for matching: lowercase, legal
// suffixes removed, punctuation dropped, whitespace collapsed.
// "Acme Inc." and "ACME Incorporated" both normalize to "acme".
func CompanyName(s string) string {
	s = collapse(strings.ToLower(s))

	// Strip trailing legal suffixes, repeatedly ("acme holdings llc" -> "acme").
	for {
		stripped := false
		for _, suffix := range companySuffixes {
			if s == suffix {
				continue
			}
			if strings.HasSuffix(s, " "+suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)-1])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	return s
}

// Email normalizes an email address. Returns false when the value does not
// look like an address; callers treat that as no email provided.
func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}

	if strings.Count(s, "@") != 1 {
		return "", false
	}
	at := strings.Index(s, "@")
	if at == 0 || at == len(s)-1 {
		return "", false
	}
	if !strings.Contains(s[at+1:], ".") {
		return "", false
	}

	return s, true
}

// DomainFromEmail extracts the normalized domain from an already-normalized email.
func DomainFromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return Domain(email[at+1:])
}

// Domain normalizes a web domain: lowercase, scheme and path removed,
// leading "www." dropped.
func Domain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")

	return s
}

// collapse drops punctuation and squeezes runs of whitespace to single spaces.
func collapse(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}
