package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases and trims", input: "  Jon SMITH  ", expected: "jon smith"},
		{name: "strips generational suffix", input: "Jon Smith Jr.", expected: "jon smith"},
		{name: "strips suffix after comma", input: "Jon Smith, Jr.", expected: "jon smith"},
		{name: "strips credential suffix", input: "Jane Doe PhD", expected: "jane doe"},
		{name: "drops punctuation", input: "O'Brien, Conan", expected: "obrien conan"},
		{name: "collapses whitespace", input: "Jon \t  Smith", expected: "jon smith"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PersonName(tt.input))
		})
	}
}

func TestCompanyName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "strips inc with period", input: "Acme Inc.", expected: "acme"},
		{name: "strips incorporated with comma", input: "ACME, Incorporated", expected: "acme"},
		{name: "strips llc", input: "Acme LLC", expected: "acme"},
		{name: "strips stacked suffixes", input: "Acme Holdings LLC", expected: "acme"},
		{name: "strips gmbh", input: "Acme GmbH", expected: "acme"},
		{name: "strips srl", input: "Acme SRL", expected: "acme"},
		{name: "strips bv", input: "Acme BV", expected: "acme"},
		{name: "strips nv", input: "Acme NV", expected: "acme"},
		{name: "keeps company named after a suffix", input: "Limited", expected: "limited"},
		{name: "keeps inner words", input: "Incorporated Widgets Ltd", expected: "incorporated widgets"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompanyName(tt.input))
		})
	}
}

// The same company under two spellings must land on one canonical form,
// otherwise fuzzy matching never sees them as the same pool entry.
func TestCompanyNameCanonicalizesVariants(t *testing.T) {
	variants := []string{"Acme Inc.", "ACME Incorporated", "acme", "Acme, Inc", "ACME CORP"}
	for _, v := range variants {
		assert.Equal(t, "acme", CompanyName(v), "variant %q", v)
	}
}

// Every recognized legal suffix must strip, so spelled-out and abbreviated
// forms of the same company converge on one canonical name.
func TestCompanyNameStripsEveryLegalSuffix(t *testing.T) {
	suffixes := []string{
		"incorporated", "corporation", "company", "limited", "holdings",
		"gmbh", "inc", "corp", "llc", "ltd", "plc", "srl", "co", "lp", "llp", "sa", "ag", "bv", "nv",
	}
	for _, suffix := range suffixes {
		assert.Equal(t, "acme", CompanyName("Acme "+suffix), "suffix %q", suffix)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "lowercases and trims", input: " Jon@Acme.COM ", expected: "jon@acme.com", ok: true},
		{name: "plain address", input: "jon@acme.com", expected: "jon@acme.com", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "missing at", input: "jon.acme.com", ok: false},
		{name: "missing local part", input: "@acme.com", ok: false},
		{name: "missing domain", input: "jon@", ok: false},
		{name: "domain without dot", input: "jon@acme", ok: false},
		{name: "two at signs", input: "jon@smith@acme.com", ok: false},
		{name: "double at", input: "jon@@acme.com", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Email(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare domain", input: "acme.com", expected: "acme.com"},
		{name: "strips scheme", input: "https://acme.com", expected: "acme.com"},
		{name: "strips www", input: "www.acme.com", expected: "acme.com"},
		{name: "strips path", input: "https://www.acme.com/about?x=1", expected: "acme.com"},
		{name: "lowercases", input: "ACME.COM", expected: "acme.com"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Domain(tt.input))
		})
	}
}

func TestDomainFromEmail(t *testing.T) {
	assert.Equal(t, "acme.com", DomainFromEmail("jon@acme.com"))
	assert.Equal(t, "", DomainFromEmail("not-an-email"))
}

// Every normalizer must be idempotent so re-resolving stored values cannot
// drift them further.
func TestNormalizationIdempotence(t *testing.T) {
	personInputs := []string{"Jon Smith Jr.", "  Jane   DOE  ", "O'Brien, Conan"}
	for _, in := range personInputs {
		once := PersonName(in)
		assert.Equal(t, once, PersonName(once), "person %q", in)
	}

	companyInputs := []string{"Acme Inc.", "ACME, Incorporated", "Acme Holdings LLC", "Limited"}
	for _, in := range companyInputs {
		once := CompanyName(in)
		assert.Equal(t, once, CompanyName(once), "company %q", in)
	}

	domainInputs := []string{"https://www.acme.com/about", "ACME.COM"}
	for _, in := range domainInputs {
		once := Domain(in)
		assert.Equal(t, once, Domain(once), "domain %q", in)
	}

	email, ok := Email(" Jon@Acme.COM ")
	assert.True(t, ok)
	again, ok := Email(email)
	assert.True(t, ok)
	assert.Equal(t, email, again)
}
