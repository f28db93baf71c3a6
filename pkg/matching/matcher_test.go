package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	persons   []Candidate
	companies []Candidate
	err       error
}

func (f *fakePool) ListPersonPool(_ context.Context, _ string, _ string) ([]Candidate, error) {
	return f.persons, f.err
}

func (f *fakePool) ListCompanyPool(_ context.Context, _ string) ([]Candidate, error) {
	return f.companies, f.err
}

type fakeLinks struct {
	linked map[string]bool
	err    error
	calls  int
}

func (f *fakeLinks) PersonLinkedToCompany(_ context.Context, _ string, unifiedID, _ string) (bool, error) {
	f.calls++
	return f.linked[unifiedID], f.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestMatchPersonThreshold(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		// Exactly 85 against the query below.
		{UnifiedID: "at-threshold", NormalizedName: "abcdezghijklmnozqrsz"},
	}}
	m := NewMatcher(pool, nil, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "abcdefghijklmnopqrst", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "at-threshold", match.UnifiedID)
	assert.Equal(t, 85.0, match.Score)
	assert.Equal(t, 0.85, match.Confidence)
	assert.False(t, match.Boosted)
}

func TestMatchPersonBelowThresholdReturnsNil(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		// Exactly 84 against the query below.
		{UnifiedID: "below", NormalizedName: "abcdzfghijzlmnopzrstuvzxy"},
	}}
	m := NewMatcher(pool, nil, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "abcdefghijklmnopqrstuvwxy", "")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchPersonPicksHighestScore(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "partial", NormalizedName: "abcdezghijklmnozqrsz"},
		{UnifiedID: "exact", NormalizedName: "abcdefghijklmnopqrst"},
	}}
	m := NewMatcher(pool, nil, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "abcdefghijklmnopqrst", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "exact", match.UnifiedID)
	assert.Equal(t, 100.0, match.Score)
}

func TestMatchPersonTieKeepsPoolOrder(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "first", NormalizedName: "jon smith"},
		{UnifiedID: "second", NormalizedName: "jon smith"},
	}}
	m := NewMatcher(pool, nil, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "jon smith", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.UnifiedID)
}

func TestMatchPersonContextBoost(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		// Scores 80 against the query below.
		{UnifiedID: "p1", NormalizedName: "abzdefghiz"},
	}}
	links := &fakeLinks{linked: map[string]bool{"p1": true}}
	m := NewMatcher(pool, links, Config{PersonThreshold: 75}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "abcdefghij", "acme")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 80.0, match.Score)
	assert.InDelta(t, 0.96, match.Confidence, 1e-9)
	assert.True(t, match.Boosted)
	assert.Equal(t, 1, links.calls)
}

func TestMatchPersonContextBoostCapsAtOne(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "p1", NormalizedName: "jon smith"},
	}}
	links := &fakeLinks{linked: map[string]bool{"p1": true}}
	m := NewMatcher(pool, links, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "jon smith", "acme")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 1.0, match.Confidence)
	assert.True(t, match.Boosted)
}

func TestMatchPersonNoBoostWithoutLink(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "p1", NormalizedName: "jon smith"},
	}}
	links := &fakeLinks{}
	m := NewMatcher(pool, links, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "jon smith", "acme")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 1.0, match.Confidence)
	assert.False(t, match.Boosted)
}

func TestMatchPersonSkipsLinkCheckWithoutContext(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "p1", NormalizedName: "jon smith"},
	}}
	links := &fakeLinks{linked: map[string]bool{"p1": true}}
	m := NewMatcher(pool, links, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "jon smith", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.False(t, match.Boosted)
	assert.Equal(t, 0, links.calls)
}

func TestMatchPersonLinkErrorDoesNotFailMatch(t *testing.T) {
	pool := &fakePool{persons: []Candidate{
		{UnifiedID: "p1", NormalizedName: "jon smith"},
	}}
	links := &fakeLinks{err: errors.New("link store down")}
	m := NewMatcher(pool, links, Config{}, testLogger())

	match, err := m.MatchPerson(context.Background(), "t1", "jon smith", "acme")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.False(t, match.Boosted)
}

func TestMatchCompanyThreshold(t *testing.T) {
	pool := &fakePool{companies: []Candidate{
		// Scores 80 against the query below, exactly the company threshold.
		{UnifiedID: "c1", NormalizedName: "abzdefghiz"},
	}}
	m := NewMatcher(pool, nil, Config{}, testLogger())

	match, err := m.MatchCompany(context.Background(), "t1", "abcdefghij")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "c1", match.UnifiedID)
	assert.Equal(t, 80.0, match.Score)
}

func TestMatchCompanyEmptyPool(t *testing.T) {
	m := NewMatcher(&fakePool{}, nil, Config{}, testLogger())

	match, err := m.MatchCompany(context.Background(), "t1", "acme")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchPoolError(t *testing.T) {
	m := NewMatcher(&fakePool{err: errors.New("db down")}, nil, Config{}, testLogger())

	_, err := m.MatchPerson(context.Background(), "t1", "jon smith", "")
	assert.Error(t, err)
}
