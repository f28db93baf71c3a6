package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestMappingIndex(t *testing.T) {
	c := New()

	_, ok := c.GetMapping("t1", "person", "crm", "42")
	assert.False(t, ok)

	c.PutMapping("t1", "person", "crm", "42", "u1")

	id, ok := c.GetMapping("t1", "person", "crm", "42")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	// Other tenants and source systems stay isolated.
	_, ok = c.GetMapping("t2", "person", "crm", "42")
	assert.False(t, ok)
	_, ok = c.GetMapping("t1", "person", "billing", "42")
	assert.False(t, ok)
}

func TestEmailAndDomainIndexes(t *testing.T) {
	c := New()

	c.PutEmail("t1", "jon@acme.com", "u1")
	c.PutDomain("t1", "acme.com", "u2")

	id, ok := c.GetEmail("t1", "jon@acme.com")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	id, ok = c.GetDomain("t1", "acme.com")
	assert.True(t, ok)
	assert.Equal(t, "u2", id)

	_, ok = c.GetEmail("t2", "jon@acme.com")
	assert.False(t, ok)
	_, ok = c.GetDomain("t1", "other.com")
	assert.False(t, ok)
}

func TestPutMappingOverwrites(t *testing.T) {
	c := New()

	c.PutMapping("t1", "person", "crm", "42", "u1")
	c.PutMapping("t1", "person", "crm", "42", "u2")

	id, ok := c.GetMapping("t1", "person", "crm", "42")
	assert.True(t, ok)
	assert.Equal(t, "u2", id)
	assert.Equal(t, 1, c.Size())
}

type fakeWarmSource struct {
	mappings []models.SourceMapping
	err      error
}

func (f *fakeWarmSource) ListMappingsPage(_ context.Context, limit, offset int) ([]models.SourceMapping, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.mappings) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.mappings) {
		end = len(f.mappings)
	}
	return f.mappings[offset:end], nil
}

func TestWarmSeedsAllIndexes(t *testing.T) {
	source := &fakeWarmSource{mappings: []models.SourceMapping{
		{
			TenantID:     "t1",
			EntityType:   "person",
			SourceSystem: "crm",
			SourceID:     "42",
			UnifiedID:    "u1",
			Metadata:     database.NewJSONB(models.MappingMetadata{Email: "jon@acme.com"}),
		},
		{
			TenantID:     "t1",
			EntityType:   "company",
			SourceSystem: "crm",
			SourceID:     "acme",
			UnifiedID:    "u2",
			Metadata:     database.NewJSONB(models.MappingMetadata{Domain: "acme.com"}),
		},
	}}

	c := New()
	require.NoError(t, c.Warm(context.Background(), source, testLogger()))

	assert.Equal(t, 2, c.Size())

	id, ok := c.GetMapping("t1", "person", "crm", "42")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	id, ok = c.GetEmail("t1", "jon@acme.com")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	id, ok = c.GetDomain("t1", "acme.com")
	assert.True(t, ok)
	assert.Equal(t, "u2", id)
}

func TestWarmPropagatesError(t *testing.T) {
	c := New()
	err := c.Warm(context.Background(), &fakeWarmSource{err: errors.New("db down")}, testLogger())
	assert.Error(t, err)
}
