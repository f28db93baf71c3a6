package mergecandidate

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestDB(t *testing.T) database.DB {
	t.Helper()

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		t.Skip("Skipping integration test: DB_HOST not set")
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "aster"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func newCandidate(tenantID string) *models.MergeCandidate {
	return &models.MergeCandidate{
		TenantID:          tenantID,
		EntityType:        models.EntityTypePerson,
		SourceSystem:      "crm",
		SourceID:          "c-1",
		CurrentUnifiedID:  uuid.New().String(),
		ProposedUnifiedID: uuid.New().String(),
		Confidence:        0.92,
		Detail: database.NewJSONB(models.MergeCandidateDetail{
			Score:   92.0,
			Outcome: models.OutcomeFuzzy,
		}),
	}
}

func TestRepository_RecordDefaultsAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := context.Background()

	candidate := newCandidate(tenantID)
	require.NoError(t, repo.Record(ctx, candidate))
	assert.NotEmpty(t, candidate.ID)
	assert.Equal(t, models.MergeCandidateStatusPending, candidate.Status)

	fetched, err := repo.Get(ctx, tenantID, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.ProposedUnifiedID, fetched.ProposedUnifiedID)
	assert.Equal(t, 92.0, fetched.Detail.Data.Score)
}

func TestRepository_RecordRepeatKeepsStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := context.Background()

	candidate := newCandidate(tenantID)
	require.NoError(t, repo.Record(ctx, candidate))

	_, err := repo.UpdateStatus(ctx, tenantID, candidate.ID, models.MergeCandidateStatusDeferred)
	require.NoError(t, err)

	// Re-detecting the same divergence refreshes the confidence but does
	// not reopen a reviewed candidate.
	repeat := newCandidate(tenantID)
	repeat.CurrentUnifiedID = candidate.CurrentUnifiedID
	repeat.ProposedUnifiedID = candidate.ProposedUnifiedID
	repeat.Confidence = 0.97
	require.NoError(t, repo.Record(ctx, repeat))
	assert.Equal(t, candidate.ID, repeat.ID)
	assert.Equal(t, models.MergeCandidateStatusDeferred, repeat.Status)

	fetched, err := repo.Get(ctx, tenantID, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.97, fetched.Confidence)
	assert.Equal(t, models.MergeCandidateStatusDeferred, fetched.Status)
}

func TestRepository_ListFiltersByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := NewRepository(db, getTestLogger())

	tenantID := uuid.New().String()
	ctx := context.Background()

	pending := newCandidate(tenantID)
	require.NoError(t, repo.Record(ctx, pending))

	approved := newCandidate(tenantID)
	approved.SourceID = "c-2"
	require.NoError(t, repo.Record(ctx, approved))
	_, err := repo.UpdateStatus(ctx, tenantID, approved.ID, models.MergeCandidateStatusApproved)
	require.NoError(t, err)

	status := models.MergeCandidateStatusPending
	page, err := repo.List(ctx, tenantID, &status, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, pending.ID, page.Items[0].ID)

	all, err := repo.List(ctx, tenantID, nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)
}

func TestRepository_UpdateStatusNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := NewRepository(db, getTestLogger())

	_, err := repo.UpdateStatus(context.Background(), uuid.New().String(), uuid.New().String(), models.MergeCandidateStatusApproved)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
