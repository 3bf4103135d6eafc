package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("runs.db"))
	assert.False(t, IsPostgres(":memory:"))
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := openMemory(t)
	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.HealthCheck(context.Background(), time.Second))
	assert.Equal(t, "sqlite3", s.Dialect())
}

func TestRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openMemory(t), nil)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.(*runRepo).now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first, err := repo.Start(ctx, "/pkg/a.pdf", "/cand", "/out/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusRunning, first.Status)

	summary := entity.RunSummary{
		ExistingUnits:  3,
		CandidateUnits: 2,
		Decisions:      map[constants.DecisionKind]int{constants.DecisionKeep: 2, constants.DecisionReplace: 1},
		Diagnostics:    map[constants.DiagnosticCode]int{constants.DiagUnresolvedOutdatedInvoice: 1},
		PagesWritten:   7,
	}
	require.NoError(t, repo.Finish(ctx, first.ID, summary))

	second, err := repo.Start(ctx, "/pkg/b.pdf", "/cand", "/out/b.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.FinishFailure(ctx, second.ID, "unreadable package"))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSucceeded, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.Summary)
	assert.Equal(t, summary, *got.Summary)
	assert.Nil(t, got.ErrorMessage)

	recent, err := repo.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, constants.RunStatusFailed, recent[0].Status)
	require.NotNil(t, recent[0].ErrorMessage)
	assert.Equal(t, "unreadable package", *recent[0].ErrorMessage)
	assert.Equal(t, first.ID, recent[1].ID)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.FinishFailure(ctx, uuid.New(), "x"), common.ErrNotFound)
}

func TestFieldCache(t *testing.T) {
	ctx := context.Background()
	cache := NewFieldCache(openMemory(t), nil)
	key := extract.CacheKey{
		FileHash: "abc", Page: 2, Field: "invoice_number", Region: "0.1,0.1,0.5,0.2",
		Crop: "85,110,425,220", Engine: "tesseract", Settings: "tesseract:lang=eng;psm=7;oem=0;dpi=300;enhance=true",
	}

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, key, extract.CachedText{Text: "INV-1", Confidence: 0.8}))
	require.NoError(t, cache.Put(ctx, key, extract.CachedText{Text: "INV-100", Confidence: 0.9}))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "INV-100", got.Text)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	for name, change := range map[string]func(*extract.CacheKey){
		"engine":   func(k *extract.CacheKey) { k.Engine = "azure" },
		"crop":     func(k *extract.CacheKey) { k.Crop = "340,440,1700,880" },
		"settings": func(k *extract.CacheKey) { k.Settings = "tesseract:lang=eng;psm=7;oem=0;dpi=300;enhance=false" },
	} {
		other := key
		change(&other)
		_, ok, err = cache.Get(ctx, other)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}
