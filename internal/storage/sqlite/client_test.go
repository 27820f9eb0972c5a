package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churn-insight/dashboard/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "nested", "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func TestPredictionRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	p := 0.83
	base := time.Now()
	first := &models.PredictionRecord{
		ID:              "first",
		Features:        []float64{0.1, 0.9, 6},
		Department:      "sales",
		Label:           1,
		Probability:     &p,
		Baseline:        -1.2,
		Output:          1.6,
		TopFeature:      "satisfaction_level",
		TopContribution: 1.4,
		LatencyMS:       3,
		CreatedAt:       base,
	}
	second := &models.PredictionRecord{
		ID:         "second",
		Features:   []float64{0.8},
		Department: "IT",
		Label:      0,
		CreatedAt:  base.Add(time.Second),
	}
	require.NoError(t, client.InsertPrediction(ctx, first))
	require.NoError(t, client.InsertPrediction(ctx, second))

	records, err := client.RecentPredictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "second", records[0].ID)
	assert.Nil(t, records[0].Probability)

	got := records[1]
	assert.Equal(t, first.Features, got.Features)
	assert.Equal(t, "sales", got.Department)
	require.NotNil(t, got.Probability)
	assert.InDelta(t, 0.83, *got.Probability, 1e-12)
	assert.Equal(t, "satisfaction_level", got.TopFeature)
	assert.True(t, base.Equal(got.CreatedAt))

	limited, err := client.RecentPredictions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := client.CountByLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, counts)
}

func TestInsertPrediction_DuplicateID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec := &models.PredictionRecord{ID: "dup", Features: []float64{1}, Department: "hr", CreatedAt: time.Now()}
	require.NoError(t, client.InsertPrediction(ctx, rec))
	assert.Error(t, client.InsertPrediction(ctx, rec))
}
