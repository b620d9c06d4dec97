package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/validate"
)

func sampleRecord() RunRecord {
	return RunRecord{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Symbols:   []string{"SPY"},
		Strategy:  "strangle",
		Start:     time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		Result: &validate.Result{
			Backtest: &backtest.Metrics{TotalTrades: 12, SharpeRatio: 1.1},
			Score:    72.5,
			Passed:   true,
		},
	}
}

func TestJSONStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")

	store, err := NewJSONStore(path)
	require.NoError(t, err)

	record := sampleRecord()
	require.NoError(t, store.SaveRun(record))

	// reopen from disk
	reopened, err := NewJSONStore(path)
	require.NoError(t, err)

	runs := reopened.GetRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, record.ID, runs[0].ID)
	assert.Equal(t, []string{"SPY"}, runs[0].Symbols)
	require.NotNil(t, runs[0].Result)
	assert.InDelta(t, 72.5, runs[0].Result.Score, 1e-9)
	assert.True(t, runs[0].Result.Passed)
	assert.Equal(t, 12, runs[0].Result.Backtest.TotalTrades)
}

func TestJSONStore_GetRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)

	first, second := sampleRecord(), sampleRecord()
	require.NoError(t, store.SaveRun(first))
	require.NoError(t, store.SaveRun(second))

	got, err := store.GetRun(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = store.GetRun("no-such-id")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestJSONStore_OrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		record := sampleRecord()
		ids = append(ids, record.ID)
		require.NoError(t, store.SaveRun(record))
	}

	runs := store.GetRuns()
	require.Len(t, runs, 5)
	for i, run := range runs {
		assert.Equal(t, ids[i], run.ID)
	}
}

func TestMockStore(t *testing.T) {
	mock := NewMockStore()
	record := sampleRecord()
	require.NoError(t, mock.SaveRun(record))

	got, err := mock.GetRun(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	mock.SaveErr = errors.New("disk full")
	assert.Error(t, mock.SaveRun(sampleRecord()))
	assert.Len(t, mock.GetRuns(), 1)
}
