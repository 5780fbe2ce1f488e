package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func rowsN(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{"address": "row"}
	}
	return rows
}

func TestRun_ReassemblesByRowIndexNotCompletionOrder(t *testing.T) {
	rows := rowsN(5)
	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		// later rows finish first, to exercise the ordering guarantee.
		time.Sleep(time.Duration(5-rowIndex) * time.Millisecond)
		return model.Result{
			Status:            model.StatusOK,
			LatitudeValid:     true,
			LongitudeValid:    true,
			PrecisionLevel:    model.PrecisionRooftop,
			PrecisionLevelSet: true,
			RowIndex:          rowIndex,
		}
	}

	results := Run(context.Background(), rows, Config{BatchSize: 5, WorkerCount: 5}, geocode)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.RowIndex)
	}
}

func TestRun_WaitsForBatchBeforeStartingNext(t *testing.T) {
	rows := rowsN(4)
	var active atomic.Int32
	var maxActive atomic.Int32
	var mu sync.Mutex
	var batchSeen []int

	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		mu.Lock()
		batchSeen = append(batchSeen, rowIndex/2)
		mu.Unlock()
		return model.Result{Status: model.StatusOK, LatitudeValid: true, LongitudeValid: true, PrecisionLevelSet: true}
	}

	Run(context.Background(), rows, Config{BatchSize: 2, WorkerCount: 2}, geocode)

	assert.LessOrEqual(t, maxActive.Load(), int32(2))
	assert.Equal(t, []int{0, 0, 1, 1}, batchSeen, "every row of batch 0 completes before any row of batch 1")
}

func TestRun_WorkerCountBoundsParallelism(t *testing.T) {
	rows := rowsN(10)
	var active atomic.Int32
	var maxActive atomic.Int32

	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(3 * time.Millisecond)
		return model.Result{Status: model.StatusOK, LatitudeValid: true, LongitudeValid: true, PrecisionLevelSet: true}
	}

	Run(context.Background(), rows, Config{BatchSize: 10, WorkerCount: 3}, geocode)

	assert.LessOrEqual(t, maxActive.Load(), int32(3))
}

func TestRun_PanicInOneRowIsolatedAsError(t *testing.T) {
	rows := rowsN(3)
	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		if rowIndex == 1 {
			panic("boom")
		}
		return model.Result{Status: model.StatusOK, LatitudeValid: true, LongitudeValid: true, PrecisionLevelSet: true}
	}

	results := Run(context.Background(), rows, Config{BatchSize: 3, WorkerCount: 3}, geocode)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Equal(t, model.StatusError, results[1].Status)
	assert.True(t, results[2].OK())
}

func TestRun_CancelledContextMarksUndispatchedRowsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := rowsN(3)
	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		return model.Result{Status: model.StatusOK, LatitudeValid: true, LongitudeValid: true, PrecisionLevelSet: true}
	}

	results := Run(ctx, rows, Config{BatchSize: 3, WorkerCount: 3}, geocode)

	for _, r := range results {
		assert.Equal(t, model.StatusError, r.Status)
		assert.Equal(t, "cancelled", r.ErrorMessage)
	}
}

func TestRun_EmitsProgressPerRowAndSummaryPerBatch(t *testing.T) {
	type event struct {
		kind string
	}
	var mu sync.Mutex
	var rowEvents int
	var summaries []BatchSummary

	sink := &recordingSink{
		onRow: func(delta int) {
			mu.Lock()
			rowEvents += delta
			mu.Unlock()
		},
		onBatch: func(s BatchSummary) {
			mu.Lock()
			summaries = append(summaries, s)
			mu.Unlock()
		},
	}

	rows := rowsN(5)
	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		return model.Result{
			Status:            model.StatusOK,
			LatitudeValid:     true,
			LongitudeValid:    true,
			PrecisionLevel:    model.PrecisionRooftop,
			PrecisionLevelSet: true,
		}
	}

	Run(context.Background(), rows, Config{BatchSize: 2, WorkerCount: 2, Sink: sink}, geocode)

	assert.Equal(t, 5, rowEvents)
	require.Len(t, summaries, 3)
	assert.Equal(t, 2, summaries[0].Size)
	assert.Equal(t, 2, summaries[1].Size)
	assert.Equal(t, 1, summaries[2].Size)
	assert.Equal(t, 2, summaries[0].SuccessCount)
	assert.Equal(t, 2, summaries[0].PrecisionHistogram[model.PrecisionRooftop])
}

func TestRun_LastBatchMayBeShort(t *testing.T) {
	rows := rowsN(7)
	var mu sync.Mutex
	var sizes []int
	sink := &recordingSink{
		onBatch: func(s BatchSummary) {
			mu.Lock()
			sizes = append(sizes, s.Size)
			mu.Unlock()
		},
	}
	geocode := func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		return model.Result{Status: model.StatusOK, LatitudeValid: true, LongitudeValid: true, PrecisionLevelSet: true}
	}

	Run(context.Background(), rows, Config{BatchSize: 3, WorkerCount: 3, Sink: sink}, geocode)

	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestRun_ZeroRowsReturnsEmptySlice(t *testing.T) {
	results := Run(context.Background(), nil, Config{BatchSize: 3, WorkerCount: 3}, func(ctx context.Context, rowIndex int, row model.Row) model.Result {
		t.Fatal("geocode should never be called for an empty input")
		return model.Result{}
	})
	assert.Empty(t, results)
}

type recordingSink struct {
	onRow   func(delta int)
	onBatch func(summary BatchSummary)
}

func (s *recordingSink) RowCompleted(delta int) {
	if s.onRow != nil {
		s.onRow(delta)
	}
}

func (s *recordingSink) BatchCompleted(summary BatchSummary) {
	if s.onBatch != nil {
		s.onBatch(summary)
	}
}
