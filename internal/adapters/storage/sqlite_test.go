package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func makeRun(id string, startedAt time.Time) *domain.RunResult {
	return &domain.RunResult{
		ID:         id,
		StartedAt:  startedAt,
		Duration:   1500 * time.Millisecond,
		Benchmark:  "SPY",
		ConfigJSON: `{"max_positions":10}`,
		Start:      date("2024-01-02"),
		End:        date("2024-03-28"),
		Symbols:    []string{"AAPL", "MSFT"},
		Faults: []domain.DataFault{
			{Symbol: "BAD", Date: date("2024-01-05"), Reason: "duplicate date"},
			{Symbol: "EMPTY", Reason: "empty series"},
		},
		Curve: []domain.PortfolioState{
			{Date: date("2024-01-02"), Cash: 100_000, Equity: 100_000},
			{Date: date("2024-01-03"), Cash: 90_000, Positions: 1, Equity: 100_250},
		},
		Trades: []domain.Trade{{
			Symbol: "AAPL", EntryDate: date("2024-01-03"), EntryPrice: 100, ExitDate: date("2024-01-20"),
			ExitPrice: 110, Shares: 100, ExitReason: domain.ExitTimeStop, GrossPnL: 1000, NetPnL: 998,
			HoldingDays: 12, Commission: 2,
		}},
		Open: []domain.Position{{
			Symbol: "MSFT", EntryDate: date("2024-03-20"), EntryPrice: 400, Shares: 25, EntryCost: 10_000,
			HighWater: 410, DaysHeld: 5, LastClose: 405,
		}},
		Counters: domain.SignalCounters{Triggers: 5, Admitted: 2, Rejected: 1, Deferred: 1, DroppedHeld: 1},
		Summary: domain.Summary{
			StartingCash: 100_000, FinalEquity: 101_123, TotalReturn: 0.01123, MaxDrawdown: 0.02,
			WinRate: 1, ProfitFactor: math.Inf(1), TradeCount: 1, TradingDays: 60,
		},
	}
}

func TestSQLiteStorage_SaveAndGetRun(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	run := makeRun("20240328T120000-abcd1234", time.Date(2024, 3, 28, 12, 0, 0, 0, time.UTC))
	require.NoError(t, db.SaveRun(ctx, run))

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, run.Duration, got.Duration)
	assert.Equal(t, run.Symbols, got.Symbols)
	assert.Equal(t, run.ConfigJSON, got.ConfigJSON)
	assert.Equal(t, run.Counters, got.Counters)
	assert.True(t, math.IsInf(got.Summary.ProfitFactor, 1), "infinite profit factor survives as NULL")
	assert.InDelta(t, 101_123.0, got.Summary.FinalEquity, 1e-9)

	require.Len(t, got.Trades, 1)
	assert.Equal(t, run.Trades[0], got.Trades[0])
	assert.Equal(t, run.Curve, got.Curve)
	assert.Equal(t, run.Open, got.Open)
	assert.Equal(t, run.Faults, got.Faults)
}

func TestSQLiteStorage_GetRunNotFound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestSQLiteStorage_DuplicateRunRollsBack(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	run := makeRun("dup", time.Now().UTC())
	require.NoError(t, db.SaveRun(ctx, run))
	assert.Error(t, db.SaveRun(ctx, run))

	got, err := db.GetRun(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, got.Trades, 1, "the failed save must not leave extra rows")
}

func TestSQLiteStorage_ListRunsNewestFirst(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		run := makeRun(id, base.Add(time.Duration(i)*time.Hour))
		run.Summary.ProfitFactor = 1.5
		require.NoError(t, db.SaveRun(ctx, run))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
	assert.InDelta(t, 1.5, runs[0].Summary.ProfitFactor, 1e-9)
	assert.Empty(t, runs[0].Trades, "list returns headers only")
}

func TestSQLiteStorage_DeleteRunsBefore(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveRun(ctx, makeRun("old", old)))
	require.NoError(t, db.SaveRun(ctx, makeRun("recent", recent)))

	n, err := db.DeleteRunsBefore(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRun(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)

	// los hijos del run borrado también se fueron: re-guardar el mismo ID funciona
	require.NoError(t, db.SaveRun(ctx, makeRun("old", recent)))
	got, err := db.GetRun(ctx, "old")
	require.NoError(t, err)
	assert.Len(t, got.Trades, 1)
}
