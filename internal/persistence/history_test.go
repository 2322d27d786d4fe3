package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpulse/regimescan/internal/domain"
)

func newMockRecorder(t *testing.T, topN int) (*Recorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres"), topN), mock
}

func sampleResult() *domain.CycleResult {
	finished := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.CycleResult{
		ID:            "cycle-1",
		Regime:        domain.RegimeBullStable,
		RegimeChanged: true,
		Snapshot: domain.MarketSnapshot{
			Trend:      domain.TrendMetrics{Strength: 0.4},
			Volatility: domain.VolatilityMetrics{Average: 0.03},
		},
		Assets: []domain.ScoredAsset{
			{Symbol: "BTC-USD", Price: 50000, Score: 88, RiskTier: domain.RiskMedium, Rank: 1},
			{Symbol: "ETH-USD", Price: 3000, Score: 75, RiskTier: domain.RiskMedium, Rank: 2},
			{Symbol: "SOL-USD", Price: 150, Score: 60, RiskTier: domain.RiskMedium, Rank: 3},
		},
		FinishedAt: finished,
	}
}

func TestRecord_WritesRegimeAndTopN(t *testing.T) {
	r, mock := newMockRecorder(t, 2)
	result := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec(insertRegime).
		WithArgs("cycle-1", "bull_stable", true, 0.03, 0.4, result.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertScore).
		WithArgs("cycle-1", "BTC-USD", 50000.0, 88.0, "medium", 1, result.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertScore).
		WithArgs("cycle-1", "ETH-USD", 3000.0, 75.0, "medium", 2, result.FinishedAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Record(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_RollsBackOnFailure(t *testing.T) {
	r, mock := newMockRecorder(t, 0)
	result := sampleResult()

	mock.ExpectBegin()
	mock.ExpectExec(insertRegime).
		WithArgs("cycle-1", "bull_stable", true, 0.03, 0.4, result.FinishedAt).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	require.Error(t, r.Record(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentRegimes(t *testing.T) {
	r, mock := newMockRecorder(t, 0)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"cycle_id", "regime", "changed", "avg_volatility", "trend_strength", "detected_at"}).
		AddRow("cycle-2", "neutral", false, 0.02, 0.1, at).
		AddRow("cycle-1", "bull_stable", true, 0.03, 0.4, at.Add(-time.Hour))
	mock.ExpectQuery(`SELECT cycle_id, regime, changed, avg_volatility, trend_strength, detected_at FROM regime_history ORDER BY id DESC LIMIT $1`).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := r.RecentRegimes(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "neutral", got[0].Regime)
	assert.Equal(t, "bull_stable", got[1].Regime)
	require.NoError(t, mock.ExpectationsWereMet())
}
