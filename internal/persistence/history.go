// Package persistence records cycle history in Postgres. Recording is
// best effort: failures are logged and never abort a cycle.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/coinpulse/regimescan/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS regime_history (
	id            BIGSERIAL PRIMARY KEY,
	cycle_id      TEXT NOT NULL,
	regime        TEXT NOT NULL,
	changed       BOOLEAN NOT NULL,
	avg_volatility DOUBLE PRECISION NOT NULL,
	trend_strength DOUBLE PRECISION NOT NULL,
	detected_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_scores (
	id        BIGSERIAL PRIMARY KEY,
	cycle_id  TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	price     DOUBLE PRECISION NOT NULL,
	score     DOUBLE PRECISION NOT NULL,
	risk_tier TEXT NOT NULL,
	rank      INT NOT NULL,
	scored_at TIMESTAMPTZ NOT NULL
);`

const (
	insertRegime = `INSERT INTO regime_history (cycle_id, regime, changed, avg_volatility, trend_strength, detected_at) VALUES ($1, $2, $3, $4, $5, $6)`
	insertScore  = `INSERT INTO cycle_scores (cycle_id, symbol, price, score, risk_tier, rank, scored_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// Recorder writes cycle outcomes to Postgres.
type Recorder struct {
	db   *sqlx.DB
	topN int
}

// Open connects and ensures the schema exists.
func Open(dsn string, topN int) (*Recorder, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Recorder{db: db, topN: topN}, nil
}

// NewWithDB wraps an existing connection; used by tests.
func NewWithDB(db *sqlx.DB, topN int) *Recorder {
	return &Recorder{db: db, topN: topN}
}

func (r *Recorder) Close() error { return r.db.Close() }

// Record persists the regime row and the top-N scored assets of the
// cycle in one transaction.
func (r *Recorder) Record(ctx context.Context, result *domain.CycleResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertRegime,
		result.ID,
		result.Regime.String(),
		result.RegimeChanged,
		result.Snapshot.Volatility.Average,
		result.Snapshot.Trend.Strength,
		result.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert regime row: %w", err)
	}

	n := r.topN
	if n <= 0 || n > len(result.Assets) {
		n = len(result.Assets)
	}
	for _, a := range result.Assets[:n] {
		if _, err := tx.ExecContext(ctx, insertScore,
			result.ID, a.Symbol, a.Price, a.Score, string(a.RiskTier), a.Rank, result.FinishedAt,
		); err != nil {
			return fmt.Errorf("insert score row %s: %w", a.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Debug().Str("cycle", result.ID).Int("rows", n).Msg("cycle history recorded")
	return nil
}

// RegimeRow is one persisted regime observation.
type RegimeRow struct {
	CycleID    string    `db:"cycle_id"`
	Regime     string    `db:"regime"`
	Changed    bool      `db:"changed"`
	DetectedAt time.Time `db:"detected_at"`
	AvgVol     float64   `db:"avg_volatility"`
	TrendStr   float64   `db:"trend_strength"`
}

// RecentRegimes returns the latest regime rows, newest first.
func (r *Recorder) RecentRegimes(ctx context.Context, limit int) ([]RegimeRow, error) {
	rows := []RegimeRow{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT cycle_id, regime, changed, avg_volatility, trend_strength, detected_at FROM regime_history ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select regime history: %w", err)
	}
	return rows, nil
}
