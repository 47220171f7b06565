package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"levelscout/internal/model"
)

// SQLiteRepository stores everything in a single SQLite database. Writes are
// serialized through a mutex on top of SQLite's single-writer model.
type SQLiteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRepository opens (or creates) the database and runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers (dashboards, ad-hoc queries) don't block the runner.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite repository opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			market      TEXT NOT NULL,
			granularity TEXT NOT NULL,
			time        INTEGER NOT NULL,
			bid_open    REAL, ask_open  REAL,
			bid_high    REAL, ask_high  REAL,
			bid_low     REAL, ask_low   REAL,
			bid_close   REAL, ask_close REAL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_candles_key ON candles(market, granularity, time)`,

		`CREATE TABLE IF NOT EXISTS strategies (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			market       TEXT NOT NULL,
			granularity  TEXT NOT NULL,
			name         TEXT NOT NULL,
			active       INTEGER NOT NULL,
			pivot_count  INTEGER NOT NULL,
			end_date     INTEGER NOT NULL,
			count        INTEGER NOT NULL,
			last_updated INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategies_key ON strategies(market, granularity)`,

		`CREATE TABLE IF NOT EXISTS price_levels (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			market          TEXT NOT NULL,
			granularity     TEXT NOT NULL,
			strategy        TEXT NOT NULL,
			time            INTEGER NOT NULL,
			side            TEXT NOT NULL,
			ask_price       REAL,
			bid_price       REAL,
			ask_price_range REAL,
			bid_price_range REAL,
			active          INTEGER NOT NULL,
			last_updated    INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_levels_key
			ON price_levels(market, granularity, strategy, time, side)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRepository) SaveCandles(ctx context.Context, candles []model.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO candles
		(market, granularity, time,
		 bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert candle: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Market, c.Granularity, c.Time.Unix(),
			c.Open.Bid, c.Open.Ask, c.High.Bid, c.High.Ask,
			c.Low.Bid, c.Low.Ask, c.Close.Bid, c.Close.Ask); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candle %s %s: %w", c.Market, c.Time, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Candles(ctx context.Context, market, granularity string) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT market, granularity, time,
			bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close
		FROM candles WHERE market = ? AND granularity = ? ORDER BY time`, market, granularity)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func (r *SQLiteRepository) CandlesByDateRange(ctx context.Context, market, granularity string, from, to time.Time) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT market, granularity, time,
			bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close
		FROM candles WHERE market = ? AND granularity = ? AND time >= ? AND time <= ?
		ORDER BY time`, market, granularity, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var unix int64
		if err := rows.Scan(&c.Market, &c.Granularity, &unix,
			&c.Open.Bid, &c.Open.Ask, &c.High.Bid, &c.High.Ask,
			&c.Low.Bid, &c.Low.Ask, &c.Close.Bid, &c.Close.Ask); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Time = time.Unix(unix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func (r *SQLiteRepository) Strategies(ctx context.Context, market, granularity string) ([]model.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, market, granularity, name, active,
			pivot_count, end_date, count, last_updated
		FROM strategies WHERE market = ? AND granularity = ?`, market, granularity)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var strategies []model.Strategy
	for rows.Next() {
		var s model.Strategy
		var active int
		var endDate, lastUpdated int64
		if err := rows.Scan(&s.ID, &s.Market, &s.Granularity, &s.Name, &active,
			&s.PivotCount, &endDate, &s.Count, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		s.Active = active != 0
		s.EndDate = time.Unix(endDate, 0).UTC()
		s.LastUpdated = time.Unix(lastUpdated, 0).UTC()
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

func (r *SQLiteRepository) InsertStrategy(ctx context.Context, s model.Strategy) (model.Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.PivotCount == 0 {
		s.PivotCount = model.DefaultPivotCount
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO strategies
		(market, granularity, name, active, pivot_count, end_date, count, last_updated)
		VALUES (?,?,?,?,?,?,?,?)`,
		s.Market, s.Granularity, s.Name, boolToInt(s.Active), s.PivotCount,
		s.EndDate.Unix(), s.Count, s.LastUpdated.Unix())
	if err != nil {
		return model.Strategy{}, fmt.Errorf("insert strategy: %w", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return model.Strategy{}, fmt.Errorf("insert strategy id: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) UpdateStrategy(ctx context.Context, s model.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `UPDATE strategies
		SET active = ?, pivot_count = ?, end_date = ?, count = ?, last_updated = ?
		WHERE id = ?`,
		boolToInt(s.Active), s.PivotCount, s.EndDate.Unix(), s.Count, s.LastUpdated.Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("update strategy %d: %w", s.ID, err)
	}
	return nil
}

// InsertPriceLevel records a level, assigning its identity. A level that
// collides on (market, granularity, strategy, time, side) yields
// ErrDuplicateLevel and leaves the table untouched.
func (r *SQLiteRepository) InsertPriceLevel(ctx context.Context, level model.PriceLevel) (model.PriceLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM price_levels
		WHERE market = ? AND granularity = ? AND strategy = ? AND time = ? AND side = ?`,
		level.Market, level.Granularity, level.Spec.Label(), level.Time.Unix(), string(level.Side)).Scan(&existing)
	switch {
	case err == nil:
		return model.PriceLevel{}, ErrDuplicateLevel
	case err != sql.ErrNoRows:
		return model.PriceLevel{}, fmt.Errorf("check duplicate level: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO price_levels
		(market, granularity, strategy, time, side,
		 ask_price, bid_price, ask_price_range, bid_price_range, active, last_updated)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		level.Market, level.Granularity, level.Spec.Label(), level.Time.Unix(), string(level.Side),
		level.AskPrice, level.BidPrice, level.AskPriceRange, level.BidPriceRange,
		boolToInt(level.Active), level.LastUpdated.Unix())
	if err != nil {
		return model.PriceLevel{}, fmt.Errorf("insert price level: %w", err)
	}
	level.ID, err = res.LastInsertId()
	if err != nil {
		return model.PriceLevel{}, fmt.Errorf("insert price level id: %w", err)
	}
	return level, nil
}

func (r *SQLiteRepository) Close() error {
	log.Println("[INFO] closing sqlite repository")
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
