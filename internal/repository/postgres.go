package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"levelscout/internal/model"
)

// PostgresRepository is the shared-database deployment option. The schema
// carries the same unique keys as the SQLite variant; ON CONFLICT handles
// duplicate detection instead of a pre-check.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository connects, pings and ensures the schema exists.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRepository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Println("[INFO] postgres repository connected")
	return r, nil
}

func (r *PostgresRepository) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS candles (
		id          SERIAL PRIMARY KEY,
		market      VARCHAR(20) NOT NULL,
		granularity VARCHAR(10) NOT NULL,
		time        TIMESTAMPTZ NOT NULL,
		bid_open    DOUBLE PRECISION, ask_open  DOUBLE PRECISION,
		bid_high    DOUBLE PRECISION, ask_high  DOUBLE PRECISION,
		bid_low     DOUBLE PRECISION, ask_low   DOUBLE PRECISION,
		bid_close   DOUBLE PRECISION, ask_close DOUBLE PRECISION,
		UNIQUE (market, granularity, time)
	);
	CREATE TABLE IF NOT EXISTS strategies (
		id           SERIAL PRIMARY KEY,
		market       VARCHAR(20) NOT NULL,
		granularity  VARCHAR(10) NOT NULL,
		name         VARCHAR(50) NOT NULL,
		active       BOOLEAN NOT NULL,
		pivot_count  INT NOT NULL,
		end_date     TIMESTAMPTZ NOT NULL,
		count        INT NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_strategies_key ON strategies(market, granularity);
	CREATE TABLE IF NOT EXISTS price_levels (
		id              SERIAL PRIMARY KEY,
		market          VARCHAR(20) NOT NULL,
		granularity     VARCHAR(10) NOT NULL,
		strategy        VARCHAR(50) NOT NULL,
		time            TIMESTAMPTZ NOT NULL,
		side            VARCHAR(4) NOT NULL,
		ask_price       DOUBLE PRECISION,
		bid_price       DOUBLE PRECISION,
		ask_price_range DOUBLE PRECISION,
		bid_price_range DOUBLE PRECISION,
		active          BOOLEAN NOT NULL,
		last_updated    TIMESTAMPTZ NOT NULL,
		UNIQUE (market, granularity, strategy, time, side)
	);
	`
	_, err := r.db.Exec(query)
	return err
}

func (r *PostgresRepository) SaveCandles(ctx context.Context, candles []model.Candle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candles
		(market, granularity, time,
		 bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (market, granularity, time) DO NOTHING`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert candle: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Market, c.Granularity, c.Time,
			c.Open.Bid, c.Open.Ask, c.High.Bid, c.High.Ask,
			c.Low.Bid, c.Low.Ask, c.Close.Bid, c.Close.Ask); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candle %s %s: %w", c.Market, c.Time, err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) Candles(ctx context.Context, market, granularity string) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT market, granularity, time,
			bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close
		FROM candles WHERE market = $1 AND granularity = $2 ORDER BY time`, market, granularity)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()
	return scanPgCandles(rows)
}

func (r *PostgresRepository) CandlesByDateRange(ctx context.Context, market, granularity string, from, to time.Time) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT market, granularity, time,
			bid_open, ask_open, bid_high, ask_high, bid_low, ask_low, bid_close, ask_close
		FROM candles WHERE market = $1 AND granularity = $2 AND time >= $3 AND time <= $4
		ORDER BY time`, market, granularity, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candles by range: %w", err)
	}
	defer rows.Close()
	return scanPgCandles(rows)
}

func scanPgCandles(rows *sql.Rows) ([]model.Candle, error) {
	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Market, &c.Granularity, &c.Time,
			&c.Open.Bid, &c.Open.Ask, &c.High.Bid, &c.High.Ask,
			&c.Low.Bid, &c.Low.Ask, &c.Close.Bid, &c.Close.Ask); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Time = c.Time.UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func (r *PostgresRepository) Strategies(ctx context.Context, market, granularity string) ([]model.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, market, granularity, name, active,
			pivot_count, end_date, count, last_updated
		FROM strategies WHERE market = $1 AND granularity = $2`, market, granularity)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var strategies []model.Strategy
	for rows.Next() {
		var s model.Strategy
		if err := rows.Scan(&s.ID, &s.Market, &s.Granularity, &s.Name, &s.Active,
			&s.PivotCount, &s.EndDate, &s.Count, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		s.EndDate = s.EndDate.UTC()
		s.LastUpdated = s.LastUpdated.UTC()
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

func (r *PostgresRepository) InsertStrategy(ctx context.Context, s model.Strategy) (model.Strategy, error) {
	if s.PivotCount == 0 {
		s.PivotCount = model.DefaultPivotCount
	}
	err := r.db.QueryRowContext(ctx, `INSERT INTO strategies
		(market, granularity, name, active, pivot_count, end_date, count, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		s.Market, s.Granularity, s.Name, s.Active, s.PivotCount,
		s.EndDate, s.Count, s.LastUpdated).Scan(&s.ID)
	if err != nil {
		return model.Strategy{}, fmt.Errorf("insert strategy: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateStrategy(ctx context.Context, s model.Strategy) error {
	_, err := r.db.ExecContext(ctx, `UPDATE strategies
		SET active = $1, pivot_count = $2, end_date = $3, count = $4, last_updated = $5
		WHERE id = $6`,
		s.Active, s.PivotCount, s.EndDate, s.Count, s.LastUpdated, s.ID)
	if err != nil {
		return fmt.Errorf("update strategy %d: %w", s.ID, err)
	}
	return nil
}

func (r *PostgresRepository) InsertPriceLevel(ctx context.Context, level model.PriceLevel) (model.PriceLevel, error) {
	err := r.db.QueryRowContext(ctx, `INSERT INTO price_levels
		(market, granularity, strategy, time, side,
		 ask_price, bid_price, ask_price_range, bid_price_range, active, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (market, granularity, strategy, time, side) DO NOTHING
		RETURNING id`,
		level.Market, level.Granularity, level.Spec.Label(), level.Time, string(level.Side),
		level.AskPrice, level.BidPrice, level.AskPriceRange, level.BidPriceRange,
		level.Active, level.LastUpdated).Scan(&level.ID)
	if err == sql.ErrNoRows {
		return model.PriceLevel{}, ErrDuplicateLevel
	}
	if err != nil {
		return model.PriceLevel{}, fmt.Errorf("insert price level: %w", err)
	}
	return level, nil
}

func (r *PostgresRepository) Close() error {
	log.Println("[INFO] closing postgres repository")
	return r.db.Close()
}
