package repository

import (
	"context"
	"errors"
	"time"

	"levelscout/internal/model"
)

// ErrDuplicateLevel is returned by InsertPriceLevel when an identical level
// (market, granularity, strategy label, time, side) is already recorded.
// It is a distinguished outcome, not a failure: the runner reads it as
// "this range was already processed" and stops the cycle there.
var ErrDuplicateLevel = errors.New("price level already recorded")

// Repository persists candles, strategies and price levels. The unique
// constraint behind ErrDuplicateLevel is the single source of truth for
// "already processed" when runs overlap.
type Repository interface {
	SaveCandles(ctx context.Context, candles []model.Candle) error
	Candles(ctx context.Context, market, granularity string) ([]model.Candle, error)
	CandlesByDateRange(ctx context.Context, market, granularity string, from, to time.Time) ([]model.Candle, error)

	Strategies(ctx context.Context, market, granularity string) ([]model.Strategy, error)
	InsertStrategy(ctx context.Context, strategy model.Strategy) (model.Strategy, error)
	UpdateStrategy(ctx context.Context, strategy model.Strategy) error

	InsertPriceLevel(ctx context.Context, level model.PriceLevel) (model.PriceLevel, error)

	Close() error
}
