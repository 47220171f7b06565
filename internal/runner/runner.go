package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"levelscout/internal/candle"
	"levelscout/internal/model"
	"levelscout/internal/pivot"
	"levelscout/internal/repository"
)

// EventBus is the outbound fan-out the runner publishes levels to.
type EventBus interface {
	PublishPriceLevels(ctx context.Context, msg model.PriceLevelMessage) error
}

// Notifier pushes live updates to subscribers. Pushes never fail and never
// block the pipeline.
type Notifier interface {
	PushPriceLevel(level model.PriceLevel)
	PushStrategy(strategy model.Strategy)
}

// Runner drives the incremental detection loop. Each run trigger processes
// every strategy registered for its market + granularity pair: fetch bars from
// the cursor (padded with lookback history so boundary bars have full past
// windows), detect pivots, then insert, publish and checkpoint each new level
// oldest-first. Runs are serialized per pair key; the repository's unique
// constraint backs up overlap between processes.
type Runner struct {
	repo     repository.Repository
	bus      EventBus
	notifier Notifier
	lookback int

	keys keyedMutex
	now  func() time.Time
}

// New creates a Runner. lookback is the interval count used both for window
// spans and for the fetch pad ahead of the cursor.
func New(repo repository.Repository, bus EventBus, notifier Notifier, lookback int) *Runner {
	return &Runner{
		repo:     repo,
		bus:      bus,
		notifier: notifier,
		lookback: lookback,
		now:      time.Now,
	}
}

// Consume processes triggers until the channel closes or ctx is cancelled.
// Triggers for different pair keys run concurrently; triggers for the same
// key queue behind each other.
func (r *Runner) Consume(ctx context.Context, triggers <-chan model.RunTrigger) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case trigger, ok := <-triggers:
			if !ok {
				return
			}
			wg.Add(1)
			go func(t model.RunTrigger) {
				defer wg.Done()
				if err := r.Run(ctx, t); err != nil {
					log.Printf("[ERROR] run %s %s: %v", t.Market, t.Granularity, err)
				}
			}(trigger)
		}
	}
}

// Run handles one trigger. A failure inside one strategy is logged with its
// correlation id and does not abort sibling strategies.
func (r *Runner) Run(ctx context.Context, trigger model.RunTrigger) error {
	unlock := r.keys.lock(trigger.Market + "|" + trigger.Granularity)
	defer unlock()

	runID := uuid.NewString()
	strategies, err := r.repo.Strategies(ctx, trigger.Market, trigger.Granularity)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	if len(strategies) == 0 {
		log.Printf("[INFO] run %s: no strategies for %s %s", runID, trigger.Market, trigger.Granularity)
		return nil
	}

	for _, strategy := range strategies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !strategy.Active {
			continue
		}
		if err := r.runStrategy(ctx, runID, strategy); err != nil {
			log.Printf("[ERROR] run %s: strategy %q %s %s: %v",
				runID, strategy.Name, strategy.Market, strategy.Granularity, err)
		}
	}
	return nil
}

func (r *Runner) runStrategy(ctx context.Context, runID string, strategy model.Strategy) error {
	interval, err := model.GranularityDuration(strategy.Granularity)
	if err != nil {
		return err
	}

	// Fetch back past the cursor so the earliest new bars carry full past
	// windows; detection itself only considers bars after the cursor.
	from := strategy.EndDate.Add(-time.Duration(r.lookback) * interval)
	bars, err := r.repo.CandlesByDateRange(ctx, strategy.Market, strategy.Granularity, from, r.now())
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(bars) == 0 {
		log.Printf("[INFO] run %s: no candles for %s %s, skipping", runID, strategy.Market, strategy.Granularity)
		return nil
	}

	windows, err := candle.Build(bars, r.lookback)
	if err != nil {
		return err
	}
	fresh := windows[:0:0]
	for _, w := range windows {
		if w.Time.After(strategy.EndDate) {
			fresh = append(fresh, w)
		}
	}

	pivotCount := strategy.PivotCount
	if pivotCount <= 0 {
		pivotCount = model.DefaultPivotCount
	}
	levels := pivot.Calculate(fresh, pivotCount)
	if len(levels) == 0 {
		return nil
	}

	for _, level := range levels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		inserted, err := r.repo.InsertPriceLevel(ctx, level)
		if errors.Is(err, repository.ErrDuplicateLevel) {
			// Another run already processed this point; everything after it
			// belongs to that run's cycle.
			log.Printf("[INFO] run %s: level %s %s %s already recorded, caught up",
				runID, level.Market, level.Side, level.Time)
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert level %s: %w", level.Time, err)
		}

		if err := r.bus.PublishPriceLevels(ctx, model.PriceLevelMessage{
			Market:      strategy.Market,
			Strategy:    strategy.Name,
			Granularity: strategy.Granularity,
			PriceLevels: []model.PriceLevel{inserted},
		}); err != nil {
			return fmt.Errorf("publish level %s: %w", inserted.Time, err)
		}
		r.notifier.PushPriceLevel(inserted)

		strategy.EndDate = inserted.Time
		strategy.Count++
		strategy.LastUpdated = r.now().UTC()
		if err := r.repo.UpdateStrategy(ctx, strategy); err != nil {
			return fmt.Errorf("checkpoint strategy at %s: %w", inserted.Time, err)
		}
		r.notifier.PushStrategy(strategy)
	}

	log.Printf("[INFO] run %s: %q %s %s recorded %d levels, cursor %s",
		runID, strategy.Name, strategy.Market, strategy.Granularity, len(levels), strategy.EndDate)
	return nil
}

// keyedMutex serializes runs per pair key within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
