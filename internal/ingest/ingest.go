package ingest

import (
	"context"
	"log"
	"sync"

	"levelscout/internal/model"
)

// CandleStore is the slice of the repository the ingest path needs.
type CandleStore interface {
	SaveCandles(ctx context.Context, candles []model.Candle) error
}

// Consumer persists inbound candle batches from the bus. Batches for
// different pairs are independent, so they fan out across a small worker set.
type Consumer struct {
	store   CandleStore
	workers int
}

func New(store CandleStore, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{store: store, workers: workers}
}

// Consume drains batches until the channel closes or ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, batches <-chan model.CandleBatch) {
	work := make(chan model.CandleBatch)
	go func() {
		defer close(work)
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-batches:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case work <- batch:
				}
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go func() {
			defer wg.Done()
			for batch := range work {
				if len(batch.Candles) == 0 {
					continue
				}
				if err := c.store.SaveCandles(ctx, batch.Candles); err != nil {
					log.Printf("[ERROR] save %d candles %s %s: %v",
						len(batch.Candles), batch.Market, batch.Granularity, err)
					continue
				}
				log.Printf("[INFO] saved %d candles %s %s",
					len(batch.Candles), batch.Market, batch.Granularity)
			}
		}()
	}
	wg.Wait()
}
