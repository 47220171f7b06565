package pivot

import (
	"log"
	"sort"
	"sync"
	"time"

	"levelscout/internal/model"
)

// Calculate runs high and low detection concurrently over the same
// window-enriched series and returns the merged levels sorted ascending by
// time. The ordering matters: the runner walks levels oldest-first so the
// strategy cursor always advances correctly.
func Calculate(candles []model.WindowedCandle, pivotCount int) []model.PriceLevel {
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	var highs, lows []model.PriceLevel
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		highs = CalculatePivotHigh(candles, pivotCount)
	}()
	go func() {
		defer wg.Done()
		lows = CalculatePivotLow(candles, pivotCount)
	}()
	wg.Wait()

	levels := make([]model.PriceLevel, 0, len(highs)+len(lows))
	levels = append(levels, highs...)
	levels = append(levels, lows...)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Time.Before(levels[j].Time) })

	log.Printf("[INFO] pivot calculate: %s %s candles=%d pivot=%d levels=%d in %s",
		candles[0].Market, candles[0].Granularity, len(candles), pivotCount, len(levels), time.Since(start))
	return levels
}

// CalculatePivotHigh emits a sell-side resistance level for every candle that
// is a local high against its pivotCount nearest neighbors. The level price
// is the bar's body top; the range price is the wick high.
func CalculatePivotHigh(candles []model.WindowedCandle, pivotCount int) []model.PriceLevel {
	spec := model.PivotSpec{Kind: model.PivotHigh, Count: pivotCount}
	var levels []model.PriceLevel
	for _, c := range candles {
		if !IsPivotHigh(c, pivotCount) {
			continue
		}
		top := c.BodyTop()
		levels = append(levels, model.PriceLevel{
			Market:        c.Market,
			Granularity:   c.Granularity,
			Time:          c.Time,
			Spec:          spec,
			Side:          spec.Side(),
			AskPrice:      top.Ask,
			BidPrice:      top.Bid,
			AskPriceRange: c.High.Ask,
			BidPriceRange: c.High.Bid,
			Active:        true,
			LastUpdated:   time.Now().UTC(),
		})
	}
	return levels
}

// CalculatePivotLow is the buy-side mirror of CalculatePivotHigh: body bottom
// as the level price, wick low as the range.
func CalculatePivotLow(candles []model.WindowedCandle, pivotCount int) []model.PriceLevel {
	spec := model.PivotSpec{Kind: model.PivotLow, Count: pivotCount}
	var levels []model.PriceLevel
	for _, c := range candles {
		if !IsPivotLow(c, pivotCount) {
			continue
		}
		bottom := c.BodyBottom()
		levels = append(levels, model.PriceLevel{
			Market:        c.Market,
			Granularity:   c.Granularity,
			Time:          c.Time,
			Spec:          spec,
			Side:          spec.Side(),
			AskPrice:      bottom.Ask,
			BidPrice:      bottom.Bid,
			AskPriceRange: c.Low.Ask,
			BidPriceRange: c.Low.Bid,
			Active:        true,
			LastUpdated:   time.Now().UTC(),
		})
	}
	return levels
}
