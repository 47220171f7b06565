package candle

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"levelscout/internal/model"
)

// Build enriches every bar with its past and future neighbor windows. Each
// window spans at most lookback whole intervals of the bar's granularity:
// Future holds bars in (t, t+span] ascending, Past holds bars in [t-span, t)
// descending, so the nearest neighbor comes first on both sides. Bars sharing
// the input bar's timestamp are excluded from both windows.
//
// Window construction is independent per bar and fans out across a bounded
// worker set; the merged result is always sorted ascending by time, which
// downstream detection relies on.
func Build(bars []model.Candle, lookback int) ([]model.WindowedCandle, error) {
	if len(bars) == 0 {
		return nil, nil
	}
	interval, err := model.GranularityDuration(bars[0].Granularity)
	if err != nil {
		return nil, fmt.Errorf("build windows: %w", err)
	}
	span := time.Duration(lookback) * interval

	sorted := make([]model.Candle, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	start := time.Now()
	out := make([]model.WindowedCandle, len(sorted))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(sorted) {
		workers = len(sorted)
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				out[i] = buildOne(sorted, i, span)
			}
		}()
	}
	for i := range sorted {
		idx <- i
	}
	close(idx)
	wg.Wait()

	// Slots were filled by index, so the merged result is already ascending;
	// the sort stays as the ordering contract for callers.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	log.Printf("[INFO] windows built: %d candles, lookback %d, in %s", len(out), lookback, time.Since(start))
	return out, nil
}

func buildOne(bars []model.Candle, i int, span time.Duration) model.WindowedCandle {
	wc := model.WindowedCandle{Candle: bars[i]}
	t := bars[i].Time

	for j := i - 1; j >= 0; j-- {
		if bars[j].Time.Before(t.Add(-span)) {
			break
		}
		if bars[j].Time.Equal(t) {
			continue
		}
		wc.Past = append(wc.Past, bars[j])
	}
	for j := i + 1; j < len(bars); j++ {
		if bars[j].Time.After(t.Add(span)) {
			break
		}
		if bars[j].Time.Equal(t) {
			continue
		}
		wc.Future = append(wc.Future, bars[j])
	}
	return wc
}
