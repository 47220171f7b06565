package pivot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelscout/internal/candle"
	"levelscout/internal/model"
)

// fixtureLookback matches the production default: 15 intervals each side.
const fixtureLookback = 15

// loadFixtureWindows loads the canonical 24-hour GBP/USD 15Min series
// (97 bars, 2020-10-07T22:00Z through 2020-10-08T22:00Z) with windows built.
func loadFixtureWindows(t *testing.T) []model.WindowedCandle {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "GBPUSD_15Min_20201007T2200_20201008T2200.json"))
	require.NoError(t, err)

	var bars []model.Candle
	require.NoError(t, json.Unmarshal(data, &bars))
	require.Len(t, bars, 97)

	windows, err := candle.Build(bars, fixtureLookback)
	require.NoError(t, err)
	return windows
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func levelTimes(levels []model.PriceLevel) []time.Time {
	times := make([]time.Time, len(levels))
	for i, l := range levels {
		times[i] = l.Time
	}
	return times
}

func TestCalculatePivotHigh_CanonicalSeries(t *testing.T) {
	windows := loadFixtureWindows(t)

	levels := CalculatePivotHigh(windows, 7)

	want := []time.Time{
		at(t, "2020-10-08T09:15:00Z"),
		at(t, "2020-10-08T09:30:00Z"),
		at(t, "2020-10-08T14:45:00Z"),
		at(t, "2020-10-08T17:00:00Z"),
	}
	assert.Equal(t, want, levelTimes(levels))

	for _, l := range levels {
		assert.Equal(t, model.Sell, l.Side)
		assert.Equal(t, "PIVOT HIGH 7", l.Spec.Label())
		assert.Equal(t, "GBP/USD", l.Market)
		assert.Equal(t, "15Min", l.Granularity)
		assert.True(t, l.Active)
		assert.GreaterOrEqual(t, l.BidPriceRange, l.BidPrice, "wick high at or above body top")
	}
}

func TestCalculatePivotLow_CanonicalSeries(t *testing.T) {
	windows := loadFixtureWindows(t)

	levels := CalculatePivotLow(windows, 7)

	want := []time.Time{
		at(t, "2020-10-08T02:30:00Z"),
		at(t, "2020-10-08T08:00:00Z"),
		at(t, "2020-10-08T13:30:00Z"),
	}
	assert.Equal(t, want, levelTimes(levels))

	for _, l := range levels {
		assert.Equal(t, model.Buy, l.Side)
		assert.Equal(t, "PIVOT LOW 7", l.Spec.Label())
		assert.LessOrEqual(t, l.BidPriceRange, l.BidPrice, "wick low at or below body bottom")
	}
}

func TestCalculate_MergesAndSorts(t *testing.T) {
	windows := loadFixtureWindows(t)

	levels := Calculate(windows, 7)
	require.Len(t, levels, 7)

	assert.True(t, sort.SliceIsSorted(levels, func(i, j int) bool {
		return levels[i].Time.Before(levels[j].Time)
	}))

	// Union of the two independent sweeps, nothing more.
	highs := CalculatePivotHigh(windows, 7)
	lows := CalculatePivotLow(windows, 7)
	assert.Len(t, levels, len(highs)+len(lows))

	// Re-running on the same input yields the same set.
	again := Calculate(windows, 7)
	assert.Equal(t, levelTimes(levels), levelTimes(again))
}

func TestCalculate_FivePivot(t *testing.T) {
	windows := loadFixtureWindows(t)

	levels := Calculate(windows, 5)
	assert.Len(t, levels, 14)
}

func TestCalculate_EdgeBarsNeverQualify(t *testing.T) {
	windows := loadFixtureWindows(t)
	const n = 7

	levels := Calculate(windows, n)
	first := windows[0].Time
	last := windows[len(windows)-1].Time
	for _, l := range levels {
		assert.True(t, l.Time.Sub(first) >= n*15*time.Minute,
			"level %s too close to series start", l.Time)
		assert.True(t, last.Sub(l.Time) >= n*15*time.Minute,
			"level %s too close to series end", l.Time)
	}
}

func TestCalculate_EmptyInput(t *testing.T) {
	assert.Empty(t, Calculate(nil, 7))
	assert.Empty(t, Calculate([]model.WindowedCandle{}, 7))
}

func TestCalculate_LevelPrices(t *testing.T) {
	windows := loadFixtureWindows(t)

	byTime := map[time.Time]model.WindowedCandle{}
	for _, w := range windows {
		byTime[w.Time] = w
	}

	for _, l := range CalculatePivotHigh(windows, 7) {
		c := byTime[l.Time]
		assert.Equal(t, c.BodyTop().Bid, l.BidPrice)
		assert.Equal(t, c.BodyTop().Ask, l.AskPrice)
		assert.Equal(t, c.High.Bid, l.BidPriceRange)
		assert.Equal(t, c.High.Ask, l.AskPriceRange)
	}
	for _, l := range CalculatePivotLow(windows, 7) {
		c := byTime[l.Time]
		assert.Equal(t, c.BodyBottom().Bid, l.BidPrice)
		assert.Equal(t, c.BodyBottom().Ask, l.AskPrice)
		assert.Equal(t, c.Low.Bid, l.BidPriceRange)
		assert.Equal(t, c.Low.Ask, l.AskPriceRange)
	}
}
