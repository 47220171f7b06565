package pivot

import "levelscout/internal/model"

// IsPivotHigh reports whether the bar's high (bid) is at least the high of
// every one of its pivotCount nearest neighbors on both sides. Ties count:
// a plateau of equal highs all qualify. Bars with fewer than pivotCount
// neighbors on either side never qualify, so series boundaries can't produce
// false positives.
func IsPivotHigh(c model.WindowedCandle, pivotCount int) bool {
	return highestAgainst(c, c.Past, pivotCount) && highestAgainst(c, c.Future, pivotCount)
}

// IsPivotLow is the mirror of IsPivotHigh over the low (bid) with <=.
func IsPivotLow(c model.WindowedCandle, pivotCount int) bool {
	return lowestAgainst(c, c.Past, pivotCount) && lowestAgainst(c, c.Future, pivotCount)
}

func highestAgainst(c model.WindowedCandle, window []model.Candle, n int) bool {
	if len(window) < n {
		return false
	}
	for _, neighbor := range window[:n] {
		if c.High.Bid < neighbor.High.Bid {
			return false
		}
	}
	return true
}

func lowestAgainst(c model.WindowedCandle, window []model.Candle, n int) bool {
	if len(window) < n {
		return false
	}
	for _, neighbor := range window[:n] {
		if c.Low.Bid > neighbor.Low.Bid {
			return false
		}
	}
	return true
}
