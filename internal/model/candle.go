package model

import "time"

// Price is a bid/ask quote pair for one OHLC component.
type Price struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Candle is one immutable OHLC bar for a market at a fixed granularity.
// Time is the interval start and is the bar's canonical instant everywhere:
// window boundaries, strategy cursors and price levels all key off it.
type Candle struct {
	Market      string    `json:"market"`
	Granularity string    `json:"granularity"`
	Time        time.Time `json:"time"`
	Open        Price     `json:"open"`
	High        Price     `json:"high"`
	Low         Price     `json:"low"`
	Close       Price     `json:"close"`
}

// BodyTop returns the body extreme on the upper side: the higher of open and
// close, compared by bid.
func (c Candle) BodyTop() Price {
	if c.Open.Bid >= c.Close.Bid {
		return c.Open
	}
	return c.Close
}

// BodyBottom returns the lower of open and close, compared by bid.
func (c Candle) BodyBottom() Price {
	if c.Open.Bid <= c.Close.Bid {
		return c.Open
	}
	return c.Close
}

// WindowedCandle is a Candle enriched with its bounded neighbor windows.
// Past holds bars strictly before the candle, descending by time (nearest
// first); Future holds bars strictly after, ascending (nearest first).
// The candle itself appears in neither window.
type WindowedCandle struct {
	Candle
	Past   []Candle
	Future []Candle
}
