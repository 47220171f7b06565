package model

// RunTrigger asks the runner to process all strategies registered for one
// market + granularity pair.
type RunTrigger struct {
	Market      string `json:"market"`
	Granularity string `json:"granularity"`
}

// PriceLevelMessage is the outbound fan-out payload published for every
// newly recorded level.
type PriceLevelMessage struct {
	Market      string       `json:"market"`
	Strategy    string       `json:"strategy"`
	Granularity string       `json:"granularity"`
	PriceLevels []PriceLevel `json:"priceLevels"`
}

// CandleBatch is the inbound ingest payload: a set of bars for one market +
// granularity pair, produced by an upstream feed.
type CandleBatch struct {
	Market      string   `json:"market"`
	Granularity string   `json:"granularity"`
	Candles     []Candle `json:"candles"`
}
