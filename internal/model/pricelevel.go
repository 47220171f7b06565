package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side indicates which way a price level leans: support levels are buy zones,
// resistance levels are sell zones.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// PivotKind classifies a pivot as a local high or a local low.
type PivotKind string

const (
	PivotHigh PivotKind = "HIGH"
	PivotLow  PivotKind = "LOW"
)

// PivotSpec describes a pivot strategy in structured form. The flat label
// ("PIVOT HIGH 7") only exists at serialization boundaries.
type PivotSpec struct {
	Kind  PivotKind
	Count int
}

// Label renders the spec in its wire/persistence form.
func (p PivotSpec) Label() string {
	return fmt.Sprintf("PIVOT %s %d", p.Kind, p.Count)
}

// Side maps the pivot kind to the level's trade side: highs are resistance
// (sell), lows are support (buy).
func (p PivotSpec) Side() Side {
	if p.Kind == PivotHigh {
		return Sell
	}
	return Buy
}

func (p PivotSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Label())
}

func (p *PivotSpec) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParsePivotLabel(label)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePivotLabel parses a flat strategy label back into its structured form.
func ParsePivotLabel(label string) (PivotSpec, error) {
	var kind string
	var count int
	if _, err := fmt.Sscanf(label, "PIVOT %s %d", &kind, &count); err != nil {
		return PivotSpec{}, fmt.Errorf("parse pivot label %q: %w", label, err)
	}
	switch PivotKind(kind) {
	case PivotHigh, PivotLow:
		return PivotSpec{Kind: PivotKind(kind), Count: count}, nil
	}
	return PivotSpec{}, fmt.Errorf("parse pivot label %q: unknown kind %q", label, kind)
}

// PriceLevel is a detected support/resistance level. The repository assigns
// ID on insert; after that the record is read-only.
type PriceLevel struct {
	ID          int64     `json:"id"`
	Market      string    `json:"market"`
	Granularity string    `json:"granularity"`
	Time        time.Time `json:"time"`
	Spec        PivotSpec `json:"strategy"`
	Side        Side      `json:"side"`

	// Body extreme at the pivot bar; the entry price for the level.
	AskPrice float64 `json:"askPrice"`
	BidPrice float64 `json:"bidPrice"`

	// Wick extreme; the outer edge of the level's range.
	AskPriceRange float64 `json:"askPriceRange"`
	BidPriceRange float64 `json:"bidPriceRange"`

	Active      bool      `json:"active"`
	LastUpdated time.Time `json:"lastUpdated"`
}
