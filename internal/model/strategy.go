package model

import "time"

// DefaultPivotCount is used when a stored strategy has no explicit count.
const DefaultPivotCount = 7

// Strategy is the long-lived processing state for one detection strategy on
// one market + granularity pair. EndDate is the cursor: bars up to and
// including it have been fully processed. The cursor only moves forward, and
// only after a level has been durably recorded.
type Strategy struct {
	ID          int64     `json:"id"`
	Market      string    `json:"market"`
	Granularity string    `json:"granularity"`
	Name        string    `json:"name"`
	Active      bool      `json:"active"`
	PivotCount  int       `json:"pivotCount"`
	EndDate     time.Time `json:"endDate"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}
