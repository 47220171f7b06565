package model

import (
	"fmt"
	"time"
)

var granularities = map[string]time.Duration{
	"1Min":  time.Minute,
	"5Min":  5 * time.Minute,
	"15Min": 15 * time.Minute,
	"30Min": 30 * time.Minute,
	"1H":    time.Hour,
	"4H":    4 * time.Hour,
	"1D":    24 * time.Hour,
}

// GranularityDuration maps a granularity label (e.g. "15Min") to the length
// of one bar interval.
func GranularityDuration(granularity string) (time.Duration, error) {
	d, ok := granularities[granularity]
	if !ok {
		return 0, fmt.Errorf("unknown granularity %q", granularity)
	}
	return d, nil
}
