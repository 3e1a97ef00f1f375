package common

import (
	"fmt"
	"time"
)

// DateFormat is the calendar-date format understood by the M2M temporal filters
const DateFormat = "2006-01-02"

// SpatialFilterMbr is the only filterType issued by this client (minimum bounding rectangle)
const SpatialFilterMbr = "mbr"

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SpatialFilter is a bounding rectangle constraining searches to the area of interest.
// Immutable once constructed.
type SpatialFilter struct {
	FilterType string     `json:"filterType"`
	LowerLeft  Coordinate `json:"lowerLeft"`
	UpperRight Coordinate `json:"upperRight"`
}

// NewSpatialFilter creates a "mbr" SpatialFilter, checking that lowerLeft/upperRight
// are a valid min/max extraction of the source coordinates.
func NewSpatialFilter(lowerLeft, upperRight Coordinate) (SpatialFilter, error) {
	if lowerLeft.Latitude > upperRight.Latitude || lowerLeft.Longitude > upperRight.Longitude {
		return SpatialFilter{}, fmt.Errorf("NewSpatialFilter: degenerate bounding rectangle [%v, %v]", lowerLeft, upperRight)
	}
	return SpatialFilter{
		FilterType: SpatialFilterMbr,
		LowerLeft:  lowerLeft,
		UpperRight: upperRight,
	}, nil
}

// TemporalFilter is a date range constraining searches to a time window.
// Immutable per run.
type TemporalFilter struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewTemporalFilter creates a TemporalFilter for the [start, end] calendar dates
func NewTemporalFilter(start, end time.Time) TemporalFilter {
	return TemporalFilter{
		Start: start.Format(DateFormat),
		End:   end.Format(DateFormat),
	}
}

// NewTemporalFilterLastDays creates a TemporalFilter covering the days last days, ending now
func NewTemporalFilterLastDays(now time.Time, days int) TemporalFilter {
	return NewTemporalFilter(now.AddDate(0, 0, -days), now)
}
