// Package stats keeps per-day request, hit and refresh counters for the page
// cache. Counters live in an external hash store so that every process serving
// the same cache contributes to one daily record.
package stats

import (
	"math"
	"strconv"
	"time"
)

// DefaultKeyPrefix is prepended to the day to form the record key.
const DefaultKeyPrefix = "pagecache:request"

// DayLayout formats a calendar day as YYYYMMDD.
const DayLayout = "20060102"

// Hash fields of a daily record.
const (
	FieldTotal     = "total"
	FieldHits      = "h"
	FieldRefreshes = "r"
)

// Record is one day's counters.
type Record struct {
	// Day is the calendar day in YYYYMMDD form.
	Day string `json:"day"`

	// Total is the number of cacheable requests seen.
	Total int64 `json:"total"`

	// Hits is the number of requests served from the cache.
	Hits int64 `json:"hits"`

	// Refreshes is the number of stale hits that scheduled a refresh.
	Refreshes int64 `json:"refreshes"`
}

// Stats is a Record plus its derived rates.
type Stats struct {
	Record

	// HitRate is Hits/Total as a percentage string, e.g. "50%".
	HitRate string `json:"hit_rate"`

	// RefreshRate is Refreshes/Total as a percentage string.
	RefreshRate string `json:"refresh_rate"`
}

// Day returns the YYYYMMDD form of t in t's location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// Rate renders count/total as a percentage rounded to two decimals.
// A zero total yields "0%".
func Rate(count, total int64) string {
	if total <= 0 {
		return "0%"
	}
	pct := math.Round(float64(count)/float64(total)*10000) / 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

// WithRates computes the derived rates for r.
func (r Record) WithRates() Stats {
	return Stats{
		Record:      r,
		HitRate:     Rate(r.Hits, r.Total),
		RefreshRate: Rate(r.Refreshes, r.Total),
	}
}
