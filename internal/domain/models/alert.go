package models

import (
	"sort"
	"time"
)

type Polarity string

const (
	PolarityHigh Polarity = "high"
	PolarityLow  Polarity = "low"
)

// Anomaly is a row whose |zscore| reached the threshold.
type Anomaly struct {
	Row      DailyNetflowRow
	Polarity Polarity
}

func (a Anomaly) DateKey() string { return a.Row.DateKey() }

// SeenDates is the alert memory: ISO dates already reported.
type SeenDates map[string]struct{}

func NewSeenDates(dates ...string) SeenDates {
	s := make(SeenDates, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s SeenDates) Has(date string) bool {
	_, ok := s[date]
	return ok
}

func (s SeenDates) Add(date string) { s[date] = struct{}{} }

func (s SeenDates) Len() int { return len(s) }

// Sorted returns the dates in ascending order.
func (s SeenDates) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s SeenDates) Clone() SeenDates {
	c := make(SeenDates, len(s))
	for d := range s {
		c[d] = struct{}{}
	}
	return c
}

// MemoryArchive describes a rotated alert memory snapshot.
type MemoryArchive struct {
	Month    string
	Dates    []string
	Location string // file path or redis key

	// AlreadyRotated is set when month was rotated before; nothing was touched.
	AlreadyRotated bool
}

// AlertSchema is the schema header carried by every alert record on Kafka.
const AlertSchema = "netflow.alert.v1"

// Alert is one emitted batch of new anomalies.
type Alert struct {
	ID        string
	RunID     string
	CreatedAt time.Time
	Threshold float64
	Window    int
	Anomalies []Anomaly
	Report    string // location of the durable report, if any
}
