package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used for every date key.
const DateLayout = "2006-01-02"

// MonthLayout labels rotation periods ("2025-06").
const MonthLayout = "2006-01"

type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
	DirectionOther   Direction = "other"
)

// TransferRecord is one token transfer as delivered by ingestion. Never mutated by the engine.
type TransferRecord struct {
	Hash        string
	BlockNumber uint64
	Timestamp   int64 // unix seconds
	From        string
	To          string
	Value       float64 // token units, already divided by token decimals
	Exchange    string  // optional label
}

// Day returns the UTC calendar day of the transfer.
func (t TransferRecord) Day() time.Time {
	return DayOf(time.Unix(t.Timestamp, 0))
}

// ExchangeAddressMap maps a normalized exchange label to its lower-cased custody address.
type ExchangeAddressMap map[string]string

// NewExchangeAddressMap normalizes labels and addresses of a raw {label: address} mapping.
func NewExchangeAddressMap(raw map[string]string) (ExchangeAddressMap, error) {
	m := make(ExchangeAddressMap, len(raw))
	for label, addr := range raw {
		l := NormalizeLabel(label)
		if l == "" {
			return nil, fmt.Errorf("exchange map: empty label for address %q", addr)
		}
		if _, dup := m[l]; dup {
			return nil, fmt.Errorf("exchange map: duplicate label %q", l)
		}
		a := NormalizeAddress(addr)
		if a == "" {
			return nil, fmt.Errorf("exchange map: empty address for label %q", l)
		}
		m[l] = a
	}
	return m, nil
}

// Labels returns labels in ascending order.
func (m ExchangeAddressMap) Labels() []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func NormalizeLabel(s string) string   { return strings.ToLower(strings.TrimSpace(s)) }
func NormalizeAddress(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ClassifiedTransfer is a TransferRecord with a computed direction.
type ClassifiedTransfer struct {
	TransferRecord
	Direction  Direction
	SignedFlow float64
}

// DailyNetflowRow is the time-series unit. Exchange is empty for the total series.
// RollMean, RollStd and ZScore are nil when undefined.
type DailyNetflowRow struct {
	Date     time.Time
	Exchange string
	Inflow   float64
	Outflow  float64
	Netflow  float64
	RollMean *float64
	RollStd  *float64
	ZScore   *float64
}

// DateKey returns the row date as YYYY-MM-DD.
func (r DailyNetflowRow) DateKey() string { return r.Date.Format(DateLayout) }

// HasZ reports whether the z-score is defined.
func (r DailyNetflowRow) HasZ() bool { return r.ZScore != nil }

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayRange turns the inclusive day range [from, to] into half-open UTC bounds:
// midnight of from, and midnight of the day after to.
func DayRange(from, to time.Time) (time.Time, time.Time) {
	return DayOf(from), DayOf(to).AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD date (a trailing time part is tolerated) as a UTC day.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return DayOf(t), nil
		}
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// MonthOf returns the YYYY-MM label of t in UTC.
func MonthOf(t time.Time) string { return t.UTC().Format(MonthLayout) }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
