package util

import (
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestParseTimeDay(t *testing.T) {
	got, ok := ParseTime("2025-05-07")
	if !ok || !got.Equal(time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v %v", got, ok)
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "2025-13-01"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestSplitNonEmpty(t *testing.T) {
	if got := SplitNonEmpty(" a, ,b,", ","); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("split %v", got)
	}
}
