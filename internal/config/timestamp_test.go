package config

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseTimestamp("1704067200")
	if err != nil || !got.Equal(want) {
		t.Fatalf("unix seconds: got %v err %v", got, err)
	}
	got, err = ParseTimestamp("2024-01-01T08:00:00+08:00")
	if err != nil || !got.Equal(want) {
		t.Fatalf("rfc3339: got %v err %v", got, err)
	}
	got, err = ParseTimestamp("  ")
	if err != nil || !got.IsZero() {
		t.Fatalf("empty: got %v err %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error for free text")
	}
}
