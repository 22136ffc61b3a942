package config

import (
	"testing"
	"time"
)

func TestDurationTextRoundTrip(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(text) != "1m30s" {
		t.Fatalf("unexpected text encoding: %q", text)
	}

	var got Duration
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Duration != d.Duration {
		t.Fatalf("round-trip mismatch: got %v, want %v", got.Duration, d.Duration)
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Fatalf("expected error for invalid duration text")
	}
}
