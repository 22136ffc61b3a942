package model

import (
	"testing"
	"time"
)

func TestScheduledRenewalDue(t *testing.T) {
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := ScheduledRenewal{DueDate: due}

	if r.Due(due.Add(-time.Minute)) {
		t.Fatalf("expected not due before DueDate")
	}
	if r.Due(due) {
		t.Fatalf("expected not due exactly at DueDate")
	}
	if !r.Due(due.Add(time.Minute)) {
		t.Fatalf("expected due after DueDate")
	}
}

func TestKeepExistingOrDefault(t *testing.T) {
	unset := ScheduledRenewal{}
	if unset.KeepExistingOrDefault() {
		t.Fatalf("expected default KeepExisting to be false when unset")
	}

	trueVal := true
	set := ScheduledRenewal{KeepExisting: &trueVal}
	if !set.KeepExistingOrDefault() {
		t.Fatalf("expected KeepExistingOrDefault to honor an explicit true")
	}

	falseVal := false
	explicitFalse := ScheduledRenewal{KeepExisting: &falseVal}
	if explicitFalse.KeepExistingOrDefault() {
		t.Fatalf("expected KeepExistingOrDefault to honor an explicit false")
	}
}
