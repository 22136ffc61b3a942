package model

import "time"

// ScheduledRenewal is the persistent record pairing a Target with its run
// history and next-due date (§3).
type ScheduledRenewal struct {
	Target Target

	LastRun time.Time
	DueDate time.Time

	// New is true until the first successful persisted issuance.
	New bool
	// Updated is true when an existing record was replaced by save().
	Updated bool

	TestMode bool
	Warmup   bool

	ScriptPath       string
	ScriptParameters string

	// CentralSslStore and CertificateStore are mutually exclusive in
	// practice but both representable, per §3.
	CentralSslStore  string
	CertificateStore string

	// KeepExisting is nullable: nil means "use the configured default".
	KeepExisting *bool

	// LastThumbprint is the thumbprint of the certificate the record
	// currently points to in its store, used to recognize the "old"
	// certificate on the next renewal (§4.6 step 8-9).
	LastThumbprint string

	NoTaskScheduler bool
}

// keepExisting resolves the nullable KeepExisting flag against a default.
func (r ScheduledRenewal) keepExisting(fallback bool) bool {
	if r.KeepExisting == nil {
		return fallback
	}
	return *r.KeepExisting
}

// KeepExistingOrDefault reports whether the old certificate should be preserved in
// the store rather than pruned, defaulting to false (prune) when unset.
func (r ScheduledRenewal) KeepExistingOrDefault() bool {
	return r.keepExisting(false)
}

// Due reports whether the record should be processed at time now, absent a
// force flag. Processing happens strictly after DueDate; now == DueDate is
// not yet due.
func (r ScheduledRenewal) Due(now time.Time) bool {
	return now.After(r.DueDate)
}
