package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsKindError(t *testing.T) {
	cause := errors.New("boom")
	err := NewKindError(StoreFailed, cause, "failed to persist %s", "host")

	if got := KindOf(err); got != StoreFailed {
		t.Fatalf("KindOf() = %v, want %v", got, StoreFailed)
	}
	if !errors.Is(err, cause) && !errors.Is(errors.Unwrap(err), cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
}

func TestKindOfDefaultsToUnexpected(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != Unexpected {
		t.Fatalf("KindOf() = %v, want %v", got, Unexpected)
	}
	if got := KindOf(nil); got != Unexpected {
		t.Fatalf("KindOf(nil) = %v, want %v", got, Unexpected)
	}
}

func TestKindErrorMessagePrecedence(t *testing.T) {
	withMessage := &KindError{Kind: InstallFailed, Message: "explicit"}
	if got := withMessage.Error(); got != "explicit" {
		t.Fatalf("Error() = %q, want %q", got, "explicit")
	}

	withCause := &KindError{Kind: InstallFailed, Err: fmt.Errorf("underlying")}
	if got := withCause.Error(); got != "underlying" {
		t.Fatalf("Error() = %q, want %q", got, "underlying")
	}

	bare := &KindError{Kind: AuthorizationFailed}
	if got := bare.Error(); got != "authorization_failed" {
		t.Fatalf("Error() = %q, want %q", got, "authorization_failed")
	}
}

func TestExitCodeNonZeroForEveryKnownKind(t *testing.T) {
	kinds := []Kind{
		PluginUnavailable, TargetGone, AuthorizationFailed, CertificateMissing,
		StoreFailed, InstallFailed, PruneFailed, InvalidInput,
	}
	seen := map[int]Kind{}
	for _, k := range kinds {
		code := k.ExitCode()
		if code == 0 {
			t.Fatalf("ExitCode() for %v returned 0, want non-zero", k)
		}
		if prior, ok := seen[code]; ok {
			t.Fatalf("ExitCode collision: %v and %v both map to %d", prior, k, code)
		}
		seen[code] = k
	}
	if Unexpected.ExitCode() == 0 {
		t.Fatalf("Unexpected.ExitCode() must be non-zero")
	}
}
