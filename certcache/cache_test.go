package certcache

import (
	"context"
	"sync"
	"testing"

	"github.com/caasmo/acmerenew/model"
)

type fakeFinalizer struct {
	mu    sync.Mutex
	calls int
	pem   []byte
	err   error
}

func (f *fakeFinalizer) FinalizeCertificate(ctx context.Context, order model.Order) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pem, nil
}

func TestRequestCertificateCachesByIdentifierSet(t *testing.T) {
	fin := &fakeFinalizer{pem: []byte("cert-bytes")}
	svc, err := New(fin)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order := model.Order{Identifiers: []string{"b.example.com", "a.example.com"}}

	first, err := svc.RequestCertificate(context.Background(), model.Target{}, order)
	if err != nil {
		t.Fatalf("first RequestCertificate: %v", err)
	}
	second, err := svc.RequestCertificate(context.Background(), model.Target{}, order)
	if err != nil {
		t.Fatalf("second RequestCertificate: %v", err)
	}

	if first.Thumbprint != second.Thumbprint {
		t.Fatalf("thumbprints differ across cached calls: %q vs %q", first.Thumbprint, second.Thumbprint)
	}
	if fin.calls != 1 {
		t.Fatalf("finalizer called %d times, want exactly 1 (second call should hit cache)", fin.calls)
	}
}

func TestRequestCertificateKeyIsOrderIndependent(t *testing.T) {
	fin := &fakeFinalizer{pem: []byte("cert-bytes")}
	svc, err := New(fin)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	orderA := model.Order{Identifiers: []string{"a.example.com", "b.example.com"}}
	orderB := model.Order{Identifiers: []string{"b.example.com", "a.example.com"}}

	if _, err := svc.RequestCertificate(context.Background(), model.Target{}, orderA); err != nil {
		t.Fatalf("first RequestCertificate: %v", err)
	}
	if _, err := svc.RequestCertificate(context.Background(), model.Target{}, orderB); err != nil {
		t.Fatalf("second RequestCertificate: %v", err)
	}

	if fin.calls != 1 {
		t.Fatalf("finalizer called %d times, want 1 since identifier sets are equivalent regardless of order", fin.calls)
	}
}

func TestRequestCertificatePropagatesFinalizerError(t *testing.T) {
	fin := &fakeFinalizer{err: errBoom}
	svc, err := New(fin)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = svc.RequestCertificate(context.Background(), model.Target{}, model.Order{Identifiers: []string{"x.example.com"}})
	if err == nil {
		t.Fatalf("expected error to propagate from finalizer")
	}
}

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }
