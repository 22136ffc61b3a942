// Package certcache implements the C8 CertificateService contract (§4.8):
// it caches issued certificate bytes by identifier set so a retried
// renewal within a short window reuses bytes instead of re-finalizing the
// order against the CA.
package certcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caasmo/acmerenew/acmeclient"
	"github.com/caasmo/acmerenew/model"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long a finalized certificate's bytes stay eligible
// for reuse — long enough to cover a scheduler retry within the same tick,
// short enough that a genuinely new renewal always hits the CA.
const DefaultTTL = 5 * time.Minute

// Finalizer is the CA-facing operation the cache falls back to on a miss.
// acmeclient.Client satisfies it.
type Finalizer interface {
	FinalizeCertificate(ctx context.Context, order model.Order) ([]byte, error)
}

// Service implements model's CertificateService contract (§6).
type Service struct {
	finalizer Finalizer
	cache     *ristretto.Cache[string, []byte]
	group     singleflight.Group
	ttl       time.Duration
}

// New builds a Service with an in-process ristretto cache sized for a
// modest number of concurrently-cached certificates.
func New(finalizer Finalizer) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e4,
		MaxCost:     1 << 24, // 16MB of PEM bytes
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("certcache: failed to create cache: %w", err)
	}
	return &Service{finalizer: finalizer, cache: cache, ttl: DefaultTTL}, nil
}

// RequestCertificate implements §6's CertificateService.request_certificate.
// A nil, nil return models "no certificate generated" (§4.6 step 5 /
// CertificateMissing); it is never returned by this implementation, which
// always either produces a record or an error, but the signature keeps the
// door open for a Finalizer that legitimately has nothing to offer (e.g. an
// order abandoned by the CA).
func (s *Service) RequestCertificate(ctx context.Context, target model.Target, order model.Order) (*model.CertRecord, error) {
	key := cacheKey(order.Identifiers)

	if certBytes, ok := s.cache.Get(key); ok {
		return &model.CertRecord{Thumbprint: thumbprint(certBytes), PEM: certBytes}, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if certBytes, ok := s.cache.Get(key); ok {
			return certBytes, nil
		}
		certBytes, err := s.finalizer.FinalizeCertificate(ctx, order)
		if err != nil {
			return nil, err
		}
		s.cache.SetWithTTL(key, certBytes, int64(len(certBytes)), s.ttl)
		s.cache.Wait()
		return certBytes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("certcache: failed to finalize certificate: %w", err)
	}

	certBytes := v.([]byte)
	return &model.CertRecord{Thumbprint: thumbprint(certBytes), PEM: certBytes}, nil
}

func cacheKey(identifiers []string) string {
	sorted := append([]string(nil), identifiers...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// thumbprint is the SHA-256 of the leaf certificate's DER bytes (§3), not of
// the PEM encoding: the PEM blob also carries the chain and private key, and
// hashing it directly would give a key nothing else in the pipeline (a store
// or installer recomputing from DER) could reproduce.
func thumbprint(pemBytes []byte) string {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		sum := sha256.Sum256(pemBytes)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(block.Bytes)
	return hex.EncodeToString(sum[:])
}
