package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caasmo/acmerenew/model"
)

// PEMFileStoreFactory builds a StorePlugin that keeps one
// "<thumbprint>.pem" file per certificate under a central SSL store
// directory (§3's CentralSslStore field).
type PEMFileStoreFactory struct {
	Dir string
}

func (f PEMFileStoreFactory) Name() string        { return "pemfile" }
func (f PEMFileStoreFactory) Description() string { return "central SSL store directory of PEM files" }

func (f PEMFileStoreFactory) Instance() StorePlugin {
	return &pemFileStore{dir: f.Dir}
}

type pemFileStore struct {
	dir string
}

func (s *pemFileStore) Name() string { return "pemfile" }

func (s *pemFileStore) path(thumbprint string) string {
	return filepath.Join(s.dir, thumbprint+".pem")
}

func (s *pemFileStore) FindByThumbprint(ctx context.Context, thumbprint string) (*model.CertRecord, error) {
	data, err := os.ReadFile(s.path(thumbprint))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pemfile: read failed: %w", err)
	}
	return &model.CertRecord{Thumbprint: thumbprint, PEM: data, StoreName: s.Name()}, nil
}

func (s *pemFileStore) Save(ctx context.Context, cert model.CertRecord) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("pemfile: failed to create store dir %s: %w", s.dir, err)
	}
	if err := os.WriteFile(s.path(cert.Thumbprint), cert.PEM, 0600); err != nil {
		return fmt.Errorf("pemfile: write failed: %w", err)
	}
	return nil
}

func (s *pemFileStore) Delete(ctx context.Context, cert model.CertRecord) error {
	err := os.Remove(s.path(cert.Thumbprint))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pemfile: delete failed: %w", err)
	}
	return nil
}
