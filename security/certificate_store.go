package security

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

var ErrCertificateNotFound = errors.New("security: certificate not found")

// CertificateStore returns the raw bytes of a provider certificate for an
// environment.
type CertificateStore interface {
	Certificate(ctx context.Context, providerKey, environment string) ([]byte, error)
}

// CertificateName returns the file name of a provider certificate, for
// example mpesa_sandbox.cer.
func CertificateName(providerKey, environment string) string {
	return strings.ToLower(strings.TrimSpace(providerKey)) + "_" + strings.ToLower(strings.TrimSpace(environment)) + ".cer"
}

// FSCertificateStore reads certificates from an fs.FS.
type FSCertificateStore struct {
	FS  fs.FS
	Dir string
}

func NewFSCertificateStore(fsys fs.FS, dir string) *FSCertificateStore {
	return &FSCertificateStore{FS: fsys, Dir: strings.Trim(strings.TrimSpace(dir), "/")}
}

// NewDirCertificateStore reads certificates from a directory on disk.
func NewDirCertificateStore(dir string) *FSCertificateStore {
	return &FSCertificateStore{FS: os.DirFS(strings.TrimSpace(dir))}
}

func (s *FSCertificateStore) Certificate(_ context.Context, providerKey, environment string) ([]byte, error) {
	if s == nil || s.FS == nil {
		return nil, fmt.Errorf("security: certificate store is not configured")
	}
	if strings.TrimSpace(providerKey) == "" || strings.TrimSpace(environment) == "" {
		return nil, fmt.Errorf("security: provider key and environment are required")
	}
	name := CertificateName(providerKey, environment)
	if s.Dir != "" {
		name = path.Join(s.Dir, name)
	}
	data, err := fs.ReadFile(s.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, name)
		}
		return nil, fmt.Errorf("security: read certificate %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCertificateNotFound, name)
	}
	return data, nil
}

var _ CertificateStore = (*FSCertificateStore)(nil)
