package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore stores artifacts on the local filesystem under
// root/<company_id>/<uuid><ext>. References are paths relative to root so the
// root can move without invalidating stored references.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, ErrInvalidArgument
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, companyID string, data []byte, mimeType string) (string, error) {
	if companyID == "" || len(data) == 0 {
		return "", ErrInvalidArgument
	}
	dir := filepath.Join(s.root, companyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + extensionFor(mimeType)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join(companyID, name), nil
}

func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" || strings.Contains(ref, "..") {
		return nil, ErrInvalidArgument
	}
	data, err := os.ReadFile(filepath.Join(s.root, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
