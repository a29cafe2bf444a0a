package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FsAttachmentStore writes uploaded blobs under a local directory and
// returns the URL path the HTTP layer serves them from. Uploads happen
// before the attachment-bearing message is dispatched.
type FsAttachmentStore struct {
	dir     string
	baseURL string
}

// NewFsAttachmentStore ensures the target directory exists.
func NewFsAttachmentStore(dir, baseURL string) (*FsAttachmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachment store: %w", err)
	}
	return &FsAttachmentStore{dir: dir, baseURL: baseURL}, nil
}

func (s *FsAttachmentStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Client-provided names are untrusted; keep only the extension.
	fileName := uuid.NewString() + filepath.Ext(filepath.Base(name))
	if err := os.WriteFile(filepath.Join(s.dir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("attachment store: write: %w", err)
	}
	return s.baseURL + "/" + fileName, nil
}
