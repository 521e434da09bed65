package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AttachmentStore persists an uploaded file and returns the reference stored
// on the message.
type AttachmentStore interface {
	Store(ctx context.Context, filename string, r io.Reader) (string, error)
	// Remove deletes a stored file by the reference Store returned.
	Remove(ctx context.Context, ref string) error
}

// DiskAttachmentStore writes files under Dir and serves them from URLPrefix.
type DiskAttachmentStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskAttachmentStore(dir string) *DiskAttachmentStore {
	return &DiskAttachmentStore{Dir: dir, URLPrefix: "/uploads"}
}

func (s *DiskAttachmentStore) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}

	// client names are never used on disk
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return path.Join(s.URLPrefix, name), nil
}

func (s *DiskAttachmentStore) Remove(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.URLPrefix+"/") {
		return fmt.Errorf("attachment %q is not under %s", ref, s.URLPrefix)
	}
	err := os.Remove(filepath.Join(s.Dir, path.Base(ref)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
