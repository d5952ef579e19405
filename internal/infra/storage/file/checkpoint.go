// Package file stores the checkpoint as a single decimal integer in a text
// file, replaced atomically on every save.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository on a text file.
type CheckpointRepo struct {
	path string
}

var (
	_ storage.CheckpointRepository = (*CheckpointRepo)(nil)
	_ storage.CursorReader         = (*CheckpointRepo)(nil)
)

// NewCheckpointRepo creates a file-backed checkpoint repository.
func NewCheckpointRepo(path string) *CheckpointRepo {
	return &CheckpointRepo{path: path}
}

// Load returns the stored height, or 0 if the file does not exist.
func (r *CheckpointRepo) Load(ctx context.Context) (uint64, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", domain.ErrPersistence, r.path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	height, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %w", domain.ErrPersistence, r.path, err)
	}
	return height, nil
}

// Cursor returns the stored checkpoint with the file's modification time,
// or nil when nothing has been saved.
func (r *CheckpointRepo) Cursor(ctx context.Context) (*domain.Cursor, error) {
	info, err := os.Stat(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrPersistence, r.path, err)
	}
	height, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Cursor{
		Name:        filepath.Base(r.path),
		BlockNumber: height,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// Save writes height to a temp file, syncs it and renames it over the
// checkpoint, so readers see either the old or the new value.
func (r *CheckpointRepo) Save(ctx context.Context, height uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", domain.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(strconv.FormatUint(height, 10)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %w", domain.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", domain.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("%w: rename checkpoint: %w", domain.ErrPersistence, err)
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: open dir: %w", domain.ErrPersistence, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: sync dir: %w", domain.ErrPersistence, err)
	}
	return nil
}
