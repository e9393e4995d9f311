package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no canvas has been painted yet for a
// (user, level) pair, or a level has no reference image.
var ErrNotFound = errors.New("canvas: not found")

// Store is the raster persistence abstraction the compositor and scorer
// work against.
type Store interface {
	// Load returns the canvas for (user, level), or ErrNotFound.
	Load(userID, level int64) (*Raster, error)
	// Save persists the canvas for (user, level), overwriting any
	// previous version.
	Save(userID, level int64, ra *Raster) error
	// LoadReference returns the immutable reference raster for a level,
	// or ErrNotFound.
	LoadReference(level int64) (*Raster, error)
}

// FileStore keeps canvases as PNG files named "<user>-<level>.png" under
// CanvasDir, and reference images as "<level>.png" (or .webp, .bmp) under
// LevelDir.
type FileStore struct {
	CanvasDir string
	LevelDir  string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore, creating CanvasDir if needed.
func NewFileStore(canvasDir, levelDir string) (*FileStore, error) {
	if err := os.MkdirAll(canvasDir, 0o755); err != nil {
		return nil, fmt.Errorf("canvas: mkdir %s: %w", canvasDir, err)
	}
	return &FileStore{CanvasDir: canvasDir, LevelDir: levelDir}, nil
}

func (fsr *FileStore) canvasPath(userID, level int64) string {
	return filepath.Join(fsr.CanvasDir, fmt.Sprintf("%d-%d.png", userID, level))
}

// Load implements Store.
func (fsr *FileStore) Load(userID, level int64) (*Raster, error) {
	data, err := os.ReadFile(fsr.canvasPath(userID, level))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("canvas: load: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Save implements Store. The write goes through a uniquely named temp
// file and rename so a concurrent Load never observes a half-written PNG
// and overlapping saves never touch each other's temp file.
func (fsr *FileStore) Save(userID, level int64, ra *Raster) error {
	data, err := ra.PNG()
	if err != nil {
		return err
	}
	path := fsr.canvasPath(userID, level)
	tmp, err := os.CreateTemp(fsr.CanvasDir, fmt.Sprintf("%d-%d-*.tmp", userID, level))
	if err != nil {
		return fmt.Errorf("canvas: save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("canvas: save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("canvas: save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("canvas: save: %w", err)
	}
	return nil
}

// LoadReference implements Store. PNG is the expected format; WebP and
// BMP are accepted for levels authored with other tools.
func (fsr *FileStore) LoadReference(level int64) (*Raster, error) {
	for _, ext := range []string{".png", ".webp", ".bmp"} {
		path := filepath.Join(fsr.LevelDir, fmt.Sprintf("%d%s", level, ext))
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("canvas: load reference: %w", err)
		}
		return Decode(bytes.NewReader(data))
	}
	return nil, ErrNotFound
}
