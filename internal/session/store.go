// Package session captures and restores the open desktop: which apps are
// running, where their windows sit, and their minimize/maximize state.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/glasspane/webdesk/internal/shared/types"
)

// Snapshot is one saved desktop.
type Snapshot struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Viewport    types.Viewport         `json:"viewport"`
	Windows     []types.WindowSnapshot `json:"windows"`
}

// Meta summarizes a stored snapshot for listings.
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Windows   int       `json:"windows"`
}

// Store persists snapshots.
type Store interface {
	Save(snap *Snapshot) error
	Load(id string) (*Snapshot, error)
	List() ([]Meta, error)
	Delete(id string) error
}

const fileExt = ".session.gz"

// FileStore keeps snapshots as gzip-compressed JSON files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// Save writes the snapshot, replacing any prior file with the same id.
func (s *FileStore) Save(snap *Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}

	f, err := os.Create(s.path(snap.ID))
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush session %s: %w", snap.ID, err)
	}
	return nil
}

// Load reads one snapshot.
func (s *FileStore) Load(id string) (*Snapshot, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", id, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &snap, nil
}

// List returns metadata for all stored snapshots, newest first.
func (s *FileStore) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var out []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), fileExt)
		snap, err := s.Load(id)
		if err != nil {
			// Skip corrupt files rather than failing the whole listing.
			continue
		}
		out = append(out, Meta{
			ID:        snap.ID,
			Name:      snap.Name,
			CreatedAt: snap.CreatedAt,
			Windows:   len(snap.Windows),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a stored snapshot.
func (s *FileStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
