// Package state persists the last-known live status per channel as a single
// JSON snapshot file. The file is single-writer: running two processes
// against the same path is undefined behavior, and deleting the file at any
// time resets every channel to unknown.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultFile is the snapshot path used when none is configured.
const DefaultFile = "temp_twitch-alerts-state.json"

// ErrCorrupt indicates the snapshot file exists but is not valid JSON.
// Callers may treat this as an empty snapshot; the file is disposable.
var ErrCorrupt = errors.New("state file corrupt")

// ChannelStatus is the last observed status of one channel.
type ChannelStatus struct {
	IsLive      bool      `json:"is_live"`
	LastChecked time.Time `json:"last_checked"`
}

// Snapshot maps channel login names to their last-known status. It always
// reflects the outcome of the most recently completed scan.
type Snapshot map[string]ChannelStatus

// Store abstracts snapshot persistence so the scanner takes an explicit
// handle rather than a package-level singleton.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// FileStore reads and writes the snapshot as a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore at path, or at DefaultFile when empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{Path: path}
}

// Load parses the snapshot file. A missing file is a first run and yields an
// empty snapshot; an unreadable one yields an error wrapping ErrCorrupt.
func (fs *FileStore) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(fs.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", fs.Path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, fs.Path, err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Save replaces the snapshot file all-or-nothing: the new content is written
// to a temp file in the same directory and renamed over the old one, so an
// interrupted save never leaves a truncated file behind.
func (fs *FileStore) Save(_ context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(fs.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, fs.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	snap Snapshot
	// LoadErr and SaveErr, when set, are returned instead of operating.
	LoadErr error
	SaveErr error
}

func NewMemStore(snap Snapshot) *MemStore {
	if snap == nil {
		snap = Snapshot{}
	}
	return &MemStore{snap: snap}
}

func (ms *MemStore) Load(_ context.Context) (Snapshot, error) {
	if ms.LoadErr != nil {
		return nil, ms.LoadErr
	}
	out := make(Snapshot, len(ms.snap))
	for k, v := range ms.snap {
		out[k] = v
	}
	return out, nil
}

func (ms *MemStore) Save(_ context.Context, snap Snapshot) error {
	if ms.SaveErr != nil {
		return ms.SaveErr
	}
	out := make(Snapshot, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	ms.snap = out
	return nil
}

// Current returns the last saved snapshot.
func (ms *MemStore) Current() Snapshot { return ms.snap }
