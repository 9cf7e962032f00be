package fog

import (
	"context"
	"fmt"
	"image"
	"maps"
	"sync"
	"time"
)

// Record is the persisted form of a scene's ledger.
type Record struct {
	SceneID   string
	Image     []byte // grayscale PNG
	Positions map[string]Entry
	Timestamp time.Time
}

// Store is the persistence boundary. Load returns (nil, nil) when the scene
// has no saved exploration.
type Store interface {
	Load(ctx context.Context, sceneID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// NewRecord encodes a snapshot.
func NewRecord(sceneID string, snap *Snapshot, maxSize int) (*Record, error) {
	img, err := EncodePNG(snap.Coverage, maxSize)
	if err != nil {
		return nil, err
	}
	positions := make(map[string]Entry, len(snap.Positions))
	for k, e := range snap.Positions {
		positions[k.String()] = e
	}
	return &Record{SceneID: sceneID, Image: img, Positions: positions, Timestamp: snap.Taken}, nil
}

// Decode turns a record back into ledger state.
func (r *Record) Decode() (*image.Alpha, map[Key]Entry, error) {
	var img *image.Alpha
	if len(r.Image) > 0 {
		var err error
		if img, err = DecodePNG(r.Image); err != nil {
			return nil, nil, err
		}
	}
	positions := make(map[Key]Entry, len(r.Positions))
	for s, e := range r.Positions {
		k, err := ParseKey(s)
		if err != nil {
			return nil, nil, fmt.Errorf("record %s: %w", r.SceneID, err)
		}
		positions[k] = e
	}
	return img, positions, nil
}

// MemoryStore keeps records in process. Used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	saves   int
	fail    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Load(_ context.Context, sceneID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[sceneID]
	if !ok {
		return nil, nil
	}
	cp := *r
	cp.Positions = maps.Clone(r.Positions)
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := *rec
	cp.Positions = maps.Clone(rec.Positions)
	m.records[rec.SceneID] = &cp
	m.saves++
	return nil
}

// Saves counts successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetFail makes every following Save return err; nil heals the store.
func (m *MemoryStore) SetFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}
