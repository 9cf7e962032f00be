package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/limit"
	"github.com/l1jgo/vision/internal/sight"
)

var ErrDuplicateSource = errors.New("duplicate source")

// SourceInfo holds in-memory data for a vision or light source in the scene.
// Accessed only from the scene loop goroutine, no locks needed.
type SourceInfo struct {
	sight.Source

	NaturalRadius float64       // radius before range limits and sight limits
	Channel       limit.Channel // limit channel that clips the radius
	Explores      bool          // vision source reveals fog

	// Dirty is set when the source moved or was reconfigured. VisionSystem
	// recomputes dirty sources and clears the flag.
	Dirty bool
}

// State tracks all sources currently in the scene.
// Single-goroutine access only (scene loop).
type State struct {
	byID map[string]*SourceInfo
	list []*SourceInfo // insertion order (for tick iteration)

	// reusable query buffers
	viewBuf  []*sight.Source
	lightBuf []*sight.Source
}

func NewState() *State {
	return &State{
		byID: make(map[string]*SourceInfo),
	}
}

// AddSource registers a source. IDs are unique per scene.
func (s *State) AddSource(src *SourceInfo) error {
	if _, ok := s.byID[src.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.ID)
	}
	if src.Channel == "" {
		src.Channel = limit.Sight
	}
	src.Dirty = true
	s.byID[src.ID] = src
	s.list = append(s.list, src)
	return nil
}

// RemoveSource removes a source from the scene.
func (s *State) RemoveSource(id string) *SourceInfo {
	src, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	s.list = slices.DeleteFunc(s.list, func(o *SourceInfo) bool { return o == src })
	return src
}

// GetSource returns a source by ID, or nil.
func (s *State) GetSource(id string) *SourceInfo {
	return s.byID[id]
}

// UpdatePosition moves a source. Returns false for unknown IDs.
func (s *State) UpdatePosition(id string, p geom.Point) bool {
	src := s.byID[id]
	if src == nil {
		return false
	}
	if src.Position != p {
		src.Position = p
		src.Dirty = true
	}
	return true
}

// Sources returns all sources in insertion order. The slice is shared.
func (s *State) Sources() []*SourceInfo { return s.list }

func (s *State) Len() int { return len(s.list) }

// MarkAllDirty flags every source for recomputation.
func (s *State) MarkAllDirty() {
	for _, src := range s.list {
		src.Dirty = true
	}
}

// Viewers returns the vision sources. The returned slice is reused by the
// next call.
func (s *State) Viewers() []*sight.Source {
	s.viewBuf = s.viewBuf[:0]
	for _, src := range s.list {
		if src.Kind == sight.Vision {
			s.viewBuf = append(s.viewBuf, &src.Source)
		}
	}
	return s.viewBuf
}

// Lights returns the light sources. The returned slice is reused by the next
// call.
func (s *State) Lights() []*sight.Source {
	s.lightBuf = s.lightBuf[:0]
	for _, src := range s.list {
		if src.Kind == sight.Light {
			s.lightBuf = append(s.lightBuf, &src.Source)
		}
	}
	return s.lightBuf
}

// Clear removes every source.
func (s *State) Clear() {
	clear(s.byID)
	s.list = s.list[:0]
}
