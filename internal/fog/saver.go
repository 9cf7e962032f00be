package fog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// saveTimeout bounds one write to the store.
const saveTimeout = 5 * time.Second

// Outcome reports one finished save back to the scene goroutine.
type Outcome struct {
	Bytes    int
	Duration time.Duration
	Err      error
}

// Saver writes snapshots on a single background goroutine. A write in
// progress always finishes; a snapshot submitted meanwhile waits in a
// one-slot queue and is replaced by any newer one.
type Saver struct {
	store   Store
	sceneID string
	maxSize int
	log     *zap.Logger

	queue    chan *Snapshot
	outcomes chan Outcome
	wg       sync.WaitGroup
	once     sync.Once
	closed   atomic.Bool
}

func NewSaver(store Store, sceneID string, maxSize int, log *zap.Logger) *Saver {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Saver{
		store:    store,
		sceneID:  sceneID,
		maxSize:  maxSize,
		log:      log.Named("fog-saver"),
		queue:    make(chan *Snapshot, 1),
		outcomes: make(chan Outcome, 16),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Submit queues snap without blocking. Must be called from one goroutine.
func (s *Saver) Submit(snap *Snapshot) {
	if snap == nil || s.closed.Load() {
		return
	}
	select {
	case s.queue <- snap:
		return
	default:
	}
	// Slot taken: the newer snapshot supersedes the queued one.
	select {
	case <-s.queue:
	default:
	}
	s.queue <- snap
}

// Outcomes delivers finished saves. Drain it from the scene goroutine.
func (s *Saver) Outcomes() <-chan Outcome { return s.outcomes }

// Close stops accepting snapshots and waits for queued ones to be written.
func (s *Saver) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.queue)
	})
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer s.wg.Done()
	for snap := range s.queue {
		out := s.write(snap)
		select {
		case s.outcomes <- out:
		default:
			s.log.Warn("fog save outcome dropped", zap.Error(out.Err))
		}
	}
}

func (s *Saver) write(snap *Snapshot) Outcome {
	start := time.Now()
	rec, err := NewRecord(s.sceneID, snap, s.maxSize)
	if err != nil {
		s.log.Error("fog encode failed", zap.String("scene", s.sceneID), zap.Error(err))
		return Outcome{Err: err, Duration: time.Since(start)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Warn("fog save failed", zap.String("scene", s.sceneID), zap.Error(err))
		return Outcome{Err: err, Bytes: len(rec.Image), Duration: time.Since(start)}
	}

	out := Outcome{Bytes: len(rec.Image), Duration: time.Since(start)}
	s.log.Debug("fog saved",
		zap.String("scene", s.sceneID),
		zap.Int("bytes", out.Bytes),
		zap.Int("positions", len(rec.Positions)),
		zap.Duration("took", out.Duration),
	)
	return out
}
