// Package replay persists room replay events off the game path.
package replay

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/werewolfroom/logger"
	"github.com/wfunc/werewolfroom/models"
	"github.com/wfunc/werewolfroom/persistence"
	"github.com/wfunc/werewolfroom/room"
)

const (
	DefaultBuffer        = 1024
	defaultBatchSize     = 64
	defaultFlushInterval = 500 * time.Millisecond
	shutdownTimeout      = 5 * time.Second
)

// SnapshotFunc returns the current public snapshot of a room.
type SnapshotFunc func(roomID string) (room.Snapshot, bool)

type Option func(*Recorder)

// WithSnapshots 每次批量写入后保存涉及房间的最新快照
func WithSnapshots(fn SnapshotFunc) Option {
	return func(r *Recorder) { r.snapshots = fn }
}

// WithDropHook is called once for every event dropped on a full queue.
func WithDropHook(fn func()) Option {
	return func(r *Recorder) { r.onDrop = fn }
}

func WithBatch(size int, interval time.Duration) Option {
	return func(r *Recorder) {
		if size > 0 {
			r.batchSize = size
		}
		if interval > 0 {
			r.flushInterval = interval
		}
	}
}

// Recorder implements room.Recorder. Record never blocks: events go through a
// bounded queue to the writer started by Run, and are dropped with a warning
// when the queue is full.
type Recorder struct {
	db            persistence.Database
	queue         chan room.ReplayEvent
	snapshots     SnapshotFunc
	onDrop        func()
	batchSize     int
	flushInterval time.Duration

	seq     int64
	dropped atomic.Int64
}

func NewRecorder(db persistence.Database, buffer int, opts ...Option) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		db:            db,
		queue:         make(chan room.ReplayEvent, buffer),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Record(ev room.ReplayEvent) {
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		if r.onDrop != nil {
			r.onDrop()
		}
		logger.Log.Warnw("replay queue full, event dropped", "room", ev.RoomID, "version", ev.Version, "kind", ev.Kind)
	}
}

// Dropped returns the number of events lost to a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes queued events until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]room.ReplayEvent, 0, r.batchSize)
	for {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			for {
				select {
				case ev := <-r.queue:
					batch = append(batch, ev)
				default:
					r.flush(drainCtx, batch)
					return nil
				}
			}
		}
	}
}

func (r *Recorder) flush(ctx context.Context, batch []room.ReplayEvent) {
	if len(batch) == 0 {
		return
	}

	events := make([]models.ReplayEvent, 0, len(batch))
	rooms := make(map[string]struct{})
	for _, ev := range batch {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			logger.Log.Errorw("marshal replay payload", "room", ev.RoomID, "kind", ev.Kind, "error", err)
			continue
		}
		r.seq++
		events = append(events, models.ReplayEvent{
			ID:      uuid.NewString(),
			RoomID:  ev.RoomID,
			Version: ev.Version,
			Seq:     r.seq,
			Round:   ev.Round,
			Phase:   ev.Phase.String(),
			Kind:    ev.Kind,
			Payload: payload,
			At:      ev.At,
		})
		rooms[ev.RoomID] = struct{}{}
	}

	if err := r.db.SaveReplayEvents(ctx, events); err != nil {
		logger.Log.Errorw("save replay events", "count", len(events), "error", err)
		return
	}

	if r.snapshots == nil {
		return
	}
	for roomID := range rooms {
		snap, ok := r.snapshots(roomID)
		if !ok {
			continue
		}
		data, err := json.Marshal(snap)
		if err != nil {
			logger.Log.Errorw("marshal room snapshot", "room", roomID, "error", err)
			continue
		}
		err = r.db.SaveRoomSnapshot(ctx, models.RoomSnapshot{
			RoomID:    roomID,
			Version:   snap.Version,
			Phase:     snap.Phase.String(),
			Data:      data,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			logger.Log.Errorw("save room snapshot", "room", roomID, "error", err)
		}
	}
}
