package bridge

import (
	"sync/atomic"

	"github.com/printwatch/printwatch-core/internal/state"
)

// Update is one observed state change, delivered in arrival order per device.
type Update struct {
	// DeviceID is the printer serial the change belongs to.
	DeviceID string

	// State is a deep-copied snapshot of the full tree after the merge.
	// Consumers own it and may mutate it freely.
	State state.Tree

	// ChangedPaths lists the dotted leaf paths the merge touched, sorted.
	ChangedPaths []string
}

// updateQueue is a bounded per-device delivery buffer. When full, the oldest
// queued update is discarded to make room, so the consumer always converges
// on recent state rather than stalling the ingest path.
type updateQueue struct {
	ch      chan Update
	dropped *atomic.Uint64
}

func newUpdateQueue(capacity int, dropped *atomic.Uint64) *updateQueue {
	return &updateQueue{
		ch:      make(chan Update, capacity),
		dropped: dropped,
	}
}

// push enqueues an update, evicting the oldest entry if the queue is full.
// Must not be called after close.
func (q *updateQueue) push(u Update) {
	for {
		select {
		case q.ch <- u:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

func (q *updateQueue) close() {
	close(q.ch)
}
