// Package autosave is the debounced persistence layer between the editor
// and the song store. Mutations apply locally first; the controller keeps
// only the newest full-document snapshot and a single pending save job,
// where scheduling cancels-and-replaces rather than queues. Writes always
// carry the whole snapshot, so overlapping completions are harmless:
// whichever write lands last is the newest state.
package autosave

import (
	"context"
	"sync"
	"time"

	"chordline/api/internal/rbac"
	"chordline/api/internal/songdoc"
)

// Status is the save indicator shown to the user.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusUnsaved Status = "unsaved"
	StatusSaving  Status = "saving"
)

// Saver persists one serialized snapshot of the open song.
type Saver interface {
	SaveSnapshot(ctx context.Context, content string) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, content string) error

func (f SaverFunc) SaveSnapshot(ctx context.Context, content string) error {
	return f(ctx, content)
}

// DefaultDebounce matches the editing UI's save delay.
const DefaultDebounce = time.Second

const saveTimeout = 10 * time.Second

// Controller runs the saved → unsaved → saving cycle for one open song.
type Controller struct {
	saver      Saver
	debounce   time.Duration
	capability rbac.Capability
	onStatus   func(Status)

	mu      sync.Mutex
	status  Status
	timer   *time.Timer
	pending string
	gen     uint64
	closed  bool
}

// New builds a controller. The capability gate is checked before the
// debounce timer is ever armed: snapshots from a read-only session are
// dropped silently. onStatus, when non-nil, observes every status
// transition and is invoked outside the controller's lock.
func New(saver Saver, debounce time.Duration, capability rbac.Capability, onStatus func(Status)) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		saver:      saver,
		debounce:   debounce,
		capability: capability,
		onStatus:   onStatus,
		status:     StatusSaved,
	}
}

// Status returns the current save state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Note records a new document snapshot. The document has already been
// applied locally (optimistic update); this only restarts the debounce
// window with the latest full serialization.
func (c *Controller) Note(doc songdoc.Document) {
	if !c.capability.CanWrite {
		return
	}
	snapshot := songdoc.Serialize(doc)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = snapshot
	c.gen++
	c.setStatusLocked(StatusUnsaved)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.expire)
	c.mu.Unlock()
	c.notify(StatusUnsaved)
}

func (c *Controller) expire() {
	c.mu.Lock()
	if c.closed || c.status != StatusUnsaved {
		c.mu.Unlock()
		return
	}
	snapshot := c.pending
	started := c.gen
	c.setStatusLocked(StatusSaving)
	c.mu.Unlock()
	c.notify(StatusSaving)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	err := c.saver.SaveSnapshot(ctx, snapshot)
	cancel()

	c.mu.Lock()
	var next Status
	switch {
	case err != nil:
		// Never report saved on failure; the next debounce cycle retries.
		next = StatusUnsaved
		if c.status == StatusSaving {
			c.setStatusLocked(StatusUnsaved)
			if c.timer != nil {
				c.timer.Stop()
			}
			c.timer = time.AfterFunc(c.debounce, c.expire)
		}
	case c.gen != started:
		// A newer snapshot arrived mid-save and already re-armed the
		// timer; it will be captured by the next write.
		next = c.status
	default:
		c.setStatusLocked(StatusSaved)
		next = StatusSaved
	}
	c.mu.Unlock()
	c.notify(next)
}

// Flush writes the pending snapshot immediately if there is one, used on
// session close so the last edits survive the debounce window.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusSaved || c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	snapshot := c.pending
	started := c.gen
	c.setStatusLocked(StatusSaving)
	c.mu.Unlock()
	c.notify(StatusSaving)

	err := c.saver.SaveSnapshot(ctx, snapshot)

	c.mu.Lock()
	var next Status
	if err != nil {
		c.setStatusLocked(StatusUnsaved)
		next = StatusUnsaved
	} else if c.gen == started {
		c.setStatusLocked(StatusSaved)
		next = StatusSaved
	} else {
		next = c.status
	}
	c.mu.Unlock()
	c.notify(next)
	return err
}

// Close stops the pending timer. In-flight writes are not cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Controller) setStatusLocked(s Status) {
	c.status = s
}

func (c *Controller) notify(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
