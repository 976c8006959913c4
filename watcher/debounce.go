package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of raw changes into one settled event per
// path. Every path carries its own timer, reset on each new change, so
// editors that write in several quick passes produce a single event.
type Debouncer struct {
	delay  time.Duration
	events chan Event

	mu      sync.Mutex
	pending map[string]*pendingChange
	closed  bool
}

type pendingChange struct {
	eventType EventType
	oldPath   string
	timer     *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan Event, 256),
		pending: make(map[string]*pendingChange),
	}
}

// Events is the stream of settled changes. Closed by Close.
func (d *Debouncer) Events() <-chan Event {
	return d.events
}

// Record merges a raw change into the path's pending entry and resets
// its timer. Later kinds win, with two corrections: a delete always
// dominates earlier creates and writes, and a create arriving after a
// delete means the file was replaced, which settles as a modify.
func (d *Debouncer) Record(path string, eventType EventType, oldPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
		switch {
		case eventType == EventDeleted:
			p.eventType = EventDeleted
			p.oldPath = ""
		case p.eventType == EventDeleted && eventType == EventCreated:
			p.eventType = EventModified
		case p.eventType == EventCreated && eventType == EventModified:
			// Writes right after a create are still a create.
		default:
			p.eventType = eventType
			if oldPath != "" {
				p.oldPath = oldPath
			}
		}
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingChange{eventType: eventType, oldPath: oldPath}
	p.timer = time.AfterFunc(d.delay, func() {
		d.fire(path)
	})
	d.pending[path] = p
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	// A create followed by a delete inside one window settles to a
	// delete the consumer never saw a create for; that is safe because
	// deleting an unindexed path is a no-op downstream.
	ev := Event{Type: p.eventType, Path: path, OldPath: p.oldPath}
	select {
	case d.events <- ev:
	default:
	}
}

// Flush emits every pending change immediately. Used on shutdown so a
// final burst of edits is not lost.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for path, p := range d.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	d.mu.Unlock()

	for _, path := range paths {
		d.fire(path)
	}
}

func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	d.mu.Unlock()

	close(d.events)
}
