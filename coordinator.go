package strip

import (
	"fmt"
	"os"
	"time"
)

// streamState is the lifecycle phase of one capture stream.
type streamState uint8

const (
	streamInactive    streamState = iota
	streamActive                  // start sent; at least one panel visible
	streamPendingStop             // no panel visible; stop scheduled
)

func (s streamState) String() string {
	switch s {
	case streamActive:
		return "active"
	case streamPendingStop:
		return "pending-stop"
	default:
		return "inactive"
	}
}

// StreamDiag is a diagnostics snapshot for one stream.
type StreamDiag struct {
	Index          int
	State          string
	FramesReceived int
	// StartedNoFrame flags a stream that was started but has never
	// delivered a frame — the only observable symptom of a stream index
	// the renderer has no registration for.
	StartedNoFrame bool
	// SentBeforeReady counts commands issued before the renderer signaled
	// readiness. Such commands may have been silently dropped and are
	// reissued on the readiness event.
	SentBeforeReady int
}

// streamInfo is the coordinator's per-stream bookkeeping.
type streamInfo struct {
	state           streamState
	stopDeadline    time.Time
	evictDeadline   time.Time
	evictScheduled  bool
	framesReceived  int
	startIssued     bool
	sentBeforeReady int
}

// Coordinator translates panel visibility into capture commands for the
// external renderer. It is a deliberate state machine: visibility sets go
// in through UpdateVisibility, deadlines advance through Tick, and the
// only outputs are bridge commands and cache evictions. All methods run on
// the reader's update tick; the coordinator has no locking of its own.
//
// Per stream the lifecycle is inactive -> active -> pending-stop ->
// inactive, where pending-stop cancels back to active if any panel for the
// stream becomes visible again before the stop deadline. A cancelled stop
// never reaches the wire.
type Coordinator struct {
	bridge  *Bridge
	cache   *FrameCache
	opts    Options
	streams map[int]*streamInfo
	// visible is the last consistent snapshot of visible stream indices,
	// re-checked when deadlines fire.
	visible map[int]bool
	debug   bool
	now     func() time.Time
}

// NewCoordinator claims the renderer handle and returns a coordinator
// bound to its bridge. Exactly one coordinator may exist per renderer;
// a second claim of the same handle fails.
func NewCoordinator(handle *RendererHandle, cache *FrameCache, opts Options) (*Coordinator, error) {
	if err := handle.claim(); err != nil {
		return nil, err
	}
	return &Coordinator{
		bridge:  handle.Bridge(),
		cache:   cache,
		opts:    opts,
		streams: make(map[int]*streamInfo),
		visible: make(map[int]bool),
		now:     time.Now,
	}, nil
}

func (c *Coordinator) info(index int) *streamInfo {
	si, ok := c.streams[index]
	if !ok {
		si = &streamInfo{}
		c.streams[index] = si
	}
	return si
}

// UpdateVisibility diffs the new visible stream set against the current
// lifecycle state and issues the minimal command set: starts for streams
// newly visible, scheduled stops for streams no longer visible, and
// nothing for streams whose state is unchanged. Both sets are consistent
// snapshots; the diff never observes a partial update. Starts are issued
// before any stop is scheduled.
func (c *Coordinator) UpdateVisibility(newVisible map[int]bool) {
	for index := range newVisible {
		si := c.info(index)
		switch si.state {
		case streamPendingStop:
			// Reactivated before the deadline: cancel, no command.
			si.state = streamActive
			si.stopDeadline = time.Time{}
			c.debugf("stream %d stop cancelled", index)
		case streamInactive:
			c.sendStart(index, si)
		}
		// Reactivation also invalidates any scheduled eviction; the fire
		// check would skip it anyway, but clearing keeps diagnostics clean.
		si.evictScheduled = false
	}
	now := c.now()
	for index, si := range c.streams {
		if si.state == streamActive && !newVisible[index] {
			si.state = streamPendingStop
			si.stopDeadline = now.Add(c.opts.StopDelay)
			c.debugf("stream %d stop scheduled", index)
		}
	}
	c.visible = newVisible
}

// Tick fires any stop or eviction deadlines that have come due. Deadlines
// are plain timestamps checked here rather than independent timers, which
// keeps cancellation race-free under the single-tick execution model.
// Returns true if any stream state changed.
func (c *Coordinator) Tick(now time.Time) bool {
	changed := false
	for index, si := range c.streams {
		if si.state == streamPendingStop && !now.Before(si.stopDeadline) {
			// Re-check visibility at fire time.
			if c.visible[index] {
				si.state = streamActive
				si.stopDeadline = time.Time{}
				continue
			}
			c.sendStop(index, si)
			si.state = streamInactive
			si.stopDeadline = time.Time{}
			si.evictScheduled = true
			si.evictDeadline = now.Add(c.opts.EvictDelay)
			changed = true
		}
		if si.evictScheduled && !now.Before(si.evictDeadline) {
			si.evictScheduled = false
			// Skip if the stream reactivated during the grace window.
			if si.state == streamInactive {
				c.cache.Evict(index)
				c.debugf("stream %d frame evicted", index)
				changed = true
			}
		}
	}
	return changed
}

// SetInterval changes the polling interval of a stream. Not gated by
// visibility; callers may retune background streams.
func (c *Coordinator) SetInterval(index, intervalMs int) {
	si := c.info(index)
	if !c.bridge.Ready() {
		si.sentBeforeReady++
	}
	_ = c.bridge.Send(CaptureCommand{Name: CmdSetInterval, Index: index, IntervalMs: intervalMs})
}

// HandleReady reacts to the renderer's readiness signal. Any commands sent
// earlier may have been silently dropped by a renderer that was still
// constructing, so all lifecycle bookkeeping is cleared and the current
// visible set is replayed from scratch, reissuing a start for every stream
// still on screen — including streams already marked active from a dropped
// earlier attempt.
func (c *Coordinator) HandleReady(currentVisible map[int]bool) {
	c.debugf("renderer ready; replaying %d visible stream(s)", len(currentVisible))
	c.streams = make(map[int]*streamInfo)
	c.visible = make(map[int]bool)
	c.UpdateVisibility(currentVisible)
}

// NoteFrame records a frame arrival for diagnostics. Returns true when the
// stream is currently active, i.e. the arrival should trigger a repaint.
func (c *Coordinator) NoteFrame(index int) bool {
	si := c.info(index)
	si.framesReceived++
	return si.state == streamActive || si.state == streamPendingStop
}

// Active reports whether the stream is in the active set (started and not
// yet stopped; pending-stop streams still count until the stop fires).
func (c *Coordinator) Active(index int) bool {
	si, ok := c.streams[index]
	return ok && (si.state == streamActive || si.state == streamPendingStop)
}

// ActiveStreams returns the indices currently in the active set.
func (c *Coordinator) ActiveStreams() []int {
	var out []int
	for index, si := range c.streams {
		if si.state == streamActive || si.state == streamPendingStop {
			out = append(out, index)
		}
	}
	return out
}

// Diagnostics returns a snapshot of every known stream's state, for debug
// overlays and health checks.
func (c *Coordinator) Diagnostics() []StreamDiag {
	var out []StreamDiag
	for index, si := range c.streams {
		out = append(out, StreamDiag{
			Index:           index,
			State:           si.state.String(),
			FramesReceived:  si.framesReceived,
			StartedNoFrame:  si.startIssued && si.framesReceived == 0,
			SentBeforeReady: si.sentBeforeReady,
		})
	}
	return out
}

// Shutdown stops every active stream immediately and clears bookkeeping.
// Called when the owning reader closes; debounce delays do not apply.
func (c *Coordinator) Shutdown() {
	for index, si := range c.streams {
		if si.state == streamActive || si.state == streamPendingStop {
			c.sendStop(index, si)
		}
	}
	c.streams = make(map[int]*streamInfo)
	c.visible = make(map[int]bool)
}

func (c *Coordinator) sendStart(index int, si *streamInfo) {
	if !c.bridge.Ready() {
		si.sentBeforeReady++
	}
	err := c.bridge.Send(CaptureCommand{
		Name:       CmdStartCapture,
		Index:      index,
		IntervalMs: c.opts.CaptureIntervalMs,
	})
	// Best effort: even a dropped start flips the stream to active so the
	// diff stays quiet until the readiness replay or the next transition.
	si.state = streamActive
	si.startIssued = err == nil
	c.debugf("stream %d start (err=%v)", index, err)
}

func (c *Coordinator) sendStop(index int, si *streamInfo) {
	if !c.bridge.Ready() {
		si.sentBeforeReady++
	}
	err := c.bridge.Send(CaptureCommand{Name: CmdStopCapture, Index: index})
	c.debugf("stream %d stop (err=%v)", index, err)
}

// SetDebug toggles stderr lifecycle logging.
func (c *Coordinator) SetDebug(enabled bool) {
	c.debug = enabled
}

func (c *Coordinator) debugf(format string, args ...any) {
	if !c.debug {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "[strip] "+format+"\n", args...)
}
