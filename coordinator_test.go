package strip

import (
	"testing"
	"time"
)

// testClock is a manually advanced clock for deadline tests.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeInvoker, *FrameCache, *testClock) {
	t.Helper()
	inv := &fakeInvoker{}
	handle := NewRendererHandle(inv)
	cache := NewFrameCache()
	coord, err := NewCoordinator(handle, cache, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	clock := newTestClock()
	coord.now = clock.Now
	return coord, inv, cache, clock
}

func commandsNamed(inv *fakeInvoker, name string) []invokeCall {
	var out []invokeCall
	for _, c := range inv.calls {
		if c.command == name {
			out = append(out, c)
		}
	}
	return out
}

func streams(indices ...int) map[int]bool {
	m := make(map[int]bool, len(indices))
	for _, i := range indices {
		m[i] = true
	}
	return m
}

func TestCoordinatorStartsVisibleStreams(t *testing.T) {
	coord, inv, _, _ := newTestCoordinator(t)
	coord.UpdateVisibility(streams(0, 1))

	starts := commandsNamed(inv, CmdStartCapture)
	if len(starts) != 2 {
		t.Fatalf("expected 2 start commands, got %d", len(starts))
	}
	for _, c := range starts {
		if c.target != "Bridge" {
			t.Errorf("start sent to %q, want Bridge", c.target)
		}
	}
	if !coord.Active(0) || !coord.Active(1) {
		t.Error("streams 0 and 1 should be active")
	}
}

// TestCoordinatorDiff checks the minimal-command property: with {0,1}
// active and {1,2} newly visible, exactly one start (index 2) is issued
// and exactly one stop (index 0) is scheduled; stream 1 produces nothing.
func TestCoordinatorDiff(t *testing.T) {
	coord, inv, _, clock := newTestCoordinator(t)
	coord.UpdateVisibility(streams(0, 1))
	inv.calls = nil

	coord.UpdateVisibility(streams(1, 2))

	if len(inv.calls) != 1 {
		t.Fatalf("expected exactly 1 command at diff time, got %v", inv.calls)
	}
	if c := inv.calls[0]; c.command != CmdStartCapture || c.payload != "index=2;intervalMs=500" {
		t.Errorf("got %+v, want StartCapture index=2;intervalMs=500", c)
	}

	// The stop for stream 0 fires only after the debounce delay.
	clock.Advance(DefaultOptions().StopDelay)
	coord.Tick(clock.Now())

	stops := commandsNamed(inv, CmdStopCapture)
	if len(stops) != 1 || stops[0].payload != "index=0" {
		t.Fatalf("expected exactly one stop for index 0, got %v", stops)
	}
	if coord.Active(0) {
		t.Error("stream 0 should be inactive after its stop fired")
	}
	if !coord.Active(1) || !coord.Active(2) {
		t.Error("streams 1 and 2 should remain active")
	}
}

// TestCoordinatorDebounceCancellation: a stream that leaves and re-enters
// the visible set within the stop delay never produces a stop command.
func TestCoordinatorDebounceCancellation(t *testing.T) {
	coord, inv, _, clock := newTestCoordinator(t)
	opts := DefaultOptions()

	coord.UpdateVisibility(streams(0))
	coord.UpdateVisibility(streams())
	clock.Advance(opts.StopDelay / 2)
	coord.Tick(clock.Now())
	coord.UpdateVisibility(streams(0)) // back before the deadline

	clock.Advance(opts.StopDelay * 4)
	coord.Tick(clock.Now())

	if stops := commandsNamed(inv, CmdStopCapture); len(stops) != 0 {
		t.Errorf("expected zero stop commands across the sequence, got %v", stops)
	}
	if starts := commandsNamed(inv, CmdStartCapture); len(starts) != 1 {
		t.Errorf("reactivation must not resend start, got %v", starts)
	}
	if !coord.Active(0) {
		t.Error("stream 0 should still be active")
	}
}

func TestCoordinatorStopVisibilityRecheck(t *testing.T) {
	// The visible set can change without going through a pending-stop
	// cancel (readiness replay does this); the fire-time re-check must
	// also hold the stop.
	coord, inv, _, clock := newTestCoordinator(t)
	coord.UpdateVisibility(streams(0))
	coord.UpdateVisibility(streams())
	coord.visible = streams(0) // visible again at fire time

	clock.Advance(DefaultOptions().StopDelay)
	coord.Tick(clock.Now())

	if stops := commandsNamed(inv, CmdStopCapture); len(stops) != 0 {
		t.Errorf("stop fired despite visibility at fire time: %v", stops)
	}
	if !coord.Active(0) {
		t.Error("stream 0 should have returned to active")
	}
}

func TestCoordinatorEvictionAfterGrace(t *testing.T) {
	coord, _, cache, clock := newTestCoordinator(t)
	opts := DefaultOptions()

	coord.UpdateVisibility(streams(0))
	cache.Put(0, &Frame{StreamIndex: 0})
	coord.UpdateVisibility(streams())

	clock.Advance(opts.StopDelay)
	coord.Tick(clock.Now())
	if _, ok := cache.Get(0); !ok {
		t.Fatal("frame must survive until the grace delay elapses")
	}

	clock.Advance(opts.EvictDelay)
	coord.Tick(clock.Now())
	if _, ok := cache.Get(0); ok {
		t.Error("frame should be evicted after the grace delay")
	}
}

func TestCoordinatorEvictionSkippedOnReactivation(t *testing.T) {
	coord, _, cache, clock := newTestCoordinator(t)
	opts := DefaultOptions()

	coord.UpdateVisibility(streams(0))
	cache.Put(0, &Frame{StreamIndex: 0})
	coord.UpdateVisibility(streams())
	clock.Advance(opts.StopDelay)
	coord.Tick(clock.Now()) // stop fires, eviction scheduled

	coord.UpdateVisibility(streams(0)) // reactivates within the grace window

	clock.Advance(opts.EvictDelay)
	coord.Tick(clock.Now())
	if _, ok := cache.Get(0); !ok {
		t.Error("reactivation during the grace window must keep the frame")
	}
}

// TestCoordinatorReadinessReplay: commands sent before the renderer is
// ready are flagged, and the readiness event replays a start for every
// stream still visible — including ones already marked active from a
// possibly-dropped earlier attempt.
func TestCoordinatorReadinessReplay(t *testing.T) {
	coord, inv, _, _ := newTestCoordinator(t)

	coord.UpdateVisibility(streams(0, 1))
	if len(commandsNamed(inv, CmdStartCapture)) != 2 {
		t.Fatalf("expected best-effort starts before readiness, got %v", inv.calls)
	}
	for _, d := range coord.Diagnostics() {
		if d.SentBeforeReady == 0 {
			t.Errorf("stream %d missing pre-ready flag", d.Index)
		}
	}

	coord.bridge.OnRendererReady()
	inv.calls = nil
	coord.HandleReady(streams(0, 1))

	starts := commandsNamed(inv, CmdStartCapture)
	if len(starts) != 2 {
		t.Fatalf("readiness must reissue starts for all visible streams, got %v", starts)
	}
	for _, d := range coord.Diagnostics() {
		if d.SentBeforeReady != 0 {
			t.Errorf("stream %d still flagged pre-ready after replay", d.Index)
		}
	}
}

func TestCoordinatorSetInterval(t *testing.T) {
	coord, inv, _, _ := newTestCoordinator(t)
	coord.SetInterval(5, 1000)
	if len(inv.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(inv.calls))
	}
	if c := inv.calls[0]; c.command != CmdSetInterval || c.payload != "index=5;intervalMs=1000" {
		t.Errorf("got %+v, want SetInterval index=5;intervalMs=1000", c)
	}
}

func TestCoordinatorDroppedCommandsSelfHeal(t *testing.T) {
	// With no renderer constructed, starts are dropped. The stream still
	// goes active so the diff stays quiet, and the readiness replay later
	// reissues against the live renderer.
	inv := &fakeInvoker{}
	handle := NewRendererHandle(nil)
	cache := NewFrameCache()
	coord, err := NewCoordinator(handle, cache, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	coord.UpdateVisibility(streams(0))
	if !coord.Active(0) {
		t.Error("stream should be tracked active despite the dropped start")
	}

	handle.Bridge().SetInvoker(inv)
	handle.Bridge().OnRendererReady()
	coord.HandleReady(streams(0))
	if starts := commandsNamed(inv, CmdStartCapture); len(starts) != 1 {
		t.Errorf("expected the replay to reach the renderer, got %v", starts)
	}
}

func TestCoordinatorNoteFrame(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	coord.UpdateVisibility(streams(0))

	if !coord.NoteFrame(0) {
		t.Error("frame for an active stream should trigger a repaint")
	}
	if coord.NoteFrame(9) {
		t.Error("frame for an unknown stream should not trigger a repaint")
	}

	for _, d := range coord.Diagnostics() {
		if d.Index == 0 && (d.FramesReceived != 1 || d.StartedNoFrame) {
			t.Errorf("stream 0 diag = %+v, want 1 frame and no health flag", d)
		}
		if d.Index == 9 && d.StartedNoFrame {
			t.Error("stream 9 was never started; no health flag applies")
		}
	}
}

func TestCoordinatorStartedNoFrameHealthFlag(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	coord.bridge.OnRendererReady()
	coord.UpdateVisibility(streams(0, 1))
	coord.NoteFrame(1)

	for _, d := range coord.Diagnostics() {
		switch d.Index {
		case 0:
			if !d.StartedNoFrame {
				t.Error("stream 0 was started and silent; health flag expected")
			}
		case 1:
			if d.StartedNoFrame {
				t.Error("stream 1 delivered a frame; no health flag expected")
			}
		}
	}
}

func TestCoordinatorShutdownStopsActiveStreams(t *testing.T) {
	coord, inv, _, _ := newTestCoordinator(t)
	coord.UpdateVisibility(streams(0, 1))
	inv.calls = nil

	coord.Shutdown()

	if stops := commandsNamed(inv, CmdStopCapture); len(stops) != 2 {
		t.Errorf("expected 2 stops on shutdown, got %v", stops)
	}
	if coord.Active(0) || coord.Active(1) {
		t.Error("no stream should remain active after shutdown")
	}
}

func TestCoordinatorSingleOwner(t *testing.T) {
	handle := NewRendererHandle(&fakeInvoker{})
	if _, err := NewCoordinator(handle, NewFrameCache(), DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCoordinator(handle, NewFrameCache(), DefaultOptions()); err != ErrHandleClaimed {
		t.Errorf("second claim err = %v, want ErrHandleClaimed", err)
	}
}
