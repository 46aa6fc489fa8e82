package strip

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Reader is the top-level object of a reading session. It owns the scene,
// the visibility state, the capture coordinator, the frame and image
// caches, and the dirty-flag paint loop. It implements ebiten.Game:
// Update is the cooperative event tick on which every handler runs to
// completion, and Draw paints at most once per display refresh no matter
// how many redraw requests accumulated in between.
type Reader struct {
	scene  *Scene
	opts   Options
	handle *RendererHandle
	coord  *Coordinator
	frames *FrameCache
	images *ImageCache

	visibleIDs    map[string]bool
	visRange      VisibleRange
	viewportWidth float64
	scale         float64

	// dirty is atomic: background image loads request redraws from their
	// own goroutines, while everything else runs on the update tick.
	dirty      atomic.Bool
	paintCount uint64

	scrollTween *gween.Tween

	debugOverlay bool
	// skipped collects panels whose live stream was visible but had no
	// cached frame during the last paint. Diagnostics only.
	skipped []string

	closed bool
	now    func() time.Time
}

// NewReader builds a reader over the given renderer handle. The reader's
// coordinator claims the handle; constructing a second reader (or
// coordinator) on the same handle fails.
func NewReader(handle *RendererHandle, opts Options) (*Reader, error) {
	if opts.ExitThreshold > opts.EnterThreshold {
		return nil, fmt.Errorf("strip: exit threshold %v exceeds enter threshold %v",
			opts.ExitThreshold, opts.EnterThreshold)
	}
	frames := NewFrameCache()
	coord, err := NewCoordinator(handle, frames, opts)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		opts:       opts,
		handle:     handle,
		coord:      coord,
		frames:     frames,
		images:     NewImageCache(nil),
		visibleIDs: make(map[string]bool),
		scale:      1,
		now:        time.Now,
	}
	frames.SetChangeFunc(r.onFrameChanged)
	r.images.SetLoadFunc(func(string) { r.RequestRedraw() })
	return r, nil
}

// SetImageFetch replaces the static image fetcher (default: local files).
// Call before SetScene so prefetching uses it.
func (r *Reader) SetImageFetch(fetch FetchFunc) {
	r.images = NewImageCache(fetch)
	r.images.SetLoadFunc(func(string) { r.RequestRedraw() })
}

// SetScene installs or replaces the layout. Visibility resets and is
// recomputed from the current scroll window; static images referenced by
// the scene start prefetching in the background.
func (r *Reader) SetScene(scene *Scene) error {
	if err := scene.Validate(); err != nil {
		return err
	}
	r.scene = scene
	if r.viewportWidth == 0 {
		r.viewportWidth = scene.ViewportWidth
	}
	r.visibleIDs = make(map[string]bool)
	r.images.Prefetch(scene.ImageURIs())
	r.recompute()
	r.RequestRedraw()
	return nil
}

// Scene returns the installed scene, or nil.
func (r *Reader) Scene() *Scene {
	return r.scene
}

// OnScroll feeds a new visibility window, in document space scaled by
// whatever zoom or device-scale factor is in effect. Cancels any running
// scroll animation.
func (r *Reader) OnScroll(visibleRange VisibleRange, viewportWidth float64) {
	defer r.guard("scroll")()
	r.scrollTween = nil
	r.setWindow(visibleRange, viewportWidth)
}

// OnResize feeds a new viewport width and device scale factor and
// recomputes visibility against the current scroll position.
func (r *Reader) OnResize(viewportWidth, scaleFactor float64) {
	defer r.guard("resize")()
	if scaleFactor > 0 {
		r.scale = scaleFactor
	}
	height := r.visRange.Height()
	r.setWindow(VisibleRange{Top: r.visRange.Top, Bottom: r.visRange.Top + height}, viewportWidth)
}

// ScrollTo animates the top of the visible window to the given document Y
// over duration seconds, recomputing visibility every tick along the way.
func (r *Reader) ScrollTo(top float64, duration float32, easeFn ease.TweenFunc) {
	r.scrollTween = gween.New(float32(r.visRange.Top), float32(top), duration, easeFn)
}

// SetDebugOverlay toggles the diagnostics overlay. Cosmetic: panel
// outlines and stream state are painted on top, but no lifecycle behavior
// changes.
func (r *Reader) SetDebugOverlay(enabled bool) {
	r.debugOverlay = enabled
	r.coord.SetDebug(enabled)
	r.RequestRedraw()
}

// RequestRedraw marks the reader dirty. Any number of requests between two
// display ticks collapse into a single paint.
func (r *Reader) RequestRedraw() {
	r.dirty.Store(true)
}

// VisiblePanelIDs returns the current visible panel set. The returned map
// MUST NOT be mutated.
func (r *Reader) VisiblePanelIDs() map[string]bool {
	return r.visibleIDs
}

// Diagnostics returns the coordinator's per-stream snapshot plus the
// panels skipped during the last paint for want of a frame.
func (r *Reader) Diagnostics() (streams []StreamDiag, skippedPanels []string) {
	return r.coord.Diagnostics(), r.skipped
}

// SetInterval retunes the polling interval of one stream.
func (r *Reader) SetInterval(index, intervalMs int) {
	r.coord.SetInterval(index, intervalMs)
}

// Update is the cooperative event tick: it drains inbound bridge events,
// advances the scroll animation, and fires due coordinator deadlines.
// Implements ebiten.Game.
func (r *Reader) Update() error {
	if r.closed {
		return nil
	}
	defer r.guard("update")()

	r.handle.Bridge().Drain(r.handleFrame, r.handleReady)

	if r.scrollTween != nil {
		top, done := r.scrollTween.Update(float32(1.0 / float64(ebiten.TPS())))
		if done {
			r.scrollTween = nil
		}
		height := r.visRange.Height()
		r.setWindow(VisibleRange{Top: float64(top), Bottom: float64(top) + height}, r.viewportWidth)
	}

	if r.coord.Tick(r.now()) {
		r.RequestRedraw()
	}
	return nil
}

// Draw paints the scene if anything changed since the last paint, else
// leaves the screen as-is. Run disables ebiten's per-frame screen clear so
// skipped frames keep their content. Implements ebiten.Game.
func (r *Reader) Draw(screen *ebiten.Image) {
	if r.scene == nil || !r.dirty.CompareAndSwap(true, false) {
		return
	}
	r.paintCount++
	r.paint(screen)
	if r.debugOverlay {
		r.paintDebugOverlay(screen)
	}
}

// Layout implements ebiten.Game.
func (r *Reader) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// PaintCount returns how many paints have executed.
func (r *Reader) PaintCount() uint64 {
	return r.paintCount
}

// Close tears the session down: stops every stream, evicts cached frames,
// and turns late renderer callbacks into no-ops.
func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.coord.Shutdown()
	r.handle.Close()
	r.frames.Clear()
	r.images.Clear()
}

// setWindow installs a new visibility window and recomputes.
func (r *Reader) setWindow(visibleRange VisibleRange, viewportWidth float64) {
	r.visRange = visibleRange
	if viewportWidth > 0 {
		r.viewportWidth = viewportWidth
	}
	r.recompute()
}

// recompute derives the visible panel set from the current window, runs
// the coordinator diff over the referenced streams, and requests a repaint
// when the visible set actually changed.
func (r *Reader) recompute() {
	if r.scene == nil {
		return
	}
	visible := VisiblePanels(r.scene.Panels, r.visRange, r.viewportWidth,
		r.visibleIDs, r.opts.EnterThreshold, r.opts.ExitThreshold)
	changed := !sameIDSet(visible, r.visibleIDs)
	r.visibleIDs = visible
	r.coord.UpdateVisibility(r.scene.StreamsFor(visible))
	if changed {
		r.RequestRedraw()
	}
}

// handleFrame stores an inbound frame and requests a repaint only when the
// stream is active — background frames are cached silently.
func (r *Reader) handleFrame(f *Frame) {
	r.frames.Put(f.StreamIndex, f)
}

// onFrameChanged is the cache's change signal.
func (r *Reader) onFrameChanged(index int) {
	if r.coord.NoteFrame(index) {
		r.RequestRedraw()
	}
}

// handleReady reacts to the renderer's readiness event: the coordinator
// replays the currently visible streams, reissuing starts the renderer may
// have dropped while constructing.
func (r *Reader) handleReady() {
	if r.scene == nil {
		return
	}
	r.coord.HandleReady(r.scene.StreamsFor(r.visibleIDs))
	r.RequestRedraw()
}

// guard recovers a panicking event handler at the boundary so one
// malformed event cannot halt the reactive loop.
func (r *Reader) guard(handler string) func() {
	return func() {
		if err := recover(); err != nil {
			log.Printf("strip: recovered in %s handler: %v", handler, err)
		}
	}
}

// RunConfig configures the Run convenience wrapper.
type RunConfig struct {
	Title         string
	Width, Height int
}

// Run opens a window and drives the reader with ebiten's game loop.
// Per-frame screen clearing is disabled so that ticks with no dirty flag
// keep the last painted content.
func Run(r *Reader, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetScreenClearedEveryFrame(false)
	return ebiten.RunGame(r)
}
