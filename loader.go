package strip

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// LoadStatus is the renderer construction state surfaced to the UI layer.
type LoadStatus int32

const (
	StatusIdle LoadStatus = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// ErrLoadTimeout reports that renderer construction did not complete
// within the caller's deadline. The underlying attempt is not aborted; if
// it completes later the handle picks it up, and a handle that has been
// closed ignores it.
var ErrLoadTimeout = errors.New("strip: renderer load timed out")

// ErrHandleClaimed reports a second coordinator trying to take ownership
// of a renderer handle. One renderer, one coordinator.
var ErrHandleClaimed = errors.New("strip: renderer handle already claimed")

// Constructor builds the external renderer: load its bundle from basePath,
// bind it to its output surface, and return the outbound transport.
// Progress callbacks report 0..1 as the bundle's segments load. The
// renderer's own readiness signal arrives later through the bridge, not
// here — construction finishing only means commands have somewhere to go.
type Constructor func(ctx context.Context, basePath string, progress func(float64)) (Invoker, error)

// LoaderConfig configures renderer loading.
type LoaderConfig struct {
	// BasePath is where the renderer's bundle lives (loader script, data
	// segment, framework and code segments).
	BasePath string
	// Construct builds the renderer. Required.
	Construct Constructor
	// OnProgress, if set, receives load progress in [0, 1].
	OnProgress func(float64)
}

// RendererHandle is the explicitly owned reference to the single external
// renderer of a page. It tracks construction status and exposes the bridge
// the coordinator drives. Exactly one coordinator may claim a handle.
type RendererHandle struct {
	bridge  *Bridge
	claimed atomic.Bool
	closed  atomic.Bool

	mu     sync.Mutex
	status LoadStatus
	err    error
	done   chan struct{}
}

// NewRendererHandle wraps an already-constructed transport, for renderers
// created in-process (tests, demos, embedded engines). Status is ready
// immediately; the renderer's readiness signal still arrives separately.
func NewRendererHandle(inv Invoker) *RendererHandle {
	h := &RendererHandle{
		bridge: NewBridge(inv),
		status: StatusReady,
		done:   make(chan struct{}),
	}
	close(h.done)
	return h
}

// LoadRenderer starts constructing the external renderer in the
// background and returns its handle immediately with status loading.
// Construction time is unbounded and externally controlled (tens of
// seconds for large bundles is normal); use Wait with a context deadline
// for a caller-side timeout.
func LoadRenderer(cfg LoaderConfig) *RendererHandle {
	h := &RendererHandle{
		bridge: NewBridge(nil),
		status: StatusLoading,
		done:   make(chan struct{}),
	}
	go func() {
		inv, err := cfg.Construct(context.Background(), cfg.BasePath, cfg.OnProgress)
		h.mu.Lock()
		if err != nil {
			h.status = StatusError
			h.err = err
		} else if h.closed.Load() {
			// Construction finished after teardown; drop the instance.
			h.status = StatusError
			h.err = context.Canceled
		} else {
			// A late success after a reported timeout still lands here and
			// clears the error; the readiness replay recovers the streams.
			h.status = StatusReady
			h.err = nil
			h.bridge.SetInvoker(inv)
		}
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

// Wait blocks until construction finishes or ctx expires. On expiry it
// returns ErrLoadTimeout and the handle surfaces an error status, but the
// construction attempt keeps running: a late success still installs the
// transport (readiness replay then recovers the streams), and a handle
// closed in the meantime ignores it.
func (h *RendererHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		h.mu.Lock()
		if h.status == StatusLoading {
			h.status = StatusError
			h.err = ErrLoadTimeout
		}
		h.mu.Unlock()
		log.Printf("strip: %v (load continues in background)", ErrLoadTimeout)
		return ErrLoadTimeout
	}
}

// Status returns the current construction status.
func (h *RendererHandle) Status() LoadStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Err returns the construction error, if any.
func (h *RendererHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Bridge returns the handle's bridge adapter. Inbound renderer callbacks
// (frames, readiness) are delivered to it by the transport.
func (h *RendererHandle) Bridge() *Bridge {
	return h.bridge
}

// claim marks the handle as owned by a coordinator. Second claims fail.
func (h *RendererHandle) claim() error {
	if !h.claimed.CompareAndSwap(false, true) {
		return ErrHandleClaimed
	}
	return nil
}

// Close tears the handle down. Inbound callbacks become no-ops and a
// construction attempt that completes later is discarded.
func (h *RendererHandle) Close() {
	h.closed.Store(true)
	h.bridge.Close()
}
