package strip

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	// Decoders for inbound frame payloads and static panel images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// The renderer is addressed by a fixed logical name and fixed command
// names. These are the wire contract with the external engine; renaming
// any of them breaks compatibility.
const (
	BridgeTarget = "Bridge"

	CmdStartCapture = "StartCapture"
	CmdStopCapture  = "StopCapture"
	CmdSetInterval  = "SetInterval"
)

// ErrRendererUnavailable reports a command invoked before the renderer
// instance exists. Such commands are dropped, not retried; the next
// visibility pass that still wants the stream reissues them naturally.
var ErrRendererUnavailable = errors.New("strip: renderer not available")

// ErrMalformedFrame reports an inbound frame whose payload could not be
// decoded into an image.
var ErrMalformedFrame = errors.New("strip: malformed frame payload")

// Invoker is the outbound half of the engine bridge: deliver one named
// command with a string payload to a named target. Implemented by
// WSBridge for out-of-process renderers and by test fakes.
type Invoker interface {
	Invoke(target, command, payload string) error
}

// CaptureCommand is the typed form of a capture control command. Wire
// payloads are parsed into (and formatted from) this struct at the bridge
// boundary; nothing past the bridge handles payload strings.
type CaptureCommand struct {
	Name       string
	Index      int
	IntervalMs int
}

// Payload renders the command's wire payload. The formats are fixed:
//
//	StartCapture  "index=<N>;intervalMs=<M>"
//	StopCapture   "index=<N>"
//	SetInterval   "index=<N>;intervalMs=<M>"
func (c CaptureCommand) Payload() string {
	switch c.Name {
	case CmdStopCapture:
		return "index=" + strconv.Itoa(c.Index)
	default:
		return "index=" + strconv.Itoa(c.Index) + ";intervalMs=" + strconv.Itoa(c.IntervalMs)
	}
}

// ParseCapturePayload parses a wire payload back into a CaptureCommand.
// Used by renderer-side test doubles and the websocket transport.
func ParseCapturePayload(command, payload string) (CaptureCommand, error) {
	cmd := CaptureCommand{Name: command}
	for _, part := range strings.Split(payload, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return CaptureCommand{}, fmt.Errorf("strip: malformed payload field %q in %q", part, payload)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return CaptureCommand{}, fmt.Errorf("strip: non-integer payload field %q: %w", part, err)
		}
		switch key {
		case "index":
			cmd.Index = n
		case "intervalMs":
			cmd.IntervalMs = n
		default:
			return CaptureCommand{}, fmt.Errorf("strip: unknown payload key %q in %q", key, payload)
		}
	}
	return cmd, nil
}

// bridgeEvent is one inbound occurrence queued for the update tick.
type bridgeEvent struct {
	ready bool
	frame *Frame
}

// Bridge adapts the external renderer's narrow interface: one outbound
// command call, plus inbound "frame received" and "renderer ready"
// callbacks. Inbound callbacks may arrive on any goroutine (a websocket
// read loop, a timer); the bridge queues them and the reader drains the
// queue on its update tick, so everything downstream runs cooperatively
// on one goroutine.
type Bridge struct {
	mu     sync.Mutex
	inv    Invoker
	queue  []bridgeEvent
	closed bool

	readyOnce sync.Once
	readyCh   chan struct{}

	now func() time.Time
}

// NewBridge wraps an Invoker. A nil invoker is accepted: commands sent
// before the renderer is constructed are dropped with a warning.
func NewBridge(inv Invoker) *Bridge {
	return &Bridge{
		inv:     inv,
		readyCh: make(chan struct{}),
		now:     time.Now,
	}
}

// SetInvoker installs the outbound transport once the renderer finishes
// construction. Safe to call from the loader goroutine.
func (b *Bridge) SetInvoker(inv Invoker) {
	b.mu.Lock()
	b.inv = inv
	b.mu.Unlock()
}

// Send delivers a capture command to the renderer. Returns
// ErrRendererUnavailable (after logging) when no invoker is installed.
func (b *Bridge) Send(cmd CaptureCommand) error {
	b.mu.Lock()
	inv := b.inv
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrRendererUnavailable
	}
	if inv == nil {
		log.Printf("strip: dropping %s for stream %d: %v", cmd.Name, cmd.Index, ErrRendererUnavailable)
		return ErrRendererUnavailable
	}
	return inv.Invoke(BridgeTarget, cmd.Name, cmd.Payload())
}

// Ready reports whether the renderer has signaled readiness.
func (b *Bridge) Ready() bool {
	select {
	case <-b.readyCh:
		return true
	default:
		return false
	}
}

// ReadyChan returns a channel closed once the renderer signals readiness.
// Both the event callback and any poll-based detection resolve the same
// channel, so readiness fires exactly once no matter which path wins.
func (b *Bridge) ReadyChan() <-chan struct{} {
	return b.readyCh
}

// OnRendererReady is the inbound readiness callback. The renderer fires it
// once after its internal registration completes; duplicate or late calls
// (including after Close) are no-ops.
func (b *Bridge) OnRendererReady() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.readyOnce.Do(func() {
		close(b.readyCh)
		b.mu.Lock()
		b.queue = append(b.queue, bridgeEvent{ready: true})
		b.mu.Unlock()
	})
}

// OnFrameReceived is the inbound frame callback: encoded image data plus
// dimensions for one stream. Index 0 is the legacy single-stream default.
// The payload may be base64 text or raw encoded bytes; it is decoded and
// validated here, and malformed frames are logged and dropped without
// disturbing whatever frame is already cached.
func (b *Bridge) OnFrameReceived(data string, width, height, index int) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	img, err := decodeFrameImage(data)
	if err != nil {
		log.Printf("strip: dropping frame for stream %d: %v", index, err)
		return
	}
	frame := &Frame{
		StreamIndex: index,
		Image:       img,
		Width:       width,
		Height:      height,
		ReceivedAt:  b.now(),
	}
	b.mu.Lock()
	if !b.closed {
		b.queue = append(b.queue, bridgeEvent{frame: frame})
	}
	b.mu.Unlock()
}

// Drain hands every queued inbound event to the callbacks, in arrival
// order, on the caller's goroutine. Called once per update tick by the
// reader.
func (b *Bridge) Drain(onFrame func(*Frame), onReady func()) {
	b.mu.Lock()
	events := b.queue
	b.queue = nil
	b.mu.Unlock()
	for _, ev := range events {
		switch {
		case ev.ready:
			if onReady != nil {
				onReady()
			}
		case ev.frame != nil:
			if onFrame != nil {
				onFrame(ev.frame)
			}
		}
	}
}

// Close tears the bridge down. Subsequent inbound callbacks become
// idempotent no-ops, covering renderers that complete (or keep sending)
// after the owner has reported a timeout and moved on.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
}

// decodeFrameImage turns a frame payload into an ebiten image. Base64 is
// tried first; on failure the string's bytes are treated as raw encoded
// image data.
func decodeFrameImage(data string) (*ebiten.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw = []byte(data)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return ebiten.NewImageFromImage(img), nil
}
