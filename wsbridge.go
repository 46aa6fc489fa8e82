package strip

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// wsEnvelope is the JSON message exchanged with an out-of-process
// renderer. Outbound messages are type "invoke"; inbound are "frame",
// "ready", and "progress".
type wsEnvelope struct {
	Type     string  `json:"type"`
	Target   string  `json:"target,omitempty"`
	Command  string  `json:"command,omitempty"`
	Payload  string  `json:"payload,omitempty"`
	Data     string  `json:"data,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Index    int     `json:"index,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

// WSBridge carries the bridge wire contract over a websocket to a
// renderer running in another process. Commands go out as JSON envelopes;
// frame and readiness callbacks come back on the read loop and are pumped
// into the Bridge's event queue.
type WSBridge struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow one concurrent
	// writer only.
	writeMu sync.Mutex

	closeOnce sync.Once
}

// DialWS connects to a renderer endpoint and wires inbound traffic to the
// given bridge. Progress envelopes are forwarded to onProgress when
// non-nil. The returned WSBridge is an Invoker suitable for
// Bridge.SetInvoker or a LoaderConfig constructor.
func DialWS(ctx context.Context, url string, bridge *Bridge, onProgress func(float64)) (*WSBridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("strip: dialing renderer at %s: %w", url, err)
	}
	w := &WSBridge{conn: conn}
	go w.readLoop(bridge, onProgress)
	return w, nil
}

// Invoke sends one named command to the renderer.
func (w *WSBridge) Invoke(target, command, payload string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(wsEnvelope{
		Type:    "invoke",
		Target:  target,
		Command: command,
		Payload: payload,
	})
}

// Close shuts the connection down. The read loop exits on the resulting
// read error.
func (w *WSBridge) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// readLoop pumps inbound envelopes into the bridge until the connection
// drops. A closed bridge turns the deliveries into no-ops, so a renderer
// that keeps sending after teardown is harmless.
func (w *WSBridge) readLoop(bridge *Bridge, onProgress func(float64)) {
	for {
		var env wsEnvelope
		if err := w.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("strip: renderer connection lost: %v", err)
			}
			return
		}
		switch env.Type {
		case "frame":
			bridge.OnFrameReceived(env.Data, env.Width, env.Height, env.Index)
		case "ready":
			bridge.OnRendererReady()
		case "progress":
			if onProgress != nil {
				onProgress(env.Progress)
			}
		default:
			log.Printf("strip: ignoring unknown renderer message type %q", env.Type)
		}
	}
}
