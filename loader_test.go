package strip

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadStatusString(t *testing.T) {
	tests := []struct {
		status LoadStatus
		expect string
	}{
		{StatusIdle, "idle"},
		{StatusLoading, "loading"},
		{StatusReady, "ready"},
		{StatusError, "error"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expect {
			t.Errorf("LoadStatus(%d).String() = %q, want %q", tt.status, got, tt.expect)
		}
	}
}

func TestLoadRendererSuccess(t *testing.T) {
	inv := &fakeInvoker{}
	var progress []float64
	h := LoadRenderer(LoaderConfig{
		BasePath: "assets/engine",
		Construct: func(_ context.Context, basePath string, report func(float64)) (Invoker, error) {
			if basePath != "assets/engine" {
				t.Errorf("basePath = %q", basePath)
			}
			report(0.5)
			report(1)
			return inv, nil
		},
		OnProgress: func(p float64) { progress = append(progress, p) },
	})

	if err := h.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.Status() != StatusReady {
		t.Errorf("status = %v, want ready", h.Status())
	}
	if len(progress) != 2 || progress[0] != 0.5 || progress[1] != 1 {
		t.Errorf("progress = %v, want [0.5 1]", progress)
	}
	// The transport is installed on the bridge.
	if err := h.Bridge().Send(CaptureCommand{Name: CmdStopCapture, Index: 0}); err != nil {
		t.Errorf("Send after load = %v", err)
	}
}

func TestLoadRendererFailure(t *testing.T) {
	boom := errors.New("missing data segment")
	h := LoadRenderer(LoaderConfig{
		Construct: func(context.Context, string, func(float64)) (Invoker, error) {
			return nil, boom
		},
	})
	if err := h.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait = %v, want construction error", err)
	}
	if h.Status() != StatusError {
		t.Errorf("status = %v, want error", h.Status())
	}
}

func TestLoadRendererTimeout(t *testing.T) {
	release := make(chan struct{})
	inv := &fakeInvoker{}
	h := LoadRenderer(LoaderConfig{
		Construct: func(context.Context, string, func(float64)) (Invoker, error) {
			<-release
			return inv, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); !errors.Is(err, ErrLoadTimeout) {
		t.Fatalf("Wait = %v, want ErrLoadTimeout", err)
	}
	if h.Status() != StatusError {
		t.Errorf("status after timeout = %v, want error", h.Status())
	}

	// The attempt was not aborted: a late success installs the transport.
	close(release)
	<-h.done
	if h.Status() != StatusReady {
		t.Errorf("status after late success = %v, want ready", h.Status())
	}
	if err := h.Err(); err != nil {
		t.Errorf("Err after late success = %v, want nil", err)
	}
}

func TestLoadRendererLateSuccessAfterClose(t *testing.T) {
	release := make(chan struct{})
	h := LoadRenderer(LoaderConfig{
		Construct: func(context.Context, string, func(float64)) (Invoker, error) {
			<-release
			return &fakeInvoker{}, nil
		},
	})
	h.Close()
	close(release)
	<-h.done

	if h.Status() != StatusError {
		t.Errorf("status = %v, want error for a load completing after Close", h.Status())
	}
	// Inbound callbacks stay no-ops.
	h.Bridge().OnRendererReady()
	if h.Bridge().Ready() {
		t.Error("closed bridge must ignore readiness")
	}
}

func TestNewRendererHandleIsReadyImmediately(t *testing.T) {
	h := NewRendererHandle(&fakeInvoker{})
	if h.Status() != StatusReady {
		t.Errorf("status = %v, want ready", h.Status())
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v", err)
	}
}
