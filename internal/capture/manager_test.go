package capture_test

import (
	"context"
	"testing"
	"time"

	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/types"
)

func testRequest() capture.StreamRequest {
	return capture.StreamRequest{Width: 640, Height: 480, FPS: 15}
}

// TestListDevicesOrdering validates the video-first presentation order
// regardless of backend enumeration order.
func TestListDevicesOrdering(t *testing.T) {
	backend := capture.NewMockBackend()
	backend.SetDevices([]types.DeviceDescriptor{
		{ID: "mic-0", Kind: types.DeviceAudio, Label: "Internal Mic"},
		{ID: "cam-0", Kind: types.DeviceVideo, Label: "Webcam"},
		{ID: "mic-1", Kind: types.DeviceAudio, Label: "Headset"},
		{ID: "cam-1", Kind: types.DeviceVideo, Label: "Capture Card"},
	})
	m := capture.NewManager(backend)

	got := m.ListDevices(context.Background())
	wantIDs := []string{"cam-0", "cam-1", "mic-0", "mic-1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("device count = %d, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("device[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
	t.Log("✅ devices listed video-first, backend order preserved within kind")
}

// TestListDevicesDenialIsSilent validates that enumeration denial
// degrades to an empty list, not an error the UI has to special-case.
func TestListDevicesDenialIsSilent(t *testing.T) {
	backend := capture.NewMockBackend()
	backend.DenyAccess(true)
	m := capture.NewManager(backend)

	if got := m.ListDevices(context.Background()); len(got) != 0 {
		t.Errorf("denied enumeration returned %d devices, want 0", len(got))
	}
	t.Log("✅ enumeration denial reads as empty device list")
}

func TestAcquireReplacesPreviousStream(t *testing.T) {
	backend := capture.NewMockBackend()
	m := capture.NewManager(backend)

	if err := m.Acquire(context.Background(), testRequest()); err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}
	first := backend.LastStream()

	if err := m.Acquire(context.Background(), testRequest()); err != nil {
		t.Fatalf("second Acquire() failed: %v", err)
	}

	if first.Active() {
		t.Error("previous stream still active after reacquire")
	}
	if m.Stream() == nil {
		t.Error("no current stream after reacquire")
	}
	t.Log("✅ reacquisition tears down the previous stream first")
}

func TestReleaseIdempotent(t *testing.T) {
	backend := capture.NewMockBackend()
	m := capture.NewManager(backend)

	// Release with nothing acquired is a no-op.
	m.Release()

	if err := m.Acquire(context.Background(), testRequest()); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	m.Release()
	m.Release()

	if m.Stream() != nil {
		t.Error("stream survives Release")
	}
	t.Log("✅ Release idempotent from any state")
}

// TestMicrophoneLifecycleFlag validates the track event folding:
// ended and mute flip the flag off, unmute flips it back on, and a
// fresh acquisition starts connected.
func TestMicrophoneLifecycleFlag(t *testing.T) {
	backend := capture.NewMockBackend()
	m := capture.NewManager(backend)

	if err := m.Acquire(context.Background(), testRequest()); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	stream := backend.LastStream()

	if !m.MicrophoneConnected() {
		t.Fatal("fresh acquisition should start connected")
	}

	waitForFlag := func(want bool) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for m.MicrophoneConnected() != want {
			if time.Now().After(deadline) {
				t.Fatalf("flag never became %v", want)
			}
			time.Sleep(time.Millisecond)
		}
	}

	stream.EmitTrackEvent(types.TrackMuted)
	waitForFlag(false)

	stream.EmitTrackEvent(types.TrackUnmuted)
	waitForFlag(true)

	stream.EmitTrackEvent(types.TrackEnded)
	waitForFlag(false)

	// Reacquire: the flag resets to connected.
	if err := m.Acquire(context.Background(), testRequest()); err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if !m.MicrophoneConnected() {
		t.Error("flag not reset on reacquisition")
	}

	t.Log("✅ track events fold into microphone flag, reset on reacquire")
}

func TestAcquireDenied(t *testing.T) {
	backend := capture.NewMockBackend()
	backend.DenyAccess(true)
	m := capture.NewManager(backend)

	if err := m.Acquire(context.Background(), testRequest()); err == nil {
		t.Error("Acquire() succeeded against denied backend")
	}
	if m.Stream() != nil {
		t.Error("stream present after denied acquisition")
	}
	t.Log("✅ denied acquisition leaves the manager empty")
}
