package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/visiona/studio-capture/internal/types"
)

// Manager owns the acquired media stream and its audio analysis graph,
// and folds audio track lifecycle events into a microphone-connected
// flag. At most one stream exists per manager: acquiring a new stream
// first tears down the previous one.
type Manager struct {
	backend Backend

	mu           sync.RWMutex
	stream       Stream
	micConnected bool

	drainWG sync.WaitGroup
}

// NewManager creates a device manager on top of a capture backend.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:      backend,
		micConnected: true,
	}
}

// ListDevices enumerates capture devices, video devices first, then
// audio. Enumeration denial fails silently: the caller sees an empty
// sequence, which is its own user-visible "no devices" state.
func (m *Manager) ListDevices(ctx context.Context) []types.DeviceDescriptor {
	devices, err := m.backend.EnumerateDevices(ctx)
	if err != nil {
		slog.Warn("device enumeration denied", "error", err)
		return nil
	}

	// Stable order: video first, then audio, preserving backend order
	// within each kind.
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Kind == types.DeviceVideo && devices[j].Kind != types.DeviceVideo
	})

	return devices
}

// Acquire opens an exclusive live stream for the requested devices and
// rebuilds the audio analysis graph. Any previously acquired stream is
// released first, so no device handle can leak across reacquisition.
func (m *Manager) Acquire(ctx context.Context, req StreamRequest) error {
	m.Release()

	stream, err := m.backend.AcquireStream(ctx, req)
	if err != nil {
		return fmt.Errorf("acquire stream: %w", err)
	}

	m.mu.Lock()
	m.stream = stream
	m.micConnected = true
	m.mu.Unlock()

	m.drainWG.Add(1)
	go m.drainTrackEvents(stream)

	slog.Info("stream acquired",
		"video_device", orDefault(req.VideoDeviceID),
		"audio_device", orDefault(req.AudioDeviceID),
		"resolution", fmt.Sprintf("%dx%d", req.Width, req.Height),
	)

	return nil
}

// Release closes the current stream and its audio graph. Idempotent
// and safe to call when no stream was ever acquired.
func (m *Manager) Release() {
	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.mu.Unlock()

	if stream == nil {
		return
	}

	if err := stream.Close(); err != nil {
		slog.Warn("stream close failed", "error", err)
	}
	m.drainWG.Wait()

	slog.Info("stream released")
}

// Stream returns the currently acquired stream, or nil.
func (m *Manager) Stream() Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stream
}

// MicrophoneConnected reports the microphone lifecycle flag. It flips
// to false on track ended/mute and back to true on unmute. The audio
// analyzer reads this as a hard override.
func (m *Manager) MicrophoneConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.micConnected
}

// drainTrackEvents consumes the stream's track lifecycle channel into
// the micConnected flag. Exits when the stream closes the channel.
func (m *Manager) drainTrackEvents(stream Stream) {
	defer m.drainWG.Done()

	for ev := range stream.TrackEvents() {
		m.mu.Lock()
		switch ev.Kind {
		case types.TrackEnded, types.TrackMuted:
			m.micConnected = false
		case types.TrackUnmuted:
			m.micConnected = true
		}
		connected := m.micConnected
		m.mu.Unlock()

		slog.Debug("audio track event", "kind", ev.Kind, "microphone_connected", connected)
	}
}

func orDefault(id string) string {
	if id == "" {
		return "default"
	}
	return id
}
