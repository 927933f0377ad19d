// Package capture owns the platform media capabilities: device
// enumeration, live stream acquisition, on-demand frame and spectrum
// reads, and chunked recording. Two backends exist: a GStreamer
// implementation for production and a synthetic mock for tests and
// development without hardware.
package capture

import (
	"context"

	"github.com/visiona/studio-capture/internal/types"
)

// StreamRequest selects the devices and geometry for stream acquisition.
// Empty device ids mean the platform default device.
type StreamRequest struct {
	VideoDeviceID string
	AudioDeviceID string
	Width         int
	Height        int
	FPS           int
}

// Stream is an exclusively owned live audio+video capture.
//
// Implementations must guarantee:
//   - Frame() and Spectrum() are pure reads with no side effects on
//     the capture state
//   - StartRecording() returns a channel delivering binary chunks in
//     arrival order; the channel is closed by StopRecording()
//   - Close() is idempotent (safe to call multiple times)
type Stream interface {
	// Frame returns the most recent decoded video frame.
	Frame() (types.Frame, error)

	// Spectrum returns the current frequency-domain audio snapshot
	// from the stream's analysis graph.
	Spectrum() (types.Spectrum, error)

	// StartRecording begins chunked recording of the live stream.
	// Chunks arrive asynchronously on the returned channel, strictly
	// in arrival order. Returns ErrRecorderInit if the platform
	// refuses to record.
	StartRecording() (<-chan []byte, error)

	// StopRecording stops chunk production and closes the chunk
	// channel. Idempotent.
	StopRecording() error

	// TrackEvents delivers audio track lifecycle signals
	// (ended/mute/unmute). The channel is closed by Close().
	TrackEvents() <-chan types.TrackEvent

	// Active reports whether the stream is live.
	Active() bool

	// Close releases the stream and its audio graph. Idempotent.
	Close() error
}

// Backend is the platform capability behind device management.
type Backend interface {
	// EnumerateDevices lists available capture inputs. Returns
	// ErrDeviceUnavailable when the platform denies enumeration.
	EnumerateDevices(ctx context.Context) ([]types.DeviceDescriptor, error)

	// AcquireStream opens an exclusive live stream for the requested
	// devices. Returns ErrDeviceUnavailable when permission is denied
	// or no device matches the requested id.
	AcquireStream(ctx context.Context, req StreamRequest) (Stream, error)
}
