package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/studio-capture/internal/types"
)

// MockBackend is a synthetic capture backend for tests and for running
// the studio without hardware. Frames and spectra are settable, chunks
// and track events are injected by the caller.
type MockBackend struct {
	mu      sync.Mutex
	devices []types.DeviceDescriptor
	denied  bool
	last    *MockStream
}

// NewMockBackend creates a mock backend with a default camera and
// microphone pair.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		devices: []types.DeviceDescriptor{
			{ID: "cam-0", Kind: types.DeviceVideo, Label: "Mock Camera"},
			{ID: "mic-0", Kind: types.DeviceAudio, Label: "Mock Microphone"},
		},
	}
}

// SetDevices replaces the enumerable device list.
func (b *MockBackend) SetDevices(devices []types.DeviceDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devices
}

// DenyAccess makes enumeration and acquisition fail with
// ErrDeviceUnavailable, simulating a permission denial.
func (b *MockBackend) DenyAccess(denied bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.denied = denied
}

// LastStream returns the most recently acquired mock stream.
func (b *MockBackend) LastStream() *MockStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// EnumerateDevices implements Backend.
func (b *MockBackend) EnumerateDevices(ctx context.Context) ([]types.DeviceDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.denied {
		return nil, fmt.Errorf("enumerate: %w", types.ErrDeviceUnavailable)
	}
	out := make([]types.DeviceDescriptor, len(b.devices))
	copy(out, b.devices)
	return out, nil
}

// AcquireStream implements Backend.
func (b *MockBackend) AcquireStream(ctx context.Context, req StreamRequest) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.denied {
		return nil, fmt.Errorf("acquire: %w", types.ErrDeviceUnavailable)
	}

	s := NewMockStream(req.Width, req.Height)
	b.last = s
	return s, nil
}

// MockStream generates synthetic frames and spectra for testing.
type MockStream struct {
	width  int
	height int

	mu        sync.Mutex
	frame     types.Frame
	spectrum  types.Spectrum
	frameErr  error
	recordErr error
	seq       uint64
	active    bool
	recording bool

	chunks chan []byte
	events chan types.TrackEvent
}

// NewMockStream creates a live mock stream with a mid-gray frame and a
// quiet spectrum so analyzers produce deterministic output until the
// test overrides them.
func NewMockStream(width, height int) *MockStream {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	s := &MockStream{
		width:  width,
		height: height,
		active: true,
		events: make(chan types.TrackEvent, 16),
	}
	s.SetFrameFill(128)
	s.SetSpectrumLevel(0)
	return s
}

// SetFrameFill replaces the current frame with a uniform fill.
func (s *MockStream) SetFrameFill(value byte) {
	data := make([]byte, s.width*s.height*3)
	for i := range data {
		data[i] = value
	}
	s.SetFrameData(data)
}

// SetFrameData replaces the current frame's RGB24 payload.
func (s *MockStream) SetFrameData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.frame = types.Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Width:     s.width,
		Height:    s.height,
		Data:      data,
		TraceID:   uuid.New().String(),
	}
}

// SetFrameError makes Frame() fail, simulating a not-yet-decoded frame.
func (s *MockStream) SetFrameError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameErr = err
}

// SetSpectrumLevel fills all 128 bins with a uniform magnitude.
func (s *MockStream) SetSpectrumLevel(level byte) {
	bins := make([]byte, 128)
	for i := range bins {
		bins[i] = level
	}
	s.SetSpectrumBins(bins)
}

// SetSpectrumBins replaces the spectrum snapshot.
func (s *MockStream) SetSpectrumBins(bins []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spectrum = types.Spectrum{Bins: bins, Timestamp: time.Now()}
}

// SetRecordError makes StartRecording fail, simulating a platform
// recorder refusal.
func (s *MockStream) SetRecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordErr = err
}

// EmitChunk injects one recorded chunk. No-op unless recording.
func (s *MockStream) EmitChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || s.chunks == nil {
		return
	}
	select {
	case s.chunks <- chunk:
	default:
		// Chunk buffer full; callers in tests never exceed capacity.
	}
}

// EmitTrackEvent injects an audio track lifecycle event.
func (s *MockStream) EmitTrackEvent(kind types.TrackEventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil || !s.active {
		return
	}
	select {
	case s.events <- types.TrackEvent{Kind: kind, Timestamp: time.Now()}:
	default:
		// Event buffer full; the flag converges on the next event.
	}
}

// Deactivate marks the stream inactive without closing it, simulating
// a stream that died between acquisition and recorder start.
func (s *MockStream) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Frame implements Stream.
func (s *MockStream) Frame() (types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return types.Frame{}, s.frameErr
	}
	return s.frame, nil
}

// Spectrum implements Stream.
func (s *MockStream) Spectrum() (types.Spectrum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spectrum, nil
}

// StartRecording implements Stream.
func (s *MockStream) StartRecording() (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordErr != nil {
		return nil, s.recordErr
	}
	if !s.active {
		return nil, fmt.Errorf("mock stream not active: %w", types.ErrRecorderInit)
	}
	if s.recording {
		return nil, fmt.Errorf("mock stream already recording: %w", types.ErrRecorderInit)
	}

	s.recording = true
	s.chunks = make(chan []byte, 64)
	return s.chunks, nil
}

// StopRecording implements Stream.
func (s *MockStream) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return nil
	}
	s.recording = false
	close(s.chunks)
	return nil
}

// TrackEvents implements Stream.
func (s *MockStream) TrackEvents() <-chan types.TrackEvent {
	return s.events
}

// Active implements Stream.
func (s *MockStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close implements Stream. Idempotent.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active && s.events == nil {
		return nil
	}
	if s.recording {
		s.recording = false
		close(s.chunks)
	}
	s.active = false
	if s.events != nil {
		close(s.events)
		s.events = nil
	}
	return nil
}
