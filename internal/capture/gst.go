package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/studio-capture/internal/types"
)

// audio analysis window: 256 samples per window, 128 magnitude bins.
const (
	audioWindowSamples = 256
	audioSpectrumBins  = audioWindowSamples / 2
	audioSampleRate    = 16000
)

// GstBackend implements Backend on top of GStreamer. Camera and
// microphone are captured into a single pipeline: a tee feeds an
// analysis appsink (latest frame, drop old) and a valve-gated
// recording branch (vp8 + webm chunks).
type GstBackend struct{}

// NewGstBackend initializes GStreamer and returns the backend.
func NewGstBackend() *GstBackend {
	gst.Init(nil)
	return &GstBackend{}
}

// EnumerateDevices implements Backend via the GStreamer device monitor.
func (b *GstBackend) EnumerateDevices(ctx context.Context) ([]types.DeviceDescriptor, error) {
	monitor := gst.NewDeviceMonitor()
	monitor.AddFilter("Video/Source", nil)
	monitor.AddFilter("Audio/Source", nil)

	if started := monitor.Start(); !started {
		return nil, fmt.Errorf("device monitor refused to start: %w", types.ErrDeviceUnavailable)
	}
	defer monitor.Stop()

	var out []types.DeviceDescriptor
	for _, dev := range monitor.GetDevices() {
		kind := types.DeviceAudio
		if dev.HasClasses("Video/Source") {
			kind = types.DeviceVideo
		}
		out = append(out, types.DeviceDescriptor{
			ID:    dev.GetDisplayName(),
			Kind:  kind,
			Label: dev.GetDisplayName(),
		})
	}

	return out, nil
}

// AcquireStream implements Backend.
func (b *GstBackend) AcquireStream(ctx context.Context, req StreamRequest) (Stream, error) {
	s := &gstStream{
		req:    req,
		events: make(chan types.TrackEvent, 16),
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// gstStream is a live GStreamer capture owned by exactly one session.
type gstStream struct {
	req StreamRequest

	mu        sync.Mutex
	pipeline  *gst.Pipeline
	recValve  *gst.Element
	arecValve *gst.Element

	frameSeq  uint64
	lastFrame types.Frame
	window    []int16 // latest raw audio window (mono S16LE)

	chunks    chan []byte
	recording bool
	active    bool

	events chan types.TrackEvent
	stopWG sync.WaitGroup
	stopCh chan struct{}
}

// launchString builds the capture graph. The analysis branches keep
// only the latest sample; the recording branches sit behind valves so
// the encoder runs only while a recording is in progress.
func (s *gstStream) launchString() string {
	videoSrc := "autovideosrc"
	if s.req.VideoDeviceID != "" {
		videoSrc = fmt.Sprintf("v4l2src device=%q", s.req.VideoDeviceID)
	}
	audioSrc := "autoaudiosrc"
	if s.req.AudioDeviceID != "" {
		audioSrc = fmt.Sprintf("pulsesrc device=%q", s.req.AudioDeviceID)
	}

	return fmt.Sprintf(
		"%s ! videoconvert ! videoscale ! videorate ! "+
			"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1 ! tee name=vsplit "+
			"vsplit. ! queue leaky=downstream max-size-buffers=1 ! appsink name=frames sync=false max-buffers=1 drop=true "+
			"vsplit. ! queue ! valve name=recvalve drop=true ! videoconvert ! vp8enc deadline=1 cpu-used=8 ! webmmux streamable=true name=mux ! appsink name=chunks sync=false "+
			"%s ! audioconvert ! audioresample ! audio/x-raw,format=S16LE,channels=1,rate=%d ! tee name=asplit "+
			"asplit. ! queue leaky=downstream max-size-buffers=4 ! appsink name=samples sync=false max-buffers=4 drop=true "+
			"asplit. ! queue ! valve name=arecvalve drop=true ! audioconvert ! vorbisenc ! mux.",
		videoSrc, s.req.Width, s.req.Height, s.req.FPS, audioSrc, audioSampleRate,
	)
}

func (s *gstStream) open() error {
	pipeline, err := gst.NewPipelineFromString(s.launchString())
	if err != nil {
		return fmt.Errorf("failed to create capture pipeline: %w: %v", types.ErrDeviceUnavailable, err)
	}
	s.pipeline = pipeline
	s.stopCh = make(chan struct{})

	if err := s.wireAppsinks(); err != nil {
		return err
	}

	s.recValve, _ = pipeline.GetElementByName("recvalve")
	s.arecValve, _ = pipeline.GetElementByName("arecvalve")
	if s.recValve == nil || s.arecValve == nil {
		return fmt.Errorf("recording valves missing from pipeline")
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("failed to start capture pipeline: %w: %v", types.ErrDeviceUnavailable, err)
	}

	s.active = true

	s.stopWG.Add(1)
	go s.watchBus()

	slog.Info("gst capture pipeline playing",
		"resolution", fmt.Sprintf("%dx%d", s.req.Width, s.req.Height),
		"fps", s.req.FPS,
	)

	return nil
}

// wireAppsinks attaches sample callbacks for the three appsinks:
// latest frame, latest audio window and recorded chunks.
func (s *gstStream) wireAppsinks() error {
	framesElem, err := s.pipeline.GetElementByName("frames")
	if err != nil || framesElem == nil {
		return fmt.Errorf("frames appsink missing from pipeline")
	}
	app.SinkFromElement(framesElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onVideoSample,
	})

	samplesElem, err := s.pipeline.GetElementByName("samples")
	if err != nil || samplesElem == nil {
		return fmt.Errorf("samples appsink missing from pipeline")
	}
	app.SinkFromElement(samplesElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onAudioSample,
	})

	chunksElem, err := s.pipeline.GetElementByName("chunks")
	if err != nil || chunksElem == nil {
		return fmt.Errorf("chunks appsink missing from pipeline")
	}
	app.SinkFromElement(chunksElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onChunkSample,
	})

	return nil
}

// onVideoSample stores the newest decoded frame for on-demand reads.
func (s *gstStream) onVideoSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// A single corrupted frame should not kill the pipeline.
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	s.mu.Lock()
	s.frameSeq++
	s.lastFrame = types.Frame{
		Seq:       s.frameSeq,
		Timestamp: time.Now(),
		Width:     s.req.Width,
		Height:    s.req.Height,
		Data:      frameData,
		TraceID:   uuid.New().String(),
	}
	s.mu.Unlock()

	return gst.FlowOK
}

// onAudioSample keeps the newest fixed-size window of mono samples.
func (s *gstStream) onAudioSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	n := len(data) / 2
	if n > audioWindowSamples {
		n = audioWindowSamples
	}
	window := make([]int16, n)
	for i := 0; i < n; i++ {
		window[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	buffer.Unmap()

	s.mu.Lock()
	s.window = window
	s.mu.Unlock()

	return gst.FlowOK
}

// onChunkSample forwards muxed recording output, in arrival order.
func (s *gstStream) onChunkSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	chunk := make([]byte, len(data))
	copy(chunk, data)
	buffer.Unmap()

	// Send under the lock so StopRecording cannot close the channel
	// mid-send. The buffer holds minutes of muxer output; an overflow
	// means the consumer died, and dropping beats deadlocking the
	// streaming thread.
	s.mu.Lock()
	if s.recording && s.chunks != nil {
		select {
		case s.chunks <- chunk:
		default:
			slog.Warn("recording chunk dropped, consumer stalled", "size", len(chunk))
		}
	}
	s.mu.Unlock()

	return gst.FlowOK
}

// watchBus surfaces pipeline errors and EOS as track-ended events so
// the device manager can flip the microphone-connected flag.
func (s *gstStream) watchBus() {
	defer s.stopWG.Done()

	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		msg := bus.TimedPop(500 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			slog.Warn("gst capture reached EOS")
			s.emitTrackEvent(types.TrackEnded)
		case gst.MessageError:
			slog.Warn("gst capture error", "error", msg.ParseError().Error())
			s.emitTrackEvent(types.TrackEnded)
		}
		msg.Unref()
	}
}

func (s *gstStream) emitTrackEvent(kind types.TrackEventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.events == nil {
		return
	}
	select {
	case s.events <- types.TrackEvent{Kind: kind, Timestamp: time.Now()}:
	default:
	}
}

// Frame implements Stream.
func (s *gstStream) Frame() (types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return types.Frame{}, fmt.Errorf("stream closed: %w", types.ErrDeviceUnavailable)
	}
	if s.lastFrame.Data == nil {
		return types.Frame{}, fmt.Errorf("no frame decoded yet")
	}
	return s.lastFrame, nil
}

// Spectrum implements Stream. Magnitudes come from a naive DFT over
// the fixed 256-sample window, scaled to 0-255 per bin to match the
// analyzer's expected range.
func (s *gstStream) Spectrum() (types.Spectrum, error) {
	s.mu.Lock()
	window := s.window
	active := s.active
	s.mu.Unlock()

	if !active {
		return types.Spectrum{}, fmt.Errorf("stream closed: %w", types.ErrDeviceUnavailable)
	}

	bins := make([]byte, audioSpectrumBins)
	if len(window) == 0 {
		return types.Spectrum{Bins: bins, Timestamp: time.Now()}, nil
	}

	n := len(window)
	for k := 0; k < audioSpectrumBins; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			v := float64(window[t]) / 32768.0
			re += v * math.Cos(angle)
			im -= v * math.Sin(angle)
		}
		mag := math.Sqrt(re*re+im*im) / float64(n) * 2
		scaled := mag * 1024 // normalize into the 0-255 byte range
		if scaled > 255 {
			scaled = 255
		}
		bins[k] = byte(scaled)
	}

	return types.Spectrum{Bins: bins, Timestamp: time.Now()}, nil
}

// StartRecording implements Stream: opens the recording valves.
func (s *gstStream) StartRecording() (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, fmt.Errorf("stream not active: %w", types.ErrRecorderInit)
	}
	if s.recording {
		return nil, fmt.Errorf("already recording: %w", types.ErrRecorderInit)
	}

	s.chunks = make(chan []byte, 256)
	s.recording = true
	s.recValve.SetProperty("drop", false)
	s.arecValve.SetProperty("drop", false)

	slog.Info("gst recording started")
	return s.chunks, nil
}

// StopRecording implements Stream: closes the valves and the chunk
// channel. Idempotent.
func (s *gstStream) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return nil
	}
	s.recValve.SetProperty("drop", true)
	s.arecValve.SetProperty("drop", true)
	s.recording = false
	close(s.chunks)
	s.chunks = nil

	slog.Info("gst recording stopped")
	return nil
}

// TrackEvents implements Stream.
func (s *gstStream) TrackEvents() <-chan types.TrackEvent {
	return s.events
}

// Active implements Stream.
func (s *gstStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close implements Stream. Idempotent: tears the pipeline down to
// NULL and closes the event channel.
func (s *gstStream) Close() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	if s.recording {
		s.recValve.SetProperty("drop", true)
		s.arecValve.SetProperty("drop", true)
		s.recording = false
		close(s.chunks)
		s.chunks = nil
	}
	events := s.events
	s.events = nil
	s.mu.Unlock()

	close(s.stopCh)
	s.stopWG.Wait()

	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	if events != nil {
		close(events)
	}

	slog.Info("gst capture pipeline closed")
	return nil
}
