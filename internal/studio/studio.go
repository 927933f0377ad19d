// Package studio implements the recording workflow state machine:
// ready → quality-check → recording → preview, with reset from any
// phase. The studio owns the session context exclusively: the stream
// handle, both periodic timers, the chunk sequence and the assembled
// clip. Ownership transfers explicitly at teardown; nothing lives in
// package-level state.
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/studio-capture/internal/analysis"
	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/session"
	"github.com/visiona/studio-capture/internal/telemetry"
	"github.com/visiona/studio-capture/internal/types"
	"github.com/visiona/studio-capture/internal/upload"
)

// SnapshotSink receives every composite quality snapshot produced by
// the analysis loop (telemetry emitter, live quality feed).
type SnapshotSink interface {
	PublishSnapshot(types.CompositeQualitySnapshot)
}

// EventSink receives session phase-transition events.
type EventSink interface {
	PublishSessionEvent(types.SessionEvent)
}

// Studio is the phase controller for one capture session at a time.
type Studio struct {
	cfg     *config.Config
	devices *capture.Manager
	sampler *analysis.Sampler

	face        *analysis.FaceAnalyzer
	lighting    *analysis.LightingAnalyzer
	audio       *analysis.AudioAnalyzer
	positioning *analysis.PositioningAnalyzer

	journal  *telemetry.Journal
	uploader *upload.Client

	snapshotSinks []SnapshotSink
	eventSinks    []EventSink

	// opMu serializes the gating operations (start checks, start/stop
	// recording, reset, save). stateMu guards the fields the analysis
	// and duration loops touch.
	opMu    sync.Mutex
	stateMu sync.RWMutex

	phase     types.Phase
	sessionID string
	sched     *analysis.Scheduler
	recorder  *session.Recorder
	clip      *session.Clip
	savedID   string

	// lastSnapshot exists only during quality-check; it is discarded,
	// not hidden, on any transition out of that phase. finalSnapshot
	// is the copy captured at the moment recording starts, for the
	// upload payload.
	lastSnapshot  *types.CompositeQualitySnapshot
	finalSnapshot *types.CompositeQualitySnapshot

	audioMu sync.Mutex // the audio analyzer carries tick-to-tick memory

	durStop chan struct{}
	durOnce *sync.Once
	durWG   sync.WaitGroup
}

// New creates a studio in the ready phase.
func New(cfg *config.Config, devices *capture.Manager, uploader *upload.Client) *Studio {
	q := cfg.Quality
	return &Studio{
		cfg:         cfg,
		devices:     devices,
		sampler:     analysis.NewSampler(devices),
		face:        analysis.NewFaceAnalyzer(q.Face),
		lighting:    analysis.NewLightingAnalyzer(q.Lighting),
		audio:       analysis.NewAudioAnalyzer(q.Audio),
		positioning: analysis.NewPositioningAnalyzer(q.Positioning),
		journal:     telemetry.NewJournal(),
		uploader:    uploader,
		phase:       types.PhaseReady,
	}
}

// AddSnapshotSink registers a snapshot consumer. Not safe to call once
// a session is running.
func (s *Studio) AddSnapshotSink(sink SnapshotSink) {
	s.snapshotSinks = append(s.snapshotSinks, sink)
}

// AddEventSink registers a session event consumer.
func (s *Studio) AddEventSink(sink EventSink) {
	s.eventSinks = append(s.eventSinks, sink)
}

// Phase returns the current workflow phase.
func (s *Studio) Phase() types.Phase {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.phase
}

// Snapshot returns a copy of the last composite quality snapshot, or
// nil outside the quality-check phase.
func (s *Studio) Snapshot() *types.CompositeQualitySnapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.lastSnapshot == nil {
		return nil
	}
	snap := *s.lastSnapshot
	return &snap
}

// Clip returns the assembled clip, or nil before preview.
func (s *Studio) Clip() *session.Clip {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.clip
}

// Devices exposes the device manager for enumeration.
func (s *Studio) Devices() *capture.Manager {
	return s.devices
}

// SelectDevices changes the configured device ids. Permitted only
// while the phase is ready or quality-check; the new selection takes
// effect on the next stream acquisition.
func (s *Studio) SelectDevices(videoID, audioID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	phase := s.Phase()
	if phase != types.PhaseReady && phase != types.PhaseQualityCheck {
		return fmt.Errorf("%w: cannot change devices in phase %s", types.ErrInvalidTransition, phase)
	}
	s.cfg.Capture.VideoDeviceID = videoID
	s.cfg.Capture.AudioDeviceID = audioID
	return nil
}

// StartQualityCheck performs the ready → quality-check transition:
// acquires the stream and audio analysis graph, then starts the
// periodic analysis loop. Device acquisition failure leaves the studio
// in ready; there is no automatic retry.
func (s *Studio) StartQualityCheck(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Phase() != types.PhaseReady {
		return fmt.Errorf("%w: start quality check from %s", types.ErrInvalidTransition, s.Phase())
	}

	req := capture.StreamRequest{
		VideoDeviceID: s.cfg.Capture.VideoDeviceID,
		AudioDeviceID: s.cfg.Capture.AudioDeviceID,
		Width:         s.cfg.Capture.Width,
		Height:        s.cfg.Capture.Height,
		FPS:           s.cfg.Capture.FPS,
	}
	if err := s.devices.Acquire(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", types.ErrDeviceUnavailable, err)
	}

	sched := analysis.NewScheduler(
		time.Duration(s.cfg.Capture.AnalysisIntervalMs)*time.Millisecond,
		time.Duration(s.cfg.Capture.QualityCheckCeilingS)*time.Second,
		s.runAnalysisPass,
	)

	s.stateMu.Lock()
	s.sessionID = uuid.New().String()
	s.sched = sched
	s.transitionLocked(types.PhaseQualityCheck, 0, "")
	s.stateMu.Unlock()

	// Start after the phase is visible: the first pass runs
	// immediately and checks the phase itself.
	sched.Start(ctx)

	return nil
}

// runAnalysisPass is one analysis tick: sample, run the four
// analyzers, compose, record telemetry and notify sinks. Analyzer
// failures are absorbed into fallback results; nothing here may tear
// down the session.
func (s *Studio) runAnalysisPass() {
	if s.Phase() != types.PhaseQualityCheck {
		return
	}

	raster, err := s.sampler.Sample()
	if err != nil {
		slog.Debug("frame sample unavailable", "error", err)
		raster = nil
	}
	spectrum, err := s.sampler.SpectrumSample()
	if err != nil {
		slog.Debug("spectrum sample unavailable", "error", err)
		spectrum = types.Spectrum{}
	}

	faceRes := s.face.Analyze(raster)
	lightingRes := s.lighting.Analyze(raster)

	s.audioMu.Lock()
	audioRes := s.audio.Analyze(spectrum, s.devices.MicrophoneConnected())
	s.audioMu.Unlock()

	positioningRes := s.positioning.Analyze(raster, faceRes, lightingRes)

	snap := analysis.Compose(faceRes, lightingRes, audioRes, positioningRes, s.cfg.Quality.ReadyThreshold)

	s.stateMu.Lock()
	if s.phase != types.PhaseQualityCheck {
		// Phase moved while we were analyzing; discard the verdict.
		s.stateMu.Unlock()
		return
	}
	s.lastSnapshot = &snap
	s.stateMu.Unlock()

	if err := s.journal.Append(telemetry.Sample{
		Timestamp:           snap.Timestamp,
		Phase:               types.PhaseQualityCheck,
		OverallScore:        snap.OverallScore,
		Ready:               snap.Ready,
		MicrophoneConnected: s.devices.MicrophoneConnected(),
		FaceScore:           snap.Face.Score,
		LightingScore:       snap.Lighting.Score,
		AudioScore:          snap.Audio.Score,
		PositioningScore:    snap.Positioning.Score,
	}); err != nil {
		slog.Warn("telemetry append failed", "error", err)
	}

	for _, sink := range s.snapshotSinks {
		sink.PublishSnapshot(snap)
	}
}

// StartRecording performs the gated quality-check → recording
// transition. Refused with NotReadyError when the last snapshot does
// not clear the readiness threshold.
func (s *Studio) StartRecording(ctx context.Context) error {
	return s.startRecording(ctx, false)
}

// SkipChecksAndRecord is the explicit, user-visible bypass of the
// readiness gate. Everything else about the transition is identical.
func (s *Studio) SkipChecksAndRecord(ctx context.Context) error {
	return s.startRecording(ctx, true)
}

func (s *Studio) startRecording(ctx context.Context, skipGate bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Phase() != types.PhaseQualityCheck {
		return fmt.Errorf("%w: start recording from %s", types.ErrInvalidTransition, s.Phase())
	}

	s.stateMu.RLock()
	snap := s.lastSnapshot
	s.stateMu.RUnlock()

	if !skipGate {
		if snap == nil || !snap.Ready {
			score := 0
			if snap != nil {
				score = snap.OverallScore
			}
			return &types.NotReadyError{Score: score, Threshold: s.cfg.Quality.ReadyThreshold}
		}
	}

	// Leaving quality-check: the analysis loop dies with the phase and
	// the snapshot is discarded, surviving only as the upload copy.
	s.stopScheduler()

	stream := s.devices.Stream()
	if stream == nil {
		// No stream at all: fall all the way back to ready.
		s.stateMu.Lock()
		s.lastSnapshot = nil
		s.transitionLocked(types.PhaseReady, 0, "")
		s.stateMu.Unlock()
		return fmt.Errorf("%w: no live stream", types.ErrDeviceUnavailable)
	}

	rec := session.NewRecorder(stream, s.cfg.Capture.Format)
	if err := rec.Start(); err != nil {
		// Recorder refused: fall back one phase, keep the stream so the
		// user can retry from quality-check.
		return fmt.Errorf("%w: %v", types.ErrRecorderInit, err)
	}

	var final *types.CompositeQualitySnapshot
	if snap != nil {
		cp := *snap
		final = &cp
	}

	s.stateMu.Lock()
	s.recorder = rec
	s.finalSnapshot = final
	s.lastSnapshot = nil
	s.durStop = make(chan struct{})
	s.durOnce = &sync.Once{}
	score := 0
	if final != nil {
		score = final.OverallScore
	}
	s.transitionLocked(types.PhaseRecording, score, "")
	s.stateMu.Unlock()

	s.durWG.Add(1)
	go s.durationLoop()

	return nil
}

// durationLoop is the once-per-second recording clock. Reaching the
// hard ceiling triggers the exact same stop path as an explicit user
// stop, which guarantees identical cleanup.
func (s *Studio) durationLoop() {
	defer s.durWG.Done()

	s.stateMu.RLock()
	stop := s.durStop
	s.stateMu.RUnlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.advanceRecordingClock() {
				return
			}
		}
	}
}

// advanceRecordingClock advances elapsed time by one second and stops
// the recording when the ceiling is reached. Returns true when the
// loop should exit.
func (s *Studio) advanceRecordingClock() bool {
	s.stateMu.RLock()
	rec := s.recorder
	phase := s.phase
	s.stateMu.RUnlock()

	if phase != types.PhaseRecording || rec == nil {
		return true
	}

	elapsed := rec.Tick()
	if elapsed < s.cfg.Capture.MaxRecordingSeconds {
		return false
	}

	slog.Info("recording ceiling reached", "elapsed_s", elapsed)
	if _, err := s.StopRecording(); err != nil {
		slog.Warn("automatic stop failed", "error", err)
	}
	return true
}

// StopRecording performs the recording → preview transition: stops the
// chunked recorder, assembles the clip in arrival order and spools it.
// Shared by explicit stop and the duration ceiling.
func (s *Studio) StopRecording() (*session.Clip, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.RLock()
	phase := s.phase
	rec := s.recorder
	clip := s.clip
	s.stateMu.RUnlock()

	if phase == types.PhasePreview {
		// The ceiling and an explicit stop can race; the second caller
		// simply sees the already-assembled clip.
		return clip, nil
	}
	if phase != types.PhaseRecording || rec == nil {
		return nil, fmt.Errorf("%w: stop recording from %s", types.ErrInvalidTransition, phase)
	}

	s.stopDurationClock()
	rec.Stop()

	newClip, err := rec.Assemble(s.cfg.SpoolDir)

	s.stateMu.Lock()
	s.recorder = nil
	s.clip = newClip
	clipID := ""
	if newClip != nil {
		clipID = newClip.ID
	}
	s.transitionLocked(types.PhasePreview, 0, clipID)
	s.stateMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("assemble clip: %w", err)
	}

	slog.Info("clip assembled",
		"clip_id", newClip.ID,
		"duration_s", newClip.DurationSeconds,
		"size_bytes", newClip.SizeBytes,
	)
	return newClip, nil
}

// Save hands the assembled clip, its quality breakdown and the
// telemetry journal to the external save collaborator. Failure
// preserves the clip and the preview phase so the user can retry
// without re-recording.
func (s *Studio) Save(ctx context.Context) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.uploader == nil {
		return "", fmt.Errorf("%w: no upload collaborator configured", types.ErrUploadFailed)
	}

	s.stateMu.RLock()
	phase := s.phase
	clip := s.clip
	final := s.finalSnapshot
	s.stateMu.RUnlock()

	if phase != types.PhasePreview || clip == nil {
		return "", fmt.Errorf("%w: nothing to save in phase %s", types.ErrInvalidTransition, phase)
	}

	req := upload.SaveRequest{
		ClipPath:        clip.Path,
		DurationSeconds: clip.DurationSeconds,
		FileSizeBytes:   clip.SizeBytes,
		Format:          clip.Format,
		Telemetry:       s.journal.Bytes(),
	}
	if final != nil {
		req.OverallScore = final.OverallScore
		req.Checks = *final
	}

	saved, err := s.uploader.Save(ctx, req)
	if err != nil {
		return "", err
	}

	s.stateMu.Lock()
	s.savedID = saved.ID
	s.stateMu.Unlock()
	return saved.ID, nil
}

// LinkToProfile links the saved clip to a candidate profile on the
// collaborator side. Requires a prior successful Save.
func (s *Studio) LinkToProfile(ctx context.Context, candidateID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.uploader == nil {
		return fmt.Errorf("%w: no upload collaborator configured", types.ErrUploadFailed)
	}

	s.stateMu.RLock()
	savedID := s.savedID
	s.stateMu.RUnlock()

	if savedID == "" {
		return fmt.Errorf("%w: clip not saved yet", types.ErrInvalidTransition)
	}
	return s.uploader.LinkToProfile(ctx, savedID, candidateID)
}

// Reset is the cooperative cancellation point: both timers are
// cleared, the stream and audio graph are released and the clip spool
// is revoked, all before the phase returns to ready. Idempotent, and
// safe even when no session was ever started.
func (s *Studio) Reset() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopScheduler()
	s.stopDurationClock()

	s.stateMu.RLock()
	rec := s.recorder
	s.stateMu.RUnlock()
	if rec != nil {
		rec.Stop()
	}

	s.devices.Release()

	s.audioMu.Lock()
	s.audio.Reset()
	s.audioMu.Unlock()
	s.journal.Reset()

	s.stateMu.Lock()
	if s.clip != nil {
		s.clip.Revoke()
		s.clip = nil
	}
	s.recorder = nil
	s.lastSnapshot = nil
	s.finalSnapshot = nil
	s.savedID = ""
	if s.phase != types.PhaseReady {
		s.transitionLocked(types.PhaseReady, 0, "")
	}
	s.stateMu.Unlock()
}

// stopScheduler stops and forgets the analysis loop. Caller must
// hold opMu but not stateMu (Stop waits for a pass that takes stateMu).
func (s *Studio) stopScheduler() {
	s.stateMu.Lock()
	sched := s.sched
	s.sched = nil
	s.stateMu.Unlock()

	if sched != nil {
		sched.Stop()
	}
}

// stopDurationClock cancels the once-per-second recording clock.
// Idempotent via the per-session Once.
func (s *Studio) stopDurationClock() {
	s.stateMu.RLock()
	stop := s.durStop
	once := s.durOnce
	s.stateMu.RUnlock()

	if stop == nil || once == nil {
		return
	}
	once.Do(func() { close(stop) })
}

// transitionLocked records a phase change and notifies event sinks.
// Caller holds stateMu.
func (s *Studio) transitionLocked(to types.Phase, score int, clipID string) {
	from := s.phase
	s.phase = to

	ev := types.SessionEvent{
		SessionID:    s.sessionID,
		From:         from,
		To:           to,
		OverallScore: score,
		ClipID:       clipID,
		Timestamp:    time.Now(),
	}

	slog.Info("phase transition", "from", from, "to", to, "session_id", s.sessionID)

	// Sinks are notified asynchronously; a slow telemetry broker must
	// not stall a phase transition.
	for _, sink := range s.eventSinks {
		go sink.PublishSessionEvent(ev)
	}
}
