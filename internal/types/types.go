package types

import "time"

// Phase is the single discrete state of the recording workflow.
// It is the source of truth for what a client renders.
type Phase string

const (
	PhaseReady        Phase = "ready"
	PhaseQualityCheck Phase = "quality-check"
	PhaseRecording    Phase = "recording"
	PhasePreview      Phase = "preview"
)

// CheckStatus classifies a single analyzer verdict.
type CheckStatus string

const (
	StatusChecking CheckStatus = "checking"
	StatusSuccess  CheckStatus = "success"
	StatusWarning  CheckStatus = "warning"
	StatusError    CheckStatus = "error"
)

// QualityCheckResult is one analyzer verdict for one analysis tick.
// Instances are ephemeral: each tick replaces the previous result as a
// whole unit, never field by field.
type QualityCheckResult struct {
	Score   int         `json:"score"` // 0-100
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// CompositeQualitySnapshot aggregates the four analyzer results into the
// readiness gate. OverallScore is the unweighted mean of the component
// scores, rounded to the nearest integer. Ready is a pure function of
// OverallScore against the configured threshold; no other field may
// influence it.
type CompositeQualitySnapshot struct {
	Face         QualityCheckResult `json:"face"`
	Lighting     QualityCheckResult `json:"lighting"`
	Audio        QualityCheckResult `json:"audio"`
	Positioning  QualityCheckResult `json:"positioning"`
	OverallScore int                `json:"overall_score"`
	Ready        bool               `json:"ready"`
	Timestamp    time.Time          `json:"timestamp"`
}

// DeviceKind distinguishes capture device classes.
type DeviceKind string

const (
	DeviceVideo DeviceKind = "video"
	DeviceAudio DeviceKind = "audio"
)

// DeviceDescriptor identifies a single capture input device.
// Read-only; refreshed on enumeration.
type DeviceDescriptor struct {
	ID    string     `json:"id"`
	Kind  DeviceKind `json:"kind"`
	Label string     `json:"label"`
}

// Frame is a single decoded video frame (RGB24, 3 bytes per pixel).
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	TraceID   string
}

// Spectrum is a frequency-domain snapshot of live audio. Bins holds
// per-band magnitudes scaled to 0-255, matching the fixed analysis
// window of the audio graph (128 bins for a 256-sample window).
type Spectrum struct {
	Bins      []byte
	Timestamp time.Time
}

// TrackEventKind is a lifecycle signal from a live audio track.
type TrackEventKind string

const (
	TrackEnded   TrackEventKind = "ended"
	TrackMuted   TrackEventKind = "mute"
	TrackUnmuted TrackEventKind = "unmute"
)

// TrackEvent is one audio track lifecycle notification.
type TrackEvent struct {
	Kind      TrackEventKind
	Timestamp time.Time
}
