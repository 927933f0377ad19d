package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Validate capture config
	if cfg.Capture.Width <= 0 || cfg.Capture.Height <= 0 {
		return fmt.Errorf("capture.width and capture.height must be > 0")
	}
	if cfg.Capture.FPS <= 0 {
		return fmt.Errorf("capture.fps must be > 0")
	}
	if cfg.Capture.MaxRecordingSeconds <= 0 {
		return fmt.Errorf("capture.max_recording_seconds must be > 0")
	}
	if cfg.Capture.AnalysisIntervalMs <= 0 {
		cfg.Capture.AnalysisIntervalMs = 1000 // default
	}
	if cfg.Capture.QualityCheckCeilingS <= 0 {
		cfg.Capture.QualityCheckCeilingS = 30 // default
	}
	if cfg.Capture.Format == "" {
		cfg.Capture.Format = "webm"
	}

	// Validate quality bands
	if err := ValidateQuality(&cfg.Quality); err != nil {
		return fmt.Errorf("quality validation failed: %w", err)
	}

	// Set default MQTT topics if not provided (broker itself is optional)
	if cfg.MQTT.Topics.Quality == "" {
		cfg.MQTT.Topics.Quality = fmt.Sprintf("studio/quality/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Sessions == "" {
		cfg.MQTT.Topics.Sessions = fmt.Sprintf("studio/sessions/%s", cfg.InstanceID)
	}

	if cfg.Upload.TimeoutS <= 0 {
		cfg.Upload.TimeoutS = 30
	}

	return nil
}

// ValidateQuality validates analyzer threshold ordering so a malformed
// config cannot invert a decision ladder.
func ValidateQuality(q *QualityConfig) error {
	if q.ReadyThreshold < 0 || q.ReadyThreshold > 100 {
		return fmt.Errorf("ready_threshold must be 0-100, got %d", q.ReadyThreshold)
	}

	if q.Face.FlatVariance >= q.Face.PartialVariance {
		return fmt.Errorf("face: flat_variance (%.0f) must be below partial_variance (%.0f)",
			q.Face.FlatVariance, q.Face.PartialVariance)
	}

	if q.Lighting.DarkBelow >= q.Lighting.BrightAbove {
		return fmt.Errorf("lighting: dark_below (%.0f) must be below bright_above (%.0f)",
			q.Lighting.DarkBelow, q.Lighting.BrightAbove)
	}

	a := q.Audio
	if !(a.VeryLow < a.Low && a.Low < a.Moderate && a.Moderate < a.OptimalHigh && a.OptimalHigh < a.LoudHigh) {
		return fmt.Errorf("audio: band boundaries must be strictly increasing (got %.0f/%.0f/%.0f/%.0f/%.0f)",
			a.VeryLow, a.Low, a.Moderate, a.OptimalHigh, a.LoudHigh)
	}

	if q.Positioning.Acceptable >= q.Positioning.OffCenter {
		return fmt.Errorf("positioning: acceptable (%.0f) must be below off_center (%.0f)",
			q.Positioning.Acceptable, q.Positioning.OffCenter)
	}

	return nil
}
