package analysis

import (
	"fmt"
	"math"

	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// AudioAnalyzer scores the microphone signal level from the current
// frequency-domain snapshot. It carries one piece of analyzer-local
// memory, the previous mean level, to distinguish a sudden physical
// obstruction from a naturally quiet moment.
//
// The microphone-connected flag is a hard override: when false the
// verdict is score 0 / error regardless of raw signal.
type AudioAnalyzer struct {
	bands     config.AudioBands
	lastLevel float64
}

// NewAudioAnalyzer creates an audio level analyzer with the given band
// boundaries.
func NewAudioAnalyzer(bands config.AudioBands) *AudioAnalyzer {
	return &AudioAnalyzer{bands: bands}
}

// Reset clears the analyzer-local level memory. Called when a session
// resets so a stale level cannot trigger the obstruction heuristic.
func (a *AudioAnalyzer) Reset() {
	a.lastLevel = 0
}

// Analyze scores one spectrum snapshot.
func (a *AudioAnalyzer) Analyze(sp types.Spectrum, microphoneConnected bool) (result types.QualityCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = types.QualityCheckResult{
				Score:   15,
				Status:  types.StatusError,
				Message: "Audio analysis failed - Check microphone",
			}
		}
	}()

	if !microphoneConnected {
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusError,
			Message: "Microphone disconnected - Please reconnect (0%)",
		}
	}

	if len(sp.Bins) == 0 {
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusChecking,
			Message: "Setting up microphone...",
		}
	}

	var sum, peak float64
	for _, b := range sp.Bins {
		v := float64(b)
		sum += v
		if v > peak {
			peak = v
		}
	}
	mean := sum / float64(len(sp.Bins))

	// Truly silent graph: no signal at all.
	if peak == 0 && mean == 0 {
		a.lastLevel = 0
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusError,
			Message: "Microphone not working - Check connection and permissions (0%)",
		}
	}

	// Transient-mute heuristic: an audibly active signal that collapses
	// to near-silence in one tick looks like a covered or muted mic,
	// not a quiet room.
	if a.lastLevel > a.bands.ActiveLevel && mean < 2 && peak < 5 {
		a.lastLevel = mean
		return types.QualityCheckResult{
			Score:   10,
			Status:  types.StatusError,
			Message: "Microphone blocked or muted - Remove obstruction (10%)",
		}
	}

	if mean < 1 && peak < 3 {
		a.lastLevel = mean
		return types.QualityCheckResult{
			Score:   5,
			Status:  types.StatusError,
			Message: "No audio signal - Check microphone settings (5%)",
		}
	}

	a.lastLevel = mean

	b := a.bands
	var score int
	var status types.CheckStatus
	var message string

	switch {
	case mean < b.VeryLow:
		score, status = 20, types.StatusError
		message = fmt.Sprintf("Very low audio (%d%%) - Increase microphone volume", score)
	case mean < b.Low:
		score, status = 45, types.StatusWarning
		message = fmt.Sprintf("Low audio (%d%%) - Speak louder or move closer to mic", score)
	case mean < b.Moderate:
		score, status = 65, types.StatusWarning
		message = fmt.Sprintf("Moderate audio (%d%%) - Good, but could be clearer", score)
	case mean > b.LoudHigh:
		score, status = 40, types.StatusError
		message = fmt.Sprintf("Audio too loud (%d%%) - Reduce volume or move away", score)
	case mean > b.OptimalHigh:
		score, status = 70, types.StatusWarning
		message = fmt.Sprintf("Audio loud (%d%%) - Consider reducing volume slightly", score)
	default:
		// Optimal band scales linearly 70 → 100.
		span := b.OptimalHigh - b.Moderate
		score = int(math.Round(70 + (mean-b.Moderate)/span*30))
		status = types.StatusSuccess
		message = fmt.Sprintf("Audio excellent (%d%%)", clampScore(score, 5))
	}

	return types.QualityCheckResult{
		Score:   clampScore(score, 5),
		Status:  status,
		Message: message,
	}
}
