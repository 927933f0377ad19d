package analysis

import (
	"fmt"
	"math"

	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// LightingAnalyzer scores mean frame brightness against a dark /
// optimal / bright band ladder. Scores always clamp into [30,100] so a
// client never renders a literal zero for a merely dim room.
type LightingAnalyzer struct {
	bands config.LightingBands
}

// NewLightingAnalyzer creates a lighting analyzer with the given band
// boundaries.
func NewLightingAnalyzer(bands config.LightingBands) *LightingAnalyzer {
	return &LightingAnalyzer{bands: bands}
}

// Analyze scores one raster.
func (a *LightingAnalyzer) Analyze(r *Raster) (result types.QualityCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = types.QualityCheckResult{
				Score:   50,
				Status:  types.StatusWarning,
				Message: "Lighting analysis unavailable",
			}
		}
	}()

	if r == nil {
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusChecking,
			Message: "Preparing analysis...",
		}
	}

	brightness := r.MeanBrightness()
	dark := a.bands.DarkBelow
	bright := a.bands.BrightAbove

	var score int
	var status types.CheckStatus
	var message string

	switch {
	case brightness < dark:
		// Scales linearly 0 → 70 with brightness.
		score = int(math.Round(brightness / dark * 70))
		status = types.StatusError
		message = fmt.Sprintf("Too dark (%d%%) - Move to brighter area", clampScore(score, 30))
	case brightness > bright:
		// Scales down from 100 as brightness climbs past the band.
		score = int(math.Round(100 - (brightness-bright)/(255-bright)*30))
		status = types.StatusWarning
		message = fmt.Sprintf("Too bright (%d%%) - Reduce direct light", clampScore(score, 30))
	default:
		// Optimal band scales linearly 70 → 100.
		score = int(math.Round(70 + (brightness-dark)/(bright-dark)*30))
		status = types.StatusSuccess
		message = fmt.Sprintf("Lighting optimal (%d%%)", clampScore(score, 30))
	}

	return types.QualityCheckResult{
		Score:   clampScore(score, 30),
		Status:  status,
		Message: message,
	}
}

// clampScore bounds a score into [floor, 100].
func clampScore(score, floor int) int {
	if score < floor {
		return floor
	}
	if score > 100 {
		return 100
	}
	return score
}
