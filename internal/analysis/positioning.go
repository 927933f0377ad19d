package analysis

import (
	"fmt"
	"math"

	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// PositioningAnalyzer estimates subject centering from the brightness
// imbalance between frame halves: the sum of the absolute left-right
// and top-bottom mean differences. It requires the face verdict as an
// input; without a face there is no position to assess.
type PositioningAnalyzer struct {
	bands config.PositioningBands
}

// NewPositioningAnalyzer creates a positioning analyzer with the given
// thresholds.
func NewPositioningAnalyzer(bands config.PositioningBands) *PositioningAnalyzer {
	return &PositioningAnalyzer{bands: bands}
}

// Analyze scores one raster given the face and lighting verdicts of
// the same tick. On any analysis failure it falls back to a generous
// estimate derived from the other two scores.
func (a *PositioningAnalyzer) Analyze(r *Raster, face, lighting types.QualityCheckResult) (result types.QualityCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = a.fallback(face, lighting)
		}
	}()

	if r == nil {
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusError,
			Message: "Camera not ready",
		}
	}

	left, right, top, bottom := r.HalfMeans()
	imbalance := math.Abs(left-right) + math.Abs(top-bottom)

	switch {
	case face.Score < a.bands.MinFaceScore:
		return types.QualityCheckResult{
			Score:   30,
			Status:  types.StatusError,
			Message: "No face detected - Cannot assess position (30%)",
		}
	case imbalance > a.bands.OffCenter:
		return types.QualityCheckResult{
			Score:   55,
			Status:  types.StatusWarning,
			Message: "Quite off-center - Try to center yourself (55%)",
		}
	case imbalance > a.bands.Acceptable:
		return types.QualityCheckResult{
			Score:   75,
			Status:  types.StatusSuccess,
			Message: "Good position (75%)",
		}
	default:
		// Well centered: imbalance-derived base plus a small bonus
		// proportional to the face score, capped at 95.
		base := int(math.Round(90 - imbalance/2))
		bonus := int(math.Round(float64(face.Score) * 0.1))
		score := base + bonus
		if score > 95 {
			score = 95
		}
		if score < 30 {
			score = 30
		}
		return types.QualityCheckResult{
			Score:   score,
			Status:  types.StatusSuccess,
			Message: fmt.Sprintf("Position excellent (%d%%)", score),
		}
	}
}

// fallback is the generous estimate used when positioning analysis
// itself fails: average of face and lighting, floored.
func (a *PositioningAnalyzer) fallback(face, lighting types.QualityCheckResult) types.QualityCheckResult {
	score := (face.Score + lighting.Score) / 2
	if score < a.bands.FallbackFloor {
		score = a.bands.FallbackFloor
	}
	status := types.StatusWarning
	if score > 75 {
		status = types.StatusSuccess
	}
	return types.QualityCheckResult{
		Score:   score,
		Status:  status,
		Message: fmt.Sprintf("Position estimated (%d%%)", score),
	}
}
