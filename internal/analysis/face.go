package analysis

import (
	"fmt"
	"math"

	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// FaceAnalyzer scores the likelihood of a face-like subject in frame
// from mean brightness and pixel variance. A flat or near-black raster
// cannot contain a visible face; a high-variance raster probably does.
type FaceAnalyzer struct {
	bands config.FaceBands
}

// NewFaceAnalyzer creates a face-presence analyzer with the given
// band boundaries.
func NewFaceAnalyzer(bands config.FaceBands) *FaceAnalyzer {
	return &FaceAnalyzer{bands: bands}
}

// Analyze scores one raster. A nil raster means the camera is not
// delivering frames yet.
func (a *FaceAnalyzer) Analyze(r *Raster) (result types.QualityCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = types.QualityCheckResult{
				Score:   0,
				Status:  types.StatusError,
				Message: "Face detection error",
			}
		}
	}()

	if r == nil {
		return types.QualityCheckResult{
			Score:   0,
			Status:  types.StatusError,
			Message: "Camera not ready",
		}
	}

	brightness := r.MeanBrightness()
	variance := r.Variance()

	switch {
	case brightness < a.bands.DarkBrightness:
		return types.QualityCheckResult{
			Score:   5,
			Status:  types.StatusError,
			Message: "Camera blocked or very dark (5%)",
		}
	case variance < a.bands.FlatVariance:
		return types.QualityCheckResult{
			Score:   25,
			Status:  types.StatusError,
			Message: "No face detected - Position yourself (25%)",
		}
	case variance < a.bands.PartialVariance:
		return types.QualityCheckResult{
			Score:   60,
			Status:  types.StatusWarning,
			Message: "Face partially visible (60%)",
		}
	default:
		// Good variance: score scales linearly with variance into [70,95].
		score := int(math.Min(95, math.Max(70, math.Round(70+variance/50))))
		return types.QualityCheckResult{
			Score:   score,
			Status:  types.StatusSuccess,
			Message: fmt.Sprintf("Face detected (%d%%)", score),
		}
	}
}
