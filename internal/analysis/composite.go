package analysis

import (
	"math"
	"time"

	"github.com/visiona/studio-capture/internal/types"
)

// Compose folds the four analyzer results into the readiness gate.
//
// OverallScore is the unweighted mean of the component scores, rounded
// to the nearest integer. Ready is purely OverallScore >= threshold:
// a hard per-analyzer error contributes only through its numeric
// score and never short-circuits readiness on its own.
func Compose(face, lighting, audio, positioning types.QualityCheckResult, threshold int) types.CompositeQualitySnapshot {
	sum := face.Score + lighting.Score + audio.Score + positioning.Score
	overall := int(math.Round(float64(sum) / 4))

	return types.CompositeQualitySnapshot{
		Face:         face,
		Lighting:     lighting,
		Audio:        audio,
		Positioning:  positioning,
		OverallScore: overall,
		Ready:        overall >= threshold,
		Timestamp:    time.Now(),
	}
}
