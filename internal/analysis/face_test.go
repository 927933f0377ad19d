package analysis_test

import (
	"testing"

	"github.com/visiona/studio-capture/internal/analysis"
	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// TestFaceAnalyzerBands validates the brightness/variance ladder.
//
// Contract:
//   - near-black raster (brightness < dark band) scores 5 / error
//   - flat raster (variance < flat band) scores 25 / error
//   - mid-variance raster scores 60 / warning
//   - high-variance raster scales into [70,95] / success
//   - nil raster reports "camera not ready"
func TestFaceAnalyzerBands(t *testing.T) {
	a := analysis.NewFaceAnalyzer(config.DefaultQuality().Face)

	tests := []struct {
		name       string
		raster     *analysis.Raster
		wantScore  int
		wantStatus types.CheckStatus
	}{
		{"nil raster", nil, 0, types.StatusError},
		{"all black", uniformRaster(0), 5, types.StatusError},
		{"near black", uniformRaster(5), 5, types.StatusError},
		{"flat gray", uniformRaster(128), 25, types.StatusError},
		// checker(100,140): variance 400, in [100,500)
		{"partial texture", checkerRaster(100, 140), 60, types.StatusWarning},
		// checker(100,160): variance 900 -> 70 + 900/50 = 88
		{"good texture", checkerRaster(100, 160), 88, types.StatusSuccess},
		// checker(50,200): variance 5625 -> capped at 95
		{"rich texture", checkerRaster(50, 200), 95, types.StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.raster)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
		})
	}
	t.Log("✅ face band ladder verified")
}

func TestFaceAnalyzerScoreBounds(t *testing.T) {
	a := analysis.NewFaceAnalyzer(config.DefaultQuality().Face)

	// Sweep a grid of checker contrasts; every score must stay in [0,100].
	for lo := 0.0; lo <= 200; lo += 25 {
		for hi := lo; hi <= 255; hi += 25 {
			got := a.Analyze(checkerRaster(lo, hi))
			if got.Score < 0 || got.Score > 100 {
				t.Fatalf("score %d out of bounds for checker(%v,%v)", got.Score, lo, hi)
			}
		}
	}
	t.Log("✅ face scores bounded in [0,100] across contrast sweep")
}
