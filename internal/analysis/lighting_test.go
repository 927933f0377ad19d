package analysis_test

import (
	"testing"

	"github.com/visiona/studio-capture/internal/analysis"
	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/types"
)

// TestLightingAnalyzerBands validates the dark / optimal / bright
// ladder with the default band boundaries (dark < 60, bright > 200).
func TestLightingAnalyzerBands(t *testing.T) {
	a := analysis.NewLightingAnalyzer(config.DefaultQuality().Lighting)

	tests := []struct {
		name       string
		raster     *analysis.Raster
		wantScore  int
		wantStatus types.CheckStatus
	}{
		{"nil raster", nil, 0, types.StatusChecking},
		// 0 scales to 0, clamped to floor 30
		{"all black clamps to floor", uniformRaster(0), 30, types.StatusError},
		// 30/60*70 = 35
		{"dim", uniformRaster(30), 35, types.StatusError},
		// 10/60*70 = 12, clamped to floor 30
		{"very dark clamps to floor", uniformRaster(10), 30, types.StatusError},
		// 70 + (130-60)/140*30 = 85
		{"optimal middle", uniformRaster(130), 85, types.StatusSuccess},
		// 70 + (200-60)/140*30 = 100
		{"optimal top", uniformRaster(200), 100, types.StatusSuccess},
		// 100 - (220-200)/55*30 = 89
		{"too bright", uniformRaster(220), 89, types.StatusWarning},
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
	t.Log("✅ lighting band ladder verified")
}

func TestLightingScoresBounded(t *testing.T) {
	a := analysis.NewLightingAnalyzer(config.DefaultQuality().Lighting)

	for v := 0.0; v <= 255; v++ {
		got := a.Analyze(uniformRaster(v))
		if got.Score < 30 || got.Score > 100 {
			t.Fatalf("score %d out of [30,100] at brightness %v", got.Score, v)
		}
	}
	t.Log("✅ lighting scores clamped to [30,100] across full brightness range")
}
