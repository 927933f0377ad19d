package analysis_test

import (
	"testing"

	"github.com/visiona/studio-capture/internal/analysis"
	"github.com/visiona/studio-capture/internal/types"
)

// uniformRaster builds an analysis raster with every pixel at value v.
func uniformRaster(v float64) *analysis.Raster {
	r := &analysis.Raster{
		Width:  analysis.RasterWidth,
		Height: analysis.RasterHeight,
		Luma:   make([]float64, analysis.RasterWidth*analysis.RasterHeight),
	}
	for i := range r.Luma {
		r.Luma[i] = v
	}
	return r
}

// checkerRaster alternates values a and b by column parity. Mean is
// (a+b)/2, variance ((a-b)/2)^2, and both half pairs stay balanced.
func checkerRaster(a, b float64) *analysis.Raster {
	r := uniformRaster(0)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if x%2 == 0 {
				r.Luma[y*r.Width+x] = a
			} else {
				r.Luma[y*r.Width+x] = b
			}
		}
	}
	return r
}

// halvesRaster fills the left half with l and the right half with r.
func halvesRaster(l, rv float64) *analysis.Raster {
	r := uniformRaster(0)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if x < r.Width/2 {
				r.Luma[y*r.Width+x] = l
			} else {
				r.Luma[y*r.Width+x] = rv
			}
		}
	}
	return r
}

// uniformFrame builds an RGB24 frame with all channels at v.
func uniformFrame(width, height int, v byte) types.Frame {
	data := make([]byte, width*height*3)
	for i := range data {
		data[i] = v
	}
	return types.Frame{Width: width, Height: height, Data: data}
}

func TestDownsampleGeometry(t *testing.T) {
	frame := uniformFrame(640, 480, 180)

	r, err := analysis.Downsample(frame)
	if err != nil {
		t.Fatalf("Downsample() failed: %v", err)
	}

	if r.Width != analysis.RasterWidth || r.Height != analysis.RasterHeight {
		t.Errorf("raster geometry = %dx%d, want %dx%d",
			r.Width, r.Height, analysis.RasterWidth, analysis.RasterHeight)
	}
	if len(r.Luma) != analysis.RasterWidth*analysis.RasterHeight {
		t.Errorf("luma length = %d, want %d", len(r.Luma), analysis.RasterWidth*analysis.RasterHeight)
	}
	for i, v := range r.Luma {
		if v != 180 {
			t.Fatalf("luma[%d] = %v, want 180", i, v)
		}
	}

	t.Logf("✅ 640x480 frame downsampled to %dx%d raster", r.Width, r.Height)
}

func TestDownsampleRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame types.Frame
	}{
		{"zero geometry", types.Frame{Width: 0, Height: 0}},
		{"truncated data", types.Frame{Width: 320, Height: 240, Data: make([]byte, 100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := analysis.Downsample(tt.frame); err == nil {
				t.Errorf("Downsample() accepted invalid frame")
			}
		})
	}
	t.Log("✅ invalid frames rejected")
}

func TestRasterStatistics(t *testing.T) {
	r := checkerRaster(100, 140)

	if got := r.MeanBrightness(); got != 120 {
		t.Errorf("MeanBrightness() = %v, want 120", got)
	}
	if got := r.Variance(); got != 400 {
		t.Errorf("Variance() = %v, want 400", got)
	}

	h := halvesRaster(200, 20)
	left, right, top, bottom := h.HalfMeans()
	if left != 200 || right != 20 {
		t.Errorf("HalfMeans() left/right = %v/%v, want 200/20", left, right)
	}
	if top != bottom {
		t.Errorf("HalfMeans() top/bottom = %v/%v, want equal", top, bottom)
	}

	t.Logf("✅ raster statistics: mean=120 variance=400 halves=%v/%v", left, right)
}
