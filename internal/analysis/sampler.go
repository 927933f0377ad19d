// Package analysis implements the capture-quality gating pipeline: a
// signal sampler, four heuristic analyzers (face presence, lighting,
// audio level, positioning), the composite readiness scorer and the
// periodic analysis scheduler.
//
// The analyzers are intentionally crude proxies built on image
// statistics, not real face recognition. They judge "is there a
// textured, lit, audible subject roughly centered in frame".
package analysis

import (
	"fmt"

	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/types"
)

// Fixed analysis raster: every video analyzer downsamples the current
// frame to this geometry before computing statistics.
const (
	RasterWidth  = 160
	RasterHeight = 120
)

// Raster is a downsampled luma view of one video frame.
type Raster struct {
	Width  int
	Height int
	Luma   []float64 // per-pixel brightness, mean of R/G/B, 0-255
}

// Sampler grabs a single video frame or audio spectrum snapshot on
// demand from the currently acquired stream. Pure capture, no
// judgment.
type Sampler struct {
	devices *capture.Manager
}

// NewSampler creates a sampler bound to the device manager's stream.
func NewSampler(devices *capture.Manager) *Sampler {
	return &Sampler{devices: devices}
}

// Sample grabs the current frame and downsamples it to the analysis
// raster.
func (s *Sampler) Sample() (*Raster, error) {
	stream := s.devices.Stream()
	if stream == nil {
		return nil, fmt.Errorf("no stream acquired")
	}
	frame, err := stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("frame grab: %w", err)
	}
	return Downsample(frame)
}

// SpectrumSample grabs the current frequency-domain audio snapshot.
func (s *Sampler) SpectrumSample() (types.Spectrum, error) {
	stream := s.devices.Stream()
	if stream == nil {
		return types.Spectrum{}, fmt.Errorf("no stream acquired")
	}
	return stream.Spectrum()
}

// Downsample reduces an RGB24 frame to the fixed analysis raster by
// nearest-neighbor sampling.
func Downsample(frame types.Frame) (*Raster, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("frame has no geometry")
	}
	if len(frame.Data) < frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame data truncated: have %d bytes, need %d",
			len(frame.Data), frame.Width*frame.Height*3)
	}

	r := &Raster{
		Width:  RasterWidth,
		Height: RasterHeight,
		Luma:   make([]float64, RasterWidth*RasterHeight),
	}

	for y := 0; y < RasterHeight; y++ {
		srcY := y * frame.Height / RasterHeight
		for x := 0; x < RasterWidth; x++ {
			srcX := x * frame.Width / RasterWidth
			i := (srcY*frame.Width + srcX) * 3
			r.Luma[y*RasterWidth+x] = (float64(frame.Data[i]) +
				float64(frame.Data[i+1]) +
				float64(frame.Data[i+2])) / 3
		}
	}

	return r, nil
}

// MeanBrightness returns the mean luma over the raster.
func (r *Raster) MeanBrightness() float64 {
	if len(r.Luma) == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.Luma {
		sum += v
	}
	return sum / float64(len(r.Luma))
}

// Variance returns the pixel-brightness variance over the raster.
func (r *Raster) Variance() float64 {
	if len(r.Luma) == 0 {
		return 0
	}
	mean := r.MeanBrightness()
	var total float64
	for _, v := range r.Luma {
		d := v - mean
		total += d * d
	}
	return total / float64(len(r.Luma))
}

// HalfMeans returns the mean brightness of the left/right and
// top/bottom halves of the raster, used for centering analysis.
func (r *Raster) HalfMeans() (left, right, top, bottom float64) {
	var lSum, rSum, tSum, bSum float64
	var lN, rN, tN, bN int

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			v := r.Luma[y*r.Width+x]
			if x < r.Width/2 {
				lSum += v
				lN++
			} else {
				rSum += v
				rN++
			}
			if y < r.Height/2 {
				tSum += v
				tN++
			} else {
				bSum += v
				bN++
			}
		}
	}

	if lN > 0 {
		left = lSum / float64(lN)
	}
	if rN > 0 {
		right = rSum / float64(rN)
	}
	if tN > 0 {
		top = tSum / float64(tN)
	}
	if bN > 0 {
		bottom = bSum / float64(bN)
	}
	return left, right, top, bottom
}
