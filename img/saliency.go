package img

import (
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"gonum.org/v1/plot/palette/moreland"
)

// SaliencyOverlay renders a CHW input gradient as a heat map blended over the
// crop it was computed for. Gradient magnitudes are aggregated over channels
// and normalised to [0, 1] before colour mapping, so only relative influence
// is shown.
func SaliencyOverlay(crop image.Image, grad []float32, size int, alpha float64) (*image.NRGBA, error) {
	area := size * size
	if len(grad) != 3*area {
		return nil, fmt.Errorf("saliency: gradient length %d does not match size %d", len(grad), size)
	}
	mag := make([]float64, area)
	maxVal := 0.0
	for i := 0; i < area; i++ {
		v := math.Abs(float64(grad[i])) + math.Abs(float64(grad[area+i])) + math.Abs(float64(grad[2*area+i]))
		mag[i] = v
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(1)
	heat := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c, err := cmap.At(mag[y*size+x] / maxVal)
			if err != nil {
				return nil, fmt.Errorf("saliency: %w", err)
			}
			heat.Set(x, y, c)
		}
	}

	b := crop.Bounds()
	scaled := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), heat, heat.Bounds(), draw.Src, nil)
	base := imaging.Clone(crop)
	return imaging.Overlay(base, scaled, image.Pt(0, 0), alpha), nil
}

// SavePNG writes an image to path in PNG format.
func SavePNG(path string, m image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return imaging.Encode(f, m, imaging.PNG)
}
