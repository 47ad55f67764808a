package img

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/andrekda/malaria-classification/annot"
)

// ErrCropOutOfBounds indicates a bounding box which does not lie within its
// source image.
var ErrCropOutOfBounds = errors.New("crop out of bounds")

// Crop extracts the annotated bounding box from a smear image.
func Crop(src image.Image, box annot.Box) (*image.NRGBA, error) {
	b := src.Bounds()
	r := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Add(b.Min)
	if !r.In(b) || r.Empty() {
		return nil, fmt.Errorf("%w: box %+v in image %dx%d", ErrCropOutOfBounds, box, b.Dx(), b.Dy())
	}
	return imaging.Crop(src, r), nil
}
