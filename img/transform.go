package img

import (
	"image"
	"image/color"
	"math/rand"
	"runtime"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// Types of image transformations
type TransType int

const NoTrans TransType = 0

const (
	RandomCrop TransType = 1 << iota
	HorizFlip
	Rotate
	ColorJitter
	Normalise
)

// Default transform sets for the training and evaluation pipelines. The
// evaluation set must stay deterministic: resize plus normalisation only.
var (
	TrainTrans = RandomCrop | HorizFlip | Rotate | ColorJitter | Normalise
	EvalTrans  = Normalise
)

var transTypeNames = map[TransType]string{
	RandomCrop:  "RandomCrop",
	HorizFlip:   "HorizFlip",
	Rotate:      "Rotate",
	ColorJitter: "ColorJitter",
	Normalise:   "Normalise",
}

func (t TransType) String() string {
	if t == NoTrans {
		return "None"
	}
	s := []string{}
	for key, name := range transTypeNames {
		if t&key != 0 {
			s = append(s, name)
		}
	}
	sort.Strings(s)
	return strings.Join(s, " ")
}

// Config holds the transform parameters. TargetSize is the square side of
// the output tensor; the augmentation fields only apply when the matching
// TransType bit is set.
type Config struct {
	TargetSize int
	ScaleMin   float64 // random crop side fraction range
	ScaleMax   float64
	FlipProb   float64
	MaxRotate  float64 // degrees either way
	Brightness float64 // jitter half-ranges in percent
	Contrast   float64
	Saturation float64
	Mean       [3]float32 // per channel normalisation
	StdDev     [3]float32
}

// DefaultConfig mirrors the augmentation used for smear crops.
func DefaultConfig(targetSize int) Config {
	return Config{
		TargetSize: targetSize,
		ScaleMin:   0.8,
		ScaleMax:   1.0,
		FlipProb:   0.5,
		MaxRotate:  20,
		Brightness: 10,
		Contrast:   10,
		Saturation: 10,
		Mean:       [3]float32{0.485, 0.456, 0.406},
		StdDev:     [3]float32{0.229, 0.224, 0.225},
	}
}

// Transformer applies a configured sequence of transforms to cropped
// parasite images. Randomised transforms draw from per-thread seeded rngs so
// batches can be prepared in parallel while runs stay reproducible.
type Transformer struct {
	Trans TransType
	Conf  Config
	rng   []*rand.Rand
}

// NewTransformer seeds one rng per worker thread from the master rng.
func NewTransformer(trans TransType, conf Config, rng *rand.Rand) *Transformer {
	t := &Transformer{Trans: trans, Conf: conf}
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		t.rng = append(t.rng, rand.New(rand.NewSource(rng.Int63())))
	}
	return t
}

// Threads returns the number of parallel workers the transformer supports.
func (t *Transformer) Threads() int { return len(t.rng) }

// Apply runs the transform sequence on one crop and returns the CHW tensor.
// thread selects the rng for randomised transforms.
func (t *Transformer) Apply(src image.Image, thread int) []float32 {
	rng := t.rng[thread]
	m := imaging.Clone(src)
	if t.Trans&Rotate != 0 {
		angle := t.Conf.MaxRotate * (2*rng.Float64() - 1)
		m = imaging.Rotate(m, angle, meanColor(m))
	}
	if t.Trans&RandomCrop != 0 {
		m = t.randomCrop(m, rng)
	}
	size := t.Conf.TargetSize
	m = imaging.Resize(m, size, size, imaging.Linear)
	if t.Trans&HorizFlip != 0 && rng.Float64() < t.Conf.FlipProb {
		m = imaging.FlipH(m)
	}
	if t.Trans&ColorJitter != 0 {
		m = imaging.AdjustBrightness(m, t.Conf.Brightness*(2*rng.Float64()-1))
		m = imaging.AdjustContrast(m, t.Conf.Contrast*(2*rng.Float64()-1))
		m = imaging.AdjustSaturation(m, t.Conf.Saturation*(2*rng.Float64()-1))
	}
	pix := ToTensor(m)
	if t.Trans&Normalise != 0 {
		n := size * size
		for ch := 0; ch < 3; ch++ {
			mean, std := t.Conf.Mean[ch], t.Conf.StdDev[ch]
			for i := ch * n; i < (ch+1)*n; i++ {
				pix[i] = (pix[i] - mean) / std
			}
		}
	}
	return pix
}

// crop a random sub-window with side scaled by [ScaleMin, ScaleMax]
func (t *Transformer) randomCrop(m *image.NRGBA, rng *rand.Rand) *image.NRGBA {
	b := m.Bounds()
	scale := t.Conf.ScaleMin + rng.Float64()*(t.Conf.ScaleMax-t.Conf.ScaleMin)
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w > b.Dx() {
		w = b.Dx()
	}
	if h > b.Dy() {
		h = b.Dy()
	}
	if w < 1 || h < 1 || (w == b.Dx() && h == b.Dy()) {
		return m
	}
	x := rng.Intn(b.Dx() - w + 1)
	y := rng.Intn(b.Dy() - h + 1)
	return imaging.Crop(m, image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h))
}

// meanColor averages the crop, used to fill rotation corners so they blend
// with the cell background instead of reading as black wedges.
func meanColor(m *image.NRGBA) color.NRGBA {
	b := m.Bounds()
	n := uint64(b.Dx() * b.Dy())
	if n == 0 {
		return color.NRGBA{A: 255}
	}
	var r, g, bl uint64
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			r += uint64(row[x*4])
			g += uint64(row[x*4+1])
			bl += uint64(row[x*4+2])
		}
	}
	return color.NRGBA{uint8(r / n), uint8(g / n), uint8(bl / n), 255}
}

// ToTensor converts an image to a CHW float32 tensor scaled to [0, 1].
func ToTensor(m *image.NRGBA) []float32 {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	pix := make([]float32, 3*n)
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w*4]
		for x := 0; x < w; x++ {
			pix[y*w+x] = float32(row[x*4]) / 255
			pix[n+y*w+x] = float32(row[x*4+1]) / 255
			pix[2*n+y*w+x] = float32(row[x*4+2]) / 255
		}
	}
	return pix
}
