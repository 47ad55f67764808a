package img

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrekda/malaria-classification/annot"
)

// writes a noisy RGB test image to dir and returns its filename
func writeTestImage(t *testing.T, dir, name string, w, h int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255,
			})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m))
	return name
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 64, 48, 1)
	loader := NewLoader(dir)

	m, err := loader.Load(name)
	require.NoError(t, err)
	assert.Equal(t, 64, m.Bounds().Dx())
	assert.Equal(t, 48, m.Bounds().Dy())

	// second load served from cache
	m2, err := loader.Load(name)
	require.NoError(t, err)
	assert.Same(t, m, m2)
}

func TestLoaderMissing(t *testing.T) {
	loader := NewLoader(t.TempDir())
	_, err := loader.Load("nope.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageLoad)
}

func TestLoaderCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0644))
	_, err := NewLoader(dir).Load("bad.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageLoad)
}

func TestCrop(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	crop, err := Crop(m, annot.Box{X: 10, Y: 20, W: 30, H: 40})
	require.NoError(t, err)
	assert.Equal(t, 30, crop.Bounds().Dx())
	assert.Equal(t, 40, crop.Bounds().Dy())
}

func TestCropOutOfBounds(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for _, box := range []annot.Box{
		{X: 90, Y: 0, W: 20, H: 20},
		{X: 0, Y: 70, W: 10, H: 20},
		{X: -5, Y: 0, W: 10, H: 10},
		{X: 0, Y: 0, W: 0, H: 0},
	} {
		_, err := Crop(m, box)
		require.Error(t, err, "box %+v", box)
		assert.ErrorIs(t, err, ErrCropOutOfBounds)
	}
}

func TestEvalTransformShape(t *testing.T) {
	conf := DefaultConfig(32)
	trans := NewTransformer(EvalTrans, conf, rand.New(rand.NewSource(1)))
	for _, size := range [][2]int{{32, 32}, {100, 80}, {7, 13}, {320, 240}} {
		m := image.NewNRGBA(image.Rect(0, 0, size[0], size[1]))
		pix := trans.Apply(m, 0)
		assert.Len(t, pix, 3*32*32, "input %v", size)
	}
}

func TestEvalTransformDeterministic(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 60, 60, 2)
	loader := NewLoader(dir)
	m, err := loader.Load(name)
	require.NoError(t, err)

	conf := DefaultConfig(24)
	a := NewTransformer(EvalTrans, conf, rand.New(rand.NewSource(1))).Apply(m, 0)
	b := NewTransformer(EvalTrans, conf, rand.New(rand.NewSource(99))).Apply(m, 0)
	assert.Equal(t, a, b, "eval transform must not depend on the seed")
}

func TestTrainTransformShape(t *testing.T) {
	conf := DefaultConfig(28)
	trans := NewTransformer(TrainTrans, conf, rand.New(rand.NewSource(3)))
	m := image.NewNRGBA(image.Rect(0, 0, 45, 37))
	for i := 0; i < 10; i++ {
		pix := trans.Apply(m, 0)
		assert.Len(t, pix, 3*28*28)
	}
}

func TestTrainTransformOversizedScale(t *testing.T) {
	// a scale range above 1 is rejected by config validation; the crop must
	// still cap the window at the image instead of panicking
	conf := DefaultConfig(28)
	conf.ScaleMin, conf.ScaleMax = 1.2, 1.5
	trans := NewTransformer(TrainTrans, conf, rand.New(rand.NewSource(9)))
	m := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for i := 0; i < 10; i++ {
		pix := trans.Apply(m, 0)
		assert.Len(t, pix, 3*28*28)
	}
}

func TestRotateFillMatchesBackground(t *testing.T) {
	// rotation corners take the crop's mean colour, so a uniform white crop
	// must stay white rather than gaining dark wedges
	m := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	conf := DefaultConfig(32)
	conf.MaxRotate = 45
	trans := NewTransformer(Rotate, conf, rand.New(rand.NewSource(10)))
	for i := 0; i < 5; i++ {
		for _, v := range trans.Apply(m, 0) {
			assert.InDelta(t, 1.0, float64(v), 0.02)
		}
	}
}

func TestToTensorValues(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	m.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	m.Set(1, 0, color.NRGBA{R: 0, G: 255, B: 127, A: 255})
	pix := ToTensor(m)
	require.Len(t, pix, 6)
	assert.InDelta(t, 1.0, pix[0], 1e-6) // R channel
	assert.InDelta(t, 0.0, pix[1], 1e-6)
	assert.InDelta(t, 0.0, pix[2], 1e-6) // G channel
	assert.InDelta(t, 1.0, pix[3], 1e-6)
	assert.InDelta(t, 0.0, pix[4], 1e-6) // B channel
	assert.InDelta(t, 127.0/255, pix[5], 1e-6)
}

func TestPipelineBatch(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 120, 100, 4)
	recs := []annot.Record{
		{Image: name, Label: "ring", Box: annot.Box{X: 0, Y: 0, W: 40, H: 40}},
		{Image: name, Label: "schizont", Box: annot.Box{X: 50, Y: 30, W: 40, H: 40}},
		{Image: name, Label: "ring", Box: annot.Box{X: 20, Y: 50, W: 40, H: 40}},
	}
	labels := annot.NewLabelIndex(recs)
	trans := NewTransformer(EvalTrans, DefaultConfig(16), rand.New(rand.NewSource(5)))
	pipe := NewPipeline(NewLoader(dir), trans, labels)

	x := make([]float32, len(recs)*pipe.Features())
	y := make([]int, len(recs))
	require.NoError(t, pipe.ExampleBatch(recs, x, y))
	assert.Equal(t, []int{0, 1, 0}, y)
}

func TestPipelineBadBox(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 50, 50, 6)
	recs := []annot.Record{
		{Image: name, Label: "ring", Box: annot.Box{X: 40, Y: 40, W: 40, H: 40}},
	}
	labels := annot.NewLabelIndex(recs)
	trans := NewTransformer(EvalTrans, DefaultConfig(16), rand.New(rand.NewSource(7)))
	pipe := NewPipeline(NewLoader(dir), trans, labels)
	err := pipe.ExampleBatch(recs, make([]float32, pipe.Features()), make([]int, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCropOutOfBounds)
}

func TestPipelineUnknownLabel(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 50, 50, 11)
	labels := annot.NewLabelIndexFromNames([]string{"ring", "schizont"})
	trans := NewTransformer(EvalTrans, DefaultConfig(16), rand.New(rand.NewSource(12)))
	pipe := NewPipeline(NewLoader(dir), trans, labels)
	recs := []annot.Record{
		{Image: name, Label: "gametocyte", Box: annot.Box{X: 0, Y: 0, W: 40, H: 40}},
	}
	err := pipe.ExampleBatch(recs, make([]float32, pipe.Features()), make([]int, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gametocyte")
}

func TestSampleStats(t *testing.T) {
	dir := t.TempDir()
	name := writeTestImage(t, dir, "smear.png", 80, 80, 8)
	recs := []annot.Record{
		{Image: name, Label: "ring", Box: annot.Box{X: 0, Y: 0, W: 40, H: 40}},
		{Image: name, Label: "ring", Box: annot.Box{X: 40, Y: 40, W: 40, H: 40}},
	}
	mean, std, err := SampleStats(NewLoader(dir), recs, 16, 0, 1)
	require.NoError(t, err)
	for ch := 0; ch < 3; ch++ {
		// uniform noise: mean near 0.5 with non-trivial spread
		assert.InDelta(t, 0.5, float64(mean[ch]), 0.1)
		assert.Greater(t, float64(std[ch]), 0.02)
	}
}

func TestSaliencyOverlay(t *testing.T) {
	crop := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	grad := make([]float32, 3*16*16)
	for i := range grad {
		grad[i] = float32(i % 7)
	}
	over, err := SaliencyOverlay(crop, grad, 16, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 40, over.Bounds().Dx())

	_, err = SaliencyOverlay(crop, grad[:10], 16, 0.5)
	require.Error(t, err)
}
