package nnet

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is one stage of the classifier. Fprop stores whatever Bprop needs
// only when train is set, so the evaluation phase never accumulates state.
type Layer interface {
	Fprop(x *mat.Dense, train bool) *mat.Dense
	Bprop(grad *mat.Dense) *mat.Dense
	String() string
}

// ParamLayer is a layer with trainable parameters.
type ParamLayer interface {
	Layer
	InitParams(rng *rand.Rand)
	UpdateParams(eta, lambda float64)
	Params() (w, b *mat.Dense)
	SetParams(w, b *mat.Dense)
}

// Linear is a fully connected layer: y = x*W + b with W sized nin x nout.
type Linear struct {
	Nin, Nout int
	w, b      *mat.Dense
	x         *mat.Dense
	dw, db    *mat.Dense
}

func NewLinear(nin, nout int) *Linear {
	return &Linear{
		Nin: nin, Nout: nout,
		w: mat.NewDense(nin, nout, nil),
		b: mat.NewDense(1, nout, nil),
	}
}

// Initialise weights from a normal distribution scaled by 1/sqrt(nin).
func (l *Linear) InitParams(rng *rand.Rand) {
	scale := 1 / math.Sqrt(float64(l.Nin))
	for i := 0; i < l.Nin; i++ {
		for j := 0; j < l.Nout; j++ {
			l.w.Set(i, j, rng.NormFloat64()*scale)
		}
	}
	l.b.Zero()
}

func (l *Linear) Fprop(x *mat.Dense, train bool) *mat.Dense {
	if train {
		l.x = x
	} else {
		l.x = nil
	}
	n, _ := x.Dims()
	y := mat.NewDense(n, l.Nout, nil)
	y.Mul(x, l.w)
	for i := 0; i < n; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += l.b.At(0, j)
		}
	}
	return y
}

// Bprop accumulates the parameter gradients and returns the gradient with
// respect to the layer input.
func (l *Linear) Bprop(grad *mat.Dense) *mat.Dense {
	if l.x == nil {
		panic("nnet: Bprop called outside the training phase")
	}
	n, _ := grad.Dims()
	l.dw = mat.NewDense(l.Nin, l.Nout, nil)
	l.dw.Mul(l.x.T(), grad)
	l.db = mat.NewDense(1, l.Nout, nil)
	for i := 0; i < n; i++ {
		row := grad.RawRowView(i)
		for j := range row {
			l.db.Set(0, j, l.db.At(0, j)+row[j])
		}
	}
	dx := mat.NewDense(n, l.Nin, nil)
	dx.Mul(grad, l.w.T())
	return dx
}

// UpdateParams applies the gradients from the last Bprop with learning rate
// eta and weight decay lambda.
func (l *Linear) UpdateParams(eta, lambda float64) {
	if l.dw == nil {
		return
	}
	var step mat.Dense
	if lambda != 0 {
		step.Scale(lambda, l.w)
		step.Add(&step, l.dw)
	} else {
		step.CloneFrom(l.dw)
	}
	step.Scale(eta, &step)
	l.w.Sub(l.w, &step)
	var bstep mat.Dense
	bstep.Scale(eta, l.db)
	l.b.Sub(l.b, &bstep)
	l.dw, l.db = nil, nil
}

func (l *Linear) Params() (w, b *mat.Dense) { return l.w, l.b }

func (l *Linear) SetParams(w, b *mat.Dense) {
	l.w.Copy(w)
	l.b.Copy(b)
}

func (l *Linear) String() string { return fmt.Sprintf("linear(%d,%d)", l.Nin, l.Nout) }

// ReLU zeroes negative activations.
type ReLU struct {
	mask []bool
}

func (l *ReLU) Fprop(x *mat.Dense, train bool) *mat.Dense {
	n, c := x.Dims()
	y := mat.NewDense(n, c, nil)
	if train {
		l.mask = make([]bool, n*c)
	} else {
		l.mask = nil
	}
	for i := 0; i < n; i++ {
		in, out := x.RawRowView(i), y.RawRowView(i)
		for j, v := range in {
			if v > 0 {
				out[j] = v
				if train {
					l.mask[i*c+j] = true
				}
			}
		}
	}
	return y
}

func (l *ReLU) Bprop(grad *mat.Dense) *mat.Dense {
	if l.mask == nil {
		panic("nnet: Bprop called outside the training phase")
	}
	n, c := grad.Dims()
	dx := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		in, out := grad.RawRowView(i), dx.RawRowView(i)
		for j := range in {
			if l.mask[i*c+j] {
				out[j] = in[j]
			}
		}
	}
	return dx
}

func (l *ReLU) String() string { return "relu" }
