// Package nnet implements the stage classifier and its training loop.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Network is the classifier applied to flattened crop tensors. The rest of
// the pipeline treats it as opaque: it is either initialised fresh or
// restored from a checkpoint and fine-tuned.
type Network struct {
	Layers   []Layer
	Nin      int
	Hidden   int
	Classes  int
	training bool
}

// New builds a network for nin input features and the given class count.
// With hidden > 0 a ReLU hidden layer sits between input and classifier
// head, otherwise the model is a single linear layer.
func New(nin, hidden, classes int) *Network {
	n := &Network{Nin: nin, Hidden: hidden, Classes: classes}
	if hidden > 0 {
		n.Layers = []Layer{NewLinear(nin, hidden), &ReLU{}, NewLinear(hidden, classes)}
	} else {
		n.Layers = []Layer{NewLinear(nin, classes)}
	}
	return n
}

// InitWeights initialises all parameter layers from the given rng.
func (n *Network) InitWeights(rng *rand.Rand) {
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			l.InitParams(rng)
		}
	}
}

// SetTraining flips the phase flag. Parameter updates are only applied while
// it is set; the evaluation phase reads but never mutates the model.
func (n *Network) SetTraining(train bool) { n.training = train }

// Training reports the current phase.
func (n *Network) Training() bool { return n.training }

// Fprop feeds the batch forward and returns the class logits.
func (n *Network) Fprop(x *mat.Dense) *mat.Dense {
	for _, layer := range n.Layers {
		x = layer.Fprop(x, n.training)
	}
	return x
}

// Bprop propagates the output gradient back through all layers and returns
// the gradient with respect to the input batch.
func (n *Network) Bprop(grad *mat.Dense) *mat.Dense {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Bprop(grad)
	}
	return grad
}

// Update applies the accumulated gradients. Outside the training phase this
// is a no-op so evaluation can never move the weights.
func (n *Network) Update(eta, lambda float64) {
	if !n.training {
		return
	}
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			l.UpdateParams(eta, lambda)
		}
	}
}

// Predict returns the argmax class per row of the logits for x.
func (n *Network) Predict(x *mat.Dense) []int {
	logits := n.Fprop(x)
	rows, _ := logits.Dims()
	pred := make([]int, rows)
	for i := range pred {
		pred[i] = argmax(logits.RawRowView(i))
	}
	return pred
}

// InputGradient runs one example forward and backward and returns the
// gradient of the given class score with respect to the input pixels, for
// saliency rendering. The weights are left untouched.
func (n *Network) InputGradient(pix []float32, class int) []float32 {
	x := Tensor(pix, 1, len(pix))
	wasTraining := n.training
	n.training = true
	n.Fprop(x)
	grad := mat.NewDense(1, n.Classes, nil)
	grad.Set(0, class, 1)
	dx := n.Bprop(grad)
	n.training = wasTraining
	// discard the accumulated parameter gradients
	for _, layer := range n.Layers {
		if l, ok := layer.(*Linear); ok {
			l.dw, l.db = nil, nil
		}
	}
	out := make([]float32, len(pix))
	for i, v := range dx.RawRowView(0) {
		out[i] = float32(v)
	}
	return out
}

func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %s", i, layer)
	}
	return strings.Join(s, "\n")
}

// Tensor converts a flat float32 batch buffer to an n x nfeat matrix.
func Tensor(x []float32, n, nfeat int) *mat.Dense {
	m := mat.NewDense(n, nfeat, nil)
	for i := 0; i < n; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = float64(x[i*nfeat+j])
		}
	}
	return m
}

// Softmax converts logits to row-wise class probabilities.
func Softmax(logits *mat.Dense) *mat.Dense {
	n, c := logits.Dims()
	p := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		in, out := logits.RawRowView(i), p.RawRowView(i)
		max := in[argmax(in)]
		sum := 0.0
		for j, v := range in {
			out[j] = math.Exp(v - max)
			sum += out[j]
		}
		for j := range out {
			out[j] /= sum
		}
	}
	return p
}

// LossGrad computes the mean categorical cross-entropy of the probabilities
// against the labels, and the gradient at the logits: (p - y) / batch. This
// pairing with Softmax gives the usual softmax cross-entropy backward pass.
func LossGrad(probs *mat.Dense, labels []int) (loss float64, grad *mat.Dense) {
	n, c := probs.Dims()
	grad = mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		p, g := probs.RawRowView(i), grad.RawRowView(i)
		loss -= math.Log(math.Max(p[labels[i]], 1e-12))
		for j := range g {
			g[j] = p[j] / float64(n)
		}
		g[labels[i]] -= 1 / float64(n)
	}
	return loss / float64(n), grad
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}
