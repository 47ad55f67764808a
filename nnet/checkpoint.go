package nnet

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Checkpoint is the single artifact written at the end of a run: the trained
// parameter state plus everything needed to reapply the model to new crops.
type Checkpoint struct {
	RunID   string
	Classes []string
	Size    int // crop target size
	Mean    [3]float32
	StdDev  [3]float32
	Net     NetState
}

// NetState is the gob-encodable parameter state of a network.
type NetState struct {
	Nin, Hidden, Classes int
	Layers               []LayerState
}

// LayerState holds one linear layer's weights in row-major order.
type LayerState struct {
	Rows, Cols int
	W, B       []float64
}

// State captures the current parameters of the network.
func (n *Network) State() NetState {
	s := NetState{Nin: n.Nin, Hidden: n.Hidden, Classes: n.Classes}
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			w, b := l.Params()
			rows, cols := w.Dims()
			ls := LayerState{Rows: rows, Cols: cols,
				W: append([]float64{}, w.RawMatrix().Data...),
				B: append([]float64{}, b.RawMatrix().Data...)}
			s.Layers = append(s.Layers, ls)
		}
	}
	return s
}

// FromState rebuilds a network from saved parameter state, e.g. to restore a
// pretrained model before fine-tuning or evaluation.
func FromState(s NetState) (*Network, error) {
	net := New(s.Nin, s.Hidden, s.Classes)
	i := 0
	for _, layer := range net.Layers {
		l, ok := layer.(ParamLayer)
		if !ok {
			continue
		}
		if i >= len(s.Layers) {
			return nil, fmt.Errorf("checkpoint: expected %d parameter layers, got %d", i+1, len(s.Layers))
		}
		ls := s.Layers[i]
		w, _ := l.Params()
		rows, cols := w.Dims()
		if rows != ls.Rows || cols != ls.Cols {
			return nil, fmt.Errorf("checkpoint: layer %d shape %dx%d does not match %dx%d", i, ls.Rows, ls.Cols, rows, cols)
		}
		l.SetParams(mat.NewDense(ls.Rows, ls.Cols, ls.W), mat.NewDense(1, ls.Cols, ls.B))
		i++
	}
	return net, nil
}

// Save writes the checkpoint to path in gob format.
func (c *Checkpoint) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by Save.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer f.Close()
	c := new(Checkpoint)
	if err := gob.NewDecoder(f).Decode(c); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return c, nil
}
