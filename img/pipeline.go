package img

import (
	"fmt"
	"sync"

	"github.com/andrekda/malaria-classification/annot"
)

// Pipeline is the crop-and-transform stage: given a record it loads the
// referenced smear image, crops the bounding box and applies the configured
// transforms, producing a fixed-shape tensor and class index.
type Pipeline struct {
	loader *Loader
	trans  *Transformer
	labels *annot.LabelIndex
}

func NewPipeline(loader *Loader, trans *Transformer, labels *annot.LabelIndex) *Pipeline {
	return &Pipeline{loader: loader, trans: trans, labels: labels}
}

// Loader returns the underlying image store loader.
func (p *Pipeline) Loader() *Loader { return p.loader }

// Features returns the flattened tensor size per example.
func (p *Pipeline) Features() int {
	return 3 * p.trans.Conf.TargetSize * p.trans.Conf.TargetSize
}

// Example produces the tensor and label for one record on the given thread.
func (p *Pipeline) Example(rec annot.Record, thread int) ([]float32, int, error) {
	src, err := p.loader.Load(rec.Image)
	if err != nil {
		return nil, 0, err
	}
	crop, err := Crop(src, rec.Box)
	if err != nil {
		return nil, 0, err
	}
	class, ok := p.labels.Index(rec.Label)
	if !ok {
		return nil, 0, fmt.Errorf("label %q not in class vocabulary", rec.Label)
	}
	return p.trans.Apply(crop, thread), class, nil
}

// ExampleBatch fills x and y for a batch of records, transforming crops in
// parallel across the transformer's worker threads. The first failure aborts
// the batch.
func (p *Pipeline) ExampleBatch(recs []annot.Record, x []float32, y []int) error {
	nfeat := p.Features()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	queue := make(chan int, len(recs))
	for thread := 0; thread < p.trans.Threads(); thread++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()
			for i := range queue {
				pix, class, err := p.Example(recs[i], thread)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				copy(x[i*nfeat:(i+1)*nfeat], pix)
				y[i] = class
			}
		}(thread)
	}
	for i := range recs {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return firstErr
}
