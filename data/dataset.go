package data

import (
	"sync"

	"github.com/andrekda/malaria-classification/annot"
)

// Pipe turns a batch of records into input tensors and class labels.
// Implemented by the img crop-and-transform pipeline.
type Pipe interface {
	Features() int
	ExampleBatch(recs []annot.Record, x []float32, y []int) error
}

// Dataset streams batches of transformed crops for one split. The next batch
// is prepared in the background while the current one is being consumed, with
// two host buffers cycled between loader and consumer.
type Dataset struct {
	Records   []annot.Record
	Samples   int
	BatchSize int
	Batches   int

	pipe    Pipe
	sampler Sampler
	indexes []int
	x       [2][]float32
	y       [2][]int
	n       [2]int
	errs    [2]error
	buf     int
	batch   int
	sync.WaitGroup
}

// NewDataset wraps one split of records. batchSize 0 or larger than the
// split means a single batch per epoch.
func NewDataset(recs []annot.Record, pipe Pipe, batchSize int, sampler Sampler) *Dataset {
	d := &Dataset{Records: recs, Samples: len(recs), pipe: pipe, sampler: sampler}
	if d.Samples == 0 {
		return d
	}
	if batchSize <= 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	nfeat := pipe.Features()
	for i := range d.x {
		d.x[i] = make([]float32, nfeat*d.BatchSize)
		d.y[i] = make([]int, d.BatchSize)
	}
	return d
}

// NextEpoch resamples the epoch indexes and kicks off the first batch load.
func (d *Dataset) NextEpoch() {
	d.Wait()
	d.indexes = d.sampler.Sample()
	d.batch = 0
	d.loadBatch()
}

// NextBatch blocks until the pending batch is ready and returns its inputs,
// labels and size, then starts loading the next one. Any failure inside the
// crop pipeline surfaces here and is fatal to the run.
func (d *Dataset) NextBatch() (x []float32, y []int, n int, err error) {
	d.Wait()
	buf := d.buf
	if err := d.errs[buf]; err != nil {
		return nil, nil, 0, err
	}
	d.batch = (d.batch + 1) % d.Batches
	d.buf = (d.buf + 1) % 2
	d.loadBatch()
	n = d.n[buf]
	nfeat := d.pipe.Features()
	return d.x[buf][:n*nfeat], d.y[buf][:n], n, nil
}

// load the next batch of crops in the background
func (d *Dataset) loadBatch() {
	d.Add(1)
	buf, batch := d.buf, d.batch
	go func() {
		defer d.Done()
		start := batch * d.BatchSize
		end := start + d.BatchSize
		if end > d.Samples {
			end = d.Samples
		}
		recs := make([]annot.Record, end-start)
		for i, ix := range d.indexes[start:end] {
			recs[i] = d.Records[ix]
		}
		d.n[buf] = len(recs)
		d.errs[buf] = d.pipe.ExampleBatch(recs, d.x[buf], d.y[buf])
	}()
}
