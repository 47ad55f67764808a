// Package data partitions crop records into train/validation/test splits and
// feeds them to the trainer in shuffled or class-balanced batches.
package data

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/andrekda/malaria-classification/annot"
)

// ErrInvalidRatio indicates split ratios which do not describe a valid
// partition of the record set.
var ErrInvalidRatio = errors.New("invalid split ratio")

// Split shuffles records with a deterministic seeded permutation and cuts
// them into train/validation/test subsets. The test subset takes whatever
// remains after the train and validation cuts. The same seed always yields
// the same membership.
func Split(recs []annot.Record, trainRatio, valRatio float64, seed int64) (train, val, test []annot.Record, err error) {
	if trainRatio < 0 || valRatio < 0 || trainRatio+valRatio > 1 {
		return nil, nil, nil, fmt.Errorf("%w: train=%v val=%v", ErrInvalidRatio, trainRatio, valRatio)
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(recs))
	shuffled := make([]annot.Record, len(recs))
	for i, p := range perm {
		shuffled[i] = recs[p]
	}
	nTrain := int(float64(len(recs)) * trainRatio)
	nVal := int(float64(len(recs)) * (trainRatio + valRatio))
	return shuffled[:nTrain], shuffled[nTrain:nVal], shuffled[nVal:], nil
}

// Weights returns one sampling weight per training record, inverse to the
// frequency of its label within the training split. Summed per label the
// weights are equal across labels, so a weighted sampler draws each stage
// with roughly equal probability regardless of raw class counts.
func Weights(train []annot.Record) []float64 {
	counts := map[string]int{}
	for _, r := range train {
		counts[r.Label]++
	}
	w := make([]float64, len(train))
	for i, r := range train {
		w[i] = 1 / float64(counts[r.Label])
	}
	return w
}
