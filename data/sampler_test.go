package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformSamplerCoversAll(t *testing.T) {
	s := NewUniformSampler(10, true, 3)
	idx := s.Sample()
	require.Len(t, idx, 10)
	seen := map[int]bool{}
	for _, i := range idx {
		seen[i] = true
	}
	assert.Len(t, seen, 10)
}

func TestUniformSamplerSequential(t *testing.T) {
	s := NewUniformSampler(4, false, 0)
	assert.Equal(t, []int{0, 1, 2, 3}, s.Sample())
}

func TestWeightedSamplerDeterministic(t *testing.T) {
	w := []float64{0.5, 0.5, 1.0}
	a := NewWeightedSampler(w, 11).Sample()
	b := NewWeightedSampler(w, 11).Sample()
	assert.Equal(t, a, b)
}

// with inverse-frequency weights both classes should be drawn about equally
// often even though class 0 outnumbers class 1 nine to one
func TestWeightedSamplerBalances(t *testing.T) {
	labels := make([]int, 100)
	weights := make([]float64, 100)
	for i := range labels {
		if i < 90 {
			labels[i] = 0
			weights[i] = 1.0 / 90
		} else {
			labels[i] = 1
			weights[i] = 1.0 / 10
		}
	}
	s := NewWeightedSampler(weights, 42)
	counts := [2]int{}
	epochs := 200
	for e := 0; e < epochs; e++ {
		for _, ix := range s.Sample() {
			counts[labels[ix]]++
		}
	}
	total := float64(counts[0] + counts[1])
	frac := float64(counts[0]) / total
	assert.InDelta(t, 0.5, frac, 0.02, "class draw fractions %v", counts)
}
