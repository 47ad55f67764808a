package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrekda/malaria-classification/annot"
)

func makeRecords(labels ...string) []annot.Record {
	recs := make([]annot.Record, len(labels))
	for i, label := range labels {
		recs[i] = annot.Record{
			Image: fmt.Sprintf("img_%03d.png", i),
			Label: label,
			Box:   annot.Box{X: i, Y: i, W: 32, H: 32},
		}
	}
	return recs
}

func TestSplitPartition(t *testing.T) {
	recs := makeRecords("ring", "ring", "ring", "schizont", "trophozoite", "ring",
		"gametocyte", "schizont", "ring", "trophozoite", "ring", "ring", "ring")

	train, val, test, err := Split(recs, 0.8, 0.15, 42)
	require.NoError(t, err)
	assert.Equal(t, len(recs), len(train)+len(val)+len(test))

	// pairwise disjoint: every source image appears in exactly one split
	seen := map[string]int{}
	for _, split := range [][]annot.Record{train, val, test} {
		for _, r := range split {
			seen[r.Image]++
		}
	}
	require.Len(t, seen, len(recs))
	for img, n := range seen {
		assert.Equal(t, 1, n, "record %s assigned to %d splits", img, n)
	}
}

func TestSplitDeterministic(t *testing.T) {
	recs := makeRecords("ring", "ring", "schizont", "trophozoite", "ring", "gametocyte", "ring")
	t1, v1, s1, err := Split(recs, 0.6, 0.2, 7)
	require.NoError(t, err)
	t2, v2, s2, err := Split(recs, 0.6, 0.2, 7)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, s1, s2)

	t3, _, _, err := Split(recs, 0.6, 0.2, 8)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t3, "different seeds should permute differently")
}

func TestSplitInvalidRatio(t *testing.T) {
	recs := makeRecords("ring", "schizont")
	for _, ratios := range [][2]float64{{0.9, 0.2}, {-0.1, 0.5}, {0.5, -0.1}, {1.2, 0}} {
		_, _, _, err := Split(recs, ratios[0], ratios[1], 1)
		require.Error(t, err, "ratios %v", ratios)
		assert.ErrorIs(t, err, ErrInvalidRatio)
	}
}

// four records split 0.5/0.25 must always cut 2/1/1 whatever the seed
func TestSplitScenario(t *testing.T) {
	recs := makeRecords("ring", "ring", "ring", "schizont")
	for seed := int64(0); seed < 20; seed++ {
		train, val, test, err := Split(recs, 0.5, 0.25, seed)
		require.NoError(t, err)
		assert.Len(t, train, 2)
		assert.Len(t, val, 1)
		assert.Len(t, test, 1)
	}
}

func TestWeightsInverseToSplitCounts(t *testing.T) {
	// weights follow the in-split counts, not the global distribution
	w := Weights(makeRecords("ring", "ring"))
	assert.Equal(t, []float64{0.5, 0.5}, w)

	w = Weights(makeRecords("ring", "schizont"))
	assert.Equal(t, []float64{1.0, 1.0}, w)

	w = Weights(makeRecords("ring", "ring", "ring", "schizont"))
	assert.Equal(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3, 1.0}, w)
}

func TestWeightsBalancePerLabel(t *testing.T) {
	train := makeRecords("ring", "ring", "ring", "ring", "ring", "ring", "ring",
		"schizont", "schizont", "trophozoite")
	w := Weights(train)
	totals := map[string]float64{}
	for i, r := range train {
		totals[r.Label] += w[i]
	}
	for label, total := range totals {
		assert.InDelta(t, 1.0, total, 1e-12, "label %s", label)
	}
}
