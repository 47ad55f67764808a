package img

import (
	"fmt"
	"math/rand"

	"github.com/andrekda/malaria-classification/annot"
	"github.com/andrekda/malaria-classification/stats"
)

// SampleStats estimates per-channel mean and stddev of the training crops,
// for use as the normalisation constants. At most maxSamples records are
// inspected, chosen by a seeded permutation.
func SampleStats(loader *Loader, recs []annot.Record, size, maxSamples int, seed int64) (mean, std [3]float32, err error) {
	n := len(recs)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(recs))
	plain := NewTransformer(NoTrans, Config{TargetSize: size}, rand.New(rand.NewSource(seed)))
	stat := [3]*stats.Average{new(stats.Average), new(stats.Average), new(stats.Average)}
	for _, ix := range perm[:n] {
		rec := recs[ix]
		src, err := loader.Load(rec.Image)
		if err != nil {
			return mean, std, err
		}
		crop, err := Crop(src, rec.Box)
		if err != nil {
			return mean, std, err
		}
		pix := plain.Apply(crop, 0)
		area := size * size
		for ch := 0; ch < 3; ch++ {
			for _, v := range pix[ch*area : (ch+1)*area] {
				stat[ch].Add(float64(v))
			}
		}
	}
	for ch, s := range stat {
		if s.Count == 0 || s.StdDev == 0 {
			return mean, std, fmt.Errorf("cannot estimate channel stats from %d samples", n)
		}
		mean[ch] = float32(s.Mean)
		std[ch] = float32(s.StdDev)
	}
	return mean, std, nil
}
