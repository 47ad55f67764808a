package stats

import (
	"fmt"
	"strings"
)

// Confusion is a KxK confusion matrix. Counts[i][j] is the number of samples
// with true class i predicted as class j.
type Confusion struct {
	Counts [][]int
	total  int
}

// NewConfusion allocates an empty matrix for k classes.
func NewConfusion(k int) *Confusion {
	m := &Confusion{Counts: make([][]int, k)}
	for i := range m.Counts {
		m.Counts[i] = make([]int, k)
	}
	return m
}

// Collect builds a confusion matrix from parallel truth and prediction slices.
func Collect(k int, truth, pred []int) *Confusion {
	m := NewConfusion(k)
	for i := range truth {
		m.Add(truth[i], pred[i])
	}
	return m
}

// Add records one (true, predicted) pair.
func (m *Confusion) Add(truth, pred int) {
	m.Counts[truth][pred]++
	m.total++
}

// Support returns the number of samples with true class i.
func (m *Confusion) Support(i int) int {
	n := 0
	for _, c := range m.Counts[i] {
		n += c
	}
	return n
}

// Accuracy is the fraction of samples on the matrix diagonal.
func (m *Confusion) Accuracy() float64 {
	if m.total == 0 {
		return 0
	}
	correct := 0
	for i := range m.Counts {
		correct += m.Counts[i][i]
	}
	return float64(correct) / float64(m.total)
}

// Precision for class i: of the samples predicted i, the fraction truly i.
// Zero when class i was never predicted.
func (m *Confusion) Precision(i int) float64 {
	predicted := 0
	for j := range m.Counts {
		predicted += m.Counts[j][i]
	}
	if predicted == 0 {
		return 0
	}
	return float64(m.Counts[i][i]) / float64(predicted)
}

// Recall for class i: of the samples truly i, the fraction predicted i.
// Zero when class i has no support.
func (m *Confusion) Recall(i int) float64 {
	support := m.Support(i)
	if support == 0 {
		return 0
	}
	return float64(m.Counts[i][i]) / float64(support)
}

// F1 is the harmonic mean of precision and recall for class i.
func (m *Confusion) F1(i int) float64 {
	p, r := m.Precision(i), m.Recall(i)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// WeightedPrecision averages per-class precision weighted by true-class
// support, matching the held-out split's label distribution.
func (m *Confusion) WeightedPrecision() float64 { return m.weighted(m.Precision) }

// WeightedRecall averages per-class recall weighted by true-class support.
func (m *Confusion) WeightedRecall() float64 { return m.weighted(m.Recall) }

// WeightedF1 averages per-class F1 weighted by true-class support.
func (m *Confusion) WeightedF1() float64 { return m.weighted(m.F1) }

func (m *Confusion) weighted(metric func(int) float64) float64 {
	if m.total == 0 {
		return 0
	}
	sum := 0.0
	for i := range m.Counts {
		sum += metric(i) * float64(m.Support(i))
	}
	return sum / float64(m.total)
}

// Report formats a per-class classification report plus the confusion matrix.
func (m *Confusion) Report(classes []string) string {
	var b strings.Builder
	width := 12
	for _, name := range classes {
		if len(name) > width {
			width = len(name)
		}
	}
	fmt.Fprintf(&b, "%-*s %9s %9s %9s %9s\n", width, "", "precision", "recall", "f1", "support")
	for i, name := range classes {
		fmt.Fprintf(&b, "%-*s %9.3f %9.3f %9.3f %9d\n", width, name,
			m.Precision(i), m.Recall(i), m.F1(i), m.Support(i))
	}
	fmt.Fprintf(&b, "\n%-*s %9.3f\n", width, "accuracy", m.Accuracy())
	fmt.Fprintf(&b, "%-*s %9.3f %9.3f %9.3f %9d\n", width, "weighted avg",
		m.WeightedPrecision(), m.WeightedRecall(), m.WeightedF1(), m.total)
	b.WriteString("\nconfusion matrix (rows true, cols predicted):\n")
	for i := range m.Counts {
		fmt.Fprintf(&b, "%-*s", width, classes[i])
		for j := range m.Counts[i] {
			fmt.Fprintf(&b, " %6d", m.Counts[i][j])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
