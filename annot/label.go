package annot

import "sort"

// LabelIndex is an immutable bidirectional mapping between stage labels and
// dense class indexes 0..K-1. It is built once from the full record set and
// shared read-only by every downstream component.
type LabelIndex struct {
	names []string
	index map[string]int
}

// NewLabelIndex builds the closed-world vocabulary from the sorted distinct
// labels present in recs.
func NewLabelIndex(recs []Record) *LabelIndex {
	seen := map[string]bool{}
	var names []string
	for _, r := range recs {
		if !seen[r.Label] {
			seen[r.Label] = true
			names = append(names, r.Label)
		}
	}
	sort.Strings(names)
	return NewLabelIndexFromNames(names)
}

// NewLabelIndexFromNames builds an index from an explicit class list, e.g.
// the vocabulary recorded in a checkpoint. Order is preserved as given.
func NewLabelIndexFromNames(names []string) *LabelIndex {
	idx := &LabelIndex{names: append([]string{}, names...), index: make(map[string]int, len(names))}
	for i, name := range idx.names {
		idx.index[name] = i
	}
	return idx
}

// Index returns the class index for a label.
func (l *LabelIndex) Index(label string) (int, bool) {
	i, ok := l.index[label]
	return i, ok
}

// Name returns the label for a class index.
func (l *LabelIndex) Name(i int) string { return l.names[i] }

// Names returns the class labels in index order.
func (l *LabelIndex) Names() []string { return append([]string{}, l.names...) }

// Len returns the number of classes.
func (l *LabelIndex) Len() int { return len(l.names) }
