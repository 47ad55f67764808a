// Package annot loads bounding box annotations for thin blood smear images
// and flattens them into one record per annotated parasite.
package annot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrMalformedAnnotation indicates an annotation entry which is missing
// required fields or carries an invalid bounding box.
var ErrMalformedAnnotation = errors.New("malformed annotation")

// Box is a bounding box in pixel coordinates with origin at the top left.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Object is a single annotated parasite within a smear image.
type Object struct {
	Label string `json:"type"`
	Box   Box    `json:"bbox"`
}

// Entry groups the objects annotated on one source image.
type Entry struct {
	Image   string   `json:"image"`
	Objects []Object `json:"objects"`
}

// Record is the flattened unit of work: one crop of one image with its
// life-cycle stage label. Records are immutable once created.
type Record struct {
	Image string
	Label string
	Box   Box
}

// wire structures accept integer-convertible values, e.g. "x": 12.0
type rawEntry struct {
	Image   string      `json:"image"`
	Objects []rawObject `json:"objects"`
}

type rawObject struct {
	Label *string `json:"type"`
	Box   *rawBox `json:"bbox"`
}

type rawBox struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	W *float64 `json:"w"`
	H *float64 `json:"h"`
}

// Load reads and decodes the annotation file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a JSON annotation stream into entries, validating each one.
func Decode(r io.Reader) ([]Entry, error) {
	var raw []rawEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnnotation, err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, re := range raw {
		e, err := re.validate()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (re rawEntry) validate() (Entry, error) {
	if re.Image == "" {
		return Entry{}, fmt.Errorf("%w: missing image filename", ErrMalformedAnnotation)
	}
	e := Entry{Image: re.Image, Objects: make([]Object, len(re.Objects))}
	for j, ro := range re.Objects {
		if ro.Label == nil || *ro.Label == "" {
			return Entry{}, fmt.Errorf("%w: object %d missing type", ErrMalformedAnnotation, j)
		}
		if ro.Box == nil {
			return Entry{}, fmt.Errorf("%w: object %d missing bbox", ErrMalformedAnnotation, j)
		}
		box, err := ro.Box.toBox()
		if err != nil {
			return Entry{}, fmt.Errorf("object %d: %w", j, err)
		}
		e.Objects[j] = Object{Label: *ro.Label, Box: box}
	}
	return e, nil
}

func (rb rawBox) toBox() (Box, error) {
	fields := [4]*float64{rb.X, rb.Y, rb.W, rb.H}
	names := [4]string{"x", "y", "w", "h"}
	var vals [4]int
	for i, f := range fields {
		if f == nil {
			return Box{}, fmt.Errorf("%w: bbox missing %s", ErrMalformedAnnotation, names[i])
		}
		if *f != math.Trunc(*f) {
			return Box{}, fmt.Errorf("%w: bbox %s=%v is not an integer", ErrMalformedAnnotation, names[i], *f)
		}
		vals[i] = int(*f)
	}
	box := Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if box.W < 0 || box.H < 0 {
		return Box{}, fmt.Errorf("%w: bbox has negative size %dx%d", ErrMalformedAnnotation, box.W, box.H)
	}
	return box, nil
}

// Flatten produces one record per annotated object, preserving source order.
func Flatten(entries []Entry) []Record {
	var recs []Record
	for _, e := range entries {
		for _, obj := range e.Objects {
			recs = append(recs, Record{Image: e.Image, Label: obj.Label, Box: obj.Box})
		}
	}
	return recs
}
