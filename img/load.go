// Package img loads blood smear photographs, crops annotated parasites and
// turns them into fixed-shape input tensors.
package img

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrImageLoad indicates a referenced smear image which is missing from the
// image store or cannot be decoded.
var ErrImageLoad = errors.New("image load")

// Loader reads images from a store directory by the filename referenced in
// the annotations. Decoded images are cached since one smear photograph is
// typically shared by many crop records.
type Loader struct {
	dir   string
	mu    sync.Mutex
	cache map[string]image.Image
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]image.Image)}
}

// Load returns the decoded image for name, from cache when possible.
func (l *Loader) Load(name string) (image.Image, error) {
	l.mu.Lock()
	m, ok := l.cache[name]
	l.mu.Unlock()
	if ok {
		return m, nil
	}
	path := filepath.Join(l.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	defer f.Close()
	m, err = imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrImageLoad, path, err)
	}
	l.mu.Lock()
	l.cache[name] = m
	l.mu.Unlock()
	return m, nil
}
