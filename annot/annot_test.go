package annot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
  {"image": "smear_001.png", "objects": [
     {"type": "ring", "bbox": {"x": 10, "y": 20, "w": 32, "h": 32}},
     {"type": "schizont", "bbox": {"x": 50.0, "y": 60, "w": 40, "h": 38}}
  ]},
  {"image": "smear_002.png", "objects": [
     {"type": "ring", "bbox": {"x": 5, "y": 5, "w": 30, "h": 30}}
  ]}
]`

func TestDecodeFlatten(t *testing.T) {
	entries, err := Decode(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	recs := Flatten(entries)
	require.Len(t, recs, 3)
	assert.Equal(t, Record{Image: "smear_001.png", Label: "ring", Box: Box{10, 20, 32, 32}}, recs[0])
	assert.Equal(t, Record{Image: "smear_001.png", Label: "schizont", Box: Box{50, 60, 40, 38}}, recs[1])
	assert.Equal(t, Record{Image: "smear_002.png", Label: "ring", Box: Box{5, 5, 30, 30}}, recs[2])
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{{{`},
		{"missing image", `[{"objects": [{"type": "ring", "bbox": {"x":0,"y":0,"w":1,"h":1}}]}]`},
		{"missing type", `[{"image": "a.png", "objects": [{"bbox": {"x":0,"y":0,"w":1,"h":1}}]}]`},
		{"missing bbox", `[{"image": "a.png", "objects": [{"type": "ring"}]}]`},
		{"missing bbox field", `[{"image": "a.png", "objects": [{"type": "ring", "bbox": {"x":0,"y":0,"w":1}}]}]`},
		{"negative width", `[{"image": "a.png", "objects": [{"type": "ring", "bbox": {"x":0,"y":0,"w":-1,"h":1}}]}]`},
		{"negative height", `[{"image": "a.png", "objects": [{"type": "ring", "bbox": {"x":0,"y":0,"w":1,"h":-2}}]}]`},
		{"fractional coordinate", `[{"image": "a.png", "objects": [{"type": "ring", "bbox": {"x":0.5,"y":0,"w":1,"h":1}}]}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.json))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAnnotation)
		})
	}
}

func TestFlattenCountsAllObjects(t *testing.T) {
	entries := []Entry{
		{Image: "a.png", Objects: []Object{{Label: "ring", Box: Box{W: 1, H: 1}}, {Label: "troph", Box: Box{W: 2, H: 2}}}},
		{Image: "b.png"},
		{Image: "c.png", Objects: []Object{{Label: "gametocyte", Box: Box{W: 3, H: 3}}}},
	}
	recs := Flatten(entries)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.NotEmpty(t, r.Image)
		assert.NotEmpty(t, r.Label)
	}
}

func TestLabelIndex(t *testing.T) {
	recs := []Record{
		{Label: "schizont"}, {Label: "ring"}, {Label: "ring"}, {Label: "trophozoite"},
	}
	idx := NewLabelIndex(recs)
	require.Equal(t, 3, idx.Len())
	// sorted order defines the class indexes
	assert.Equal(t, []string{"ring", "schizont", "trophozoite"}, idx.Names())
	for i, name := range idx.Names() {
		j, ok := idx.Index(name)
		require.True(t, ok)
		assert.Equal(t, i, j)
		assert.Equal(t, name, idx.Name(i))
	}
	_, ok := idx.Index("leukocyte")
	assert.False(t, ok)
}
