package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is one named series of per-epoch values for the training plot.
type Curve struct {
	Name   string
	Values []float64
}

// SaveCurves writes a line plot of the given per-epoch series. The output
// format follows the file extension (.png or .svg).
func SaveCurves(path, title, yLabel string, curves ...Curve) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	for i, c := range curves {
		pts := make(plotter.XYs, len(c.Values))
		for e, v := range c.Values {
			pts[e].X = float64(e + 1)
			pts[e].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", c.Name, err)
		}
		line.Width = 2
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(c.Name, line)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// confusionGrid adapts a confusion matrix to the plotter heat map interface.
type confusionGrid struct {
	m *Confusion
}

func (g confusionGrid) Dims() (c, r int) { return len(g.m.Counts), len(g.m.Counts) }

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

func (g confusionGrid) Z(c, r int) float64 {
	// row 0 of the matrix drawn at the top
	return float64(g.m.Counts[len(g.m.Counts)-1-r][c])
}

// SaveConfusionPlot renders the confusion matrix as a heat map with class
// names on both axes.
func SaveConfusionPlot(path string, m *Confusion, classes []string) error {
	p := plot.New()
	p.Title.Text = "confusion matrix"
	p.X.Label.Text = "predicted"
	p.Y.Label.Text = "true"
	heat := plotter.NewHeatMap(confusionGrid{m: m}, palette.Heat(12, 1))
	p.Add(heat)

	xt := make([]plot.Tick, len(classes))
	yt := make([]plot.Tick, len(classes))
	for i, name := range classes {
		xt[i] = plot.Tick{Value: float64(i), Label: name}
		// class 0 at the top to match the text report
		yt[i] = plot.Tick{Value: float64(len(classes) - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xt)
	p.Y.Tick.Marker = plot.ConstantTicks(yt)
	return p.Save(5*vg.Inch, 5*vg.Inch, path)
}
