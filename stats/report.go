package stats

import (
	"fmt"
	"html/template"
	"os"
	"time"
)

// RunReport collects everything shown on the static HTML summary written at
// the end of a training run.
type RunReport struct {
	RunID     string
	Started   time.Time
	Elapsed   time.Duration
	Config    map[string]interface{}
	Classes   []string
	Matrix    *Confusion
	TextBlock string
	// relative paths to the generated artifacts
	CurvePlots   []string
	ConfusionImg string
	SaliencyImg  string
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>training run {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 4px 10px; text-align: right; }
th { background: #eee; }
pre { background: #f6f6f6; padding: 1em; }
img { margin: 1em 1em 1em 0; border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>Run {{.RunID}}</h1>
<p>started {{.Started.Format "2006-01-02 15:04:05"}}, elapsed {{.Elapsed}}</p>

<h2>Configuration</h2>
<table>
{{range $k, $v := .Config}}<tr><th>{{$k}}</th><td>{{$v}}</td></tr>
{{end}}</table>

<h2>Test metrics</h2>
<p>accuracy {{printf "%.3f" .Matrix.Accuracy}},
precision {{printf "%.3f" .Matrix.WeightedPrecision}},
recall {{printf "%.3f" .Matrix.WeightedRecall}} (weighted)</p>

<h3>Confusion matrix</h3>
<table>
<tr><th></th>{{range .Classes}}<th>{{.}}</th>{{end}}</tr>
{{range $i, $name := .Classes}}<tr><th>{{$name}}</th>
{{range index $.Matrix.Counts $i}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>

<h3>Classification report</h3>
<pre>{{.TextBlock}}</pre>

<h2>Plots</h2>
{{range .CurvePlots}}<img src="{{.}}" alt="training curve">
{{end}}{{with .ConfusionImg}}<img src="{{.}}" alt="confusion matrix">{{end}}
{{with .SaliencyImg}}<h2>Saliency</h2><img src="{{.}}" alt="saliency overlay">{{end}}
</body>
</html>
`))

// WriteHTML renders the run report to path.
func (r *RunReport) WriteHTML(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer f.Close()
	return reportTmpl.Execute(f, r)
}
