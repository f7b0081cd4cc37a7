// Package report renders training charts with gonum/plot.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

const (
	// FeatureImportanceFile is the default file name of the feature
	// importance chart.
	FeatureImportanceFile = "feature_importance.png"
	// ModelAccuracyFile is the default file name of the accuracy chart.
	ModelAccuracyFile = "model_accuracy.png"
)

var supportedFormats = map[string]bool{".png": true, ".svg": true}

// FeatureImportancePlot writes a horizontal bar chart of importances to path,
// the most important feature on top. The format follows the extension of
// path, .png or .svg.
func FeatureImportancePlot(names []string, importances []float64, path string) (err error) {
	defer ojtErrors.Recover(&err, "report.FeatureImportancePlot")
	if len(names) == 0 {
		return ojtErrors.Wrap(ojtErrors.ErrEmptyData, "no features to plot")
	}
	if len(names) != len(importances) {
		return ojtErrors.NewDimensionError("FeatureImportancePlot", len(names), len(importances), 0)
	}
	if err := checkFormat(path); err != nil {
		return err
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	// Ascending, so the largest bar is drawn last at the top.
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] < importances[order[b]]
	})

	values := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, j := range order {
		values[i] = importances[j]
		labels[i] = names[j]
	}

	p := plot.New()
	p.Title.Text = "Feature Importance (Random Forest)"
	p.X.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return ojtErrors.Wrap(err, "failed to build bar chart")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(len(names))*0.35*vg.Inch + 1.5*vg.Inch
	return save(p, 9*vg.Inch, height, path)
}

// ModelAccuracyPlot writes a bar chart of accuracy per model to path. Models
// are drawn in name order on a [0, 1] axis.
func ModelAccuracyPlot(accuracies map[string]float64, path string) (err error) {
	defer ojtErrors.Recover(&err, "report.ModelAccuracyPlot")
	if len(accuracies) == 0 {
		return ojtErrors.Wrap(ojtErrors.ErrEmptyData, "no accuracies to plot")
	}
	if err := checkFormat(path); err != nil {
		return err
	}

	names := make([]string, 0, len(accuracies))
	for name := range accuracies {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(plotter.Values, len(names))
	for i, name := range names {
		acc := accuracies[name]
		if acc < 0 || acc > 1 {
			return ojtErrors.NewValidationError(name, "accuracy must be in [0, 1]", acc)
		}
		values[i] = acc
	}

	p := plot.New()
	p.Title.Text = "Model Accuracy"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return ojtErrors.Wrap(err, "failed to build bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(1)
	p.Add(bars)
	p.NominalX(names...)

	return save(p, 7*vg.Inch, 5*vg.Inch, path)
}

func checkFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedFormats[ext] {
		return ojtErrors.NewValueError("report", "unsupported image format "+ext+", want .png or .svg")
	}
	return nil
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ojtErrors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := p.Save(w, h, path); err != nil {
		return ojtErrors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}
