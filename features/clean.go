package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/dataset"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// Score bounds applied by Validate.
const (
	MinValidScore = 0.0
	MaxValidScore = 100.0
)

// unknownMode fills text columns that have no present value at all.
const unknownMode = "Unknown"

// CleanReport counts what cleaning changed.
type CleanReport struct {
	Imputed     int `json:"imputed"`
	Dropped     int `json:"dropped"`
	Infinite    int `json:"infinite"`
	ClippedLow  int `json:"clipped_low"`
	ClippedHigh int `json:"clipped_high"`
}

// Cleaner imputes missing feature values with statistics frozen at Fit:
// the mean of numeric columns and the mode of text columns.
type Cleaner struct {
	Means map[string]float64 `json:"means"`
	Modes map[string]string  `json:"modes"`
}

// FitCleaner learns the imputation statistics of features over ds.
func FitCleaner(ds *dataset.Dataset, features []string) (*Cleaner, error) {
	c := &Cleaner{Means: map[string]float64{}, Modes: map[string]string{}}
	for _, name := range features {
		j := ds.Index(name)
		if j < 0 {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
		if ds.IsNumeric(j) {
			c.Means[name] = columnMean(ds, j)
		} else {
			c.Modes[name] = columnMode(ds, j)
		}
	}
	return c, nil
}

// columnMean is the mean of the present cells. A column with no present
// cell imputes 0.
func columnMean(ds *dataset.Dataset, j int) float64 {
	sum, n := 0.0, 0
	for _, r := range ds.Rows {
		if r[j].Kind == dataset.Number {
			sum += r[j].Num
			n++
		}
	}
	if n == 0 {
		ojtErrors.Warn(ojtErrors.NewDataWarning("Cleaner.Fit",
			"column "+ds.Columns[j]+" has no values, imputing 0"))
		return 0
	}
	return sum / float64(n)
}

// columnMode is the most frequent present value; ties go to the
// lexicographically smallest.
func columnMode(ds *dataset.Dataset, j int) string {
	counts := make(map[string]int)
	for _, r := range ds.Rows {
		if !r[j].IsMissing() {
			counts[r[j].Text()]++
		}
	}
	if len(counts) == 0 {
		return unknownMode
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)
	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// Impute fills missing feature cells of ds in place and returns how many
// cells were filled.
func (c *Cleaner) Impute(ds *dataset.Dataset) (int, error) {
	filled := 0
	fill := func(name string, v dataset.Value) error {
		j := ds.Index(name)
		if j < 0 {
			return ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
		for _, r := range ds.Rows {
			if r[j].IsMissing() {
				r[j] = v
				filled++
			}
		}
		return nil
	}
	for name, mean := range c.Means {
		if err := fill(name, dataset.Num(mean)); err != nil {
			return filled, err
		}
	}
	for name, mode := range c.Modes {
		if err := fill(name, dataset.Str(mode)); err != nil {
			return filled, err
		}
	}
	return filled, nil
}

// DropMissingTarget removes the rows of ds whose target cell is missing and
// returns how many were removed. This is the only way cleaning deletes rows.
func DropMissingTarget(ds *dataset.Dataset, target string) (int, error) {
	j := ds.Index(target)
	if j < 0 {
		return 0, ojtErrors.Wrapf(ojtErrors.ErrTargetUndetectable, "column %q", target)
	}
	kept := ds.Rows[:0]
	for _, r := range ds.Rows {
		if !r[j].IsMissing() {
			kept = append(kept, r)
		}
	}
	dropped := len(ds.Rows) - len(kept)
	ds.Rows = kept
	return dropped, nil
}

// FiniteMeans returns the mean of the finite values of each column of X.
// A column without a finite value gets 0.
func FiniteMeans(X *mat.Dense) []float64 {
	r, c := X.Dims()
	means := make([]float64, c)
	for j := 0; j < c; j++ {
		sum, n := 0.0, 0
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsInf(v, 0) && !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n > 0 {
			means[j] = sum / float64(n)
		}
	}
	return means
}

// Validate replaces non-finite values of X with the matching entry of means
// and clips every value into [0, 100], in place. It adds its counts to rep.
func Validate(X *mat.Dense, means []float64, rep *CleanReport) {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		row := X.RawRowView(i)
		for j := 0; j < c; j++ {
			v := row[j]
			if math.IsInf(v, 0) || math.IsNaN(v) {
				rep.Infinite++
				v = means[j]
			}
			switch {
			case v < MinValidScore:
				rep.ClippedLow++
				v = MinValidScore
			case v > MaxValidScore:
				rep.ClippedHigh++
				v = MaxValidScore
			}
			row[j] = v
		}
	}
}

// Clip bounds a single score into [0, 100]; non-finite values become 0.
func Clip(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MinValidScore
	}
	return math.Max(MinValidScore, math.Min(MaxValidScore, v))
}
