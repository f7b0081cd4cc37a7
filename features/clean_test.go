package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jrmsu/ojtinsight/dataset"
)

func TestCleanerModeAndMean(t *testing.T) {
	ds := readCSV(t, "score,rating,empty,blank\n"+
		"10,Good,,\n"+
		",Poor,,\n"+
		"20,,,\n"+
		"30,Poor,,\n"+
		"40,Good,,x\n")
	// empty is all-missing and therefore numeric; blank is text.
	c, err := FitCleaner(ds, []string{"score", "rating", "empty", "blank"})
	require.NoError(t, err)

	assert.Equal(t, 25.0, c.Means["score"])
	assert.Equal(t, 0.0, c.Means["empty"])
	// Good and Poor tie; the smaller one wins.
	assert.Equal(t, "Good", c.Modes["rating"])
	assert.Equal(t, "x", c.Modes["blank"])

	n, err := c.Impute(ds)
	require.NoError(t, err)
	assert.Equal(t, 1+1+5+4, n)
	assert.Equal(t, dataset.Num(25), ds.Rows[1][0])
	assert.Equal(t, dataset.Str("Good"), ds.Rows[2][1])
}

func TestCleanerUnknownMode(t *testing.T) {
	ds := readCSV(t, "rating\nGood\n")
	ds.Rows[0][0] = dataset.NA()
	assert.Equal(t, unknownMode, columnMode(ds, 0))
}

func TestDropMissingTarget(t *testing.T) {
	ds := readCSV(t, "score,label\n1,a\n2,\n3,b\n")
	n, err := DropMissingTarget(ds, "label")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, ds.NRows())

	_, err = DropMissingTarget(ds, "nope")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		-3, math.Inf(1),
		50, 110,
		70, 40,
	})
	means := FiniteMeans(X)
	assert.Equal(t, []float64{39, 75}, means)

	var rep CleanReport
	Validate(X, means, &rep)
	assert.Equal(t, CleanReport{Infinite: 1, ClippedLow: 1, ClippedHigh: 1}, rep)
	assert.Equal(t, []float64{0, 75, 50, 100, 70, 40}, X.RawMatrix().Data)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 0.0, Clip(-1))
	assert.Equal(t, 100.0, Clip(101))
	assert.Equal(t, 55.5, Clip(55.5))
	assert.Equal(t, 0.0, Clip(math.NaN()))
}
