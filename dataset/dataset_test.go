package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

const sample = "\ufeffname,score,grade,weekly\n" +
	"Ana,91.5,Excellent,\n" +
	"Ben,NA,Good,3\n" +
	"Cy,70,N/A,Good\n"

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "score", "grade", "weekly"}, ds.Columns)
	assert.Equal(t, 3, ds.NRows())

	assert.Equal(t, Num(91.5), ds.Rows[0][1])
	assert.True(t, ds.Rows[1][1].IsMissing())
	assert.True(t, ds.IsNumeric(1))

	assert.True(t, ds.Rows[2][2].IsMissing())
	assert.False(t, ds.IsNumeric(2))

	// A mixed column keeps its digits as text.
	assert.Equal(t, Str("3"), ds.Rows[1][3])
	assert.True(t, ds.Rows[0][3].IsMissing())
	assert.Equal(t, []string{"3", "Good"}, ds.Distinct(3))
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ojtErrors.ErrEmptyData)

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	again, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds, again)
}

func TestColumnAndSubset(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	col, err := ds.Column("grade")
	require.NoError(t, err)
	assert.Equal(t, Str("Excellent"), col[0])

	_, err = ds.Column("nope")
	assert.ErrorIs(t, err, ojtErrors.ErrMissingFeature)

	sub := ds.Subset([]int{2, 0})
	assert.Equal(t, "Cy", sub.Rows[0][0].Str)
	sub.Rows[0][0] = Str("changed")
	assert.Equal(t, "Cy", ds.Rows[2][0].Str)
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]string, 0, 50)
	for i := 0; i < 30; i++ {
		labels = append(labels, "Good")
	}
	for i := 0; i < 20; i++ {
		labels = append(labels, "Poor")
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 10)
	assert.Len(t, train, 40)

	count := map[string]int{}
	for _, i := range test {
		count[labels[i]]++
	}
	assert.Equal(t, map[string]int{"Good": 6, "Poor": 4}, count)

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], fmt.Sprintf("index %d repeated", i))
		seen[i] = true
	}
	assert.Len(t, seen, 50)
}

func TestStratifiedSplitSingletonClass(t *testing.T) {
	train, test, err := StratifiedSplit([]string{"a", "a", "a", "a", "b"}, 0.5, 1)
	require.NoError(t, err)
	assert.Contains(t, train, 4)
	assert.Len(t, test, 2)

	_, _, err = StratifiedSplit([]string{"a"}, 1.5, 1)
	assert.Error(t, err)
}
