package preprocessing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/preprocessing"
)

func TestLabelEncoder_SortedClasses(t *testing.T) {
	enc := preprocessing.NewLabelEncoder()
	codes, err := enc.FitTransform([]string{"Good", "Poor", "Excellent", "Good"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Excellent", "Good", "Poor"}, enc.Classes)
	assert.Equal(t, []int{1, 2, 0, 1}, codes)
	assert.Equal(t, 3, enc.NClasses())

	labels, err := enc.InverseTransform([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Poor", "Excellent"}, labels)
}

func TestLabelEncoder_Errors(t *testing.T) {
	enc := preprocessing.NewLabelEncoder()

	_, err := enc.Transform([]string{"Good"})
	assert.ErrorIs(t, err, ojtErrors.ErrNotFitted)

	require.Error(t, enc.Fit(nil))

	require.NoError(t, enc.Fit([]string{"A", "B"}))
	_, err = enc.Transform([]string{"C"})
	assert.ErrorIs(t, err, ojtErrors.ErrUnseenLabel)
	assert.False(t, enc.Contains("C"))

	_, err = enc.InverseTransform([]int{5})
	var valErr *ojtErrors.ValueError
	assert.ErrorAs(t, err, &valErr)
}

func TestLabelEncoder_Restore(t *testing.T) {
	enc := &preprocessing.LabelEncoder{Classes: []string{"Average", "Excellent"}}
	require.NoError(t, enc.Restore())
	codes, err := enc.Transform([]string{"Excellent"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, codes)

	assert.Error(t, (&preprocessing.LabelEncoder{Classes: []string{"b", "a"}}).Restore())
	assert.Error(t, (&preprocessing.LabelEncoder{Classes: []string{"a", "a"}}).Restore())
	assert.Error(t, (&preprocessing.LabelEncoder{}).Restore())
}
