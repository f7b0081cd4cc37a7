package features

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jrmsu/ojtinsight/dataset"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// lexicon maps normalized grade words, letter grades and 1-5 scales to
// scores on the 0..100 range.
var lexicon = map[string]float64{
	"excellent": 90, "outstanding": 95, "superb": 92,
	"very good": 85, "good": 80, "satisfactory": 75,
	"fair": 70, "average": 75, "needs improvement": 65,
	"poor": 60, "unsatisfactory": 55, "fail": 50,

	"a+": 97, "a": 93, "a-": 90,
	"b+": 87, "b": 83, "b-": 80,
	"c+": 77, "c": 73, "c-": 70,
	"d+": 67, "d": 63, "d-": 60,
	"f": 50,

	"1": 20, "2": 40, "3": 60, "4": 80, "5": 100,
	"low": 40, "medium": 70, "high": 90,
}

// CategoricalMapping holds the score of every raw value of every
// categorical feature, keyed by feature name and then by raw value.
type CategoricalMapping map[string]map[string]float64

// ConvertCategorical builds the mapping for the text columns among features.
// Numeric columns are skipped. Each distinct value is scored by the lexicon,
// then as a plain number, then by its ordinal position among the column's
// distinct values.
func ConvertCategorical(ds *dataset.Dataset, features []string, opts ...Option) (CategoricalMapping, error) {
	o := newOptions(opts)
	mapping := make(CategoricalMapping)
	for _, name := range features {
		j := ds.Index(name)
		if j < 0 {
			return nil, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
		if ds.IsNumeric(j) {
			continue
		}
		mapping[name] = scoreValues(ds.Distinct(j), o.sortedOrdinals)
	}
	return mapping, nil
}

func scoreValues(values []string, sorted bool) map[string]float64 {
	order := values
	if sorted {
		order = append([]string(nil), values...)
		sort.Strings(order)
	}
	position := make(map[string]int, len(order))
	for i, v := range order {
		position[v] = i
	}

	denom := len(values) - 1
	if denom < 1 {
		denom = 1
	}

	scores := make(map[string]float64, len(values))
	for _, v := range values {
		norm := strings.ToLower(strings.TrimSpace(v))
		if s, ok := lexicon[norm]; ok {
			scores[v] = s
			continue
		}
		if f, ok := parseDigits(norm); ok {
			scores[v] = f
			continue
		}
		scores[v] = float64(position[v]) * 100 / float64(denom)
	}
	return scores
}

// parseDigits accepts values made only of ASCII digits once dots are removed,
// such as "85" or "87.5".
func parseDigits(s string) (float64, bool) {
	digits := strings.ReplaceAll(s, ".", "")
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Score returns the score of a raw value of feature.
func (m CategoricalMapping) Score(feature, value string) (float64, error) {
	col, ok := m[feature]
	if !ok {
		return 0, ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "no mapping for %q", feature)
	}
	s, ok := col[value]
	if !ok {
		return 0, ojtErrors.Wrapf(ojtErrors.ErrUnseenCategory, "%q in %q", value, feature)
	}
	return s, nil
}

// Apply replaces the text cells of every mapped column of ds with their
// scores, in place. Cells that are already numbers or missing are left alone,
// so applying a mapping twice changes nothing.
func (m CategoricalMapping) Apply(ds *dataset.Dataset) error {
	for name := range m {
		j := ds.Index(name)
		if j < 0 {
			return ojtErrors.Wrapf(ojtErrors.ErrMissingFeature, "column %q", name)
		}
		for _, row := range ds.Rows {
			if row[j].Kind != dataset.String {
				continue
			}
			s, err := m.Score(name, row[j].Str)
			if err != nil {
				return err
			}
			row[j] = dataset.Num(s)
		}
	}
	return nil
}
