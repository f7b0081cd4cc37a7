// Package features turns a raw evaluation dataset into the numeric feature
// matrix the ensemble trains on. It detects the target and feature columns,
// imputes missing values, converts categorical grades to scores, derives
// aggregate features and clips everything into the 0..100 score range.
//
// The fitted Preprocessor freezes every statistic it learned so the same
// transformation can be replayed on new data and on single rows at serve
// time.
package features

import (
	"strings"

	"github.com/jrmsu/ojtinsight/dataset"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// targetPriority lists the target column names tried first, in order.
var targetPriority = []string{
	"performance_category", "category", "performance", "target", "label",
	"class", "grade", "result", "status", "final_grade", "outcome", "verdict",
}

// targetExclusions are lower-cased column names that are never features.
var targetExclusions = []string{
	"performance_category", "target", "label", "class", "grade", "result",
	"status", "final_grade", "outcome",
}

// featureKeywords mark a column as a feature when its lower-cased name
// contains one of them.
var featureKeywords = []string{
	"weekly_progress", "progress", "weekly_score", "weekly",
	"narrative_report", "narrative", "report_score", "report",
	"coordinator_evaluation", "coordinator_score", "coordinator", "coordinator_eval",
	"partner_evaluation", "partner_score", "partner", "partner_eval",
	"attendance", "performance", "evaluation", "score", "rating",
}

var performanceKeywords = []string{"performance", "grade", "result", "category", "status"}

// maxCategoricalLevels is the largest number of distinct values a text
// column may have to be picked up as a categorical feature.
const maxCategoricalLevels = 10

// Detection is the outcome of Detect.
type Detection struct {
	Target   string   `json:"target"`
	Features []string `json:"features"`
}

// Detect finds the target column and then the feature columns of ds.
func Detect(ds *dataset.Dataset) (*Detection, error) {
	target, err := DetectTarget(ds)
	if err != nil {
		return nil, err
	}
	features, err := DetectFeatures(ds, target)
	if err != nil {
		return nil, err
	}
	return &Detection{Target: target, Features: features}, nil
}

// DetectTarget picks the target column: an exact priority-list match, then a
// case-insensitive substring match, then a text column.
func DetectTarget(ds *dataset.Dataset) (string, error) {
	for _, candidate := range targetPriority {
		if ds.Index(candidate) >= 0 {
			return candidate, nil
		}
	}

	for _, col := range ds.Columns {
		if containsAny(strings.ToLower(col), targetPriority) {
			return col, nil
		}
	}

	var categorical []string
	for j, col := range ds.Columns {
		if !ds.IsNumeric(j) {
			categorical = append(categorical, col)
		}
	}
	switch len(categorical) {
	case 0:
		return "", ojtErrors.ErrTargetUndetectable
	case 1:
		return categorical[0], nil
	}
	for _, col := range categorical {
		if containsAny(strings.ToLower(col), performanceKeywords) {
			return col, nil
		}
	}
	return categorical[len(categorical)-1], nil
}

// DetectFeatures returns the feature columns in dataset order. target may be
// empty when it is not known yet.
func DetectFeatures(ds *dataset.Dataset, target string) ([]string, error) {
	var candidates []string
	for j, col := range ds.Columns {
		lower := strings.ToLower(col)
		if col == target || equalsAny(lower, targetExclusions) {
			continue
		}
		if containsAny(lower, featureKeywords) {
			candidates = append(candidates, col)
			continue
		}
		if !ds.IsNumeric(j) && len(ds.Distinct(j)) <= maxCategoricalLevels {
			candidates = append(candidates, col)
		}
	}

	if len(candidates) == 0 {
		for j, col := range ds.Columns {
			if col == target || !ds.IsNumeric(j) {
				continue
			}
			if !containsAny(strings.ToLower(col), targetExclusions) {
				candidates = append(candidates, col)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, ojtErrors.ErrNoFeatures
	}
	return dedupe(candidates), nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func equalsAny(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
