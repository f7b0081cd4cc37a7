package insight

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RiskLevel is the coarse risk tier of a predicted label.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// The lists are checked in order, so "satisfactory" always resolves to
// MEDIUM even though it is also listed as LOW.
var (
	highRiskKeywords   = []string{"poor", "failing", "at risk", "low", "unsatisfactory", "needs improvement"}
	mediumRiskKeywords = []string{"average", "satisfactory", "fair", "moderate", "needs attention"}
	lowRiskKeywords    = []string{"excellent", "good", "satisfactory", "high", "outstanding", "above average"}
)

var firstNumber = regexp.MustCompile(`\d+`)

// ClassifyRisk maps a label to a risk tier by keyword, then by the first
// integer in the label (<50 HIGH, <75 MEDIUM, else LOW), then MEDIUM.
func ClassifyRisk(label string) RiskLevel {
	lower := strings.ToLower(label)
	switch {
	case containsAny(lower, highRiskKeywords):
		return RiskHigh
	case containsAny(lower, mediumRiskKeywords):
		return RiskMedium
	case containsAny(lower, lowRiskKeywords):
		return RiskLow
	}

	digits := firstNumber.FindString(lower)
	if digits == "" {
		return RiskMedium
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		// Only overflow can fail here.
		n = math.MaxInt
	}
	switch {
	case n < 50:
		return RiskHigh
	case n < 75:
		return RiskMedium
	default:
		return RiskLow
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
