package gaia

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Scoring follows the benchmark's quasi-exact matching: numbers compare
// within a small tolerance after stripping formatting, comma or semicolon
// separated lists compare element-wise in order, and everything else
// compares as normalized text.

const (
	finalAnswerMarker = "FINAL ANSWER:"
	numericTolerance  = 1e-6
)

var (
	articleRe       = regexp.MustCompile(`\b(a|an|the)\b\s*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trailingPunctRe = regexp.MustCompile(`[.,!?;:]+$`)
	numberRe        = regexp.MustCompile(`-?\d+\.?\d*`)
	numberFormatRe  = regexp.MustCompile(`[,$%€£¥]`)
)

// ExtractFinalAnswer pulls the answer following the last FINAL ANSWER
// marker in a model reply. Replies without the marker are returned whole,
// trimmed.
func ExtractFinalAnswer(reply string) string {
	idx := strings.LastIndex(strings.ToUpper(reply), finalAnswerMarker)
	if idx < 0 {
		return strings.TrimSpace(reply)
	}
	return strings.TrimSpace(reply[idx+len(finalAnswerMarker):])
}

// NormalizeString lowercases, drops articles, collapses whitespace and
// strips trailing punctuation.
func NormalizeString(s string) string {
	s = strings.ToLower(s)
	s = articleRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return trailingPunctRe.ReplaceAllString(s, "")
}

// ExtractNumber finds the first number in a string after stripping
// thousands separators, currency symbols and percent signs.
func ExtractNumber(s string) (float64, bool) {
	cleaned := numberFormatRe.ReplaceAllString(s, "")
	match := numberRe.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// QuasiExactMatch reports whether a predicted answer matches the ground
// truth under the benchmark's scoring rules.
func QuasiExactMatch(prediction, truth string) bool {
	pred := strings.TrimSpace(prediction)
	gt := strings.TrimSpace(truth)

	if pred == "" || gt == "" {
		return pred == gt
	}

	// Lists are checked before scalars so "1, 2, 3" is not collapsed to
	// its first number.
	if isList(pred) && isList(gt) {
		return matchLists(pred, gt)
	}

	return matchScalar(pred, gt)
}

func matchScalar(pred, gt string) bool {
	if predNum, ok := ExtractNumber(pred); ok {
		if gtNum, ok := ExtractNumber(gt); ok {
			return math.Abs(predNum-gtNum) <= numericTolerance
		}
	}
	return NormalizeString(pred) == NormalizeString(gt)
}

func isList(s string) bool {
	return strings.Contains(s, ",") || strings.Contains(s, ";")
}

func matchLists(pred, gt string) bool {
	predItems := splitList(pred)
	gtItems := splitList(gt)
	if len(predItems) != len(gtItems) {
		return false
	}
	for i := range gtItems {
		if !matchScalar(predItems[i], gtItems[i]) {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	parts := strings.Split(s, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		items = append(items, strings.TrimSpace(p))
	}
	return items
}
