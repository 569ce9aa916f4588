package gaia

import "sort"

// LevelStats is the score breakdown for one difficulty level.
type LevelStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Summary is the aggregate score for an evaluation sweep.
type Summary struct {
	Total    int                `json:"total"`
	Correct  int                `json:"correct"`
	Errors   int                `json:"errors"`
	Accuracy float64            `json:"accuracy"`
	ByLevel  map[int]LevelStats `json:"by_level,omitempty"`
}

// Accuracy is the fraction of true values, 0 for an empty slice.
func Accuracy(matches []bool) float64 {
	if len(matches) == 0 {
		return 0
	}
	correct := 0
	for _, m := range matches {
		if m {
			correct++
		}
	}
	return float64(correct) / float64(len(matches))
}

// Summarize computes overall and per-level statistics for a result set.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), ByLevel: map[int]LevelStats{}}

	for _, r := range results {
		stats := s.ByLevel[r.Level]
		stats.Total++
		if r.Match {
			s.Correct++
			stats.Correct++
		}
		if r.Error != "" {
			s.Errors++
		}
		s.ByLevel[r.Level] = stats
	}

	if s.Total > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Total)
	}
	for level, stats := range s.ByLevel {
		if stats.Total > 0 {
			stats.Accuracy = float64(stats.Correct) / float64(stats.Total)
		}
		s.ByLevel[level] = stats
	}

	return s
}

// Levels returns the difficulty levels present in a summary in ascending
// order.
func (s Summary) Levels() []int {
	levels := make([]int, 0, len(s.ByLevel))
	for level := range s.ByLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}
