package gaia

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteJSON exports the report to <dir>/gaia_results_<timestamp>.json and
// returns the written path.
func (r *Report) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("gaia_results_%s.json", r.Timestamp.Format("20060102_150405")))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

// Render writes the per-question result table and the score summary.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Task", "Level", "Match", "Duration"})
	for i, res := range r.Results {
		t.AppendRow(table.Row{i + 1, shortID(res.TaskID), res.Level, matchMark(res), res.Duration.Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"", "Accuracy", "", fmt.Sprintf("%d/%d (%.1f%%)", r.Summary.Correct, r.Summary.Total, r.Summary.Accuracy*100), ""})
	t.Render()

	for _, level := range r.Summary.Levels() {
		stats := r.Summary.ByLevel[level]
		fmt.Fprintf(w, "Level %d: %d/%d (%.1f%%)\n", level, stats.Correct, stats.Total, stats.Accuracy*100)
	}
	if r.Summary.Errors > 0 {
		fmt.Fprintf(w, "Runner errors: %d\n", r.Summary.Errors)
	}
}

func matchMark(res Result) string {
	switch {
	case res.Error != "":
		return "ERROR"
	case res.Match:
		return "✓"
	default:
		return "✗"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
