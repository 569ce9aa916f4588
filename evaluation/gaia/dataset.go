// Package gaia evaluates agents against the GAIA benchmark: dataset
// loading, quasi-exact answer matching, accuracy metrics, report export
// and snapshot download of the gated Hugging Face dataset.
package gaia

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SystemPrompt is the official GAIA benchmark system prompt. Agents under
// evaluation must close their reply with the FINAL ANSWER template it
// prescribes.
const SystemPrompt = `You are a general AI assistant. I will ask you a question. Report your thoughts, and finish your answer with the following template: FINAL ANSWER: [YOUR FINAL ANSWER].

YOUR FINAL ANSWER should be a number OR as few words as possible OR a comma separated list of numbers and/or strings.

If you are asked for a number, don't use comma to write your number neither use units such as $ or percent sign unless specified otherwise.

If you are asked for a string, don't use articles, neither abbreviations (e.g. for cities), and write the digits in plain text unless specified otherwise.

If you are asked for a comma separated list, apply the above rules depending of whether the element to be put in the list is a number or a string.`

// Question is one benchmark task.
type Question struct {
	TaskID      string `json:"task_id"`
	Question    string `json:"question"`
	Level       int    `json:"level"`
	FinalAnswer string `json:"final_answer"`
	FileName    string `json:"file_name,omitempty"`
	FilePath    string `json:"file_path,omitempty"` // Resolved attachment location, empty when the task has none
}

// LoadOptions configures dataset loading.
type LoadOptions struct {
	Split      string // Dataset split, "validation" or "test"
	Level      int    // Difficulty filter 1-3, 0 keeps every level
	MaxSamples int    // Cap on returned questions, 0 keeps all
}

// DefaultSplit is used when no split is requested. Only the validation
// split ships ground-truth answers, so it is the one scored locally.
const DefaultSplit = "validation"

// SplitDir returns the directory holding metadata.jsonl and the attachment
// files for a split within a dataset snapshot.
func SplitDir(dir, split string) string {
	return filepath.Join(dir, "2023", split)
}

// LoadDataset reads questions from <dir>/2023/<split>/metadata.jsonl and
// resolves attachment paths relative to the split directory.
func LoadDataset(dir string, optFns ...func(*LoadOptions)) ([]Question, error) {
	opts := LoadOptions{Split: DefaultSplit}
	for _, fn := range optFns {
		fn(&opts)
	}

	splitDir := SplitDir(dir, opts.Split)
	metaPath := filepath.Join(splitDir, "metadata.jsonl")

	f, err := os.Open(metaPath)
	if err != nil {
		return nil, fmt.Errorf("gaia metadata not found at %s (run the dataset download first): %w", metaPath, err)
	}
	defer func() { _ = f.Close() }()

	var questions []Question
	scanner := bufio.NewScanner(f)
	// Some annotator records run long; the default scanner token limit is
	// too small for them.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		q, err := parseMetadataLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", metaPath, lineNo, err)
		}

		if opts.Level > 0 && q.Level != opts.Level {
			continue
		}
		if q.FileName != "" {
			q.FilePath = filepath.Join(splitDir, q.FileName)
		}

		questions = append(questions, q)
		if opts.MaxSamples > 0 && len(questions) >= opts.MaxSamples {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", metaPath, err)
	}

	return questions, nil
}

// metadataRow mirrors one metadata.jsonl record. Level is kept raw because
// the published files carry it as both a JSON number and a quoted string.
type metadataRow struct {
	TaskID      string          `json:"task_id"`
	Question    string          `json:"Question"`
	Level       json.RawMessage `json:"Level"`
	FinalAnswer string          `json:"Final answer"`
	FileName    string          `json:"file_name"`
}

func parseMetadataLine(line string) (Question, error) {
	var row metadataRow
	if err := json.Unmarshal([]byte(line), &row); err != nil {
		return Question{}, err
	}

	level, err := parseLevel(row.Level)
	if err != nil {
		return Question{}, err
	}

	return Question{
		TaskID:      row.TaskID,
		Question:    row.Question,
		Level:       level,
		FinalAnswer: row.FinalAnswer,
		FileName:    row.FileName,
	}, nil
}

func parseLevel(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return level, nil
}
