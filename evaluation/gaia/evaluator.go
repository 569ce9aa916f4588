package gaia

import (
	"context"
	"time"

	"github.com/lihan0705/lead-agent/logging"
)

// Runner executes one benchmark question and returns the raw model reply.
// The evaluator extracts and scores the final answer itself.
type Runner interface {
	Run(ctx context.Context, q Question) (string, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, q Question) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, q Question) (string, error) { return f(ctx, q) }

// Result is the outcome for a single question.
type Result struct {
	TaskID      string        `json:"task_id"`
	Level       int           `json:"level"`
	Question    string        `json:"question"`
	Prediction  string        `json:"prediction"`
	GroundTruth string        `json:"ground_truth"`
	Match       bool          `json:"match"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
}

// Report aggregates a full evaluation sweep.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Results   []Result  `json:"results"`
	Summary   Summary   `json:"summary"`
}

// EvaluateOptions configures an evaluation sweep.
type EvaluateOptions struct {
	Logger logging.Logger
}

// Evaluate runs every question through the runner and scores the replies.
// Runner failures are recorded on the affected result and the sweep
// continues; only context cancellation aborts it, returning the partial
// report alongside the context error.
func Evaluate(ctx context.Context, r Runner, questions []Question, optFns ...func(*EvaluateOptions)) (*Report, error) {
	opts := EvaluateOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	report := &Report{Timestamp: time.Now().UTC()}

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			report.Summary = Summarize(report.Results)
			return report, err
		}

		opts.Logger.Info("gaia.question.started",
			"index", i+1,
			"total", len(questions),
			"task_id", q.TaskID,
			"level", q.Level)

		start := time.Now()
		reply, err := r.Run(ctx, q)
		elapsed := time.Since(start)

		result := Result{
			TaskID:      q.TaskID,
			Level:       q.Level,
			Question:    q.Question,
			GroundTruth: q.FinalAnswer,
			Duration:    elapsed,
		}
		if err != nil {
			result.Error = err.Error()
			opts.Logger.Warn("gaia.question.failed", "task_id", q.TaskID, "error", err)
		} else {
			result.Prediction = ExtractFinalAnswer(reply)
			result.Match = QuasiExactMatch(result.Prediction, q.FinalAnswer)
			opts.Logger.Info("gaia.question.completed",
				"task_id", q.TaskID,
				"match", result.Match,
				"duration", elapsed.Round(time.Millisecond))
		}

		report.Results = append(report.Results, result)
	}

	report.Summary = Summarize(report.Results)
	return report, nil
}
