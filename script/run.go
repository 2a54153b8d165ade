package script

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/action"
	"github.com/wippyai/wasm-bridge/boundary"
)

// Executor runs one command.
type Executor interface {
	Execute(ctx context.Context, a action.Action) ([]boundary.Value, error)
}

// Outcome is the result of running one step.
type Outcome struct {
	Step   Step
	Values []boundary.Value
	// Err is the error returned by the executor.
	Err error
	// Failure is set when the step's assertion did not hold.
	Failure error
	Skipped bool
}

// Report summarizes a run.
type Report struct {
	Source   string
	Passed   int
	Failed   int
	Skipped  int
	Failures []Outcome
}

// Total returns the number of steps seen.
func (r Report) Total() int {
	return r.Passed + r.Failed + r.Skipped
}

// RunStep executes and checks a single step.
func RunStep(ctx context.Context, exec Executor, step Step) Outcome {
	out := Outcome{Step: step}
	if step.Skip != "" || step.Action == nil {
		out.Skipped = true
		return out
	}

	out.Values, out.Err = exec.Execute(ctx, step.Action)
	if err := step.Check(out.Values, out.Err); err != nil {
		if stderrors.Is(err, ErrSkip) {
			out.Skipped = true
		} else {
			out.Failure = err
		}
	}
	return out
}

// Add counts out in the report.
func (r *Report) Add(out Outcome) {
	switch {
	case out.Skipped:
		r.Skipped++
	case out.Failure != nil:
		r.Failed++
		r.Failures = append(r.Failures, out)
	default:
		r.Passed++
	}
}

// Run executes every step of s in order. Failed steps do not stop the run.
// observe, when not nil, is called after each step.
func Run(ctx context.Context, exec Executor, s *Script, observe func(Outcome)) Report {
	report := Report{Source: s.Source}
	for _, step := range s.Steps {
		if ctx.Err() != nil {
			break
		}
		out := RunStep(ctx, exec, step)
		report.Add(out)
		if out.Failure != nil {
			Logger().Info("step failed",
				zap.String("source", s.Source),
				zap.Int("line", step.Line),
				zap.String("kind", string(step.Kind)),
				zap.Error(out.Failure))
		}
		if observe != nil {
			observe(out)
		}
	}
	return report
}
