package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// TaskResult is the structured per-task artifact concurrent patterns publish
// in shared data under ResultsKey(pattern). Exactly one of Output and Error
// is meaningful; Index is the task's declaration index.
type TaskResult struct {
	Index  int    `json:"index"`
	Task   string `json:"task"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the task ended in a captured error.
func (r TaskResult) Failed() bool { return r.Error != "" }

// ResultsKey returns the shared-data key a concurrent pattern publishes its
// per-task artifact list under.
func ResultsKey(pattern string) string { return pattern + ".results" }

// Parallel executes its tasks concurrently, each against an independent
// branch context forked from the same input, and aggregates the outcomes in
// declared task order once every branch has finished.
//
// Parallel isolates failures instead of failing fast: a failing task never
// aborts the pattern and never cancels its siblings. The aggregated summary
// message textually marks which tasks failed, and the per-task artifact list
// records the captured error strings.
//
// Shared data written by branches is merged back last-writer-wins per key,
// iterated in declared task order. Two branches writing the same key is a
// documented race resolved deterministically by task index.
type Parallel struct {
	name  string
	tasks []Step
}

// NewParallel creates a concurrent fan-out over the given tasks.
func NewParallel(name string, tasks ...Step) *Parallel {
	return &Parallel{name: name, tasks: tasks}
}

// Name implements Pattern.
func (p *Parallel) Name() string { return p.name }

// Execute implements Pattern. All branches run to completion regardless of
// individual failure; only a genuine internal defect propagates, and even
// then only after every branch has finished.
func (p *Parallel) Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error {
	input := fc.Current()

	type branchOutcome struct {
		branch *FlowContext
		err    error
	}
	outcomes := make([]branchOutcome, len(p.tasks))

	var wg sync.WaitGroup
	for i, task := range p.tasks {
		wg.Add(1)
		go func(idx int, t Step) {
			defer wg.Done()
			branch := fc.Fork(input)
			err := runStep(ctx, eng, branch, t)
			outcomes[idx] = branchOutcome{branch: branch, err: err}
		}(i, task)
	}
	wg.Wait()

	// Internal defects propagate; domain failures are captured per task.
	for i, o := range outcomes {
		if o.err != nil && !recoverable(o.err) {
			return fmt.Errorf("parallel %s: task %d (%s): %w", p.name, i+1, stepLabel(p.tasks[i]), o.err)
		}
	}

	results := make([]TaskResult, len(p.tasks))
	for i, o := range outcomes {
		label := stepLabel(p.tasks[i])
		switch {
		case o.err != nil:
			results[i] = TaskResult{Index: i, Task: label, Error: o.err.Error()}
		case o.branch.Terminated():
			// A nested pattern emitted its own terminal failure message.
			results[i] = TaskResult{Index: i, Task: label, Error: o.branch.Current().Content}
		default:
			results[i] = TaskResult{Index: i, Task: label, Output: o.branch.Current().Content}
		}
	}

	// Merge branch state back in declared order, never completion order.
	for _, o := range outcomes {
		fc.SpliceHistory(o.branch)
		fc.MergeShared(o.branch)
	}

	fc.Set(ResultsKey(p.name), results)
	header := fmt.Sprintf("Parallel %q completed %d task(s):", p.name, len(results))
	fc.SetCurrent(core.NewAssistantMessage(p.name, summarizeTasks(header, results)))

	return nil
}

// ResetAgents implements Pattern.
func (p *Parallel) ResetAgents(eng core.Engine) error {
	return resetSteps(eng, p.tasks...)
}

// summarizeTasks renders the aggregated result message body for a set of
// task results, in index order.
func summarizeTasks(header string, results []TaskResult) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, r := range results {
		b.WriteString(fmt.Sprintf("\n[%d] %s: ", r.Index+1, r.Task))
		if r.Failed() {
			b.WriteString("ERROR: ")
			b.WriteString(r.Error)
		} else {
			b.WriteString(r.Output)
		}
	}
	return b.String()
}
