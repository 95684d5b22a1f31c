package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hupe1980/flowmesh/core"
)

// ProcessingMode selects how a Delegate processes extracted tasks.
type ProcessingMode int

const (
	// ProcessingModeSequential runs tasks strictly in extraction order,
	// degrading and continuing on task failures.
	ProcessingModeSequential ProcessingMode = iota
	// ProcessingModeParallel runs tasks concurrently with the isolation and
	// aggregation semantics of the Parallel pattern.
	ProcessingModeParallel
)

// String returns the string representation of the processing mode.
func (m ProcessingMode) String() string {
	switch m {
	case ProcessingModeSequential:
		return "sequential"
	case ProcessingModeParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Delegate implements task decomposition: a delegator agent is called once
// with the pattern's input, zero or more task strings are extracted from its
// raw text output via a regular expression (dot matching across line breaks),
// and each task is processed by the delegatee, which may be an agent or a
// nested pattern.
//
// In sequential mode a task failure does not halt the loop: it is captured as
// an inline error string and, when chain-of-agents is enabled, the running
// summary is replaced with a note that an error occurred, so the next task
// still runs with degraded context. This intentionally differs from
// Sequential's fail-fast rule.
//
// With chain-of-agents enabled the summary agent is called on each task's
// output to produce the running summary fed to the next task, and the
// pattern's final result is the last task's raw output alone. When disabled
// the final result is all task outputs concatenated with separators, labeled
// by task index, under a header naming the pattern and task count.
type Delegate struct {
	name          string
	delegator     string
	delegatee     Step
	mode          ProcessingMode
	taskRegex     *regexp.Regexp
	contextRegex  *regexp.Regexp
	chainOfAgents bool
	summaryAgent  string
}

// DelegateOption customizes Delegate construction.
type DelegateOption func(*Delegate)

// WithProcessingMode selects sequential or parallel task processing. The
// default is sequential.
func WithProcessingMode(mode ProcessingMode) DelegateOption {
	return func(d *Delegate) { d.mode = mode }
}

// WithTaskRegex overrides the task extraction expression. The first capture
// group (or, absent one, the full match) is taken as the task text.
func WithTaskRegex(re *regexp.Regexp) DelegateOption {
	return func(d *Delegate) {
		if re != nil {
			d.taskRegex = re
		}
	}
}

// WithSharedContextRegex enables shared-context extraction from the
// delegator's output. The extracted text prefixes every task's input.
func WithSharedContextRegex(re *regexp.Regexp) DelegateOption {
	return func(d *Delegate) { d.contextRegex = re }
}

// WithChainOfAgents enables the chain-of-agents sequential mode: after each
// task, summaryAgent condenses the task output into the running summary fed
// to the next task. Only effective in sequential processing mode.
func WithChainOfAgents(summaryAgent string) DelegateOption {
	return func(d *Delegate) {
		d.chainOfAgents = true
		d.summaryAgent = summaryAgent
	}
}

// NewDelegate creates a delegate pattern decomposing work produced by the
// delegator agent into tasks processed by the delegatee step.
func NewDelegate(name, delegator string, delegatee Step, opts ...DelegateOption) *Delegate {
	d := &Delegate{
		name:      name,
		delegator: delegator,
		delegatee: delegatee,
		mode:      ProcessingModeSequential,
		taskRegex: DefaultTaskRegex,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements Pattern.
func (d *Delegate) Name() string { return d.name }

// Execute implements Pattern.
func (d *Delegate) Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error {
	decision, err := eng.CallAgent(ctx, d.delegator, fc.Current())
	if err != nil {
		if recoverable(err) {
			haltWithFailure(fc, d.name, fmt.Sprintf("Delegate %q halted: delegator %s failed: %v", d.name, d.delegator, err))
			return nil
		}
		return fmt.Errorf("delegate %s: delegator %s: %w", d.name, d.delegator, err)
	}
	fc.Observe(decision)

	tasks := extractTasks(d.taskRegex, decision.Content)
	if len(tasks) == 0 {
		extractErr := &TaskExtractionEmptyError{Agent: d.delegator}
		haltWithFailure(fc, d.name, fmt.Sprintf("Delegate %q halted: %v", d.name, extractErr))
		return nil
	}

	var shared string
	if d.contextRegex != nil {
		shared = extractSharedContext(d.contextRegex, decision.Content)
	}

	fc.Logger().Debug("Delegate extracted tasks", "pattern", d.name, "tasks", len(tasks), "mode", d.mode.String())

	if d.mode == ProcessingModeParallel {
		return d.executeParallel(ctx, eng, fc, tasks, shared)
	}
	return d.executeSequential(ctx, eng, fc, tasks, shared)
}

// runTask dispatches a single task input to the delegatee. Agent delegatees
// are called directly; pattern delegatees execute against a freshly forked
// branch whose history the caller splices back.
func (d *Delegate) runTask(ctx context.Context, eng core.Engine, fc *FlowContext, input core.Message) (core.Message, *FlowContext, error) {
	switch step := d.delegatee.(type) {
	case AgentStep:
		out, err := eng.CallAgent(ctx, step.Name, input)
		return out, nil, err
	case PatternStep:
		if step.Pattern == nil {
			return core.Message{}, nil, &UnsupportedStepError{Step: d.delegatee}
		}
		branch := fc.Fork(input)
		if err := step.Pattern.Execute(ctx, eng, branch); err != nil {
			return core.Message{}, branch, err
		}
		return branch.Current(), branch, nil
	default:
		return core.Message{}, nil, &UnsupportedStepError{Step: d.delegatee}
	}
}

// executeParallel mirrors the Parallel pattern's isolation and aggregation
// semantics, with every task's input prefixed by the shared context.
func (d *Delegate) executeParallel(ctx context.Context, eng core.Engine, fc *FlowContext, tasks []string, shared string) error {
	type taskOutcome struct {
		out    core.Message
		branch *FlowContext
		err    error
	}
	outcomes := make([]taskOutcome, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, task string) {
			defer wg.Done()
			out, branch, err := d.runTask(ctx, eng, fc, delegateTaskInput(shared, "", task))
			outcomes[idx] = taskOutcome{out: out, branch: branch, err: err}
		}(i, task)
	}
	wg.Wait()

	for i, o := range outcomes {
		if o.err != nil && !recoverable(o.err) {
			return fmt.Errorf("delegate %s: task %d: %w", d.name, i+1, o.err)
		}
	}

	results := make([]TaskResult, len(tasks))
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			results[i] = TaskResult{Index: i, Task: tasks[i], Error: o.err.Error()}
		case o.branch != nil && o.branch.Terminated():
			results[i] = TaskResult{Index: i, Task: tasks[i], Error: o.branch.Current().Content}
		default:
			results[i] = TaskResult{Index: i, Task: tasks[i], Output: o.out.Content}
		}
	}

	// Merge branch state back in declared order, never completion order.
	for _, o := range outcomes {
		if o.branch != nil {
			fc.SpliceHistory(o.branch)
			fc.MergeShared(o.branch)
		} else if o.err == nil {
			fc.Observe(o.out)
		}
	}

	fc.Set(ResultsKey(d.name), results)
	header := fmt.Sprintf("Delegate %q processed %d task(s) in parallel:", d.name, len(results))
	fc.SetCurrent(core.NewAssistantMessage(d.name, summarizeTasks(header, results)))

	return nil
}

// executeSequential runs tasks strictly in order, degrading and continuing on
// failures rather than halting.
func (d *Delegate) executeSequential(ctx context.Context, eng core.Engine, fc *FlowContext, tasks []string, shared string) error {
	results := make([]TaskResult, 0, len(tasks))
	var summary string
	var last core.Message

	for i, task := range tasks {
		out, branch, err := d.runTask(ctx, eng, fc, delegateTaskInput(shared, summary, task))
		if branch != nil {
			fc.SpliceHistory(branch)
			fc.MergeShared(branch)
		}

		var failText string
		switch {
		case err != nil && !recoverable(err):
			return fmt.Errorf("delegate %s: task %d: %w", d.name, i+1, err)
		case err != nil:
			failText = err.Error()
		case branch != nil && branch.Terminated():
			failText = branch.Current().Content
		}

		if failText != "" {
			fc.Logger().Warn("Delegate task failed, continuing with degraded context", "pattern", d.name, "task", i+1, "error", failText)
			results = append(results, TaskResult{Index: i, Task: task, Error: failText})
			last = core.NewAssistantMessage(d.name, fmt.Sprintf("[task %d error: %s]", i+1, failText))
			if d.chainOfAgents {
				summary = fmt.Sprintf("An error occurred while processing task %d: %s", i+1, failText)
			}
			continue
		}

		if branch == nil {
			fc.Observe(out)
		}
		results = append(results, TaskResult{Index: i, Task: task, Output: out.Content})
		last = out

		if d.chainOfAgents {
			sumOut, err := eng.CallAgent(ctx, d.summaryAgent, core.NewUserMessage(out.Content))
			if err != nil {
				if !recoverable(err) {
					return fmt.Errorf("delegate %s: summary agent %s: %w", d.name, d.summaryAgent, err)
				}
				summary = fmt.Sprintf("An error occurred while summarizing task %d: %v", i+1, err)
			} else {
				fc.Observe(sumOut)
				summary = sumOut.Content
			}
		}
	}

	fc.Set(ResultsKey(d.name), results)

	if d.chainOfAgents {
		// The running summary bounded each task's context; the final result
		// is the last task's raw output alone.
		fc.SetCurrent(last)
		return nil
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			parts = append(parts, fmt.Sprintf("Task %d:\n[error: %s]", r.Index+1, r.Error))
		} else {
			parts = append(parts, fmt.Sprintf("Task %d:\n%s", r.Index+1, r.Output))
		}
	}
	header := fmt.Sprintf("Delegate %q processed %d task(s):", d.name, len(results))
	fc.SetCurrent(core.NewAssistantMessage(d.name, header+"\n\n"+strings.Join(parts, "\n\n---\n\n")))

	return nil
}

// ResetAgents implements Pattern.
func (d *Delegate) ResetAgents(eng core.Engine) error {
	if err := eng.ResetAgent(d.delegator); err != nil {
		return fmt.Errorf("reset agent %s: %w", d.delegator, err)
	}
	if err := resetSteps(eng, d.delegatee); err != nil {
		return err
	}
	if d.summaryAgent != "" {
		if err := eng.ResetAgent(d.summaryAgent); err != nil {
			return fmt.Errorf("reset agent %s: %w", d.summaryAgent, err)
		}
	}
	return nil
}

// delegateTaskInput composes one task's input message from the optional
// shared context, the optional running summary and the task text.
func delegateTaskInput(shared, summary, task string) core.Message {
	var b strings.Builder
	if shared != "" {
		b.WriteString("Shared context:\n")
		b.WriteString(shared)
		b.WriteString("\n\n")
	}
	if summary != "" {
		b.WriteString("Progress summary so far:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	b.WriteString(task)
	return core.NewUserMessage(b.String())
}
