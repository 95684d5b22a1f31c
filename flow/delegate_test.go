package flow

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/hupe1980/flowmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegate_ChainOfAgents(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<task>first task</task><task>second task</task>")
	eng.replies("worker", "O1", "O2")
	eng.replies("summarizer", "S1", "S2")

	d := NewDelegate("research", "planner", Agent("worker"),
		WithChainOfAgents("summarizer"))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	// Task two carries the running summary of task one.
	workerInputs := eng.inputsOf("worker")
	require.Len(t, workerInputs, 2)
	assert.Equal(t, "first task", workerInputs[0].Content)
	assert.Contains(t, workerInputs[1].Content, "Progress summary so far:\nS1")
	assert.Contains(t, workerInputs[1].Content, "second task")

	// Summary agent runs after every task, including the last one.
	assert.Equal(t, 2, eng.callCount("summarizer"))

	// In chain mode the final result is the last task's raw output alone.
	assert.Equal(t, "O2", fc.Current().Content)
}

func TestDelegate_SequentialDegradesAndContinues(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<task>t1</task><task>t2</task>")
	var n int
	eng.on("worker", func(core.Message) (core.Message, error) {
		n++
		if n == 1 {
			return core.Message{}, core.NewAgentInvocationError("worker", errors.New("boom"))
		}
		return core.NewAssistantMessage("worker", "O2"), nil
	})
	eng.reply("summarizer", "S2")

	d := NewDelegate("research", "planner", Agent("worker"),
		WithChainOfAgents("summarizer"))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	// Task two still ran, with a degraded summary in its input.
	workerInputs := eng.inputsOf("worker")
	require.Len(t, workerInputs, 2)
	assert.Contains(t, workerInputs[1].Content, "An error occurred while processing task 1")

	// The failure is captured in the artifact list, not terminal.
	assert.False(t, fc.Terminated())
	v, ok := fc.Get(ResultsKey("research"))
	require.True(t, ok)
	results := v.([]TaskResult)
	require.Len(t, results, 2)
	assert.True(t, results[0].Failed())
	assert.Equal(t, "O2", results[1].Output)
	assert.Equal(t, "O2", fc.Current().Content)
}

func TestDelegate_ZeroTasksHalts(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "no structured tasks here")
	eng.reply("worker", "never reached")

	d := NewDelegate("research", "planner", Agent("worker"))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Contains(t, fc.Current().Content, "planner")
	assert.Equal(t, 0, eng.callCount("worker"))
}

func TestDelegate_SharedContextPrefixesEveryTask(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<shared_context>repo layout</shared_context><task>t1</task><task>t2</task>")
	eng.reply("worker", "done")

	d := NewDelegate("research", "planner", Agent("worker"),
		WithSharedContextRegex(DefaultSharedContextRegex))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	for _, in := range eng.inputsOf("worker") {
		assert.Contains(t, in.Content, "Shared context:\nrepo layout")
	}
}

func TestDelegate_NonChainConcatenation(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<task>t1</task><task>t2</task>")
	eng.replies("worker", "O1", "O2")

	d := NewDelegate("research", "planner", Agent("worker"))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	out := fc.Current().Content
	assert.Contains(t, out, `Delegate "research" processed 2 task(s):`)
	assert.Contains(t, out, "Task 1:\nO1")
	assert.Contains(t, out, "Task 2:\nO2")
	assert.Contains(t, out, "\n\n---\n\n")
}

func TestDelegate_ParallelMode(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<task>t1</task><task>t2</task><task>t3</task>")
	eng.on("worker", func(msg core.Message) (core.Message, error) {
		if msg.Content == "t2" {
			return core.Message{}, core.NewAgentInvocationError("worker", errors.New("boom"))
		}
		return core.NewAssistantMessage("worker", "done: "+msg.Content), nil
	})

	d := NewDelegate("research", "planner", Agent("worker"),
		WithProcessingMode(ProcessingModeParallel))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	assert.False(t, fc.Terminated())
	v, ok := fc.Get(ResultsKey("research"))
	require.True(t, ok)
	results := v.([]TaskResult)
	require.Len(t, results, 3)
	assert.Equal(t, "done: t1", results[0].Output)
	assert.True(t, results[1].Failed())
	assert.Equal(t, "done: t3", results[2].Output)
	assert.Contains(t, fc.Current().Content, "in parallel")
}

func TestDelegate_PatternDelegateeSplicesHistory(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "<task>t1</task>")
	eng.reply("inner", "inner output")

	inner := NewSequential("inner-chain", Agent("inner"))
	d := NewDelegate("research", "planner", Nested(inner))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	var contents []string
	for _, m := range fc.History() {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "inner output")
	assert.Contains(t, fc.Current().Content, "inner output")
}

func TestDelegate_CustomTaskRegex(t *testing.T) {
	eng := newStubEngine()
	eng.reply("planner", "- do a\n- do b")
	eng.reply("worker", "done")

	re := regexp.MustCompile(`(?m)^- (.+)$`)
	d := NewDelegate("research", "planner", Agent("worker"), WithTaskRegex(re))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	inputs := eng.inputsOf("worker")
	require.Len(t, inputs, 2)
	assert.Equal(t, "do a", inputs[0].Content)
	assert.Equal(t, "do b", inputs[1].Content)
}

func TestDelegate_DelegatorFailureHalts(t *testing.T) {
	eng := newStubEngine()
	eng.fail("planner", errors.New("boom"))

	d := NewDelegate("research", "planner", Agent("worker"))
	fc := NewContext(core.NewUserMessage("plan this"))

	require.NoError(t, d.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Contains(t, fc.Current().Content, "planner")
}

func TestDelegate_ResetAgents(t *testing.T) {
	eng := newStubEngine()

	d := NewDelegate("research", "planner", Agent("worker"),
		WithChainOfAgents("summarizer"))
	require.NoError(t, d.ResetAgents(eng))
	assert.Equal(t, []string{"planner", "worker", "summarizer"}, eng.resets)
}
