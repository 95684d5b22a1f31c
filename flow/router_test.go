package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/flowmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_TrimsDecisionAndDispatchesMatch(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", " a ")
	eng.reply("AgentA", "handled by A")
	eng.reply("fallback", "handled by fallback")

	r := NewRouter("triage", "classifier",
		map[string]Step{"a": Agent("AgentA")},
		WithDefaultRoute(Agent("fallback")),
	)
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.Equal(t, "handled by A", fc.Current().Content)
	assert.Equal(t, 0, eng.callCount("fallback"))

	// Target receives the original input, not the decision text.
	inputs := eng.inputsOf("AgentA")
	require.Len(t, inputs, 1)
	assert.Equal(t, "classify me", inputs[0].Content)

	v, ok := fc.Get(RouteKey("triage"))
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestRouter_DefaultRouteOnMiss(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "z")
	eng.reply("AgentA", "handled by A")
	eng.reply("fallback", "handled by fallback")

	r := NewRouter("triage", "classifier",
		map[string]Step{"a": Agent("AgentA")},
		WithDefaultRoute(Agent("fallback")),
	)
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.Equal(t, "handled by fallback", fc.Current().Content)
	assert.Equal(t, 0, eng.callCount("AgentA"))
}

func TestRouter_NoDefaultHaltsNamingKey(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "z")
	eng.reply("AgentA", "handled by A")

	r := NewRouter("triage", "classifier", map[string]Step{"a": Agent("AgentA")})
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Contains(t, fc.Current().Content, `"z"`)
	assert.Equal(t, 0, eng.callCount("AgentA"))
}

func TestRouter_MatchIsCaseSensitive(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "A")
	eng.reply("AgentA", "handled by A")

	r := NewRouter("triage", "classifier", map[string]Step{"a": Agent("AgentA")})
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Equal(t, 0, eng.callCount("AgentA"))
}

func TestRouter_TargetFailureHalts(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "a")
	eng.fail("AgentA", errors.New("boom"))

	r := NewRouter("triage", "classifier", map[string]Step{"a": Agent("AgentA")})
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Contains(t, fc.Current().Content, "boom")
}

func TestRouter_RouterAgentFailureHalts(t *testing.T) {
	eng := newStubEngine()
	eng.fail("classifier", errors.New("boom"))
	eng.reply("AgentA", "handled by A")

	r := NewRouter("triage", "classifier", map[string]Step{"a": Agent("AgentA")})
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	assert.True(t, fc.Terminated())
	assert.Equal(t, 0, eng.callCount("AgentA"))
}

func TestRouter_DecisionIsAuditOnly(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "a")
	eng.reply("AgentA", "handled by A")

	r := NewRouter("triage", "classifier", map[string]Step{"a": Agent("AgentA")})
	fc := NewContext(core.NewUserMessage("classify me"))

	require.NoError(t, r.Execute(context.Background(), eng, fc))

	var contents []string
	for _, m := range fc.History() {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "a")
	assert.Equal(t, "handled by A", fc.Current().Content)
}

func TestRouter_RoutesMapIsCopied(t *testing.T) {
	eng := newStubEngine()
	eng.reply("classifier", "a")
	eng.reply("AgentA", "handled by A")

	routes := map[string]Step{"a": Agent("AgentA")}
	r := NewRouter("triage", "classifier", routes)
	delete(routes, "a")

	fc := NewContext(core.NewUserMessage("classify me"))
	require.NoError(t, r.Execute(context.Background(), eng, fc))
	assert.Equal(t, "handled by A", fc.Current().Content)
}

func TestRouter_ResetAgents(t *testing.T) {
	eng := newStubEngine()

	r := NewRouter("triage", "classifier",
		map[string]Step{"a": Agent("AgentA")},
		WithDefaultRoute(Agent("fallback")),
	)
	require.NoError(t, r.ResetAgents(eng))
	assert.ElementsMatch(t, []string{"classifier", "AgentA", "fallback"}, eng.resets)
}
