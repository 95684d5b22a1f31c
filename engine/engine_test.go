package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/flowmesh/core"
	"github.com/hupe1980/flowmesh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAgent for testing engine dispatch
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Call(ctx context.Context, msg core.Message) (core.Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(core.Message), args.Error(1)
}

func (m *MockAgent) Reset() { m.Called() }

func TestEngine_Register(t *testing.T) {
	t.Run("registers and lists agents sorted", func(t *testing.T) {
		eng := New()
		require.NoError(t, eng.Register(NewMockAgent("zeta")))
		require.NoError(t, eng.Register(NewMockAgent("alpha")))

		assert.Equal(t, []string{"alpha", "zeta"}, eng.Agents())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		eng := New()
		require.NoError(t, eng.Register(NewMockAgent("a")))

		err := eng.Register(NewMockAgent("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})
}

func TestEngine_CallAgent(t *testing.T) {
	t.Run("dispatches to the named agent", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)

		eng := New()
		require.NoError(t, eng.Register(a))

		out, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.NoError(t, err)
		assert.Equal(t, "out", out.Content)
		a.AssertExpectations(t)
	})

	t.Run("unknown agent yields ErrAgentNotFound", func(t *testing.T) {
		eng := New()

		_, err := eng.CallAgent(context.Background(), "ghost", core.NewUserMessage("in"))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrAgentNotFound)

		var invocationErr *core.AgentInvocationError
		require.ErrorAs(t, err, &invocationErr)
		assert.Equal(t, "ghost", invocationErr.Agent)
	})

	t.Run("defaults response name to the agent name", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.Message{Role: core.RoleAssistant, Content: "out"}, nil)

		eng := New()
		require.NoError(t, eng.Register(a))

		out, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.NoError(t, err)
		assert.Equal(t, "echo", out.Name)
	})

	t.Run("wraps agent errors as invocation errors", func(t *testing.T) {
		a := NewMockAgent("flaky")
		a.On("Call", mock.Anything, mock.Anything).Return(core.Message{}, errors.New("boom"))

		eng := New()
		require.NoError(t, eng.Register(a))

		_, err := eng.CallAgent(context.Background(), "flaky", core.NewUserMessage("in"))
		require.Error(t, err)

		var invocationErr *core.AgentInvocationError
		require.ErrorAs(t, err, &invocationErr)
		assert.Contains(t, invocationErr.Error(), "boom")
	})

	t.Run("enforces the call limit", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)

		eng := New(WithConfig(Config{MaxCalls: 2}))
		require.NoError(t, eng.Register(a))

		for i := 0; i < 2; i++ {
			_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
			require.NoError(t, err)
		}

		_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeded max agent calls")
	})
}

func TestEngine_Callbacks(t *testing.T) {
	t.Run("before and after callbacks run around the call", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)

		var order []string
		cb := NewCallbackRegistry()
		cb.Register(CallbackBeforeCall, func(_ context.Context, cc *CallbackContext) error {
			order = append(order, "before:"+cc.Agent)
			assert.Nil(t, cc.Response)
			return nil
		})
		cb.Register(CallbackAfterCall, func(_ context.Context, cc *CallbackContext) error {
			order = append(order, "after:"+cc.Agent)
			require.NotNil(t, cc.Response)
			assert.Equal(t, "out", cc.Response.Content)
			return nil
		})

		eng := New(WithCallbacks(cb))
		require.NoError(t, eng.Register(a))

		_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.NoError(t, err)
		assert.Equal(t, []string{"before:echo", "after:echo"}, order)
	})

	t.Run("before-call error fails the invocation", func(t *testing.T) {
		a := NewMockAgent("echo")

		cb := NewCallbackRegistry()
		cb.Register(CallbackBeforeCall, func(context.Context, *CallbackContext) error {
			return errors.New("denied")
		})

		eng := New(WithCallbacks(cb))
		require.NoError(t, eng.Register(a))

		_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
		a.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
	})

	t.Run("metadata reaches the callback context", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)

		var seen map[string]any
		cb := NewCallbackRegistry()
		cb.Register(CallbackBeforeCall, func(_ context.Context, cc *CallbackContext) error {
			seen = cc.Metadata
			return nil
		})

		eng := New(WithCallbacks(cb))
		require.NoError(t, eng.Register(a))

		_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"),
			core.WithCallMetadata("flow", "pipeline"))
		require.NoError(t, err)
		assert.Equal(t, "pipeline", seen["flow"])
	})
}

// recordingCallLogger captures per-dispatch records routed through the
// AgentCallLogger interface.
type recordingCallLogger struct {
	logging.NoOpLogger
	mu      sync.Mutex
	records []string
}

func (l *recordingCallLogger) LogAgentCall(agent string, _ time.Duration, success bool, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, fmt.Sprintf("%s success=%t", agent, success))
}

func TestEngine_RoutesCallOutcomesToAgentCallLogger(t *testing.T) {
	echo := NewMockAgent("echo")
	echo.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)
	flaky := NewMockAgent("flaky")
	flaky.On("Call", mock.Anything, mock.Anything).Return(core.Message{}, errors.New("boom"))

	rec := &recordingCallLogger{}
	eng := New(WithLogger(rec))
	require.NoError(t, eng.Register(echo))
	require.NoError(t, eng.Register(flaky))

	_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
	require.NoError(t, err)
	_, err = eng.CallAgent(context.Background(), "flaky", core.NewUserMessage("in"))
	require.Error(t, err)

	assert.Equal(t, []string{"echo success=true", "flaky success=false"}, rec.records)
}

func TestEngine_Reset(t *testing.T) {
	t.Run("ResetAgent resets the named agent", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Reset").Return()

		eng := New()
		require.NoError(t, eng.Register(a))

		require.NoError(t, eng.ResetAgent("echo"))
		a.AssertCalled(t, "Reset")
	})

	t.Run("ResetAgent on unknown agent fails", func(t *testing.T) {
		eng := New()

		err := eng.ResetAgent("ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrAgentNotFound)
	})

	t.Run("ResetAll resets agents and clears the limiter", func(t *testing.T) {
		a := NewMockAgent("echo")
		a.On("Call", mock.Anything, mock.Anything).Return(core.NewAssistantMessage("echo", "out"), nil)
		a.On("Reset").Return()

		eng := New(WithConfig(Config{MaxCalls: 1}))
		require.NoError(t, eng.Register(a))

		_, err := eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.NoError(t, err)
		_, err = eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.Error(t, err)

		eng.ResetAll()
		a.AssertCalled(t, "Reset")

		_, err = eng.CallAgent(context.Background(), "echo", core.NewUserMessage("in"))
		require.NoError(t, err)
	})
}
