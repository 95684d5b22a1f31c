package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/flowmesh/core"
)

// RouteKey returns the shared-data key a Router publishes its chosen route
// key under.
func RouteKey(pattern string) string { return pattern + ".route" }

// Router performs content-based branching. It calls exactly one router agent
// with the pattern's input, trims the agent's textual output and uses it
// verbatim as a route key: exact string match, case sensitive, only
// surrounding whitespace normalized.
//
// On a match the corresponding target is dispatched with the same input the
// router agent saw, never with the router agent's textual decision. On no
// match the default route is dispatched if configured; otherwise the pattern
// halts with a terminal message naming the unmatched key. Once a target is
// chosen, Router is fail-fast: a target error halts the pattern.
type Router struct {
	name        string
	routerAgent string
	routes      map[string]Step
	defaultStep Step
}

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// WithDefaultRoute configures the fallback target dispatched when the route
// key matches no configured route. The default is never called on a match.
func WithDefaultRoute(s Step) RouterOption {
	return func(r *Router) { r.defaultStep = s }
}

// NewRouter creates a router dispatching on the textual decision of
// routerAgent. The routes map is copied so the pattern stays immutable.
func NewRouter(name, routerAgent string, routes map[string]Step, opts ...RouterOption) *Router {
	copied := make(map[string]Step, len(routes))
	for k, v := range routes {
		copied[k] = v
	}
	r := &Router{name: name, routerAgent: routerAgent, routes: copied}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Pattern.
func (r *Router) Name() string { return r.name }

// Execute implements Pattern.
func (r *Router) Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error {
	input := fc.Current()

	decision, err := eng.CallAgent(ctx, r.routerAgent, input)
	if err != nil {
		if recoverable(err) {
			haltWithFailure(fc, r.name, fmt.Sprintf("Router %q halted: router agent failed: %v", r.name, err))
			return nil
		}
		return fmt.Errorf("router %s: router agent %s: %w", r.name, r.routerAgent, err)
	}
	// The decision is audit-only; the chosen target consumes the original input.
	fc.Observe(decision)

	key := strings.TrimSpace(decision.Content)
	fc.Set(RouteKey(r.name), key)

	target, ok := r.routes[key]
	if !ok {
		if r.defaultStep == nil {
			routeErr := &RoutingKeyNotFoundError{Key: key}
			haltWithFailure(fc, r.name, fmt.Sprintf("Router %q halted: %v", r.name, routeErr))
			return nil
		}
		target = r.defaultStep
	}

	if err := runStep(ctx, eng, fc, target); err != nil {
		if recoverable(err) {
			haltWithFailure(fc, r.name, fmt.Sprintf("Router %q halted: target %s failed: %v", r.name, stepLabel(target), err))
			return nil
		}
		return fmt.Errorf("router %s: target %s: %w", r.name, stepLabel(target), err)
	}
	return nil
}

// ResetAgents implements Pattern.
func (r *Router) ResetAgents(eng core.Engine) error {
	if err := eng.ResetAgent(r.routerAgent); err != nil {
		return fmt.Errorf("reset agent %s: %w", r.routerAgent, err)
	}
	for _, s := range r.routes {
		if err := resetSteps(eng, s); err != nil {
			return err
		}
	}
	if r.defaultStep != nil {
		return resetSteps(eng, r.defaultStep)
	}
	return nil
}
