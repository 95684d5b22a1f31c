// Package engine provides the registry-backed implementation of core.Engine:
// named agents registered at setup time, dispatched by flow steps through
// CallAgent, with an optional call limiter and lifecycle callbacks.
package engine
