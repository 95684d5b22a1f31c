// Package core provides the foundational domain types shared across
// FlowMesh. It defines:
//
//   - Message (the immutable value object exchanged between flow steps)
//   - Engine (the dispatch boundary resolving agent names to invocations)
//   - AgentInvocationError (the failure signal of the Engine boundary)
//
// The package intentionally keeps implementation concerns (concrete engines,
// agents, model providers, control-flow patterns) out of scope, exposing
// small interfaces so higher layers can be composed and tested in isolation.
package core
