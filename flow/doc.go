// Package flow implements the FlowMesh control-flow engine: the FlowContext
// execution carrier, the five composable patterns (Sequential, Parallel,
// Router, Discussion, Delegate) and the top-level Flow sequencer.
//
// Patterns are immutable configuration objects. They are constructed once,
// hold no per-run state, and may be executed concurrently by any number of
// runs. All mutable state lives in the FlowContext threaded through a single
// execution (or forked into branch-local copies for concurrent fan-out).
//
// Agent invocation is delegated to an injected core.Engine; this package
// never decides what an agent does internally, it only sequences, branches,
// merges and reports already-available agent-call results.
//
// Expected, described failures (a failed agent call, an unmatched route key,
// an empty task extraction, a malformed step) are recovered at the pattern
// that detects them and surface as an ordinary terminal Message in the
// FlowContext. Only genuinely unexpected defects propagate as Go errors out
// of Execute.
package flow
