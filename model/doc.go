// Package model defines the provider-agnostic generation interface consumed
// by model-backed agents, plus a deterministic MockModel for tests and
// examples. Concrete provider adapters live in the subpackages anthropic and
// openai.
package model
