// Package config loads declarative YAML flow definitions and compiles them
// into flow.Flow / flow.Pattern trees. The step schema mirrors the tagged
// step union: every step is either an agent reference or exactly one nested
// pattern definition.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/hupe1980/flowmesh/flow"
	"gopkg.in/yaml.v3"
)

// FlowDefinition is the YAML schema of a declarative flow.
type FlowDefinition struct {
	Name  string           `yaml:"name"`
	Steps []StepDefinition `yaml:"steps"`
}

// StepDefinition describes one step: an agent name or exactly one nested
// pattern definition.
type StepDefinition struct {
	Agent      string                `yaml:"agent,omitempty"`
	Sequential *SequentialDefinition `yaml:"sequential,omitempty"`
	Parallel   *ParallelDefinition   `yaml:"parallel,omitempty"`
	Router     *RouterDefinition     `yaml:"router,omitempty"`
	Discussion *DiscussionDefinition `yaml:"discussion,omitempty"`
	Delegate   *DelegateDefinition   `yaml:"delegate,omitempty"`
}

// SequentialDefinition describes a sequential pattern.
type SequentialDefinition struct {
	Name  string           `yaml:"name"`
	Steps []StepDefinition `yaml:"steps"`
}

// ParallelDefinition describes a parallel pattern.
type ParallelDefinition struct {
	Name  string           `yaml:"name"`
	Tasks []StepDefinition `yaml:"tasks"`
}

// RouterDefinition describes a router pattern.
type RouterDefinition struct {
	Name    string                    `yaml:"name"`
	Agent   string                    `yaml:"agent"`
	Routes  map[string]StepDefinition `yaml:"routes"`
	Default *StepDefinition           `yaml:"default,omitempty"`
}

// DiscussionDefinition describes a discussion pattern.
type DiscussionDefinition struct {
	Name         string   `yaml:"name"`
	Participants []string `yaml:"participants"`
	Rounds       int      `yaml:"rounds"`
	Moderator    string   `yaml:"moderator,omitempty"`
	StopPhrase   string   `yaml:"stop_phrase,omitempty"`
}

// DelegateDefinition describes a delegate pattern.
type DelegateDefinition struct {
	Name               string          `yaml:"name"`
	Delegator          string          `yaml:"delegator"`
	Delegatee          *StepDefinition `yaml:"delegatee"`
	Mode               string          `yaml:"mode,omitempty"` // "sequential" (default) or "parallel"
	TaskRegex          string          `yaml:"task_regex,omitempty"`
	SharedContextRegex string          `yaml:"shared_context_regex,omitempty"`
	ChainOfAgents      bool            `yaml:"chain_of_agents,omitempty"`
	SummaryAgent       string          `yaml:"summary_agent,omitempty"`
}

// LoadFile reads a YAML flow definition from path and compiles it.
func LoadFile(path string) (*flow.Flow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow definition: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a YAML flow definition from r and compiles it.
func Load(r io.Reader) (*flow.Flow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read flow definition: %w", err)
	}
	return Parse(data)
}

// Parse compiles a YAML flow definition into a Flow.
func Parse(data []byte) (*flow.Flow, error) {
	var def FlowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal flow definition: %w", err)
	}
	return Build(def)
}

// Build compiles a parsed flow definition into a Flow.
func Build(def FlowDefinition) (*flow.Flow, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("flow definition requires a name")
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("flow %q defines no steps", def.Name)
	}
	steps, err := buildSteps(def.Steps)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", def.Name, err)
	}
	return flow.New(def.Name, steps...), nil
}

func buildSteps(defs []StepDefinition) ([]flow.Step, error) {
	steps := make([]flow.Step, 0, len(defs))
	for i, def := range defs {
		step, err := buildStep(def)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(def StepDefinition) (flow.Step, error) {
	variants := 0
	if def.Agent != "" {
		variants++
	}
	for _, set := range []bool{def.Sequential != nil, def.Parallel != nil, def.Router != nil, def.Discussion != nil, def.Delegate != nil} {
		if set {
			variants++
		}
	}
	if variants != 1 {
		return nil, fmt.Errorf("step must define exactly one of agent, sequential, parallel, router, discussion, delegate")
	}

	switch {
	case def.Agent != "":
		return flow.Agent(def.Agent), nil
	case def.Sequential != nil:
		steps, err := buildSteps(def.Sequential.Steps)
		if err != nil {
			return nil, fmt.Errorf("sequential %q: %w", def.Sequential.Name, err)
		}
		return flow.Nested(flow.NewSequential(def.Sequential.Name, steps...)), nil
	case def.Parallel != nil:
		tasks, err := buildSteps(def.Parallel.Tasks)
		if err != nil {
			return nil, fmt.Errorf("parallel %q: %w", def.Parallel.Name, err)
		}
		return flow.Nested(flow.NewParallel(def.Parallel.Name, tasks...)), nil
	case def.Router != nil:
		return buildRouter(def.Router)
	case def.Discussion != nil:
		return buildDiscussion(def.Discussion)
	default:
		return buildDelegate(def.Delegate)
	}
}

func buildRouter(def *RouterDefinition) (flow.Step, error) {
	if def.Agent == "" {
		return nil, fmt.Errorf("router %q requires an agent", def.Name)
	}
	routes := make(map[string]flow.Step, len(def.Routes))
	for key, stepDef := range def.Routes {
		step, err := buildStep(stepDef)
		if err != nil {
			return nil, fmt.Errorf("router %q route %q: %w", def.Name, key, err)
		}
		routes[key] = step
	}
	var opts []flow.RouterOption
	if def.Default != nil {
		step, err := buildStep(*def.Default)
		if err != nil {
			return nil, fmt.Errorf("router %q default route: %w", def.Name, err)
		}
		opts = append(opts, flow.WithDefaultRoute(step))
	}
	return flow.Nested(flow.NewRouter(def.Name, def.Agent, routes, opts...)), nil
}

func buildDiscussion(def *DiscussionDefinition) (flow.Step, error) {
	if len(def.Participants) == 0 {
		return nil, fmt.Errorf("discussion %q requires participants", def.Name)
	}
	if def.Rounds < 1 {
		return nil, fmt.Errorf("discussion %q requires at least one round", def.Name)
	}
	var opts []flow.DiscussionOption
	if def.Moderator != "" {
		opts = append(opts, flow.WithModerator(def.Moderator))
	}
	if def.StopPhrase != "" {
		opts = append(opts, flow.WithStopPhrase(def.StopPhrase))
	}
	return flow.Nested(flow.NewDiscussion(def.Name, def.Participants, def.Rounds, opts...)), nil
}

func buildDelegate(def *DelegateDefinition) (flow.Step, error) {
	if def.Delegator == "" {
		return nil, fmt.Errorf("delegate %q requires a delegator", def.Name)
	}
	if def.Delegatee == nil {
		return nil, fmt.Errorf("delegate %q requires a delegatee", def.Name)
	}
	delegatee, err := buildStep(*def.Delegatee)
	if err != nil {
		return nil, fmt.Errorf("delegate %q delegatee: %w", def.Name, err)
	}

	var opts []flow.DelegateOption
	switch def.Mode {
	case "", "sequential":
	case "parallel":
		opts = append(opts, flow.WithProcessingMode(flow.ProcessingModeParallel))
	default:
		return nil, fmt.Errorf("delegate %q: unknown mode %q", def.Name, def.Mode)
	}
	if def.TaskRegex != "" {
		re, err := regexp.Compile(def.TaskRegex)
		if err != nil {
			return nil, fmt.Errorf("delegate %q task_regex: %w", def.Name, err)
		}
		opts = append(opts, flow.WithTaskRegex(re))
	}
	if def.SharedContextRegex != "" {
		re, err := regexp.Compile(def.SharedContextRegex)
		if err != nil {
			return nil, fmt.Errorf("delegate %q shared_context_regex: %w", def.Name, err)
		}
		opts = append(opts, flow.WithSharedContextRegex(re))
	}
	if def.ChainOfAgents {
		if def.SummaryAgent == "" {
			return nil, fmt.Errorf("delegate %q: chain_of_agents requires a summary_agent", def.Name)
		}
		opts = append(opts, flow.WithChainOfAgents(def.SummaryAgent))
	}
	return flow.Nested(flow.NewDelegate(def.Name, def.Delegator, delegatee, opts...)), nil
}
