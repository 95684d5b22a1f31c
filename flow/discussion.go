package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/flowmesh/core"
)

// Discussion runs a fixed number of group-interaction rounds. Within a round
// every participant is called strictly in declared order, each one consuming
// the previous participant's output; the first participant of round one
// consumes the pattern's input, and the first participant of every later
// round consumes the previous round's boundary artifact.
//
// If a moderator is configured it is called once after every round except the
// final one, with a structured transcript of that round's participant
// outputs; its output becomes the round boundary artifact. On the final round
// the moderator is deliberately not called and the last participant's raw
// output is the result.
//
// A configured stop phrase is checked case-insensitively against every
// participant output the instant it is produced. On a match the discussion
// ends immediately with that participant's message as the final result,
// skipping remaining participants, rounds and moderation.
type Discussion struct {
	name         string
	participants []string
	rounds       int
	moderator    string
	stopPhrase   string
}

// DiscussionOption customizes Discussion construction.
type DiscussionOption func(*Discussion)

// WithModerator configures the moderator agent called on round boundaries.
func WithModerator(name string) DiscussionOption {
	return func(d *Discussion) { d.moderator = name }
}

// WithStopPhrase configures the phrase that ends the discussion early.
// Matching is case-insensitive substring containment.
func WithStopPhrase(phrase string) DiscussionOption {
	return func(d *Discussion) { d.stopPhrase = phrase }
}

// NewDiscussion creates a discussion over the given participant agents
// running the given number of rounds. With no participants or rounds < 1 the
// pattern makes no agent calls and passes the current message through
// unchanged; declarative definitions are validated by config.Build instead.
func NewDiscussion(name string, participants []string, rounds int, opts ...DiscussionOption) *Discussion {
	d := &Discussion{
		name:         name,
		participants: append([]string(nil), participants...),
		rounds:       rounds,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements Pattern.
func (d *Discussion) Name() string { return d.name }

// Execute implements Pattern. Any participant or moderator failure halts the
// discussion fail-fast with a terminal message.
func (d *Discussion) Execute(ctx context.Context, eng core.Engine, fc *FlowContext) error {
	// Nothing to discuss; the current message passes through unchanged.
	if len(d.participants) == 0 || d.rounds < 1 {
		return nil
	}

	for round := 1; round <= d.rounds; round++ {
		outputs := make([]core.Message, 0, len(d.participants))

		for _, participant := range d.participants {
			out, err := eng.CallAgent(ctx, participant, fc.Current())
			if err != nil {
				if recoverable(err) {
					haltWithFailure(fc, d.name, fmt.Sprintf("Discussion %q halted: participant %s failed in round %d: %v", d.name, participant, round, err))
					return nil
				}
				return fmt.Errorf("discussion %s: participant %s round %d: %w", d.name, participant, round, err)
			}
			fc.SetCurrent(out)
			outputs = append(outputs, out)

			if d.stopPhrase != "" && strings.Contains(strings.ToLower(out.Content), strings.ToLower(d.stopPhrase)) {
				fc.Logger().Info("Discussion stop phrase matched", "pattern", d.name, "participant", participant, "round", round)
				return nil
			}
		}

		// The moderator never runs after the final round; the last
		// participant's raw output is the round boundary artifact there.
		if d.moderator != "" && round < d.rounds {
			prompt := core.NewUserMessage(discussionTranscript(round, d.participants, outputs))
			fc.Observe(prompt)

			modOut, err := eng.CallAgent(ctx, d.moderator, prompt)
			if err != nil {
				if recoverable(err) {
					haltWithFailure(fc, d.name, fmt.Sprintf("Discussion %q halted: moderator %s failed after round %d: %v", d.name, d.moderator, round, err))
					return nil
				}
				return fmt.Errorf("discussion %s: moderator %s round %d: %w", d.name, d.moderator, round, err)
			}
			fc.SetCurrent(modOut)
		}
	}
	return nil
}

// ResetAgents implements Pattern.
func (d *Discussion) ResetAgents(eng core.Engine) error {
	for _, participant := range d.participants {
		if err := eng.ResetAgent(participant); err != nil {
			return fmt.Errorf("reset agent %s: %w", participant, err)
		}
	}
	if d.moderator != "" {
		if err := eng.ResetAgent(d.moderator); err != nil {
			return fmt.Errorf("reset agent %s: %w", d.moderator, err)
		}
	}
	return nil
}

// discussionTranscript renders one round's participant outputs as the
// moderator's input.
func discussionTranscript(round int, participants []string, outputs []core.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Moderate the following discussion round and provide guidance for the next round.\n\nRound %d:\n", round)
	for i, out := range outputs {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", participants[i], out.Content)
	}
	return b.String()
}
