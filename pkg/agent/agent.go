// Package agent runs the bounded reason/act loop: call the model, execute the
// tool calls it requests, feed the results back, repeat until the model
// answers in plain text or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spoonos-ai/spoonbot/pkg/message"
	"github.com/spoonos-ai/spoonbot/pkg/model"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// DefaultMaxIterations bounds one Process call when the config does not say
// otherwise.
const DefaultMaxIterations = 20

// maxIterationsAnswer is returned when the model keeps requesting tools until
// the budget is spent. It is an answer, not an error: the caller always gets
// text back.
const maxIterationsAnswer = "I've reached the maximum number of tool iterations without a final answer. " +
	"Please try again or break the task into smaller steps."

// Options tunes a single Agent.
type Options struct {
	MaxIterations int
	MaxTokens     int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Agent drives a model against a tool registry.
type Agent struct {
	model    model.Model
	registry *tool.Registry
	opts     Options
}

// New constructs an Agent with the provided collaborators.
func New(mdl model.Model, registry *tool.Registry, opts Options) *Agent {
	return &Agent{
		model:    mdl,
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

// Process answers one user turn. The conversation sent to the model is built
// once (system prompt, prior history, the new user message) and then grows
// strictly append-only: each model turn that requests tools appends the
// assistant message followed by one tool-result message per call, in the
// exact order the model emitted the calls.
//
// The only errors returned are model-call failures and context cancellation;
// every tool failure is folded into its result text by the registry.
func (a *Agent) Process(ctx context.Context, systemPrompt string, history []message.Message, userMessage string) (string, error) {
	msgs := make([]message.Message, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, message.NewSystemMessage(systemPrompt))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, message.NewUserMessage(userMessage))

	defs := a.registry.Definitions()

	for iteration := 0; iteration < a.opts.MaxIterations; iteration++ {
		resp, err := a.model.Chat(ctx, &model.Request{
			Messages:  msgs,
			Tools:     defs,
			MaxTokens: a.opts.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		msgs = append(msgs, message.NewAssistantMessage(resp.Content, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			log.Printf("[agent] iteration %d: executing %s", iteration, call.Name)
			output := a.registry.Execute(ctx, call.Name, call.Arguments)
			msgs = append(msgs, message.NewToolResultMessage(call.ID, call.Name, output))
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	log.Printf("[agent] iteration budget (%d) exhausted", a.opts.MaxIterations)
	return maxIterationsAnswer, nil
}
