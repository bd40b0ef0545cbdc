// Package agent implements the task-execution loop: the alternation of
// model queries and tool executions that carries a goal from request to
// result. The runner owns no shared state beyond what the session hands
// it; everything observable flows out as progress events.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/altamira-dev/webpilot/pkg/agent/memory"
	"github.com/altamira-dev/webpilot/pkg/agent/tools"
	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/llm/parser"
	"github.com/altamira-dev/webpilot/pkg/logging"
	"github.com/altamira-dev/webpilot/pkg/progress"
	"github.com/altamira-dev/webpilot/pkg/types"
)

// DefaultMaxSteps bounds how many model/tool alternations one task may
// take before it is cut off.
const DefaultMaxSteps = 40

// State describes where the runner is in a task's lifecycle.
type State string

// Runner states.
const (
	StateIdle             State = "idle"               // no task in flight
	StateAwaitingModel    State = "awaiting_model"     // waiting on the provider
	StateExecutingTool    State = "executing_tool"     // a tool is running
	StateCompleted        State = "completed"          // the task finished normally
	StateStepLimitReached State = "step_limit_reached" // the step ceiling cut the task off
	StateErrored          State = "errored"            // an unrecoverable error ended the task
)

// Runner drives one session's agent loop. It is not safe for concurrent
// runs; the session serializes access to it.
type Runner struct {
	provider     llm.Provider
	catalog      *tools.Catalog
	conversation *memory.Conversation
	queue        *progress.Queue

	maxSteps     int
	instructions string
	logger       *logging.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxSteps overrides the task step ceiling.
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// NewRunner creates a runner over the session's provider, tools,
// conversation, and progress queue.
func NewRunner(provider llm.Provider, catalog *tools.Catalog, conversation *memory.Conversation, queue *progress.Queue, opts ...Option) *Runner {
	logger, _ := logging.NewLogger("agent")

	r := &Runner{
		provider:     provider,
		catalog:      catalog,
		conversation: conversation,
		queue:        queue,
		maxSteps:     DefaultMaxSteps,
		instructions: buildInstructions(catalog),
		logger:       logger,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the runner's current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

// Run executes a task to completion. The goal joins the conversation as
// a user turn, then the loop alternates model queries and tool
// executions until the model answers without a tool call, the step
// ceiling is reached, cancellation is requested, or the provider fails.
// Panics from tools or providers are caught here; the session survives
// any outcome.
func (r *Runner) Run(ctx context.Context, goal string) (state State) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("Task panicked: %v", rec)
			r.queue.Publish(types.NewErrorEvent(fmt.Errorf("task failed unexpectedly: %v", rec)))
			r.setState(StateErrored)
			state = StateErrored
		}
	}()

	r.conversation.Append(types.NewUserTurn(goal))
	r.queue.Publish(types.NewTaskStartedEvent(goal))
	r.logger.Infof("Task started: %s", goal)

	// steps counts executed tool calls; the plain answer that ends the
	// task is not a step.
	steps := 0
	for turn := 0; turn < r.maxSteps; turn++ {
		if ctx.Err() != nil {
			return r.stopForCancellation()
		}

		reply, err := r.queryModel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.stopForCancellation()
			}
			r.queue.Publish(types.NewErrorEvent(fmt.Errorf("model call failed: %w", err)))
			r.setState(StateErrored)
			return StateErrored
		}

		invocation, found := parser.Extract(reply)
		if !found {
			// A plain answer ends the task.
			r.conversation.Append(types.NewAssistantTurn(reply))
			r.queue.Publish(types.NewAssistantMessageEvent(reply))
			r.queue.Publish(types.NewTaskCompletedEvent(reply, steps))
			r.setState(StateCompleted)
			r.logger.Infof("Task completed after %d step(s)", steps)
			return StateCompleted
		}

		steps++
		r.conversation.Append(types.NewAssistantTurn(reply))
		r.queue.Publish(types.NewAssistantToolCallEvent(invocation.Tool, invocation.Arguments))
		r.queue.Publish(types.NewTaskStepEvent(steps, invocation.Tool))

		r.setState(StateExecutingTool)
		resultTurn := r.executeInvocation(ctx, invocation)
		r.conversation.Append(resultTurn)
		r.conversation.Append(types.NewUserTurn(nextStepPrompt))
	}

	message := fmt.Sprintf("Task stopped: reached maximum steps (%d). The work so far is preserved; ask to continue if needed.", r.maxSteps)
	r.conversation.Append(types.NewUserTurn(message))
	r.queue.Publish(types.NewTaskCompletedEvent(message, steps))
	r.setState(StateStepLimitReached)
	r.logger.Warnf("Task hit the %d step ceiling", r.maxSteps)
	return StateStepLimitReached
}

// Chat answers a single message without entering the task loop. If the
// reply turns out to carry a tool invocation, the exchange escalates
// into a full task run so the tool actually executes.
func (r *Runner) Chat(ctx context.Context, message string) (string, State) {
	probe, ok := r.probeChat(ctx, message)
	if !ok {
		return "", r.State()
	}
	if probe == "" {
		// The model wants tools; run the loop for real.
		return "", r.Run(ctx, message)
	}
	return probe, StateCompleted
}

// probeChat makes the single chat call. It returns ("", true) when the
// reply carried an invocation, (reply, true) for a plain answer, and
// ("", false) when the provider failed.
func (r *Runner) probeChat(ctx context.Context, message string) (string, bool) {
	r.setState(StateAwaitingModel)
	r.queue.Publish(types.NewTypingEvent())

	history := append(r.conversation.Turns(), types.NewUserTurn(message))
	reply, err := r.provider.Complete(ctx, r.instructions, history)
	if err != nil {
		r.queue.Publish(types.NewErrorEvent(fmt.Errorf("model call failed: %w", err)))
		r.setState(StateErrored)
		return "", false
	}

	if _, found := parser.Extract(reply); found {
		return "", true
	}

	r.conversation.Append(types.NewUserTurn(message))
	r.conversation.Append(types.NewAssistantTurn(reply))
	r.queue.Publish(types.NewAssistantMessageEvent(reply))
	r.setState(StateCompleted)
	return reply, true
}

// queryModel maintains conversation memory and fetches the next reply.
func (r *Runner) queryModel(ctx context.Context) (string, error) {
	r.setState(StateAwaitingModel)
	r.queue.Publish(types.NewTypingEvent())
	r.maintainMemory(ctx)
	return r.provider.Complete(ctx, r.instructions, r.conversation.Turns())
}

// maintainMemory summarizes the conversation when it has grown past the
// threshold and always prunes stale media before the next model call.
func (r *Runner) maintainMemory(ctx context.Context) {
	if r.conversation.ShouldSummarize() {
		if _, err := r.conversation.Summarize(ctx, r.provider); err != nil {
			// Summarization failing is not fatal; the next call just
			// carries a longer history.
			r.logger.Warnf("Conversation summarization failed: %v", err)
		}
	}
	if removed := r.conversation.PruneMediaExceptLastTurn(); removed > 0 {
		r.logger.Debugf("Pruned %d media item(s) from conversation history", removed)
	}
}

// stopForCancellation ends the run cleanly after a cancel request. The
// session and its conversation remain usable.
func (r *Runner) stopForCancellation() State {
	message := "Task stopped by user."
	r.conversation.Append(types.NewUserTurn(message))
	r.queue.Publish(types.NewSystemMessageEvent(message))
	r.setState(StateCompleted)
	r.logger.Infof("Task cancelled")
	return StateCompleted
}

// executeInvocation runs one tool call and renders the outcome as the
// user-role turn fed back to the model. Tool failures become error text
// the model can react to; they never abort the task.
func (r *Runner) executeInvocation(ctx context.Context, invocation *parser.Invocation) *types.Turn {
	r.queue.Publish(types.NewToolExecutingEvent(invocation.Tool, invocation.Arguments))

	tool, ok := r.catalog.Get(invocation.Tool)
	if !ok {
		message := fmt.Sprintf("Tool '%s' is not available. Available tools are listed in your instructions; choose one of those.", invocation.Tool)
		r.queue.Publish(types.NewToolErrorEvent(invocation.Tool, message))
		return types.NewUserTurn(message)
	}

	result, err := r.safeExecute(ctx, tool, invocation.Arguments)
	if err != nil {
		message := fmt.Sprintf("Tool '%s' failed: %v. Assess the situation and try a different approach.", invocation.Tool, err)
		r.queue.Publish(types.NewToolErrorEvent(invocation.Tool, err.Error()))
		return types.NewUserTurn(message)
	}

	if result.HasImage() {
		r.queue.Publish(types.NewToolSuccessImageEvent(invocation.Tool, result.Image))
		turn := types.NewUserTurn(fmt.Sprintf("Tool '%s' result:\n%s", invocation.Tool, result.Text))
		return turn.WithItem(types.ImageItem(result.ImageMIME, result.Image))
	}

	r.queue.Publish(types.NewToolSuccessEvent(invocation.Tool, result.Text))
	return types.NewUserTurn(fmt.Sprintf("Tool '%s' result:\n%s", invocation.Tool, result.Text))
}

// safeExecute shields the loop from panicking tools.
func (r *Runner) safeExecute(ctx context.Context, tool tools.Tool, args map[string]interface{}) (result *tools.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()

	result, err = tool.Execute(ctx, args)
	if err == nil && result == nil {
		err = fmt.Errorf("tool returned no result")
	}
	return result, err
}
