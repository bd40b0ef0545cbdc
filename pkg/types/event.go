package types

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEventType defines the type of progress event emitted during task
// execution.
type ProgressEventType string

const (
	EventTypeTyping            ProgressEventType = "typing"              // EventTypeTyping indicates the model is composing a reply.
	EventTypeToolExecuting     ProgressEventType = "tool_executing"      // EventTypeToolExecuting indicates a tool is about to run.
	EventTypeToolSuccess       ProgressEventType = "tool_success"        // EventTypeToolSuccess indicates a tool finished with a textual result.
	EventTypeToolSuccessImage  ProgressEventType = "tool_success_image"  // EventTypeToolSuccessImage indicates a tool finished and produced an image.
	EventTypeToolError         ProgressEventType = "tool_error"          // EventTypeToolError indicates a tool failed.
	EventTypeTaskStarted       ProgressEventType = "task_started"        // EventTypeTaskStarted indicates a task run has begun.
	EventTypeTaskStep          ProgressEventType = "task_step"           // EventTypeTaskStep indicates the task advanced one step.
	EventTypeTaskCompleted     ProgressEventType = "task_completed"      // EventTypeTaskCompleted indicates the task run has ended.
	EventTypeSystemMessage     ProgressEventType = "system_message"      // EventTypeSystemMessage carries an operational notice for the user.
	EventTypeAssistantMessage  ProgressEventType = "assistant_message"   // EventTypeAssistantMessage carries a model reply.
	EventTypeAssistantToolCall ProgressEventType = "assistant_tool_call" // EventTypeAssistantToolCall indicates the model requested a tool.
	EventTypeError             ProgressEventType = "error"               // EventTypeError indicates an unrecoverable error ended the run.
)

// ProgressEvent is a status update produced by the agent loop and delivered
// to the client through the per-session progress queue. Delivery is
// at-least-once: a transport reconnect may replay an event, so consumers
// should key on ID when deduplicating.
type ProgressEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type indicates the kind of event.
	Type ProgressEventType `json:"type"`

	// Message is a human-readable description of the event.
	Message string `json:"message,omitempty"`

	// Tool is the tool name for tool-related events.
	Tool string `json:"tool,omitempty"`

	// Arguments holds the tool arguments for tool call events.
	Arguments map[string]interface{} `json:"arguments,omitempty"`

	// Step is the current step number for task step events.
	Step int `json:"step,omitempty"`

	// Steps is the total number of executed steps for completion events.
	Steps int `json:"steps,omitempty"`

	// Result is a compact textual tool result for success events.
	Result string `json:"result,omitempty"`

	// Image holds raw image bytes for image success events.
	Image []byte `json:"image,omitempty"`

	// Timestamp records when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(eventType ProgressEventType) *ProgressEvent {
	return &ProgressEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// NewTypingEvent creates a typing event.
func NewTypingEvent() *ProgressEvent {
	return newEvent(EventTypeTyping)
}

// NewToolExecutingEvent creates a tool executing event.
func NewToolExecutingEvent(tool string, arguments map[string]interface{}) *ProgressEvent {
	e := newEvent(EventTypeToolExecuting)
	e.Tool = tool
	e.Arguments = arguments
	e.Message = "Executing " + tool + "..."
	return e
}

// NewToolSuccessEvent creates a tool success event with a textual result.
func NewToolSuccessEvent(tool, result string) *ProgressEvent {
	e := newEvent(EventTypeToolSuccess)
	e.Tool = tool
	e.Result = result
	return e
}

// NewToolSuccessImageEvent creates a tool success event carrying image bytes.
func NewToolSuccessImageEvent(tool string, image []byte) *ProgressEvent {
	e := newEvent(EventTypeToolSuccessImage)
	e.Tool = tool
	e.Image = image
	return e
}

// NewToolErrorEvent creates a tool error event.
func NewToolErrorEvent(tool, message string) *ProgressEvent {
	e := newEvent(EventTypeToolError)
	e.Tool = tool
	e.Message = message
	return e
}

// NewTaskStartedEvent creates a task started event.
func NewTaskStartedEvent(goal string) *ProgressEvent {
	e := newEvent(EventTypeTaskStarted)
	e.Message = goal
	return e
}

// NewTaskStepEvent creates a task step event.
func NewTaskStepEvent(step int, tool string) *ProgressEvent {
	e := newEvent(EventTypeTaskStep)
	e.Step = step
	e.Tool = tool
	return e
}

// NewTaskCompletedEvent creates a task completed event.
func NewTaskCompletedEvent(message string, steps int) *ProgressEvent {
	e := newEvent(EventTypeTaskCompleted)
	e.Message = message
	e.Steps = steps
	return e
}

// NewSystemMessageEvent creates a system message event.
func NewSystemMessageEvent(message string) *ProgressEvent {
	e := newEvent(EventTypeSystemMessage)
	e.Message = message
	return e
}

// NewAssistantMessageEvent creates an assistant message event.
func NewAssistantMessageEvent(message string) *ProgressEvent {
	e := newEvent(EventTypeAssistantMessage)
	e.Message = message
	return e
}

// NewAssistantToolCallEvent creates an assistant tool call event.
func NewAssistantToolCallEvent(tool string, arguments map[string]interface{}) *ProgressEvent {
	e := newEvent(EventTypeAssistantToolCall)
	e.Tool = tool
	e.Arguments = arguments
	return e
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *ProgressEvent {
	e := newEvent(EventTypeError)
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// IsToolEvent returns true if this is any tool-related event.
func (e *ProgressEvent) IsToolEvent() bool {
	return e.Type == EventTypeToolExecuting ||
		e.Type == EventTypeToolSuccess ||
		e.Type == EventTypeToolSuccessImage ||
		e.Type == EventTypeToolError
}

// IsTerminal returns true if this event ends a task run. Every run emits
// exactly one terminal event so clients are never left waiting.
func (e *ProgressEvent) IsTerminal() bool {
	return e.Type == EventTypeTaskCompleted || e.Type == EventTypeError
}
