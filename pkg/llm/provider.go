// Package llm provides abstractions for LLM provider integration.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "os"
//
//	    "github.com/altamira-dev/webpilot/pkg/llm"
//	    "github.com/altamira-dev/webpilot/pkg/llm/gemini"
//	    "github.com/altamira-dev/webpilot/pkg/types"
//	)
//
//	func main() {
//	    provider, err := gemini.NewProvider(
//	        context.Background(),
//	        os.Getenv("GEMINI_API_KEY"),
//	        gemini.WithConfig(llm.GenerationConfig{Model: "gemini-2.0-flash"}),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    history := []*types.Turn{types.NewUserTurn("Hello!")}
//	    reply, err := provider.Complete(context.Background(), "You are helpful.", history)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(reply)
//	}
package llm

import (
	"context"

	"github.com/altamira-dev/webpilot/pkg/types"
)

// GenerationConfig holds per-provider generation settings. SafetyThresholds
// maps provider category names to threshold names and is passed through to
// the provider unmodified.
type GenerationConfig struct {
	Model            string            `yaml:"model"`
	Temperature      float64           `yaml:"temperature"`
	MaxOutputTokens  int               `yaml:"max_output_tokens"`
	SafetyThresholds map[string]string `yaml:"safety_thresholds"`
}

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication with LLM services and return the
// model's reply as plain text. The agent layer is responsible for parsing
// tool calls out of replies, emitting progress events, and managing
// conversation state; this separation keeps providers reusable outside the
// agent loop and testable with scripted fakes.
type Provider interface {
	// Complete sends the instructions and full conversation history to the
	// model and returns its reply. The history is authoritative on every
	// call: providers must not assume any server-side conversation state
	// survives between calls.
	Complete(ctx context.Context, instructions string, history []*types.Turn) (string, error)

	// Reset discards any provider-side conversation state. The memory
	// manager calls this after rewriting the history (summarization), since
	// it cannot assume the provider supports in-place history mutation.
	// Stateless providers may no-op.
	Reset()

	// Model returns the model name being used.
	Model() string
}
