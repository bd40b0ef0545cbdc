// Package memory manages the ordered transcript of a session and keeps its
// token footprint bounded through summarization and media pruning.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/llm/tokenizer"
	"github.com/altamira-dev/webpilot/pkg/types"
)

const (
	// DefaultSummarizationThreshold is the estimated token count past which
	// the conversation is condensed.
	DefaultSummarizationThreshold = 50000

	// DefaultKeepLastTurns is how many round trips at the tail survive
	// summarization verbatim.
	DefaultKeepLastTurns = 1

	// mediaPlaceholder replaces a turn's content when pruning would
	// otherwise leave it empty.
	mediaPlaceholder = "An image or document was removed for brevity."

	// summaryPrefix tags the synthetic turn so it is recognizable in the
	// transcript and skipped by later summarization passes.
	summaryPrefix = "[CONVERSATION SUMMARY: "

	summarizedKey = "summarized"
)

// Conversation is an append-only sequence of turns with a running token
// estimate. Order is never changed; content is only rewritten by Summarize
// and PruneMediaExceptLastTurn, both of which are idempotent.
type Conversation struct {
	mu              sync.RWMutex
	turns           []*types.Turn
	estimatedTokens int

	tok       *tokenizer.Tokenizer
	threshold int
	keepTurns int
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithTokenizer sets a real tokenizer for the running estimate. Without
// one, the character-count heuristic is used.
func WithTokenizer(tok *tokenizer.Tokenizer) Option {
	return func(c *Conversation) {
		c.tok = tok
	}
}

// WithSummarizationThreshold overrides the token threshold.
func WithSummarizationThreshold(threshold int) Option {
	return func(c *Conversation) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithKeepLastTurns overrides how many round trips survive summarization.
func WithKeepLastTurns(keep int) Option {
	return func(c *Conversation) {
		if keep > 0 {
			c.keepTurns = keep
		}
	}
}

// New creates an empty conversation.
func New(opts ...Option) *Conversation {
	c := &Conversation{
		threshold: DefaultSummarizationThreshold,
		keepTurns: DefaultKeepLastTurns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append adds a turn to the end of the conversation and updates the token
// estimate.
func (c *Conversation) Append(turn *types.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	c.estimatedTokens += c.countTurn(turn)
}

// Turns returns a snapshot of the conversation.
func (c *Conversation) Turns() []*types.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make([]*types.Turn, len(c.turns))
	copy(snapshot, c.turns)
	return snapshot
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// EstimatedTokens returns the running token estimate.
func (c *Conversation) EstimatedTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimatedTokens
}

// ShouldSummarize returns true once the estimate exceeds the threshold.
func (c *Conversation) ShouldSummarize() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimatedTokens > c.threshold
}

// Summarize condenses the conversation: the leading system turn (if any)
// and the last keepTurns round trips are preserved verbatim, and everything
// between them is replaced by one synthetic assistant turn containing a
// model-generated condensation. The provider's session state is reset
// afterwards since the history it knew no longer exists, and the token
// estimate is recomputed from the new transcript.
//
// Returns true if the conversation changed. No-ops safely when there are
// too few turns to usefully compress, which also makes back-to-back calls
// idempotent.
func (c *Conversation) Summarize(ctx context.Context, provider llm.Provider) (bool, error) {
	c.mu.Lock()

	head := 0
	if len(c.turns) > 0 && c.turns[0].Role == types.RoleSystem {
		head = 1
	}
	tail := len(c.turns) - c.keepTurns*2
	if tail < head {
		tail = head
	}

	middle := c.turns[head:tail]
	if !worthSummarizing(middle) {
		c.mu.Unlock()
		return false, nil
	}

	transcript := renderTranscript(middle)

	// Release the lock for the model call: condensation can take a while
	// and the loop owning this conversation is the only writer.
	c.mu.Unlock()

	condensed, err := generateCondensation(ctx, provider, transcript)
	if err != nil {
		return false, fmt.Errorf("failed to summarize conversation: %w", err)
	}

	summary := types.NewAssistantTurn(summaryPrefix + condensed + "]").
		WithMetadata(summarizedKey, true).
		WithMetadata("summary_count", len(middle))

	c.mu.Lock()
	rebuilt := make([]*types.Turn, 0, head+1+len(c.turns)-tail)
	rebuilt = append(rebuilt, c.turns[:head]...)
	rebuilt = append(rebuilt, summary)
	rebuilt = append(rebuilt, c.turns[tail:]...)
	c.turns = rebuilt
	c.recountLocked()
	c.mu.Unlock()

	// The shorter history invalidates whatever the provider knew.
	provider.Reset()

	return true, nil
}

// PruneMediaExceptLastTurn strips image and structured data items from
// every turn outside the most recent user/assistant exchange. A turn whose
// content would be emptied gets a textual placeholder instead, so no turn
// is ever left without content. Text items are never stripped. Returns the
// number of items removed; calling it again without new turns removes
// nothing.
func (c *Conversation) PruneMediaExceptLastTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	protected := len(c.turns) - 2
	if protected < 0 {
		protected = 0
	}

	removed := 0
	for i := 0; i < protected; i++ {
		turn := c.turns[i]
		if !turn.HasMedia() {
			continue
		}

		kept := make([]types.ContentItem, 0, len(turn.Items))
		for _, item := range turn.Items {
			if item.Kind == types.ContentText {
				kept = append(kept, item)
				continue
			}
			removed++
		}
		if len(kept) == 0 {
			kept = append(kept, types.TextItem(mediaPlaceholder))
		}
		turn.Items = kept
	}

	if removed > 0 {
		c.recountLocked()
	}
	return removed
}

// countTurn weighs one turn with the tokenizer when available, otherwise
// with the character heuristic.
func (c *Conversation) countTurn(turn *types.Turn) int {
	if c.tok != nil {
		return c.tok.CountTurnTokens(turn)
	}
	return tokenizer.EstimateTokens(turn.EstimatedChars())
}

// recountLocked recomputes the estimate from scratch. Caller holds the lock.
func (c *Conversation) recountLocked() {
	total := 0
	for _, turn := range c.turns {
		total += c.countTurn(turn)
	}
	c.estimatedTokens = total
}

// worthSummarizing reports whether a middle span would actually shrink.
// A span that is empty, or already just a prior summary, is left alone.
func worthSummarizing(middle []*types.Turn) bool {
	if len(middle) < 2 {
		if len(middle) == 0 {
			return false
		}
		return !isSummary(middle[0])
	}
	return true
}

func isSummary(turn *types.Turn) bool {
	if turn.Metadata == nil {
		return false
	}
	summarized, ok := turn.Metadata[summarizedKey].(bool)
	return ok && summarized
}

// renderTranscript flattens turns into role-labelled lines for the
// condensation prompt. Media items appear as markers so the model knows
// something was there.
func renderTranscript(turns []*types.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		text := turn.Text()
		if text == "" && turn.HasMedia() {
			text = "[media content]"
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// generateCondensation asks the provider for a dense summary of the span.
func generateCondensation(ctx context.Context, provider llm.Provider, transcript string) (string, error) {
	instructions := "You are a memory encoder for a browser automation agent. " +
		"Your summary replaces a section of that agent's conversation history, " +
		"and the agent must be able to continue its task from your summary alone. " +
		"Preserve URLs, page titles, extracted facts, tool outcomes, and the current goal. " +
		"Omit pleasantries and repetition. Be dense and specific."

	prompt := "Summarize the following conversation section:\n\n" + transcript

	condensed, err := provider.Complete(ctx, instructions, []*types.Turn{types.NewUserTurn(prompt)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(condensed), nil
}
