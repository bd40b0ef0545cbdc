// Package tokenizer provides client-side token counting for conversation
// budget tracking. Counts are estimates used to decide when to summarize,
// not billing-accurate numbers.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/altamira-dev/webpilot/pkg/types"
)

const (
	// encodingName is the BPE encoding used for counting. It tracks actual
	// usage closely enough across providers for threshold decisions.
	encodingName = "cl100k_base"

	// charsPerToken is the fallback heuristic divisor when the encoding
	// cannot be loaded.
	charsPerToken = 4
)

// Tokenizer counts tokens in text and conversation turns.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer backed by the cl100k_base encoding.
// Loading the encoding requires the embedded BPE data; if that fails the
// caller should fall back to EstimateTokens.
func New() (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: encoding}, nil
}

// CountTokens returns the token count of the given text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// CountTurnTokens returns the token weight of a turn. Text is tokenized;
// media items are weighted by the character heuristic since they are sent
// as opaque blobs.
func (t *Tokenizer) CountTurnTokens(turn *types.Turn) int {
	total := 0
	for _, item := range turn.Items {
		switch item.Kind {
		case types.ContentText:
			total += t.CountTokens(item.Text)
		case types.ContentImage:
			total += len(item.Data) / charsPerToken
		case types.ContentJSON:
			total += t.CountTokens(item.Raw)
		}
	}
	return total
}

// CountConversationTokens returns the token weight of a full conversation.
func (t *Tokenizer) CountConversationTokens(turns []*types.Turn) int {
	total := 0
	for _, turn := range turns {
		total += t.CountTurnTokens(turn)
	}
	return total
}

// EstimateTokens approximates a token count from character length.
// Used when no encoding is available.
func EstimateTokens(chars int) int {
	return chars / charsPerToken
}
