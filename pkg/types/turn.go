package types

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind identifies the kind of a content item inside a turn.
type ContentKind string

const (
	// ContentText is plain text content.
	ContentText ContentKind = "text"

	// ContentImage is binary image content (screenshots).
	ContentImage ContentKind = "image"

	// ContentJSON is a large structured data blob (raw page info, tool payloads).
	ContentJSON ContentKind = "json"
)

// ContentItem is one piece of a turn's content. A turn may mix text with
// images and structured blobs, e.g. an assistant reply followed by the
// screenshot it refers to.
type ContentItem struct {
	Kind ContentKind

	// Text holds the content for ContentText items.
	Text string

	// MIME and Data hold the content for ContentImage items.
	MIME string
	Data []byte

	// Raw holds the serialized content for ContentJSON items.
	Raw string
}

// TextItem creates a text content item.
func TextItem(text string) ContentItem {
	return ContentItem{Kind: ContentText, Text: text}
}

// ImageItem creates an image content item.
func ImageItem(mime string, data []byte) ContentItem {
	return ContentItem{Kind: ContentImage, MIME: mime, Data: data}
}

// JSONItem creates a structured data content item.
func JSONItem(raw string) ContentItem {
	return ContentItem{Kind: ContentJSON, Raw: raw}
}

// Turn represents one message in a conversation. Turns are append-only:
// once added to a conversation their order never changes, and their content
// is only rewritten by summarization and media pruning.
type Turn struct {
	Role     Role
	Items    []ContentItem
	Metadata map[string]interface{}
}

// NewSystemTurn creates a system turn with a single text item.
func NewSystemTurn(text string) *Turn {
	return &Turn{Role: RoleSystem, Items: []ContentItem{TextItem(text)}}
}

// NewUserTurn creates a user turn with a single text item.
func NewUserTurn(text string) *Turn {
	return &Turn{Role: RoleUser, Items: []ContentItem{TextItem(text)}}
}

// NewAssistantTurn creates an assistant turn with a single text item.
func NewAssistantTurn(text string) *Turn {
	return &Turn{Role: RoleAssistant, Items: []ContentItem{TextItem(text)}}
}

// WithItem appends a content item and returns the turn for chaining.
func (t *Turn) WithItem(item ContentItem) *Turn {
	t.Items = append(t.Items, item)
	return t
}

// WithMetadata sets a metadata key and returns the turn for chaining.
func (t *Turn) WithMetadata(key string, value interface{}) *Turn {
	if t.Metadata == nil {
		t.Metadata = make(map[string]interface{})
	}
	t.Metadata[key] = value
	return t
}

// Text returns the concatenation of the turn's text items.
func (t *Turn) Text() string {
	var b strings.Builder
	for _, item := range t.Items {
		if item.Kind == ContentText {
			b.WriteString(item.Text)
		}
	}
	return b.String()
}

// HasMedia returns true if the turn contains image or structured data items.
func (t *Turn) HasMedia() bool {
	for _, item := range t.Items {
		if item.Kind == ContentImage || item.Kind == ContentJSON {
			return true
		}
	}
	return false
}

// EstimatedChars returns the character weight of the turn used for token
// estimation. Images count their byte length so screenshots register as the
// heavyweight content they are.
func (t *Turn) EstimatedChars() int {
	total := 0
	for _, item := range t.Items {
		switch item.Kind {
		case ContentText:
			total += len(item.Text)
		case ContentImage:
			total += len(item.Data)
		case ContentJSON:
			total += len(item.Raw)
		}
	}
	return total
}
