package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog is the static, enumerable set of tools available to the agent.
// It is populated once at startup and only read afterwards: its sole jobs
// are rendering tool affordances into the model's instructions and
// validating that a requested tool name exists.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog. Registering the same name twice is
// a programming error and is rejected.
func (c *Catalog) Register(tool Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := tool.Name()
	if _, exists := c.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	c.tools[name] = tool
	return nil
}

// Get returns the tool with the given name.
func (c *Catalog) Get(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tool, ok := c.tools[name]
	return tool, ok
}

// List returns all tools sorted by name.
func (c *Catalog) List() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]Tool, 0, len(names))
	for _, name := range names {
		list = append(list, c.tools[name])
	}
	return list
}

// Describe renders one tool's affordance block: name, description, and an
// Arguments section enumerating each parameter with a (required) suffix
// where applicable, or an explicit marker when the schema is empty.
func Describe(tool Tool) string {
	var b strings.Builder
	b.WriteString("Tool Name: ")
	b.WriteString(tool.Name())
	b.WriteString("\nDescription: ")
	b.WriteString(tool.Description())
	b.WriteString("\nArguments:\n")

	schema := tool.Schema()
	properties, _ := schema["properties"].(map[string]interface{})
	if len(properties) == 0 {
		b.WriteString("  (No arguments defined)\n")
		return b.String()
	}

	required := make(map[string]bool)
	if names, ok := schema["required"].([]string); ok {
		for _, name := range names {
			required[name] = true
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		description := ""
		if prop, ok := properties[name].(map[string]interface{}); ok {
			description, _ = prop["description"].(string)
		}
		b.WriteString("  - ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(description)
		if required[name] {
			b.WriteString(" (required)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Instructions renders the affordance blocks of every tool, concatenated
// for inclusion in the model's operating instructions.
func (c *Catalog) Instructions() string {
	var b strings.Builder
	for _, tool := range c.List() {
		b.WriteString(Describe(tool))
		b.WriteString("\n")
	}
	return b.String()
}
