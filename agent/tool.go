// Package agent runs the bounded think-act loop behind every chat turn:
// the text model is prompted with the registered tool definitions, its
// reply is parsed into a directive, tools are dispatched one at a time
// with their results threaded back into the conversation, and the loop
// terminates on a direct response or the iteration cap.
package agent

import (
	"context"
	"fmt"
	"strings"
)

// Tool is a named capability the model may invoke during a turn.
// Execute returns a Result for outcomes the model should see, including
// tool-domain failures; a non-nil error means the dispatch itself broke
// and the orchestrator feeds it back as a failure message instead.
type Tool interface {
	Name() string
	Definition() Definition
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// Parameter describes one tool parameter for the prompt and the
// registry's schema validation
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // string, number, boolean, array, object
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Definition is a complete tool description for the prompt builder
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Prompt renders the definition the way the system prompt enumerates
// tools: name, description, then the parameter list.
func (d Definition) Prompt() string {
	params := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		entry := fmt.Sprintf("%s: %s", p.Name, p.Type)
		if p.Required {
			entry += " (required)"
		}
		params = append(params, entry)
	}
	list := "none"
	if len(params) > 0 {
		list = strings.Join(params, ", ")
	}
	return fmt.Sprintf("- %s: %s\n  Parameters: %s", d.Name, d.Description, list)
}

// Schema builds the JSON Schema the registry validates call parameters
// against
func (d Definition) Schema() map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, p := range d.Parameters {
		property := map[string]interface{}{"type": p.Type}
		if p.Description != "" {
			property["description"] = p.Description
		}
		properties[p.Name] = property
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Result is the outcome of one tool dispatch. Success carries Output for
// the model; failure carries Error. Metadata rides alongside, with the
// "sources" entry feeding the orchestrator's citation list.
type Result struct {
	Success  bool                   `json:"success"`
	Output   string                 `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Succeed builds a successful result
func Succeed(output string) *Result {
	return &Result{Success: true, Output: output, Metadata: map[string]interface{}{}}
}

// Fail builds a failed result the model is asked to recover from
func Fail(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...), Metadata: map[string]interface{}{}}
}

// WithMeta attaches one metadata entry and returns the result for chaining
func (r *Result) WithMeta(key string, value interface{}) *Result {
	if r.Metadata == nil {
		r.Metadata = map[string]interface{}{}
	}
	r.Metadata[key] = value
	return r
}

// Sources returns the normalized citation list from the result metadata,
// or nil when the tool attached none
func (r *Result) Sources() []map[string]interface{} {
	raw, ok := r.Metadata["sources"]
	if !ok {
		return nil
	}
	sources, ok := raw.([]map[string]interface{})
	if !ok {
		return nil
	}
	return sources
}
