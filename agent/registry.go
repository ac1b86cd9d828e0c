package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonschema"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
)

// Registry maps tool names to tools. Populated at startup, read-mostly
// afterwards; safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	names []string // registration order, for prompts and error messages
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: map[string]*entry{}}
}

// Register adds a tool, compiling its parameter schema. Registering a
// name twice logs a warning and overwrites the earlier tool.
func (r *Registry) Register(tool Tool) error {
	definition := tool.Definition()
	raw, err := jsoniter.Marshal(definition.Schema())
	if err != nil {
		return fmt.Errorf("failed to marshal schema of tool %s: %w", tool.Name(), err)
	}
	schema, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return fmt.Errorf("invalid parameter schema of tool %s: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		log.Warn("[Agent] overwriting registered tool %s", tool.Name())
	} else {
		r.names = append(r.names, tool.Name())
	}
	r.tools[tool.Name()] = &entry{tool: tool, schema: schema}
	log.Info("[Agent] tool registered: %s", tool.Name())
	return nil
}

// Get returns a registered tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, errs.ToolNotFound(name, r.names)
	}
	return e.tool, nil
}

// Has reports whether a tool is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Definitions returns every tool definition in registration order for
// the prompt builder
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	definitions := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		definitions = append(definitions, r.tools[name].tool.Definition())
	}
	return definitions
}

// Dispatch validates the parameters against the tool's schema and runs
// the tool. An unknown name returns ToolNotFound, which is fatal to the
// turn; schema violations come back as failed results the model can
// recover from.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]interface{}) (*Result, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	names := r.names
	r.mu.RUnlock()
	if !ok {
		return nil, errs.ToolNotFound(name, names)
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if invalid := e.schema.Validate(params); !invalid.IsValid() {
		// Map order from the schema library is not stable
		messages := []string{}
		for field, violation := range invalid.Errors {
			messages = append(messages, fmt.Sprintf("%s: %s", field, violation.Message))
		}
		sort.Strings(messages)
		return Fail("Invalid parameters: %s", strings.Join(messages, "; ")), nil
	}

	return e.tool.Execute(ctx, params)
}
