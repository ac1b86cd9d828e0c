package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/chat"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/types"
)

// Loop bounds
const (
	DefaultMaxIterations = 5
	previewLength        = 200
)

// Options configure the orchestrator
type Options struct {
	Model         types.TextModel
	Registry      *Registry
	History       *chat.HistoryManager // optional, histories pass through unbounded without it
	Cache         *store.Cache         // optional response cache
	MaxIterations int
}

// Orchestrator runs the think-act loop: prompt the model with the tool
// definitions, parse its directive, dispatch at most one tool per
// iteration and thread the result back, until the model responds or the
// iteration cap is hit. Tool dispatches within a turn are strictly
// sequential.
type Orchestrator struct {
	model         types.TextModel
	registry      *Registry
	history       *chat.HistoryManager
	cache         *store.Cache
	maxIterations int
}

// New creates an orchestrator, applying defaults to unset options
func New(options Options) (*Orchestrator, error) {
	if options.Model == nil {
		return nil, fmt.Errorf("orchestrator requires a text model")
	}
	if options.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a tool registry")
	}
	if options.MaxIterations <= 0 {
		options.MaxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		model:         options.Model,
		registry:      options.Registry,
		history:       options.History,
		cache:         options.Cache,
		maxIterations: options.MaxIterations,
	}, nil
}

// turn is the mutable state of one agent turn
type turn struct {
	userMessage string
	messages    []types.ChatMessage
	sources     []types.Source
	cacheKey    string
	started     time.Time
}

// Run processes one user message and returns the final response with
// its accumulated sources. The loop exhausting its budget without a
// response is MaxIterationsExceeded.
func (o *Orchestrator) Run(ctx context.Context, userMessage string, history []types.ChatMessage) (*types.AgentResult, error) {
	systemPrompt := BuildSystemPrompt(o.registry.Definitions())
	t, err := o.begin(ctx, userMessage, history, systemPrompt)
	if err != nil {
		return nil, err
	}

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		reply, err := o.model.Chat(ctx, t.messages, systemPrompt)
		if err != nil {
			return nil, err
		}

		directive := parseDirective(reply)
		if directive.Respond() {
			result := t.finish(directive, reply, iteration+1)
			o.remember(t, result)
			return result, nil
		}
		if directive.Action == "" {
			continue
		}

		result, err := o.registry.Dispatch(ctx, directive.Action, directive.ActionInput)
		if err != nil {
			if errs.IsKind(err, errs.KindToolNotFound) || ctx.Err() != nil {
				return nil, err
			}
			log.Error("[Agent] tool %s failed: %s", directive.Action, err.Error())
			t.feedFailure(reply, directive.Action, err)
			continue
		}

		t.feedResult(reply, directive.Action, result)
		if cached := o.lookup(t, result, iteration+1); cached != nil {
			log.Info("[Agent] response cache hit for %q", truncate(userMessage, 50))
			return cached, nil
		}
	}

	return nil, errs.MaxIterationsExceeded(o.maxIterations)
}

// RunStream processes one user message, emitting events as the turn
// advances: message per generation delta, thought per parsed directive,
// tool_start/tool_end around dispatches, then a terminal done. Budget
// exhaustion emits a terminal error event and returns nil; any other
// failure returns without a terminal event so the transport can report
// it.
func (o *Orchestrator) RunStream(ctx context.Context, userMessage string, history []types.ChatMessage, emit func(types.StreamEvent) error) error {
	systemPrompt := BuildSystemPrompt(o.registry.Definitions())
	t, err := o.begin(ctx, userMessage, history, systemPrompt)
	if err != nil {
		return err
	}

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		reply, err := o.model.ChatStream(ctx, t.messages, systemPrompt, func(delta string) error {
			return emit(types.StreamEvent{
				Event: types.EventMessage,
				Data:  map[string]interface{}{"token": delta, "iteration": iteration},
			})
		})
		if err != nil {
			return err
		}

		directive := parseDirective(reply)
		if err := emit(types.StreamEvent{
			Event: types.EventThought,
			Data:  map[string]interface{}{"thought": directive.Thought, "action": directive.Action},
		}); err != nil {
			return err
		}

		if directive.Respond() {
			result := t.finish(directive, reply, iteration+1)
			o.remember(t, result)
			return emit(doneEvent(result))
		}
		if directive.Action == "" {
			continue
		}

		if err := emit(types.StreamEvent{
			Event: types.EventToolStart,
			Data:  map[string]interface{}{"tool": directive.Action, "input": directive.ActionInput},
		}); err != nil {
			return err
		}

		result, err := o.registry.Dispatch(ctx, directive.Action, directive.ActionInput)
		if err != nil {
			if emitErr := emit(types.StreamEvent{
				Event: types.EventToolEnd,
				Data:  map[string]interface{}{"tool": directive.Action, "success": false, "error": err.Error()},
			}); emitErr != nil {
				return emitErr
			}
			if errs.IsKind(err, errs.KindToolNotFound) || ctx.Err() != nil {
				return err
			}
			log.Error("[Agent] tool %s failed: %s", directive.Action, err.Error())
			t.feed(reply, fmt.Sprintf("Tool '%s' failed: %s. Try another approach.", directive.Action, err.Error()))
			continue
		}

		var preview interface{}
		if result.Output != "" {
			preview = truncate(result.Output, previewLength)
		}
		if err := emit(types.StreamEvent{
			Event: types.EventToolEnd,
			Data:  map[string]interface{}{"tool": directive.Action, "success": result.Success, "result_preview": preview},
		}); err != nil {
			return err
		}

		t.feedResult(reply, directive.Action, result)
		if cached := o.lookup(t, result, iteration+1); cached != nil {
			log.Info("[Agent] response cache hit for %q", truncate(userMessage, 50))
			return emit(doneEvent(cached))
		}
	}

	if err := emit(types.StreamEvent{
		Event: types.EventError,
		Data:  map[string]interface{}{"error": "Maximum iterations exceeded"},
	}); err != nil {
		return err
	}
	return nil
}

// begin bounds the history and seeds the turn state
func (o *Orchestrator) begin(ctx context.Context, userMessage string, history []types.ChatMessage, systemPrompt string) (*turn, error) {
	if o.history != nil {
		prepared, err := o.history.Prepare(ctx, history, systemPrompt)
		if err != nil {
			return nil, err
		}
		history = prepared.Messages
	}

	messages := make([]types.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.ChatMessage{Role: string(types.RoleUser), Content: userMessage})

	return &turn{
		userMessage: userMessage,
		messages:    messages,
		sources:     []types.Source{},
		started:     time.Now(),
	}, nil
}

// finish builds the terminal result for a responding directive. A parse
// fallback leaves Response empty; the raw reply stands in.
func (t *turn) finish(directive *Directive, reply string, iterations int) *types.AgentResult {
	response := directive.Response
	if response == "" {
		response = reply
	}
	return &types.AgentResult{
		Response:        response,
		Sources:         t.sources,
		Iterations:      iterations,
		ExecutionTimeMs: time.Since(t.started).Milliseconds(),
	}
}

// feedResult threads a tool outcome back into the conversation and
// accumulates its sources
func (t *turn) feedResult(reply string, tool string, result *Result) {
	if result.Success {
		if raw := result.Sources(); len(raw) > 0 {
			t.sources = append(t.sources, normalizeSources(raw, len(t.sources))...)
		}
		t.feed(reply, toolResultMessage(tool, result.Output))
		return
	}
	t.feed(reply, toolResultMessage(tool, result.Error))
}

// feedFailure threads a dispatch error back as a recoverable prompt
func (t *turn) feedFailure(reply string, tool string, err error) {
	t.feed(reply, toolFailureMessage(tool, err))
}

func (t *turn) feed(reply string, message string) {
	t.messages = append(t.messages,
		types.ChatMessage{Role: string(types.RoleAssistant), Content: reply},
		types.ChatMessage{Role: string(types.RoleUser), Content: message},
	)
}

// lookup consults the response cache after the first tool result that
// names the chunks answering the query. A hit ends the turn with the
// cached payload; a miss pins the key for remember.
func (o *Orchestrator) lookup(t *turn, result *Result, iterations int) *types.AgentResult {
	if o.cache == nil || t.cacheKey != "" || !result.Success {
		return nil
	}
	chunkIDs := chunkIDsOf(result.Sources())
	if len(chunkIDs) == 0 {
		return nil
	}

	t.cacheKey = store.QueryHash(t.userMessage, chunkIDs)
	cached, ok := o.cache.GetResponse(t.cacheKey)
	if !ok {
		return nil
	}
	cached.Iterations = iterations
	cached.ExecutionTimeMs = time.Since(t.started).Milliseconds()
	return cached
}

// remember stores a terminal result under the turn's cache key
func (o *Orchestrator) remember(t *turn, result *types.AgentResult) {
	if o.cache == nil || t.cacheKey == "" {
		return
	}
	if err := o.cache.SetResponse(t.cacheKey, result); err != nil {
		log.Warn("[Agent] response cache store: %s", err.Error())
	}
}

func doneEvent(result *types.AgentResult) types.StreamEvent {
	return types.StreamEvent{
		Event: types.EventDone,
		Data: map[string]interface{}{
			"response":          result.Response,
			"sources":           result.Sources,
			"iterations":        result.Iterations,
			"execution_time_ms": result.ExecutionTimeMs,
		},
	}
}

// chunkIDsOf gathers the chunk ids a tool result cites
func chunkIDsOf(raw []map[string]interface{}) []string {
	ids := []string{}
	for _, src := range raw {
		if id, ok := src["chunk_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// normalizeSources converts tool source maps to the citation shape the
// API serves, renumbering across tools so indexes stay unique within
// the turn. Web results carry their title as the document.
func normalizeSources(raw []map[string]interface{}, offset int) []types.Source {
	sources := make([]types.Source, 0, len(raw))
	for i, src := range raw {
		source := types.Source{Index: offset + i + 1}

		if document, ok := src["document"].(string); ok && document != "" {
			source.Document = document
		} else if title, ok := src["title"].(string); ok && title != "" {
			source.Document = title
		} else {
			source.Document = "Unknown"
		}

		if page, ok := asInt(src["page"]); ok {
			source.Page = &page
		}
		if id, ok := src["chunk_id"].(string); ok {
			source.ChunkID = id
		}
		if similarity, ok := asFloat(src["similarity"]); ok {
			source.Similarity = &similarity
		}
		if url, ok := src["url"].(string); ok {
			source.URL = url
		}
		if preview, ok := src["content_preview"].(string); ok {
			source.ContentPreview = preview
		}

		switch {
		case src["type"] != nil:
			kind, _ := src["type"].(string)
			source.Type = types.SourceType(kind)
		case source.URL != "":
			source.Type = types.SourceTypeWeb
		default:
			source.Type = types.SourceTypeRAG
		}

		sources = append(sources, source)
	}
	return sources
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
