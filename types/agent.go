package types

// StreamEventName identifies one event kind on the agent stream
type StreamEventName string

// Agent stream event names, emitted in causal order
const (
	EventMessage   StreamEventName = "message"    // One generation delta
	EventThought   StreamEventName = "thought"    // Parsed reasoning for an iteration
	EventToolStart StreamEventName = "tool_start" // Tool dispatch begins
	EventToolEnd   StreamEventName = "tool_end"   // Tool dispatch finished
	EventDone      StreamEventName = "done"       // Terminal result
	EventError     StreamEventName = "error"      // Terminal failure
)

// StreamEvent is one event on the agent's output stream
type StreamEvent struct {
	Event StreamEventName        `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// SourceType discriminates where a citation came from
type SourceType string

// Citation origins
const (
	SourceTypeRAG SourceType = "rag" // Knowledge-base chunk
	SourceTypeWeb SourceType = "web" // Web search result
)

// Source is a normalized citation attached to an assistant reply. The
// Type field tags the variant; nil and empty fields are dropped on
// serialization.
type Source struct {
	Type           SourceType `json:"type"`
	Index          int        `json:"index"`
	Document       string     `json:"document,omitempty"`
	Page           *int       `json:"page,omitempty"`
	ChunkID        string     `json:"chunk_id,omitempty"`
	Similarity     *float64   `json:"similarity,omitempty"`
	URL            string     `json:"url,omitempty"`
	ContentPreview string     `json:"content_preview,omitempty"`
}

// AgentResult is the terminal payload of one agent turn
type AgentResult struct {
	Response        string   `json:"response"`
	Sources         []Source `json:"sources"`
	Iterations      int      `json:"iterations"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}
