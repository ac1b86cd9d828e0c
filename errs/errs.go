package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a service error for recovery and surface decisions
type Kind string

// Service error kinds
const (
	KindDocumentNotFound      Kind = "document_not_found"
	KindChatNotFound          Kind = "chat_not_found"
	KindMessageNotFound       Kind = "message_not_found"
	KindToolNotFound          Kind = "tool_not_found"
	KindUnsupportedFileType   Kind = "unsupported_file_type"
	KindFileTooLarge          Kind = "file_too_large"
	KindInvalidBranch         Kind = "invalid_branch"
	KindValidation            Kind = "validation"
	KindDocumentProcessing    Kind = "document_processing"
	KindBackendUnavailable    Kind = "backend_unavailable"
	KindModelNotFound         Kind = "model_not_found"
	KindGeneration            Kind = "generation"
	KindEmbedding             Kind = "embedding"
	KindVectorSearch          Kind = "vector_search"
	KindWebSearch             Kind = "web_search"
	KindToolExecution         Kind = "tool_execution"
	KindMaxIterationsExceeded Kind = "max_iterations_exceeded"
)

// Error is a service error carrying a kind, an HTTP status hint and a
// structured details map for the API surface and logs
type Error struct {
	Kind    Kind                   `json:"kind"`
	Status  int                    `json:"status"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

// New creates an error of the given kind
func New(kind Kind, status int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
		Details: map[string]interface{}{},
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause.Error())
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.cause
}

// With attaches one detail entry and returns the error for chaining
func (e *Error) With(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// Wrap records the underlying cause and returns the error for chaining
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// As extracts an *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind anywhere in its chain
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// StatusOf returns the HTTP status hint of err, or 500 when untyped
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return 500
}

// DocumentNotFound reports a missing or soft-deleted document
func DocumentNotFound(id string) *Error {
	return New(KindDocumentNotFound, 404, "Document not found: %s", id).
		With("document_id", id)
}

// ChatNotFound reports a missing or soft-deleted chat
func ChatNotFound(id string) *Error {
	return New(KindChatNotFound, 404, "Chat not found: %s", id).
		With("chat_id", id)
}

// MessageNotFound reports a missing message
func MessageNotFound(id string) *Error {
	return New(KindMessageNotFound, 404, "Message not found: %s", id).
		With("message_id", id)
}

// ToolNotFound reports an unregistered tool name, listing the known ones
func ToolNotFound(name string, available []string) *Error {
	return New(KindToolNotFound, 404, "Tool '%s' not found. Available tools: %s",
		name, strings.Join(available, ", ")).
		With("tool_name", name).
		With("available_tools", available)
}

// UnsupportedFileType rejects an upload whose extension is not allowed
func UnsupportedFileType(filename string, allowed []string) *Error {
	return New(KindUnsupportedFileType, 400, "Unsupported file type: %s. Allowed: %s",
		filename, strings.Join(allowed, ", ")).
		With("filename", filename).
		With("allowed_extensions", allowed)
}

// FileTooLarge rejects an upload exceeding the size limit
func FileTooLarge(size, max int64) *Error {
	return New(KindFileTooLarge, 413, "File too large: %d bytes (max %d)", size, max).
		With("size", size).
		With("max_size", max)
}

// InvalidBranch reports a branch name absent from the chat's branch table
func InvalidBranch(chatID, branch string) *Error {
	return New(KindInvalidBranch, 400, "Branch '%s' does not exist in chat %s", branch, chatID).
		With("chat_id", chatID).
		With("branch", branch)
}

// Validation reports a caller-fixable input problem
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, 422, format, args...)
}

// DocumentProcessing reports a fatal pipeline failure for one document
func DocumentProcessing(documentID, reason string) *Error {
	return New(KindDocumentProcessing, 422, "Failed to process document %s: %s", documentID, reason).
		With("document_id", documentID).
		With("reason", reason)
}

// BackendUnavailable reports an unreachable model backend; callers may retry
func BackendUnavailable(cause error) *Error {
	e := New(KindBackendUnavailable, 503, "Model backend unavailable")
	if cause != nil {
		e.Wrap(cause).With("cause", cause.Error())
	}
	return e
}

// ModelNotFound reports a model name the backend does not serve
func ModelNotFound(model string) *Error {
	return New(KindModelNotFound, 503, "Model not found: %s", model).
		With("model", model)
}

// Generation reports a text-generation failure
func Generation(reason string, cause error) *Error {
	e := New(KindGeneration, 500, "Generation failed: %s", reason).With("reason", reason)
	if cause != nil {
		e.Wrap(cause)
	}
	return e
}

// Embedding reports an embedding failure, carrying the failing batch index
func Embedding(batchIndex int, cause error) *Error {
	e := New(KindEmbedding, 500, "Embedding failed at batch %d", batchIndex).
		With("batch_index", batchIndex)
	if cause != nil {
		e.Wrap(cause).With("cause", cause.Error())
	}
	return e
}

// VectorSearch reports a retrieval failure
func VectorSearch(cause error) *Error {
	e := New(KindVectorSearch, 500, "Vector search failed")
	if cause != nil {
		e.Wrap(cause).With("cause", cause.Error())
	}
	return e
}

// WebSearch reports a web search failure
func WebSearch(cause error) *Error {
	e := New(KindWebSearch, 502, "Web search failed")
	if cause != nil {
		e.Wrap(cause).With("cause", cause.Error())
	}
	return e
}

// ToolExecution reports a tool failure. Never fatal to an agent turn; the
// orchestrator feeds it back into the loop.
func ToolExecution(tool, reason string) *Error {
	return New(KindToolExecution, 500, "Tool '%s' execution failed: %s", tool, reason).
		With("tool_name", tool).
		With("reason", reason)
}

// MaxIterationsExceeded reports an agent turn that never produced a response
func MaxIterationsExceeded(max int) *Error {
	return New(KindMaxIterationsExceeded, 500, "Agent exceeded maximum iterations (%d)", max).
		With("max_iterations", max)
}
