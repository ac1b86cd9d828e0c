package chat

import (
	"context"
	"fmt"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// Default history window configuration
const (
	DefaultMaxHistoryTokens   = 2048
	DefaultSummarizeThreshold = 10
)

// Summarizer condenses a span of conversation into prose
type Summarizer interface {
	SummarizeConversation(ctx context.Context, messages []types.ChatMessage) (string, error)
}

// HistoryOptions configure the history window
type HistoryOptions struct {
	MaxTokens          int
	SummarizeThreshold int
	Summarizer         Summarizer // optional, long histories fall back to truncation without it
}

// HistoryManager bounds the history sent to the model. Short overruns
// are truncated from the oldest end. Conversations longer than the
// threshold keep their newest half verbatim and compress the rest into
// one system summary message.
type HistoryManager struct {
	maxTokens          int
	summarizeThreshold int
	summarizer         Summarizer
}

// NewHistoryManager creates a manager, fixing non-positive limits to
// the defaults
func NewHistoryManager(options HistoryOptions) *HistoryManager {
	if options.MaxTokens <= 0 {
		options.MaxTokens = DefaultMaxHistoryTokens
	}
	if options.SummarizeThreshold <= 0 {
		options.SummarizeThreshold = DefaultSummarizeThreshold
	}
	return &HistoryManager{
		maxTokens:          options.MaxTokens,
		summarizeThreshold: options.SummarizeThreshold,
		summarizer:         options.Summarizer,
	}
}

// PreparedHistory is the bounded window plus what was done to fit it
type PreparedHistory struct {
	Messages  []types.ChatMessage
	Truncated bool
	Summary   string // non-empty when older turns were summarized
}

// Prepare bounds a history so that together with the system context it
// fits the token budget. Token counts are estimated as chars/4.
func (m *HistoryManager) Prepare(ctx context.Context, history []types.ChatMessage, systemContext string) (*PreparedHistory, error) {
	contextTokens := types.EstimateTokens(systemContext)
	if types.EstimateMessageTokens(history)+contextTokens <= m.maxTokens {
		return &PreparedHistory{Messages: history}, nil
	}

	if len(history) > m.summarizeThreshold && m.summarizer != nil {
		keep := m.summarizeThreshold / 2
		older := history[:len(history)-keep]
		recent := history[len(history)-keep:]

		summary, err := m.summarizer.SummarizeConversation(ctx, older)
		if err != nil {
			log.Warn("[History] summarization failed, truncating instead: %s", err.Error())
			return &PreparedHistory{Messages: m.truncate(history, contextTokens), Truncated: true}, nil
		}

		prepared := make([]types.ChatMessage, 0, keep+1)
		prepared = append(prepared, types.ChatMessage{
			Role:    string(types.RoleSystem),
			Content: fmt.Sprintf("[Previous conversation summary: %s]", summary),
		})
		prepared = append(prepared, recent...)

		if types.EstimateMessageTokens(prepared)+contextTokens > m.maxTokens {
			prepared = m.truncate(prepared, contextTokens)
		}
		log.Trace("[History] summarized %d messages into %d", len(history), len(prepared))
		return &PreparedHistory{Messages: prepared, Truncated: true, Summary: summary}, nil
	}

	return &PreparedHistory{Messages: m.truncate(history, contextTokens), Truncated: true}, nil
}

// truncate keeps the newest messages that fit the remaining budget,
// returned oldest first
func (m *HistoryManager) truncate(history []types.ChatMessage, contextTokens int) []types.ChatMessage {
	budget := m.maxTokens - contextTokens

	kept := make([]types.ChatMessage, 0, len(history))
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		tokens := types.EstimateTokens(history[i].Content)
		if total+tokens > budget {
			break
		}
		kept = append(kept, history[i])
		total += tokens
	}

	for left, right := 0, len(kept)-1; left < right; left, right = left+1, right-1 {
		kept[left], kept[right] = kept[right], kept[left]
	}
	return kept
}
