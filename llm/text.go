package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// SummarizationSystemPrompt steers document and text summaries
const SummarizationSystemPrompt = `You are an expert at summarizing documents.
Create concise but comprehensive summaries that capture:
- Main topics and themes
- Key findings or arguments
- Important details and data points
- Overall purpose of the document

Your summaries should be useful for searching and understanding the document's content.`

// ChatSystemPrompt is the default persona for plain chat turns
const ChatSystemPrompt = `You are a helpful AI assistant with access to a knowledge base of documents.
When answering questions:
- Draw on relevant information from the provided context
- Be accurate and cite sources when possible
- Acknowledge when you don't have enough information
- Be conversational but informative`

// conversationSummarySystem steers rolling history compaction
const conversationSummarySystem = "You are a conversation summarizer. Create concise summaries that preserve important context."

// maxTitleLength caps generated chat titles
const maxTitleLength = 100

// summaryChunkLimit is how many leading chunks feed a document summary
const summaryChunkLimit = 10

// Summarize condenses a piece of text. maxWords of 0 leaves the length to
// the model; context, when non-empty, is prefixed to orient the summary.
func (c *Client) Summarize(ctx context.Context, text string, maxWords int, contextHint string) (string, error) {
	prompt := "Summarize the following text:\n\n"
	if contextHint != "" {
		prompt = fmt.Sprintf("Context: %s\n\n%s", contextHint, prompt)
	}
	prompt += text
	if maxWords > 0 {
		prompt += fmt.Sprintf("\n\nKeep the summary under %d words.", maxWords)
	}

	response, err := c.Generate(ctx, prompt, SummarizationSystemPrompt, types.WithTemperature(0.3))
	if err != nil {
		return "", err
	}

	log.Debug("text summarized, input %d chars output %d chars", len(text), len(response))
	return strings.TrimSpace(response), nil
}

// SummarizeDocument builds a document-level summary from its leading chunks
func (c *Client) SummarizeDocument(ctx context.Context, chunks []string, filename string) (string, error) {
	sample := chunks
	if len(sample) > summaryChunkLimit {
		sample = sample[:summaryChunkLimit]
	}
	combined := strings.Join(sample, "\n\n---\n\n")

	prompt := fmt.Sprintf(`Create a comprehensive summary of this document: "%s"

Document content:
%s

Provide a summary that covers:
1. The main topic and purpose
2. Key points and findings
3. Notable details or data

The summary should be useful for searching and understanding what this document contains.`, filename, combined)

	response, err := c.Generate(ctx, prompt, SummarizationSystemPrompt,
		types.WithTemperature(0.3), types.WithMaxTokens(500))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// SummarizeConversation compacts older turns into a rolling summary
func (c *Client) SummarizeConversation(ctx context.Context, messages []types.ChatMessage) (string, error) {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(msg.Role), msg.Content))
	}

	prompt := fmt.Sprintf(`Summarize this conversation, preserving key information and context:

%s

Provide a concise summary that captures:
- Main topics discussed
- Key decisions or conclusions
- Important details the user mentioned
- Any pending questions or tasks`, strings.Join(lines, "\n"))

	response, err := c.Generate(ctx, prompt, conversationSummarySystem,
		types.WithTemperature(0.3), types.WithMaxTokens(300))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// GenerateTitle names a chat after its first user message
func (c *Client) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	prompt := fmt.Sprintf(`Generate a very short title (3-6 words) for a conversation that starts with this message:

"%s"

Respond with only the title, nothing else.`, firstMessage)

	response, err := c.Generate(ctx, prompt, "",
		types.WithTemperature(0.7), types.WithMaxTokens(20))
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(response)
	title = strings.Trim(title, `"`)
	title = strings.Trim(title, `'`)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	return title, nil
}
