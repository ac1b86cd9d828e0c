package llm

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// generateResponse is the non-streaming completion reply
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// chatResponse is one chat reply object, streamed or not
type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generate runs a single-prompt completion against the text model
func (c *Client) Generate(ctx context.Context, prompt string, system string, opts ...types.GenerateOption) (string, error) {
	p := c.params(opts)
	payload := map[string]interface{}{
		"model":      c.textModel,
		"prompt":     prompt,
		"stream":     false,
		"options":    c.options(p),
		"keep_alive": c.keepAlive,
	}
	if system != "" {
		payload["system"] = system
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	var parsed generateResponse
	if err := c.post(ctx, "/api/generate", payload, &parsed); err != nil {
		if _, ok := errs.As(err); ok {
			return "", err
		}
		return "", errs.Generation("completion request failed", err)
	}
	return parsed.Response, nil
}

// Chat runs one chat turn against the text model. A non-empty system
// prompt is prepended as the first message.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage, system string, opts ...types.GenerateOption) (string, error) {
	p := c.params(opts)
	payload := map[string]interface{}{
		"model":      c.textModel,
		"messages":   buildMessages(messages, system),
		"stream":     false,
		"options":    c.options(p),
		"keep_alive": c.keepAlive,
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	var parsed chatResponse
	if err := c.post(ctx, "/api/chat", payload, &parsed); err != nil {
		if _, ok := errs.As(err); ok {
			return "", err
		}
		return "", errs.Generation("chat request failed", err)
	}
	return parsed.Message.Content, nil
}

// ChatStream runs one chat turn with incremental delivery. Each content
// delta is passed to onDelta as it arrives; the accumulated reply is
// returned once the backend reports completion. A non-nil error from
// onDelta aborts the stream.
func (c *Client) ChatStream(ctx context.Context, messages []types.ChatMessage, system string, onDelta func(delta string) error, opts ...types.GenerateOption) (string, error) {
	p := c.params(opts)
	payload := map[string]interface{}{
		"model":      c.textModel,
		"messages":   buildMessages(messages, system),
		"stream":     true,
		"options":    c.options(p),
		"keep_alive": c.keepAlive,
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	var full []byte
	err := c.stream(ctx, "/api/chat", payload, func(line []byte) (bool, error) {
		var chunk chatResponse
		if err := jsoniter.Unmarshal(line, &chunk); err != nil {
			// Skip malformed keep-alive lines rather than killing the stream
			return false, nil
		}
		if chunk.Message.Content != "" {
			full = append(full, chunk.Message.Content...)
			if onDelta != nil {
				if err := onDelta(chunk.Message.Content); err != nil {
					return false, err
				}
			}
		}
		return chunk.Done, nil
	})
	if err != nil {
		if _, ok := errs.As(err); ok {
			return string(full), err
		}
		return string(full), errs.Generation("chat stream failed", err)
	}
	return string(full), nil
}

// visionMessage carries one user turn with attached base64 images
type visionMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ChatVision runs one multimodal turn against the vision model. Images
// are base64-encoded PNG or JPEG payloads attached to the user message.
func (c *Client) ChatVision(ctx context.Context, prompt string, system string, images []string, opts ...types.GenerateOption) (string, error) {
	if c.visionModel == "" {
		return "", errs.ModelNotFound("vision model is not configured")
	}

	p := c.params(opts)
	msgs := make([]visionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, visionMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, visionMessage{Role: "user", Content: prompt, Images: images})

	payload := map[string]interface{}{
		"model":      c.visionModel,
		"messages":   msgs,
		"stream":     false,
		"options":    c.options(p),
		"keep_alive": c.keepAlive,
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	var parsed chatResponse
	if err := c.post(ctx, "/api/chat", payload, &parsed); err != nil {
		if _, ok := errs.As(err); ok {
			return "", err
		}
		return "", errs.Generation("vision request failed", err)
	}
	return parsed.Message.Content, nil
}

// buildMessages prepends the system prompt as the first message
func buildMessages(messages []types.ChatMessage, system string) []types.ChatMessage {
	if system == "" {
		return messages
	}
	out := make([]types.ChatMessage, 0, len(messages)+1)
	out = append(out, types.ChatMessage{Role: "system", Content: system})
	out = append(out, messages...)
	return out
}
