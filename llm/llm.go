package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// Default generation knobs used when options leave them unset
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 2048
	DefaultKeepAlive   = "60m"
)

// Options configure a model backend client
type Options struct {
	BaseURL            string        // e.g. http://localhost:11434
	TextModel          string        // Chat and completion model
	VisionModel        string        // Multimodal model for image description
	EmbeddingModel     string        // Embedding model
	EmbeddingDimension int           // Expected vector width
	KeepAlive          string        // Model keep-alive hint
	Temperature        float64       // Default sampling temperature
	TopP               float64       // Default nucleus sampling
	MaxTokens          int           // Default generation cap
	GenerationTimeout  time.Duration // Per generate/chat call
	EmbeddingTimeout   time.Duration // Per embed call
}

// Client talks to an Ollama-compatible model backend. It is safe for
// concurrent use; one instance shares a single connection pool.
type Client struct {
	baseURL      string
	textModel    string
	visionModel  string
	embedModel   string
	dimension    int
	keepAlive    string
	temperature  float64
	topP         float64
	maxTokens    int
	genTimeout   time.Duration
	embedTimeout time.Duration
	http         *http.Client
}

// New creates a backend client, applying defaults to unset options
func New(options Options) (*Client, error) {
	if options.BaseURL == "" {
		return nil, fmt.Errorf("base URL is not set")
	}
	if options.TextModel == "" {
		return nil, fmt.Errorf("text model is not set")
	}

	if options.KeepAlive == "" {
		options.KeepAlive = DefaultKeepAlive
	}
	if options.Temperature <= 0 {
		options.Temperature = DefaultTemperature
	}
	if options.TopP <= 0 {
		options.TopP = DefaultTopP
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = DefaultMaxTokens
	}
	if options.GenerationTimeout <= 0 {
		options.GenerationTimeout = 300 * time.Second
	}
	if options.EmbeddingTimeout <= 0 {
		options.EmbeddingTimeout = 60 * time.Second
	}
	if options.EmbeddingDimension <= 0 {
		options.EmbeddingDimension = 768
	}

	return &Client{
		baseURL:      strings.TrimSuffix(options.BaseURL, "/"),
		textModel:    options.TextModel,
		visionModel:  options.VisionModel,
		embedModel:   options.EmbeddingModel,
		dimension:    options.EmbeddingDimension,
		keepAlive:    options.KeepAlive,
		temperature:  options.Temperature,
		topP:         options.TopP,
		maxTokens:    options.MaxTokens,
		genTimeout:   options.GenerationTimeout,
		embedTimeout: options.EmbeddingTimeout,
		http:         &http.Client{},
	}, nil
}

// BaseURL returns the Ollama server address
func (c *Client) BaseURL() string { return c.baseURL }

// TextModel returns the configured text model name
func (c *Client) TextModel() string { return c.textModel }

// VisionModel returns the configured vision model name
func (c *Client) VisionModel() string { return c.visionModel }

// EmbeddingModel returns the configured embedding model name
func (c *Client) EmbeddingModel() string { return c.embedModel }

// Dimension returns the expected embedding width
func (c *Client) Dimension() int { return c.dimension }

// params resolves per-call options over the client defaults
func (c *Client) params(opts []types.GenerateOption) types.GenerateParams {
	p := types.GenerateParams{
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// options builds the backend options map for one call
func (c *Client) options(p types.GenerateParams) map[string]interface{} {
	return map[string]interface{}{
		"temperature": p.Temperature,
		"top_p":       p.TopP,
		"num_predict": p.MaxTokens,
	}
}

// post sends a JSON POST and decodes the JSON reply into out.
// Transport failures map to BackendUnavailable, unknown models to
// ModelNotFound; other non-200 replies are returned for the caller to
// classify.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.BackendUnavailable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.BackendUnavailable(err)
	}

	if resp.StatusCode != http.StatusOK {
		if isModelNotFound(resp.StatusCode, data) {
			return errs.ModelNotFound(modelOf(payload))
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := jsoniter.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// stream sends a JSON POST and feeds each non-empty response line to the
// handler. The backend emits newline-delimited JSON objects; a leading
// SSE "data: " prefix is tolerated for proxied deployments.
func (c *Client) stream(ctx context.Context, path string, payload interface{}, handler func(line []byte) (done bool, err error)) error {
	body, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.BackendUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		if isModelNotFound(resp.StatusCode, data) {
			return errs.ModelNotFound(modelOf(payload))
		}
		return fmt.Errorf("stream request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	scanner := newLineScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		line = bytes.TrimPrefix(line, []byte("data: "))
		if string(line) == "[DONE]" {
			return nil
		}
		done, err := handler(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.BackendUnavailable(err)
	}
	return nil
}

// Health reports whether the backend answers on its model listing route
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.BackendUnavailable(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errs.BackendUnavailable(fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// ListModels returns the names of the models the backend serves
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.BackendUnavailable(err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := jsoniter.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// EnsureModel verifies a model is served, matching loosely on tags so
// "qwen2-vl:7b" matches "qwen2-vl:7b-instruct-q4_K_M"
func (c *Client) EnsureModel(ctx context.Context, model string) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, available := range models {
		if strings.Contains(available, model) || strings.Contains(model, available) {
			return nil
		}
	}
	return errs.ModelNotFound(model)
}

func isModelNotFound(status int, body []byte) bool {
	return status == http.StatusNotFound && bytes.Contains(bytes.ToLower(body), []byte("model"))
}

// modelOf pulls the model name out of a request payload for error details
func modelOf(payload interface{}) string {
	if m, ok := payload.(map[string]interface{}); ok {
		if name, ok := m["model"].(string); ok {
			return name
		}
	}
	return ""
}
