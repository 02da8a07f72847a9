// ABOUTME: HTTP client for the external text-completion service
// ABOUTME: One POST per prompt, typed response schema, no retries

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultEndpoint is the completions endpoint used when none is configured.
const DefaultEndpoint = "https://api.openai.com/v1/completions"

// Fixed generation parameters sent with every request.
const (
	MaxTokens = 500
	Choices   = 1
)

var (
	// ErrTransport marks failures before a decodable response was obtained.
	ErrTransport = errors.New("completion transport failure")
	// ErrProtocol marks responses that decoded but had an unexpected shape.
	ErrProtocol = errors.New("completion protocol failure")
)

// Request is the JSON body posted to the completion endpoint.
type Request struct {
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	MaxTokens int     `json:"max_tokens"`
	Suffix    *string `json:"suffix"`
	N         int     `json:"n"`
}

// Usage is the token accounting reported by the backend, when present.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a successfully extracted completion.
type Result struct {
	Text  string
	Usage Usage
}

// response is the subset of the backend reply we rely on. Pointers distinguish
// absent fields from zero values. Usage is informational and decoded
// separately so a malformed usage block never rejects the text.
type response struct {
	Choices *[]struct {
		Text *string `json:"text"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Config holds the static settings for a Client.
type Config struct {
	Endpoint     string
	APIKey       string
	Organization string
}

// Client performs completion requests. It is safe for concurrent use.
type Client struct {
	endpoint     string
	apiKey       string
	organization string
	http         *http.Client
	logger       *slog.Logger
}

// New creates a completion client. A nil httpClient uses a client with no timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:     endpoint,
		apiKey:       cfg.APIKey,
		organization: cfg.Organization,
		http:         httpClient,
		logger:       logger.With("component", "completion"),
	}
}

// Complete posts prompt for model to the backend and returns choices[0].text.
// Errors wrap ErrTransport or ErrProtocol; no partial text is ever returned.
func (c *Client) Complete(ctx context.Context, model, prompt string) (*Result, error) {
	body, err := json.Marshal(Request{
		Model:     model,
		Prompt:    prompt,
		MaxTokens: MaxTokens,
		Suffix:    nil,
		N:         Choices,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("completion post failed", "model", model, "error", err)
		return nil, fmt.Errorf("%w: sending request: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("completion post failed reading body", "status", resp.StatusCode, "error", err)
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	result, err := decode(raw)
	if err != nil {
		c.logger.Error("completion response rejected", "status", resp.StatusCode, "error", err)
		return nil, err
	}

	c.logger.Debug("completion received",
		"status", resp.StatusCode,
		"text_bytes", len(result.Text),
		"total_tokens", result.Usage.TotalTokens,
	)
	return result, nil
}

// decode validates the response body against the expected schema.
func decode(raw []byte) (*Result, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return nil, fmt.Errorf("%w: decoding body: %v", ErrTransport, err)
	}

	if r.Choices == nil {
		if r.Error != nil && r.Error.Message != "" {
			return nil, fmt.Errorf("%w: api error (%s): %s", ErrProtocol, r.Error.Type, r.Error.Message)
		}
		return nil, fmt.Errorf("%w: choices missing", ErrProtocol)
	}
	if len(*r.Choices) == 0 {
		return nil, fmt.Errorf("%w: choices empty", ErrProtocol)
	}
	text := (*r.Choices)[0].Text
	if text == nil {
		return nil, fmt.Errorf("%w: choices[0].text missing", ErrProtocol)
	}

	result := &Result{Text: *text}
	if len(r.Usage) > 0 {
		var usage Usage
		if err := json.Unmarshal(r.Usage, &usage); err == nil {
			result.Usage = usage
		}
	}
	return result, nil
}
