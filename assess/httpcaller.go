package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxVerdictTokens caps the completion length requested from every
// backend. The assessor only ever wants a single word back.
const maxVerdictTokens = 10

// errorBodyLimit bounds how much of a failed response body is retained in
// the returned error.
const errorBodyLimit = 8 << 10

// anthropicVersion is the API version header required by the anthropic
// messages endpoint.
const anthropicVersion = "2023-06-01"

// HTTPCaller implements Caller over the three backend wire shapes. One
// request, one response, no retries: the timeout passed to Call is a hard
// deadline, and the request is abandoned when it expires.
type HTTPCaller struct {
	client *http.Client
	log    zerolog.Logger
}

// HTTPCallerOption configures an HTTPCaller.
type HTTPCallerOption func(*HTTPCaller)

// WithHTTPClient substitutes the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPCallerOption {
	return func(h *HTTPCaller) {
		h.client = c
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l zerolog.Logger) HTTPCallerOption {
	return func(h *HTTPCaller) {
		h.log = l
	}
}

// NewHTTPCaller creates a caller with a plain http.Client. Per-call
// deadlines come from the timeout argument to Call, not from the client.
func NewHTTPCaller(opts ...HTTPCallerOption) *HTTPCaller {
	h := &HTTPCaller{
		client: &http.Client{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Call sends the prompt to the backend named by cfg and returns the
// trimmed, upper-cased completion text. It fails with *ProviderHTTPError
// on a non-success status and *ProviderTimeoutError when the deadline
// expires.
func (h *HTTPCaller) Call(ctx context.Context, cfg ProviderConfig, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := h.buildRequest(ctx, cfg, prompt)
	if err != nil {
		return "", &CallError{Message: "building assessment request", Cause: err}
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &ProviderTimeoutError{
				CallError: CallError{Message: "assessment call timed out", Cause: err},
				Provider:  cfg.Provider,
				Timeout:   timeout,
			}
		}
		return "", &CallError{Message: "assessment call failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", &ProviderHTTPError{
			CallError:  CallError{Message: "assessment backend returned non-success status"},
			Provider:   cfg.Provider,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	text, err := decodeResponse(cfg.Provider, resp.Body)
	if err != nil {
		return "", &CallError{Message: "decoding assessment response", Cause: err}
	}

	h.log.Debug().
		Str("provider", string(cfg.Provider)).
		Str("model", cfg.Model).
		Dur("elapsed", time.Since(start)).
		Msg("assessment call completed")

	return strings.ToUpper(strings.TrimSpace(text)), nil
}

func (h *HTTPCaller) buildRequest(ctx context.Context, cfg ProviderConfig, prompt string) (*http.Request, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return buildAnthropicRequest(ctx, cfg, prompt)
	case ProviderOpenAI:
		return buildOpenAIRequest(ctx, cfg, prompt)
	case ProviderGemini:
		return buildGeminiRequest(ctx, cfg, prompt)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// Anthropic messages API.

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func buildAnthropicRequest(ctx context.Context, cfg ProviderConfig, prompt string) (*http.Request, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: maxVerdictTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

// OpenAI chat completions API.

type openAIRequest struct {
	Model               string          `json:"model"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
	Messages            []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func buildOpenAIRequest(ctx context.Context, cfg ProviderConfig, prompt string) (*http.Request, error) {
	body, err := json.Marshal(openAIRequest{
		Model:               cfg.Model,
		MaxCompletionTokens: maxVerdictTokens,
		Messages:            []openAIMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return req, nil
}

// Gemini generateContent API. The key travels as a query parameter.

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func buildGeminiRequest(ctx context.Context, cfg ProviderConfig, prompt string) (*http.Request, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{MaxOutputTokens: maxVerdictTokens},
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		cfg.BaseURL, url.PathEscape(cfg.Model), url.QueryEscape(cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// decodeResponse extracts the single text field each backend returns.
func decodeResponse(p Provider, body io.Reader) (string, error) {
	switch p {
	case ProviderAnthropic:
		var r anthropicResponse
		if err := json.NewDecoder(body).Decode(&r); err != nil {
			return "", err
		}
		if len(r.Content) == 0 {
			return "", errors.New("empty content")
		}
		return r.Content[0].Text, nil
	case ProviderOpenAI:
		var r openAIResponse
		if err := json.NewDecoder(body).Decode(&r); err != nil {
			return "", err
		}
		if len(r.Choices) == 0 {
			return "", errors.New("empty choices")
		}
		return r.Choices[0].Message.Content, nil
	case ProviderGemini:
		var r geminiResponse
		if err := json.NewDecoder(body).Decode(&r); err != nil {
			return "", err
		}
		if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
			return "", errors.New("empty candidates")
		}
		return r.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("unknown provider %q", p)
}
