package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nvisycom/server/config"
)

// OpenRouterClient is the CompletionProvider over the OpenRouter chat
// completions API (OpenAI-compatible wire format).
type OpenRouterClient struct {
	http         *resty.Client
	defaultModel string
}

// NewOpenRouterClient builds a provider client from configuration.
func NewOpenRouterClient(cfg config.LLMConfig) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, ConfigError("OPENROUTER_API_KEY is required")
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &OpenRouterClient{
		http:         client,
		defaultModel: cfg.Model,
	}, nil
}

// wire shapes for the OpenAI-compatible chat completions endpoint.
type wireChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type wireChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Chat implements CompletionProvider.
func (c *OpenRouterClient) Chat(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	model := request.Model
	if model == "" {
		model = c.defaultModel
	}

	body := wireChatRequest{
		Model:          model,
		Messages:       request.Messages,
		Temperature:    request.Temperature,
		MaxTokens:      request.MaxTokens,
		ResponseFormat: request.ResponseFormat,
	}

	var parsed wireChatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/chat/completions")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, TimeoutError("completion request timed out", c.http.GetClient().Timeout)
		}
		return nil, NetworkError("completion request failed", true, err)
	}

	if resp.IsError() {
		return nil, c.statusError(resp, &parsed)
	}

	if len(parsed.Choices) == 0 {
		return nil, APIError("provider returned no choices", resp.StatusCode())
	}

	return &ChatResponse{
		Model:   parsed.Model,
		Content: parsed.Choices[0].Message.Content,
		Usage:   parsed.Usage,
	}, nil
}

func (c *OpenRouterClient) statusError(resp *resty.Response, parsed *wireChatResponse) *Error {
	message := resp.Status()
	if parsed.Error != nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthError(message)
	case http.StatusTooManyRequests:
		return RateLimitError(message, parseRetryAfter(resp))
	default:
		return APIError(message, resp.StatusCode())
	}
}

func parseRetryAfter(resp *resty.Response) time.Duration {
	raw := resp.Header().Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		return time.Until(at)
	}
	return 0
}

// String identifies the provider in logs.
func (c *OpenRouterClient) String() string {
	return fmt.Sprintf("openrouter(%s)", c.defaultModel)
}
