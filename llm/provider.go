package llm

import (
	"context"
	"encoding/json"

	"github.com/nvisycom/server/common"
)

var log = common.Component("llm")

// Role identifies a chat message author.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat carries a structured-output directive.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names a schema that the provider must enforce on its output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ChatRequest is a provider-agnostic completion request. Zero-valued fields
// fall back to the client configuration.
type ChatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a provider-agnostic completion response.
type ChatResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// CompletionProvider is the single abstraction over concrete completion
// backends (OpenRouter and compatible APIs). Implementations are selected at
// startup from configuration.
type CompletionProvider interface {
	// Chat performs one completion round trip.
	Chat(ctx context.Context, request ChatRequest) (*ChatResponse, error)
}

// OcrRegion is one recognized text region.
type OcrRegion struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box,omitempty"`
}

// OcrPage is the recognition result for one page.
type OcrPage struct {
	PageNumber int         `json:"page_number"`
	Regions    []OcrRegion `json:"regions"`
}

// OcrRequest asks for text extraction from a stored document.
type OcrRequest struct {
	Content  []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Language string `json:"language,omitempty"`
}

// OcrResponse is the full extraction result.
type OcrResponse struct {
	Pages    []OcrPage `json:"pages"`
	FullText string    `json:"full_text"`
}

// OcrProvider is the abstraction over OCR backends (PaddleOCR, OLMo and
// compatible services), selected at startup from configuration.
type OcrProvider interface {
	// Extract runs text recognition over document content.
	Extract(ctx context.Context, request OcrRequest) (*OcrResponse, error)
}
