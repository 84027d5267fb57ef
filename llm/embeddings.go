package llm

import (
	"context"
	"errors"
)

// EmbeddingProvider produces fixed-dimension embedding vectors for text.
// Backends are selected at startup from configuration.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// wire shapes for the OpenAI-compatible embeddings endpoint.
type wireEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type wireEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed implements EmbeddingProvider for the OpenRouter client.
func (c *OpenRouterClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var parsed wireEmbeddingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(wireEmbeddingRequest{Model: model, Input: texts}).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/embeddings")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, TimeoutError("embedding request timed out", c.http.GetClient().Timeout)
		}
		return nil, NetworkError("embedding request failed", true, err)
	}

	if resp.IsError() {
		message := resp.Status()
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, APIError(message, resp.StatusCode())
	}

	if len(parsed.Data) != len(texts) {
		return nil, APIError("provider returned wrong number of embeddings", resp.StatusCode())
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, APIError("provider returned out-of-range embedding index", resp.StatusCode())
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
