package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Responder produces model output for a single input string.
type Responder interface {
	Respond(ctx context.Context, input string) (string, error)
}

var ErrNoCredentials = errors.New("generation API key not configured")

// ErrNoRecognizedShape is returned when a 2xx response matches none of the
// known response variants.
var ErrNoRecognizedShape = errors.New("no recognized response shape")

type GenAIClient struct {
	baseURL         string
	apiKey          string
	model           string
	maxOutputTokens int
	http            *http.Client
}

func NewGenAIClient(baseURL, apiKey, model string, maxOutputTokens int) *GenAIClient {
	return &GenAIClient{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		apiKey:          apiKey,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		http:            &http.Client{Timeout: 120 * time.Second},
	}
}

// Respond posts the input to the /responses endpoint and extracts the first
// text it can find among the known response variants, in priority order.
func (c *GenAIClient) Respond(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrNoCredentials
	}

	reqBody, err := json.Marshal(map[string]any{
		"model":             c.model,
		"input":             input,
		"max_output_tokens": c.maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("generation request status=%d body=%s", res.StatusCode, truncate(body, 512))
	}

	text, ok := ExtractText(body)
	if !ok {
		return "", ErrNoRecognizedShape
	}
	return text, nil
}

// responseShape decodes one known wire variant of the generation response.
type responseShape interface {
	Name() string
	Extract(body []byte) (string, bool)
}

// shapes is the closed set of variants, in priority order. The first decoder
// yielding non-empty text wins.
var shapes = []responseShape{
	outputTextShape{},
	outputBlocksShape{},
	contentBlocksShape{},
	chatChoicesShape{},
}

// ExtractText attempts each known response shape in priority order.
func ExtractText(body []byte) (string, bool) {
	for _, s := range shapes {
		if text, ok := s.Extract(body); ok && strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

// outputTextShape: {"output_text": "..."}
type outputTextShape struct{}

func (outputTextShape) Name() string { return "output_text" }

func (outputTextShape) Extract(body []byte) (string, bool) {
	var v struct {
		OutputText string `json:"output_text"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	return v.OutputText, v.OutputText != ""
}

// outputBlocksShape: {"output":[{"content":[{"text":"..."}]}]}
type outputBlocksShape struct{}

func (outputBlocksShape) Name() string { return "output_blocks" }

func (outputBlocksShape) Extract(body []byte) (string, bool) {
	var v struct {
		Output []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	for _, block := range v.Output {
		for _, part := range block.Content {
			if part.Text != "" {
				return part.Text, true
			}
		}
	}
	return "", false
}

// contentBlocksShape: {"content":[{"text":"..."}]}
type contentBlocksShape struct{}

func (contentBlocksShape) Name() string { return "content_blocks" }

func (contentBlocksShape) Extract(body []byte) (string, bool) {
	var v struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	for _, part := range v.Content {
		if part.Text != "" {
			return part.Text, true
		}
	}
	return "", false
}

// chatChoicesShape: {"choices":[{"message":{"content":"..."}}]}
type chatChoicesShape struct{}

func (chatChoicesShape) Name() string { return "chat_choices" }

func (chatChoicesShape) Extract(body []byte) (string, bool) {
	var v struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	for _, choice := range v.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, true
		}
	}
	return "", false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
