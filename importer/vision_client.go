package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"caixa_scrooper/config"
	"caixa_scrooper/models"
)

const defaultVisionModel = "google/gemini-2.5-flash"

// VisionClient talks to an OpenAI-compatible chat completions gateway.
type VisionClient struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	configured bool
}

func NewVisionClient(cfg config.VisionConfig, client *http.Client) *VisionClient {
	model := cfg.Model
	if model == "" {
		model = defaultVisionModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = client

	return &VisionClient{
		client:     openai.NewClientWithConfig(oc),
		model:      model,
		timeout:    timeout,
		configured: cfg.BaseURL != "" && cfg.APIKey != "",
	}
}

func (c *VisionClient) Configured() bool {
	return c != nil && c.configured
}

type ContentPart = openai.ChatMessagePart

func TextPart(s string) ContentPart {
	return ContentPart{Type: openai.ChatMessagePartTypeText, Text: s}
}

func ImagePart(dataURL string) ContentPart {
	return ContentPart{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}}
}

// CompleteJSON sends one system prompt and one multi-part user message in
// JSON mode and returns the first choice's content.
func (c *VisionClient) CompleteJSON(ctx context.Context, system string, parts []ContentPart) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: vision backend not configured", models.ErrServiceUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", classifyVisionError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrUnparsableResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyVisionError maps a gateway that answered with a body it could not
// decode to ErrUnparsableResponse and everything else to
// ErrServiceUnavailable.
func classifyVisionError(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %w", models.ErrServiceUnavailable, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", models.ErrUnparsableResponse, err)
	}
	return fmt.Errorf("%w: %w", models.ErrServiceUnavailable, err)
}
