package llm

import (
	"context"
	"net/http"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider generates answers through the Anthropic Messages
// API. The Messages API carries the system prompt outside the message
// list, so system messages are folded into a separate field.
type AnthropicProvider struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		url:    defaultAnthropicURL,
		client: &http.Client{},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []anthropicTurn `json:"messages"`
}

type anthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicReply struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var system string
	var turns []anthropicTurn
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		turns = append(turns, anthropicTurn{Role: string(msg.Role), Content: msg.Content})
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var reply anthropicReply
	err := postJSON(ctx, p.client, p.url, headers, anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      system,
		Messages:    turns,
	}, &reply)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}

	// Responses can interleave multiple text blocks.
	var content string
	for _, block := range reply.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:      content,
		InputTokens:  reply.Usage.InputTokens,
		OutputTokens: reply.Usage.OutputTokens,
		Model:        reply.Model,
		FinishReason: reply.StopReason,
	}, nil
}
