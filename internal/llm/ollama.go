package llm

import (
	"context"
	"net/http"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaProvider generates answers through a local Ollama server's
// /api/chat endpoint, with streaming disabled so one request yields
// one complete answer.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider connects to the Ollama server at baseURL, which
// defaults to http://localhost:11434 when empty.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaHost
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string       `json:"model"`
	Messages []ollamaTurn `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaChatReply struct {
	Message         ollamaTurn `json:"message"`
	Model           string     `json:"model"`
	DoneReason      string     `json:"done_reason"`
	PromptEvalCount int        `json:"prompt_eval_count"`
	EvalCount       int        `json:"eval_count"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := ollamaChatRequest{Model: model, Stream: false}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, ollamaTurn{Role: string(msg.Role), Content: msg.Content})
	}
	apiReq.Options.Temperature = req.Temperature
	apiReq.Options.NumPredict = req.MaxTokens

	var reply ollamaChatReply
	if err := postJSON(ctx, p.client, p.baseURL+"/api/chat", nil, apiReq, &reply); err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}

	return &CompletionResponse{
		Content:      reply.Message.Content,
		InputTokens:  reply.PromptEvalCount,
		OutputTokens: reply.EvalCount,
		Model:        reply.Model,
		FinishReason: reply.DoneReason,
	}, nil
}
