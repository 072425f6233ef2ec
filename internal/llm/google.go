package llm

import (
	"context"
	"fmt"
	"net/http"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleProvider generates answers through the Gemini generateContent
// API. Gemini has no assistant role ("model" instead) and takes the
// system prompt as a separate systemInstruction block.
type GoogleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGoogleProvider(apiKey, model string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiURL,
		client:  &http.Client{},
	}
}

func (p *GoogleProvider) Name() string { return "google" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiReply struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var system []geminiPart
	var contents []geminiContent
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: msg.Content})
		case RoleUser:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	// The API rejects an empty contents list.
	if len(contents) == 0 {
		contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: ""}}}}
	}

	apiReq := geminiRequest{Contents: contents}
	apiReq.GenerationConfig.Temperature = req.Temperature
	apiReq.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if len(system) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: system}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)

	var reply geminiReply
	if err := postJSON(ctx, p.client, url, nil, apiReq, &reply); err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}

	resp := &CompletionResponse{Model: model}
	if len(reply.Candidates) > 0 {
		cand := reply.Candidates[0]
		resp.FinishReason = cand.FinishReason
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				resp.Content += part.Text
			}
		}
	}
	if reply.UsageMetadata != nil {
		resp.InputTokens = reply.UsageMetadata.PromptTokenCount
		resp.OutputTokens = reply.UsageMetadata.CandidatesTokenCount
	}
	return resp, nil
}
