package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docqa/internal/config"
)

// MockProvider records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func testConfig(provider config.ProviderType, model string) *config.Config {
	return &config.Config{Provider: provider, Model: model}
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}

	if mock.Calls[0].Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", mock.Calls[0].Model)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, p := range []config.ProviderType{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle} {
		_, err := New(testConfig(p, "some-model"))
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := New(testConfig("unknown", "some-model"))
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	provider, err := New(testConfig(config.ProviderOllama, "llama3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", provider.Name())
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := New(testConfig(config.ProviderOllama, "llama3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesKeyedProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cases := []struct {
		provider config.ProviderType
		model    string
	}{
		{config.ProviderAnthropic, "claude-sonnet-4-5-20250929"},
		{config.ProviderOpenAI, "gpt-4o"},
		{config.ProviderGoogle, "gemini-2.0-flash"},
	}
	for _, tc := range cases {
		p, err := New(testConfig(tc.provider, tc.model))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.provider, err)
		}
		if p.Name() != string(tc.provider) {
			t.Errorf("expected name %q, got %q", tc.provider, p.Name())
		}
	}
}

func TestOllamaCompleteRoundTrip(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatReply{
			Message:         ollamaTurn{Role: "assistant", Content: "the answer"},
			Model:           "llama3",
			DoneReason:      "stop",
			PromptEvalCount: 5,
			EvalCount:       7,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "what is this?"},
		},
		MaxTokens:   64,
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "the answer" {
		t.Errorf("expected 'the answer', got %q", resp.Content)
	}
	if resp.InputTokens != 5 || resp.OutputTokens != 7 {
		t.Errorf("expected usage 5/7, got %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if gotReq.Stream {
		t.Error("expected stream to be disabled")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected wire messages: %+v", gotReq.Messages)
	}
}

func TestOllamaCompleteHTTPFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if llmErr.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", llmErr.Provider)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected upstream message in error, got %q", err)
	}
}

func TestAnthropicCompleteFoldsSystemMessages(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		var reply anthropicReply
		reply.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: "answer text"}}
		reply.StopReason = "end_turn"
		json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "claude-sonnet-4-5-20250929")
	p.url = srv.URL

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "first"},
			{Role: RoleSystem, Content: "second"},
			{Role: RoleUser, Content: "question"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "answer text" {
		t.Errorf("expected 'answer text', got %q", resp.Content)
	}
	if gotReq.System != "first\n\nsecond" {
		t.Errorf("expected folded system prompt, got %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("expected single user turn, got %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 4096 {
		t.Errorf("expected default max tokens 4096, got %d", gotReq.MaxTokens)
	}
}

func TestAnthropicCompleteAPIErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("bad-key", "claude-sonnet-4-5-20250929")
	p.url = srv.URL

	_, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if llmErr.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", llmErr.Provider)
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected status in error, got %q", err)
	}
}

func TestGoogleCompleteMapsRoles(t *testing.T) {
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		var reply geminiReply
		reply.Candidates = []struct {
			Content      *geminiContent `json:"content"`
			FinishReason string         `json:"finishReason"`
		}{{
			Content:      &geminiContent{Role: "model", Parts: []geminiPart{{Text: "gemini says"}}},
			FinishReason: "STOP",
		}}
		json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", "gemini-2.0-flash")
	p.baseURL = srv.URL

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "instructions"},
			{Role: RoleUser, Content: "question"},
			{Role: RoleAssistant, Content: "earlier answer"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "gemini says" {
		t.Errorf("expected 'gemini says', got %q", resp.Content)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "instructions" {
		t.Errorf("expected system instruction, got %+v", gotReq.SystemInstruction)
	}
	if len(gotReq.Contents) != 2 || gotReq.Contents[1].Role != "model" {
		t.Errorf("expected assistant mapped to 'model', got %+v", gotReq.Contents)
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := &Error{Provider: "openai", Err: base}
	if !errors.Is(err, base) {
		t.Error("expected Unwrap to reach the base error")
	}
	if err.Error() != "openai completion: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	ctx := context.Background()
	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := rl.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	// First two should succeed immediately.
	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, req)
	if err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" {
		t.Errorf("RoleSystem = %q, want 'system'", RoleSystem)
	}
	if RoleUser != "user" {
		t.Errorf("RoleUser = %q, want 'user'", RoleUser)
	}
	if RoleAssistant != "assistant" {
		t.Errorf("RoleAssistant = %q, want 'assistant'", RoleAssistant)
	}
}
