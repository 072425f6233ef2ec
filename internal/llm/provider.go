// Package llm abstracts the chat-completion backends that answer
// generation runs on. Each provider maps the shared request shape onto
// its own wire API; callers see only Provider and the typed *Error.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Provider is one completion backend. Implementations must be safe for
// concurrent use; the pipeline shares a single instance across questions.
type Provider interface {
	// Complete runs one completion and returns the generated text with
	// token usage. Failures are reported as *Error.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend ("openai", "anthropic", "google", "ollama").
	Name() string
}

// Error reports a failed completion and which backend produced it.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// postJSON sends one JSON request and decodes the body into out. Non-2xx
// responses surface the raw body so upstream error messages reach the
// caller. The HTTP providers share this; OpenAI goes through its SDK.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
