package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/pipeline"
)

type stubExtractor struct {
	content string
}

func (s *stubExtractor) Extract(ctx context.Context, url string) (*extract.Document, error) {
	return &extract.Document{
		Content: s.content,
		Meta:    extract.DocumentMeta{Source: url, DocType: "text"},
	}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 4)
		for j, r := range text {
			vec[j%4] += float32(r) / 1000
		}
		out[i] = vec
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int { return 4 }

func (stubEmbedder) Name() string { return "stub" }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, question string, results []index.SearchResult, maxTokens int) (*answer.Answer, error) {
	return &answer.Answer{Text: "answer to: " + question, Confidence: 0.9}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	idx := index.NewFlatIndex(index.FlatOptions{
		IndexPath:    filepath.Join(dir, "index.gob"),
		MetadataPath: filepath.Join(dir, "metadata.json"),
		Dimension:    4,
		Workers:      2,
	})
	if err := idx.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	pipe := pipeline.New(
		&stubExtractor{content: "The grace period for premium payment is thirty days."},
		chunker.New(200, 20),
		stubEmbedder{},
		idx,
		stubGenerator{},
		pipeline.Options{TopK: 5, SimilarityThreshold: 0},
	)
	return New(Config{Port: 0, AllowAll: true}, pipe, idx)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestQueryReturnsOneAnswerPerQuestion(t *testing.T) {
	srv := newTestServer(t)

	payload, _ := json.Marshal(map[string]any{
		"documents": "https://example.com/policy.txt",
		"questions": []string{"What is the grace period?", "Is surgery covered?"},
	})
	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(resp.Answers))
	}
	for i, ans := range resp.Answers {
		if ans == "" {
			t.Errorf("answer %d is empty", i)
		}
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, url string) (*extract.Document, error) {
	return nil, &extract.Error{URL: url, Err: context.DeadlineExceeded}
}

func TestQueryIngestionFailureStaysInBand(t *testing.T) {
	dir := t.TempDir()
	idx := index.NewFlatIndex(index.FlatOptions{
		IndexPath:    filepath.Join(dir, "index.gob"),
		MetadataPath: filepath.Join(dir, "metadata.json"),
		Dimension:    4,
		Workers:      1,
	})
	t.Cleanup(func() { idx.Close() })
	pipe := pipeline.New(failingExtractor{}, chunker.New(200, 20), stubEmbedder{}, idx, stubGenerator{}, pipeline.Options{TopK: 5})
	srv := New(Config{AllowAll: true}, pipe, idx)

	payload, _ := json.Marshal(map[string]any{
		"documents": "https://example.com/unreachable.txt",
		"questions": []string{"q1", "q2"},
	})
	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ingestion failure must stay in-band: got %d", w.Code)
	}
	var resp struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(resp.Answers))
	}
	for i, ans := range resp.Answers {
		if !strings.HasPrefix(ans, "Error processing question:") {
			t.Errorf("answer %d: expected error answer, got %q", i, ans)
		}
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing questions", `{"documents":"https://example.com/a.txt"}`},
		{"empty questions", `{"documents":"https://example.com/a.txt","questions":[]}`},
		{"missing documents", `{"questions":["q"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader([]byte(tc.body)))
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.BearerToken = "secret"
	srv.router = srv.buildRouter()

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}

	// Healthz stays open regardless of auth config.
	req = httptest.NewRequest("GET", "/healthz", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on /healthz, got %d", w.Code)
	}
}

func TestDeleteDocumentRequiresSource(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("DELETE", "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without source, got %d", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}
