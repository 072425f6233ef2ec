// Package answer turns a question plus retrieved document context into a
// grounded natural-language answer using an LLM provider.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docqa/internal/index"
	"docqa/internal/llm"
)

const systemPrompt = `You are an expert document analysis AI specializing in insurance, legal, HR, and compliance domains.

Your task is to analyze document excerpts and provide accurate, contextual answers to specific queries.

Key guidelines:
1. Always base your answers strictly on the provided document context
2. If information is not available in the context, clearly state "Information not available in the provided documents"
3. For insurance/policy questions, focus on specific terms, conditions, waiting periods, coverage limits
4. For legal documents, emphasize precise language and specific clauses
5. Provide clear, concise answers with specific details when available
6. Include relevant clause references or section numbers when mentioned in the context

Format your response as a clear, direct answer without preambles like "Based on the document" unless specifically relevant to the accuracy of the answer.`

// Answer is the result of one generation call. The pipeline consumes
// Text; Confidence and Reasoning are pass-through diagnostics.
type Answer struct {
	Text       string
	Confidence float32
	Reasoning  string
	ChunksUsed int
	TokensUsed int
}

// Error reports an answer-model failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generating answer: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Generator produces answers grounded in retrieved segments.
type Generator struct {
	provider llm.Provider
	model    string
}

// NewGenerator creates a Generator using the given provider and model.
func NewGenerator(provider llm.Provider, model string) *Generator {
	return &Generator{provider: provider, model: model}
}

// Generate answers the question using only the given context segments.
func (g *Generator) Generate(ctx context.Context, question string, results []index.SearchResult, maxTokens int) (*Answer, error) {
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	prompt := buildPrompt(question, results)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, &Error{Err: err}
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, &Error{Err: fmt.Errorf("model returned an empty answer")}
	}

	return &Answer{
		Text:       text,
		Confidence: confidence(text, results),
		Reasoning:  reasoning(results),
		ChunksUsed: len(results),
		TokensUsed: resp.InputTokens + resp.OutputTokens,
	}, nil
}

// buildPrompt renders the retrieved segments as numbered context blocks
// followed by the query and answering instructions.
func buildPrompt(question string, results []index.SearchResult) string {
	var sb strings.Builder

	sb.WriteString("DOCUMENT CONTEXT:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[Context %d - Relevance: %.3f]\n", i+1, r.Score)
		if r.Meta.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", r.Meta.Source)
		}
		if r.Meta.Page > 0 {
			fmt.Fprintf(&sb, "Page: %d\n", r.Meta.Page)
		}
		fmt.Fprintf(&sb, "Content: %s\n", r.Content)
		if i < len(results)-1 {
			sb.WriteString("\n---\n")
		}
	}

	fmt.Fprintf(&sb, "\nQUERY: %s\n", question)
	sb.WriteString(`
INSTRUCTIONS:
Analyze the provided document context and answer the query accurately. Focus on:
1. Specific terms, conditions, and requirements
2. Numerical values (amounts, percentages, time periods)
3. Eligibility criteria and exclusions
4. Procedural requirements

Provide a direct, accurate answer based solely on the document context. If the information is not available, state so clearly.

ANSWER:`)

	return sb.String()
}

var digitRe = regexp.MustCompile(`\d`)

// confidence scores the answer from the mean retrieval relevance,
// nudged up for concrete numeric answers and down for "not available"
// answers, clamped to [0, 1].
func confidence(text string, results []index.SearchResult) float32 {
	if len(results) == 0 {
		return 0.1
	}

	var sum float32
	for _, r := range results {
		sum += r.Score
	}
	c := sum / float32(len(results))

	if digitRe.MatchString(text) {
		c *= 1.1
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "not available") || strings.Contains(lower, "not mentioned") {
		c *= 0.7
	}

	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// reasoning summarizes what the answer was grounded on.
func reasoning(results []index.SearchResult) string {
	if len(results) == 0 {
		return "No relevant document sections were available."
	}

	parts := []string{
		fmt.Sprintf("Answer based on analysis of %d relevant document sections.", len(results)),
	}

	seen := make(map[string]bool)
	var sources []string
	var sum float32
	for _, r := range results {
		sum += r.Score
		if r.Meta.Source != "" && !seen[r.Meta.Source] {
			seen[r.Meta.Source] = true
			sources = append(sources, r.Meta.Source)
		}
	}
	if len(sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources analyzed: %s.", strings.Join(sources, ", ")))
	}

	switch avg := sum / float32(len(results)); {
	case avg > 0.8:
		parts = append(parts, "High relevance match found in documents.")
	case avg > 0.6:
		parts = append(parts, "Good relevance match found in documents.")
	default:
		parts = append(parts, "Moderate relevance match found in documents.")
	}

	return strings.Join(parts, " ")
}
