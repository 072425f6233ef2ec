// Package pipeline drives the ingestion-and-retrieval flow: fetch a
// document, chunk and embed it, store it in the vector index, then answer
// each question from the best-matching segments. Failures during
// ingestion are fatal to the whole run; failures while answering a single
// question are contained to that question.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/embeddings"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/progress"
)

// NoAnswerMessage is returned for a question when no stored segment
// clears the similarity threshold. It is a normal outcome, not an error:
// no generation call is made for it.
const NoAnswerMessage = "I couldn't find relevant information in the document to answer this question."

// genericFailure pads the answers list in the defensive case where a
// question somehow produced no answer at all.
const genericFailure = "Error processing this question: no answer was produced."

// Options are the tunables of one pipeline instance.
type Options struct {
	TopK                int
	SimilarityThreshold float32
	MaxTokens           int
	FetchTimeout        time.Duration
	GenerateTimeout     time.Duration

	// Reporter receives progress updates during Process. Nil means no
	// reporting; the server leaves this nil, the CLI sets it.
	Reporter progress.Reporter
}

// Pipeline orchestrates extraction, chunking, embedding, storage,
// retrieval and answer generation. Construct it with New and share one
// instance per process; it owns no global state.
type Pipeline struct {
	extractor extract.Extractor
	chunker   *chunker.Chunker
	embedder  embeddings.Embedder
	idx       index.VectorIndex
	generator Generator
	opts      Options

	initMu      sync.Mutex
	initialized bool
}

// Generator is the answer-generation collaborator consumed by the
// pipeline. *answer.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, question string, results []index.SearchResult, maxTokens int) (*answer.Answer, error)
}

// New assembles a pipeline from its collaborators.
func New(extractor extract.Extractor, ch *chunker.Chunker, embedder embeddings.Embedder, idx index.VectorIndex, gen Generator, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Noop{}
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		idx:       idx,
		generator: gen,
		opts:      opts,
	}
}

// SetReporter replaces the progress reporter. Call it before Process;
// it is not safe to call concurrently with Process.
func (p *Pipeline) SetReporter(r progress.Reporter) {
	if r == nil {
		r = progress.Noop{}
	}
	p.opts.Reporter = r
}

// Initialize prepares the vector index. It runs at most once per
// pipeline; repeated calls after a success are no-ops, and a failure
// leaves the pipeline uninitialized so a later call can retry.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.initialized {
		return nil
	}
	if err := p.idx.Initialize(ctx); err != nil {
		return err
	}
	p.initialized = true
	log.Printf("pipeline: initialized")
	return nil
}

// Process ingests the document at documentURL and answers each question
// against it. The returned slice always has exactly len(questions)
// entries, positionally aligned with the input, whatever fails
// internally. The error is non-nil only when the whole run failed
// (initialization or ingestion); the answers are still fully populated
// with error messages in that case.
func (p *Pipeline) Process(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	rep := p.opts.Reporter
	rep.Start(len(questions) + 1)
	defer rep.Finish()

	if err := p.Initialize(ctx); err != nil {
		log.Printf("pipeline: initialization failed: %v", err)
		return uniformAnswers(len(questions), err), fmt.Errorf("initializing pipeline: %w", err)
	}

	rep.Update(0, "Ingesting document")
	if err := p.ingest(ctx, documentURL); err != nil {
		log.Printf("pipeline: ingesting %s: %v", documentURL, err)
		return uniformAnswers(len(questions), err), fmt.Errorf("ingesting document: %w", err)
	}
	rep.Update(1, "Document ingested")

	answers := make([]string, 0, len(questions))
	for i, question := range questions {
		log.Printf("pipeline: processing question %d/%d", i+1, len(questions))
		answers = append(answers, p.answerQuestion(ctx, documentURL, question))
		rep.Update(i+2, fmt.Sprintf("Answered question %d/%d", i+1, len(questions)))
	}

	// Defensive: the loop above yields one answer per question, but the
	// length contract is absolute, so pad rather than trust it.
	for len(answers) < len(questions) {
		answers = append(answers, genericFailure)
	}
	return answers[:len(questions)], nil
}

// ingest runs extract -> chunk -> embed -> store. Any failure aborts the
// run; a document with no extractable text is not an error, it just
// stores nothing.
func (p *Pipeline) ingest(ctx context.Context, documentURL string) error {
	fetchCtx := ctx
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	doc, err := p.extractor.Extract(fetchCtx, documentURL)
	if err != nil {
		return err
	}

	segments := p.chunker.Chunk(doc)
	if len(segments) == 0 {
		log.Printf("pipeline: document %s produced no segments", documentURL)
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	ids, err := p.idx.Store(ctx, segments, vectors)
	if err != nil {
		return err
	}

	log.Printf("pipeline: ingested %s as %d segments", documentURL, len(ids))
	return nil
}

// answerQuestion retrieves context for one question and generates its
// answer. Every failure is converted into the answer string for this
// question; nothing escapes to abort sibling questions.
func (p *Pipeline) answerQuestion(ctx context.Context, documentURL, question string) string {
	queryVectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		log.Printf("pipeline: embedding question: %v", err)
		return questionFailure(err)
	}
	if len(queryVectors) != 1 {
		log.Printf("pipeline: embedder returned %d vectors for one question", len(queryVectors))
		return questionFailure(fmt.Errorf("unexpected embedding count %d", len(queryVectors)))
	}

	results, err := p.idx.Search(ctx, queryVectors[0], p.opts.TopK, map[string]string{"source": documentURL})
	if err != nil {
		log.Printf("pipeline: searching index: %v", err)
		return questionFailure(err)
	}

	relevant := results[:0:0]
	for _, r := range results {
		if r.Score >= p.opts.SimilarityThreshold {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) == 0 {
		return NoAnswerMessage
	}

	genCtx := ctx
	if p.opts.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.opts.GenerateTimeout)
		defer cancel()
	}

	ans, err := p.generator.Generate(genCtx, question, relevant, p.opts.MaxTokens)
	if err != nil {
		log.Printf("pipeline: generating answer: %v", err)
		return questionFailure(err)
	}

	log.Printf("pipeline: answered question (confidence %.3f, chunks %d, tokens %d)",
		ans.Confidence, ans.ChunksUsed, ans.TokensUsed)
	return ans.Text
}

func questionFailure(err error) string {
	return fmt.Sprintf("Error processing this question: %v", err)
}

func uniformAnswers(n int, err error) []string {
	answers := make([]string, n)
	for i := range answers {
		answers[i] = fmt.Sprintf("Error processing question: %v", err)
	}
	return answers
}
