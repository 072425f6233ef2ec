package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/chunker"
)

// upsertBatchSize caps points per Qdrant upsert call. Batches commit
// independently: a failure mid-way leaves earlier batches stored, a
// weaker guarantee than the local backend's single persist step.
const upsertBatchSize = 100

// QdrantIndex is the managed remote backend: a Qdrant collection using
// cosine similarity, UUID point IDs and server-side payload filtering.
// DeleteBySource removes vectors and payload together, unlike the local
// backend.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client

	mu          sync.Mutex
	initialized bool
}

// QdrantOptions configures a QdrantIndex.
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// NewQdrantIndex creates an uninitialized remote index client.
func NewQdrantIndex(opts QdrantOptions) *QdrantIndex {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// Initialize creates the collection if it does not exist. Qdrant answers
// 200 when the collection already exists with the same schema, so this
// is naturally idempotent.
func (q *QdrantIndex) Initialize(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initialized {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	if err := q.doJSON(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil); err != nil {
		return &Error{Op: "initialize", Err: err}
	}

	q.initialized = true
	log.Printf("index: qdrant collection %s ready (dimension %d)", q.collection, q.dimension)
	return nil
}

func (q *QdrantIndex) ready() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (q *QdrantIndex) Store(ctx context.Context, segments []chunker.Segment, vectors [][]float32) ([]string, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	if len(segments) != len(vectors) {
		return nil, &Error{Op: "store", Err: fmt.Errorf("segment/vector length mismatch: %d vs %d", len(segments), len(vectors))}
	}
	for i, vec := range vectors {
		if len(vec) != q.dimension {
			return nil, &Error{Op: "store", Err: fmt.Errorf("vector %d has dimension %d, index has %d", i, len(vec), q.dimension)}
		}
	}

	ids := make([]string, len(segments))
	for i := range segments {
		ids[i] = uuid.NewString()
	}

	for start := 0; start < len(segments); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(segments) {
			end = len(segments)
		}

		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, map[string]any{
				"id":      ids[i],
				"vector":  vectors[i],
				"payload": metaForSegment(segments[i]),
			})
		}

		path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
		if err := q.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
			return nil, &Error{Op: "store", Err: fmt.Errorf("upsert batch %d-%d: %w", start, end, err)}
		}
	}

	log.Printf("index: upserted %d points to qdrant collection %s", len(segments), q.collection)
	return ids, nil
}

// qdrantFilter builds a must-match payload filter.
func qdrantFilter(filter map[string]string) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, &Error{Op: "search", Err: fmt.Errorf("topK must be positive, got %d", topK)}
	}

	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	if f := qdrantFilter(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      string    `json:"id"`
			Score   float32   `json:"score"`
			Payload EntryMeta `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, &Error{Op: "search", Err: err}
	}

	results := make([]SearchResult, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = SearchResult{
			ID:      r.ID,
			Score:   r.Score,
			Content: r.Payload.Content,
			Meta:    r.Payload,
		}
	}
	return results, nil
}

func (q *QdrantIndex) DeleteBySource(ctx context.Context, source string) error {
	if err := q.ready(); err != nil {
		return err
	}

	body := map[string]any{
		"filter": qdrantFilter(map[string]string{"source": source}),
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection)
	if err := q.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return &Error{Op: "delete", Err: err}
	}

	log.Printf("index: deleted qdrant points for source %s", source)
	return nil
}

func (q *QdrantIndex) Stats(ctx context.Context) (*Stats, error) {
	if err := q.ready(); err != nil {
		return nil, err
	}

	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := q.doJSON(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collection), nil, &info); err != nil {
		return nil, &Error{Op: "stats", Err: err}
	}

	sources, err := q.sourceCounts(ctx)
	if err != nil {
		return nil, &Error{Op: "stats", Err: err}
	}

	return &Stats{
		Dimension:    q.dimension,
		TotalVectors: info.Result.PointsCount,
		TotalEntries: info.Result.PointsCount,
		Sources:      sources,
	}, nil
}

// sourceCounts scrolls the collection reading only the source payload
// field and tallies points per source.
func (q *QdrantIndex) sourceCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	var offset any

	for {
		req := map[string]any{
			"limit":        1000,
			"with_payload": []string{"source"},
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					Payload struct {
						Source string `json:"source"`
					} `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", q.collection)
		if err := q.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Result.Points {
			counts[p.Payload.Source]++
		}

		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	return counts, nil
}

// Close is a no-op for the remote backend; connections are pooled by the
// http client.
func (q *QdrantIndex) Close() error { return nil }

// doJSON issues one request against the Qdrant REST API.
func (q *QdrantIndex) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant %s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
