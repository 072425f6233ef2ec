package index

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"docqa/internal/chunker"
	"docqa/internal/embeddings"
)

// FlatIndex is the local backend: an exact nearest-neighbor flat index
// (linear scan, squared L2 distance) with a JSON metadata side table.
// Entry IDs are decimal strings of an append-only counter and are never
// reused, even after deletion.
//
// DeleteBySource removes only metadata. The underlying vectors stay in
// the index, keep occupying top-k candidate slots, and keep counting
// toward TotalVectors until Rebuild is run. This mirrors the fact that a
// flat index cannot delete rows in place; Rebuild is the sanctioned
// remediation path.
type FlatIndex struct {
	indexPath    string
	metadataPath string
	dimension    int

	pool *workerPool

	mu          sync.RWMutex
	initialized bool
	vectors     [][]float32
	nextID      uint64
	meta        map[string]EntryMeta
}

// FlatOptions configures a FlatIndex.
type FlatOptions struct {
	IndexPath    string
	MetadataPath string
	Dimension    int
	Workers      int
}

// NewFlatIndex creates an uninitialized local index. Call Initialize
// before any other operation.
func NewFlatIndex(opts FlatOptions) *FlatIndex {
	return &FlatIndex{
		indexPath:    opts.IndexPath,
		metadataPath: opts.MetadataPath,
		dimension:    opts.Dimension,
		pool:         newWorkerPool(opts.Workers),
		meta:         make(map[string]EntryMeta),
	}
}

// indexFile is the serialized form of the vector data.
type indexFile struct {
	Dimension int
	NextID    uint64
	Vectors   [][]float32
}

func (f *FlatIndex) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	err := f.pool.run(ctx, func() error {
		if err := os.MkdirAll(filepath.Dir(f.indexPath), 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(f.metadataPath), 0o755); err != nil {
			return fmt.Errorf("creating metadata directory: %w", err)
		}

		if _, err := os.Stat(f.indexPath); err == nil {
			if err := f.loadIndex(); err != nil {
				return err
			}
			log.Printf("index: loaded %d vectors from %s", len(f.vectors), f.indexPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("accessing %s: %w", f.indexPath, err)
		} else {
			log.Printf("index: created new flat index with dimension %d", f.dimension)
		}

		if _, err := os.Stat(f.metadataPath); err == nil {
			if err := f.loadMetadata(); err != nil {
				return err
			}
			log.Printf("index: loaded metadata for %d entries from %s", len(f.meta), f.metadataPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("accessing %s: %w", f.metadataPath, err)
		}

		return nil
	})
	if err != nil {
		return &Error{Op: "initialize", Err: err}
	}

	f.initialized = true
	return nil
}

func (f *FlatIndex) loadIndex() error {
	file, err := os.Open(f.indexPath)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer file.Close()

	var data indexFile
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("decoding index %s: %w", f.indexPath, err)
	}
	if data.Dimension != f.dimension {
		return fmt.Errorf("index dimension mismatch: file has %d, configured %d", data.Dimension, f.dimension)
	}
	// Search pairs vector position i with metadata ID i, so the ID
	// counter and vector count must move in lockstep. A file where they
	// disagree would silently attach wrong metadata to every result.
	if data.NextID != uint64(len(data.Vectors)) {
		return fmt.Errorf("corrupt index %s: next ID %d does not match %d stored vectors", f.indexPath, data.NextID, len(data.Vectors))
	}

	f.vectors = data.Vectors
	f.nextID = data.NextID
	return nil
}

func (f *FlatIndex) loadMetadata() error {
	data, err := os.ReadFile(f.metadataPath)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	meta := make(map[string]EntryMeta)
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decoding metadata %s: %w", f.metadataPath, err)
	}
	f.meta = meta
	return nil
}

// Store appends the vectors and metadata, assigns sequential IDs, and
// persists both artifacts: metadata first, then the index. A crash
// between the two writes leaves metadata referencing IDs absent from the
// on-disk index, which only misses on lookup; the reverse order would
// leave reachable vectors with no metadata and silently empty results.
// That write ordering is a design invariant, not an accident.
func (f *FlatIndex) Store(ctx context.Context, segments []chunker.Segment, vectors [][]float32) ([]string, error) {
	if len(segments) != len(vectors) {
		return nil, &Error{Op: "store", Err: fmt.Errorf("segment/vector length mismatch: %d vs %d", len(segments), len(vectors))}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil, ErrNotInitialized
	}

	for i, vec := range vectors {
		if len(vec) != f.dimension {
			return nil, &Error{Op: "store", Err: fmt.Errorf("vector %d has dimension %d, index has %d", i, len(vec), f.dimension)}
		}
	}

	ids := make([]string, len(segments))
	for i, seg := range segments {
		id := strconv.FormatUint(f.nextID, 10)
		f.nextID++
		ids[i] = id
		f.vectors = append(f.vectors, vectors[i])
		f.meta[id] = metaForSegment(seg)
	}

	if err := f.pool.run(ctx, f.persist); err != nil {
		return nil, &Error{Op: "store", Err: err}
	}

	log.Printf("index: stored %d entries (total vectors %d)", len(segments), len(f.vectors))
	return ids, nil
}

// persist writes the metadata side table, then the vector index.
// Callers must hold the write lock.
func (f *FlatIndex) persist() error {
	if err := f.persistMetadata(); err != nil {
		return err
	}

	tmp := f.indexPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	enc := gob.NewEncoder(file)
	if err := enc.Encode(indexFile{Dimension: f.dimension, NextID: f.nextID, Vectors: f.vectors}); err != nil {
		file.Close()
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmp, f.indexPath); err != nil {
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

func (f *FlatIndex) persistMetadata() error {
	data, err := json.Marshal(f.meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	tmp := f.metadataPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp, f.metadataPath); err != nil {
		return fmt.Errorf("replacing metadata file: %w", err)
	}
	return nil
}

// Search linearly scans all stored vectors, scores them as
// exp(-squaredL2distance) and returns the topK best-scoring entries that
// have live metadata and match the filter. Orphaned vectors (metadata
// deleted) are skipped.
func (f *FlatIndex) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.initialized {
		return nil, ErrNotInitialized
	}
	if len(query) != f.dimension {
		return nil, &Error{Op: "search", Err: fmt.Errorf("query has dimension %d, index has %d", len(query), f.dimension)}
	}
	if topK <= 0 {
		return nil, &Error{Op: "search", Err: fmt.Errorf("topK must be positive, got %d", topK)}
	}
	if len(f.vectors) == 0 {
		return nil, nil
	}

	type scored struct {
		id   string
		dist float64
	}

	var candidates []scored
	err := f.pool.run(ctx, func() error {
		for i, vec := range f.vectors {
			id := strconv.Itoa(i)
			meta, ok := f.meta[id]
			if !ok {
				continue // orphan: vector survived a metadata delete
			}
			if filter != nil && !matchesFilter(meta, filter) {
				continue
			}
			candidates = append(candidates, scored{id: id, dist: squaredL2(query, vec)})
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		meta := f.meta[c.id]
		results[i] = SearchResult{
			ID:      c.id,
			Score:   float32(math.Exp(-c.dist)),
			Content: meta.Content,
			Meta:    meta,
		}
	}
	return results, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// DeleteBySource removes the metadata of every entry from the given
// source and persists the side table. The vectors themselves are NOT
// removed: they remain in the index file and in TotalVectors until
// Rebuild reclaims them.
func (f *FlatIndex) DeleteBySource(ctx context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return ErrNotInitialized
	}

	var deleted int
	for id, meta := range f.meta {
		if meta.Source == source {
			delete(f.meta, id)
			deleted++
		}
	}
	if deleted == 0 {
		log.Printf("index: no entries found for source %s", source)
		return nil
	}

	if err := f.pool.run(ctx, f.persistMetadata); err != nil {
		return &Error{Op: "delete", Err: err}
	}

	log.Printf("index: deleted metadata for %d entries from source %s; vectors remain until rebuild", deleted, source)
	return nil
}

// Rebuild re-embeds the content of every live metadata entry and replaces
// the vector data with a compact index, reassigning sequential IDs. This
// is the only way to reclaim vectors orphaned by DeleteBySource.
func (f *FlatIndex) Rebuild(ctx context.Context, embedder embeddings.Embedder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return ErrNotInitialized
	}

	// Stable order: by old numeric ID, so segment order survives.
	ids := make([]string, 0, len(f.meta))
	for id := range f.meta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)
		return a < b
	})

	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = f.meta[id].Content
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = embedder.Embed(ctx, texts)
		if err != nil {
			return &Error{Op: "rebuild", Err: err}
		}
		if len(vectors) != len(texts) {
			return &Error{Op: "rebuild", Err: fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))}
		}
	}

	newMeta := make(map[string]EntryMeta, len(ids))
	for i, id := range ids {
		newMeta[strconv.Itoa(i)] = f.meta[id]
	}

	f.vectors = vectors
	f.meta = newMeta
	f.nextID = uint64(len(ids))

	if err := f.pool.run(ctx, f.persist); err != nil {
		return &Error{Op: "rebuild", Err: err}
	}

	log.Printf("index: rebuilt with %d entries", len(ids))
	return nil
}

func (f *FlatIndex) Stats(ctx context.Context) (*Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.initialized {
		return nil, ErrNotInitialized
	}

	sources := make(map[string]int)
	for _, meta := range f.meta {
		sources[meta.Source]++
	}

	return &Stats{
		Dimension:    f.dimension,
		TotalVectors: len(f.vectors),
		TotalEntries: len(f.meta),
		Sources:      sources,
	}, nil
}

// Close drains the worker pool. The index must not be used afterwards.
func (f *FlatIndex) Close() error {
	f.pool.close()
	return nil
}
