// Package index implements the in-process similarity index over knowledge
// instance embeddings. The durable store owns the data; the index is a
// derived, rebuildable cache queried with decay-aware combined scoring.
package index

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/substrate-kb/substrate/internal/domain"
)

// Entry is the indexed projection of a knowledge instance.
type Entry struct {
	ID            string
	Vector        []float32
	DepartmentID  string
	CategoryID    string
	DIKWLevel     domain.DIKWLevel
	SourceFileIDs []string
	CreatedAt     time.Time

	norm float64
}

// EntryFromInstance projects a validated instance into an index entry.
func EntryFromInstance(k *domain.KnowledgeInstance) *Entry {
	vec := make([]float32, len(k.Embedding))
	copy(vec, k.Embedding)
	sources := make([]string, len(k.SourceFileIDs))
	copy(sources, k.SourceFileIDs)
	return &Entry{
		ID:            k.ID,
		Vector:        vec,
		DepartmentID:  k.DepartmentID,
		CategoryID:    k.CategoryID,
		DIKWLevel:     k.DIKWLevel,
		SourceFileIDs: sources,
		CreatedAt:     k.CreatedAt,
		norm:          Norm(vec),
	}
}

func (e *Entry) matches(f domain.SearchFilters) bool {
	if f.DepartmentID != "" && e.DepartmentID != f.DepartmentID {
		return false
	}
	if f.CategoryID != "" && e.CategoryID != f.CategoryID {
		return false
	}
	if f.DIKWLevel != nil && e.DIKWLevel != *f.DIKWLevel {
		return false
	}
	return true
}

func (e *Entry) contentEqual(o *Entry) bool {
	if e.DepartmentID != o.DepartmentID || e.CategoryID != o.CategoryID ||
		e.DIKWLevel != o.DIKWLevel || !e.CreatedAt.Equal(o.CreatedAt) {
		return false
	}
	if len(e.Vector) != len(o.Vector) || len(e.SourceFileIDs) != len(o.SourceFileIDs) {
		return false
	}
	for i := range e.Vector {
		if e.Vector[i] != o.Vector[i] {
			return false
		}
	}
	for i := range e.SourceFileIDs {
		if e.SourceFileIDs[i] != o.SourceFileIDs[i] {
			return false
		}
	}
	return true
}

// Hit is a single search result.
type Hit struct {
	Entry      *Entry
	Similarity float64 // cosine normalized to [0,1]
	Decay      float64
	Combined   float64
}

// Config holds index tunables.
type Config struct {
	Dimension int

	// BruteForceThreshold is the entry count below which generations stay on
	// an exact linear scan. Crossing it promotes the generation to an HNSW
	// graph on the next upsert.
	BruteForceThreshold int

	// HNSW build/query parameters (recall/latency trade-off).
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultConfig returns production defaults for the given dimension.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:           dimension,
		BruteForceThreshold: 2000,
		M:                   16,
		EfConstruction:      200,
		EfSearch:            64,
	}
}

// generation is one immutable-identity snapshot of the index structure.
// Readers resolve the current generation through an atomic pointer, so a
// bulk rebuild never exposes a partially built structure. The decay view
// lives on the generation so entries and scores swap together: a reader
// never pairs a new entry set with a stale or half-populated score view.
type generation struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	graph   *hnswGraph // nil while below the brute-force threshold

	// decay holds the per-instance decay view (id -> float64). Seeded at
	// upsert or rebuild, overwritten only by the decay scorer, one key at
	// a time.
	decay sync.Map
}

// Index is the ANN search engine. Concurrent reads are unrestricted; point
// mutations take a short writer lock; bulk rebuilds are serialized against
// each other and against point writes, but never block readers.
type Index struct {
	cfg Config

	gen       atomic.Pointer[generation]
	writeMu   sync.Mutex
	rebuildMu sync.Mutex

	graphSeed atomic.Int64
}

// New creates an empty index.
func New(cfg Config) *Index {
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = 2000
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	idx := &Index{cfg: cfg}
	idx.gen.Store(&generation{entries: make(map[string]*Entry)})
	idx.graphSeed.Store(time.Now().UnixNano())
	return idx
}

// Len returns the number of live entries.
func (idx *Index) Len() int {
	g := idx.gen.Load()
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Upsert indexes an instance. Re-indexing identical content is a no-op, so
// the operation is idempotent. The instance is searchable once Upsert
// returns (read-your-own-writes for the caller).
func (idx *Index) Upsert(k *domain.KnowledgeInstance) error {
	if err := domain.ValidateInstance(k, idx.cfg.Dimension); err != nil {
		return err
	}
	entry := EntryFromInstance(k)

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	g := idx.gen.Load()
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[entry.ID]; ok && existing.contentEqual(entry) {
		g.decay.Store(entry.ID, k.DecayScore)
		return nil
	}

	if g.graph != nil {
		if _, ok := g.entries[entry.ID]; ok {
			g.graph.markDeleted(entry.ID)
		}
		g.graph.insert(entry)
	}
	g.entries[entry.ID] = entry
	g.decay.Store(entry.ID, k.DecayScore)

	if g.graph == nil && len(g.entries) > idx.cfg.BruteForceThreshold {
		g.graph = idx.buildGraph(g.entries)
	}
	return nil
}

// Remove drops an instance from the index. Future queries no longer observe
// it; queries already in flight may. Returns ErrInstanceNotFound when the id
// is not indexed.
func (idx *Index) Remove(id string) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	g := idx.gen.Load()
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[id]; !ok {
		return domain.ErrInstanceNotFound
	}
	delete(g.entries, id)
	if g.graph != nil {
		g.graph.markDeleted(id)
	}
	g.decay.Delete(id)
	return nil
}

// SetDecayScore updates the decay view for one instance. This is the decay
// scorer's per-instance atomic swap: readers observe either the old or the
// new score, never a partial state.
func (idx *Index) SetDecayScore(id string, score float64) {
	g := idx.gen.Load()
	g.mu.RLock()
	_, ok := g.entries[id]
	g.mu.RUnlock()
	if ok {
		g.decay.Store(id, score)
	}
}

// DecayScore returns the current decay view for an instance, defaulting to
// fully fresh when the id is unknown.
func (idx *Index) DecayScore(id string) float64 {
	return idx.gen.Load().decayScore(id)
}

func (g *generation) decayScore(id string) float64 {
	if v, ok := g.decay.Load(id); ok {
		return v.(float64)
	}
	return 1.0
}

// Search returns up to topK hits ordered by combined score descending, ties
// broken by CreatedAt descending then ID ascending. Filters restrict the
// candidate set before ranking. An empty candidate set yields an empty
// (non-nil) slice. The context deadline aborts the scan with a TIMEOUT error
// and leaves index state untouched.
func (idx *Index) Search(ctx context.Context, query []float32, filters domain.SearchFilters, topK int, alpha float64) ([]Hit, error) {
	if len(query) != idx.cfg.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if err := ctx.Err(); err != nil {
		return nil, ctxError(err)
	}

	qnorm := Norm(query)
	g := idx.gen.Load()
	g.mu.RLock()
	defer g.mu.RUnlock()

	var hits []Hit
	var err error
	if g.graph != nil {
		hits, err = idx.searchGraph(ctx, g, query, qnorm, filters, topK, alpha)
	} else {
		hits, err = idx.searchBrute(ctx, g, query, qnorm, filters, alpha)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Combined != hits[j].Combined {
			return hits[i].Combined > hits[j].Combined
		}
		if !hits[i].Entry.CreatedAt.Equal(hits[j].Entry.CreatedAt) {
			return hits[i].Entry.CreatedAt.After(hits[j].Entry.CreatedAt)
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (idx *Index) scoreHit(g *generation, e *Entry, cos, alpha float64) Hit {
	sim := NormalizeSimilarity(cos)
	decay := g.decayScore(e.ID)
	return Hit{
		Entry:      e,
		Similarity: sim,
		Decay:      decay,
		Combined:   sim * (alpha + (1-alpha)*decay),
	}
}

func (idx *Index) searchBrute(ctx context.Context, g *generation, query []float32, qnorm float64, filters domain.SearchFilters, alpha float64) ([]Hit, error) {
	hits := make([]Hit, 0, len(g.entries))
	i := 0
	for _, e := range g.entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, ctxError(err)
			}
		}
		i++
		if !e.matches(filters) {
			continue
		}
		cos := CosineSimilarity(query, e.Vector, qnorm, e.norm)
		hits = append(hits, idx.scoreHit(g, e, cos, alpha))
	}
	return hits, nil
}

func (idx *Index) searchGraph(ctx context.Context, g *generation, query []float32, qnorm float64, filters domain.SearchFilters, topK int, alpha float64) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError(err)
	}
	// Widen ef beyond topK so combined-score reordering and filtering have
	// headroom; this is the documented recall knob.
	ef := idx.cfg.EfSearch
	if ef < topK*4 {
		ef = topK * 4
	}
	accept := func(e *Entry) bool { return e.matches(filters) }
	candidates := g.graph.search(query, qnorm, ef, accept)

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		e := g.graph.nodes[c.id].entry
		// The graph may still route through superseded nodes; resolve
		// against the live entry set.
		if live, ok := g.entries[e.ID]; !ok || live != e {
			continue
		}
		hits = append(hits, idx.scoreHit(g, e, c.sim, alpha))
	}
	if err := ctx.Err(); err != nil {
		return nil, ctxError(err)
	}
	return hits, nil
}

// Rebuild replaces the whole index with a fresh generation built from the
// given instances. Readers keep the old generation until the swap; rebuilds
// are mutually exclusive. Invalid instances are skipped and counted.
func (idx *Index) Rebuild(ctx context.Context, instances []*domain.KnowledgeInstance) (int, error) {
	idx.rebuildMu.Lock()
	defer idx.rebuildMu.Unlock()

	entries := make(map[string]*Entry, len(instances))
	decay := make(map[string]float64, len(instances))
	skipped := 0
	for i, k := range instances {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return skipped, ctxError(err)
			}
		}
		if err := domain.ValidateInstance(k, idx.cfg.Dimension); err != nil {
			skipped++
			continue
		}
		entries[k.ID] = EntryFromInstance(k)
		decay[k.ID] = k.DecayScore
	}

	// The new generation carries its own fully-populated decay view before
	// it becomes visible, so the swap exposes entries and scores together.
	next := &generation{entries: entries}
	for id, s := range decay {
		next.decay.Store(id, s)
	}
	if len(entries) > idx.cfg.BruteForceThreshold {
		next.graph = idx.buildGraph(entries)
	}

	idx.writeMu.Lock()
	idx.gen.Store(next)
	idx.writeMu.Unlock()
	return skipped, nil
}

func (idx *Index) buildGraph(entries map[string]*Entry) *hnswGraph {
	graph := newHNSWGraph(idx.cfg.M, idx.cfg.EfConstruction, idx.graphSeed.Add(1))
	for _, e := range entries {
		graph.insert(e)
	}
	return graph
}

// ctxError keeps TIMEOUT reserved for deadline expiry; a caller-initiated
// cancel is not retryable-with-backoff advice.
func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrDeadlineExceeded.WithCause(err)
	}
	return domain.ErrCanceled.WithCause(err)
}
