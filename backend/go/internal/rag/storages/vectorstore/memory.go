package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"
)

type memoryEntry struct {
	id     string
	text   string
	vector []float32
}

type memoryCollection struct {
	entries []*memoryEntry
	byID    map[string]int
}

// MemoryStore keeps collections in process and answers queries with brute-force
// cosine similarity. It is safe for concurrent use.
type MemoryStore struct {
	embedder    interfaces.EmbeddingModel
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty in-process knowledge base store.
func NewMemoryStore(embedder interfaces.EmbeddingModel) *MemoryStore {
	return &MemoryStore{
		embedder:    embedder,
		collections: make(map[string]*memoryCollection),
	}
}

func (s *MemoryStore) CreateCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	s.collections[name] = &memoryCollection{byID: make(map[string]int)}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, name string, documents, ids []string) error {
	if len(documents) != len(ids) {
		return ErrLengthMismatch
	}
	if !s.exists(name) {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(documents) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(documents) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(documents))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	for i, id := range ids {
		entry := &memoryEntry{id: id, text: documents[i], vector: vectors[i]}
		if pos, found := coll.byID[id]; found {
			coll.entries[pos] = entry
			continue
		}
		coll.byID[id] = len(coll.entries)
		coll.entries = append(coll.entries, entry)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, name, text string, k int) ([]*schema.Document, error) {
	if !s.exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if k <= 0 {
		return []*schema.Document{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vectors))
	}
	query := vectors[0]

	s.mu.RLock()
	coll := s.collections[name]
	docs := make([]*schema.Document, 0, len(coll.entries))
	for _, e := range coll.entries {
		docs = append(docs, &schema.Document{
			ID:       e.id,
			Text:     e.text,
			Metadata: map[string]interface{}{schema.MetadataKeyScore: cosine(query, e.vector)},
		})
	}
	s.mu.RUnlock()

	// Stable so equal scores keep insertion order.
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Metadata[schema.MetadataKeyScore].(float32) > docs[j].Metadata[schema.MetadataKeyScore].(float32)
	})
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

func (s *MemoryStore) exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ interfaces.KnowledgeBase = (*MemoryStore)(nil)
