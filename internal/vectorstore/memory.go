package vectorstore

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It backs inline mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID][]Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[uuid.UUID][]Chunk)}
}

func (s *MemoryStore) ReplaceChunks(_ context.Context, documentID uuid.UUID, chunks []Chunk) error {
	stored := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.DocumentID = documentID
		c.Embedding = slices.Clone(c.Embedding)
		stored[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	if len(stored) > 0 {
		s.chunks[documentID] = stored
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, filter Filter, topK int, minScore float64) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []SearchResult{}
	for docID, chunks := range s.chunks {
		if len(filter.DocumentIDs) > 0 && !slices.Contains(filter.DocumentIDs, docID) {
			continue
		}
		for _, c := range chunks {
			if filter.OwnerID != uuid.Nil && c.OwnerID != filter.OwnerID {
				continue
			}
			results = append(results, SearchResult{
				ChunkID:    c.ID,
				DocumentID: docID,
				Content:    c.Content,
				Score:      cosine(query, c.Embedding),
				ChunkIndex: c.ChunkIndex,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// Count returns the number of chunks stored for a document.
func (s *MemoryStore) Count(documentID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID])
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
