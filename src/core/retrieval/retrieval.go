package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"docqa/src/core/combine"
	"docqa/src/storage/weaviate"
)

const DefaultTopK = 4

// Embedder turns a query string into an embedding vector.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex runs similarity search over indexed chunks.
type VectorIndex interface {
	QueryVectors(ctx context.Context, className string, vector []float32, config weaviate.QueryConfig) ([]weaviate.QueryResult, error)
}

// Store retrieves the fragments most relevant to a query from the vector
// index. It is the engine's fragment store; retrieval internals stay here.
type Store struct {
	index     VectorIndex
	embedder  Embedder
	className string
}

func NewStore(index VectorIndex, embedder Embedder, className string) *Store {
	return &Store{
		index:     index,
		embedder:  embedder,
		className: className,
	}
}

// Retrieve returns up to k fragments ordered by similarity to query.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]combine.Fragment, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vector, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.index.QueryVectors(ctx, s.className, vector, weaviate.QueryConfig{
		Fields: []string{"content", "source", "resourceId", "chunkIndex"},
		Limit:  k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	fragments := make([]combine.Fragment, 0, len(hits))
	for _, hit := range hits {
		content, ok := hit.Properties["content"].(string)
		if !ok {
			continue
		}

		metadata := map[string]string{}
		if source, ok := hit.Properties["source"].(string); ok && source != "" {
			metadata["source"] = source
		}
		if resourceID, ok := hit.Properties["resourceId"].(string); ok && resourceID != "" {
			metadata["resourceId"] = resourceID
		}
		if index, ok := hit.Properties["chunkIndex"].(float64); ok {
			metadata["chunkIndex"] = strconv.Itoa(int(index))
		}

		fragments = append(fragments, combine.Fragment{Text: content, Metadata: metadata})
	}

	return fragments, nil
}
