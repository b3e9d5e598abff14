package ingest

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"

	"docqa/src/log"
	"docqa/src/storage/postgres/chunkctrl"
	"docqa/src/storage/postgres/resourcectrl"
	"docqa/src/storage/weaviate"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 0
)

// Splitter cuts a document into chunks bounded by estimated token length.
type Splitter interface {
	TextSplit(ctx context.Context, text string, chunkSize, chunkOverlap int) ([]string, error)
}

// Embedder produces an embedding vector per chunk.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex receives the embedded chunks.
type VectorIndex interface {
	EnsureSchema(ctx context.Context, className string, properties []*models.Property) error
	BatchAddVectors(ctx context.Context, className string, objects []weaviate.VectorObject) error
}

// ResourceCatalog records ingested documents. Optional; nil skips recording.
type ResourceCatalog interface {
	SetChunkCount(ctx context.Context, id int64, count int) error
}

// ChunkCatalog records per-chunk rows. Optional; nil skips recording.
type ChunkCatalog interface {
	Create(ctx context.Context, resourceID int64, source string, index int) (*chunkctrl.Chunk, error)
}

// Progress reports per-chunk progress while embedding.
type Progress func(done, total int)

// Service splits a document, embeds every chunk and indexes the result.
type Service struct {
	splitter     Splitter
	embedder     Embedder
	index        VectorIndex
	resources    ResourceCatalog
	chunks       ChunkCatalog
	className    string
	chunkSize    int
	chunkOverlap int
}

type Option func(*Service)

func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func WithChunkOverlap(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.chunkOverlap = n
		}
	}
}

// WithCatalog records resources and chunks in the relational catalog.
func WithCatalog(resources ResourceCatalog, chunks ChunkCatalog) Option {
	return func(s *Service) {
		s.resources = resources
		s.chunks = chunks
	}
}

func NewService(splitter Splitter, embedder Embedder, index VectorIndex, className string, opts ...Option) *Service {
	s := &Service{
		splitter:     splitter,
		embedder:     embedder,
		index:        index,
		className:    className,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestText splits text, embeds each chunk and indexes all of them under
// resourceID. Chunk i gets source id "<resourceID>-<i>", which is what the
// answer engine later cites. Returns the number of chunks indexed.
func (s *Service) IngestText(ctx context.Context, resourceID int64, text string, progress Progress) (int, error) {
	pieces, err := s.splitter.TextSplit(ctx, text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("failed to split text: %w", err)
	}
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document produced no chunks")
	}

	if err := s.index.EnsureSchema(ctx, s.className, weaviate.ChunkClassProperties()); err != nil {
		return 0, fmt.Errorf("failed to ensure schema: %w", err)
	}

	resourceIDStr := fmt.Sprintf("%d", resourceID)
	objects := make([]weaviate.VectorObject, 0, len(pieces))
	for i, piece := range pieces {
		vector, err := s.embedder.GetEmbedding(ctx, piece)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}

		source := fmt.Sprintf("%d-%d", resourceID, i)
		objects = append(objects, weaviate.VectorObject{
			Vector: vector,
			Properties: map[string]interface{}{
				"content":    piece,
				"source":     source,
				"resourceId": resourceIDStr,
				"chunkIndex": i,
			},
		})

		if s.chunks != nil {
			if _, err := s.chunks.Create(ctx, resourceID, source, i); err != nil {
				return 0, fmt.Errorf("failed to record chunk %d: %w", i, err)
			}
		}
		if progress != nil {
			progress(i+1, len(pieces))
		}
	}

	if err := s.index.BatchAddVectors(ctx, s.className, objects); err != nil {
		return 0, fmt.Errorf("failed to index chunks: %w", err)
	}

	if s.resources != nil {
		if err := s.resources.SetChunkCount(ctx, resourceID, len(pieces)); err != nil {
			return 0, fmt.Errorf("failed to record chunk count: %w", err)
		}
	}

	log.Info("document ingested", "resource_id", resourceID, "chunks", len(pieces))
	return len(pieces), nil
}

var _ ResourceCatalog = (*resourcectrl.ResourceService)(nil)
var _ ChunkCatalog = (*chunkctrl.ChunkService)(nil)
