package chunkctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Chunk is one indexed slice of a resource. Source is the citation id the
// answer engine reports; Index is the chunk's position in the document.
type Chunk struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	ResourceID int64     `gorm:"not null;index" json:"resource_id"`
	Source     string    `gorm:"not null" json:"source"`
	Index      int       `gorm:"not null;column:chunk_index" json:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ChunkService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewChunkService(db *gorm.DB) (*ChunkService, error) {
	node, err := snowflake.NewNode(2) // Node number 2 for chunks
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &ChunkService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *ChunkService) Create(ctx context.Context, resourceID int64, source string, index int) (*Chunk, error) {
	chunk := &Chunk{
		ID:         s.snowflake.Generate().Int64(),
		ResourceID: resourceID,
		Source:     source,
		Index:      index,
	}

	result := s.db.WithContext(ctx).Create(chunk)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create chunk: %w", result.Error)
	}
	return chunk, nil
}

func (s *ChunkService) GetByResourceID(ctx context.Context, resourceID int64) ([]Chunk, error) {
	var chunks []Chunk
	result := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("chunk_index ASC").
		Find(&chunks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", result.Error)
	}
	return chunks, nil
}
