package resourcectrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Resource is an ingested document: the original lives in object storage,
// its chunks in the vector index.
type Resource struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"not null" json:"filename"`
	ObjectURL  string    `gorm:"not null;column:object_url" json:"object_url"` // bucket name + object name
	ChunkCount int       `gorm:"not null;default:0" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ResourceService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewResourceService(db *gorm.DB) (*ResourceService, error) {
	node, err := snowflake.NewNode(1) // Node number 1 for resources
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &ResourceService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *ResourceService) GetByID(ctx context.Context, id int64) (*Resource, error) {
	var resource Resource
	result := s.db.WithContext(ctx).First(&resource, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resource: %w", result.Error)
	}
	return &resource, nil
}

// List returns a paginated list of resources, newest first.
func (s *ResourceService) List(ctx context.Context, limit, offset int) ([]Resource, error) {
	var resources []Resource
	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&resources)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list resources: %w", result.Error)
	}
	return resources, nil
}

func (s *ResourceService) Create(ctx context.Context, filename, objectURL string) (*Resource, error) {
	resource := &Resource{
		ID:        s.snowflake.Generate().Int64(),
		Filename:  filename,
		ObjectURL: objectURL,
	}

	result := s.db.WithContext(ctx).Create(resource)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create resource: %w", result.Error)
	}
	return resource, nil
}

// SetChunkCount records how many chunks ingest produced for a resource.
func (s *ResourceService) SetChunkCount(ctx context.Context, id int64, count int) error {
	result := s.db.WithContext(ctx).Model(&Resource{}).Where("id = ?", id).Update("chunk_count", count)
	if result.Error != nil {
		return fmt.Errorf("failed to update chunk count: %w", result.Error)
	}
	return nil
}
