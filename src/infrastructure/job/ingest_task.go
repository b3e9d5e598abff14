package job

import (
	"context"
	"encoding/json"
	"fmt"

	"docqa/src/core/ingest"
	"docqa/src/storage/minioctrl"
	"docqa/src/storage/postgres/resourcectrl"
)

const TaskTypeIngest = "ingest"

// IngestPayload points a worker at an uploaded document to split, embed
// and index.
type IngestPayload struct {
	ResourceID int64 `json:"resource_id"`
}

// IngestTask loads a resource's original document from object storage and
// runs it through the ingest pipeline.
type IngestTask struct {
	resourceService *resourcectrl.ResourceService
	minioService    *minioctrl.MinioService
	ingestService   *ingest.Service
}

func NewIngestTask(
	resourceService *resourcectrl.ResourceService,
	minioService *minioctrl.MinioService,
	ingestService *ingest.Service,
) *IngestTask {
	return &IngestTask{
		resourceService: resourceService,
		minioService:    minioService,
		ingestService:   ingestService,
	}
}

func (t *IngestTask) HandleIngestTask(ctx context.Context, payload json.RawMessage) error {
	var ingestPayload IngestPayload
	if err := json.Unmarshal(payload, &ingestPayload); err != nil {
		return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
	}

	resource, err := t.resourceService.GetByID(ctx, ingestPayload.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to get resource: %w", err)
	}
	if resource == nil {
		return fmt.Errorf("resource not found: %d", ingestPayload.ResourceID)
	}

	bucket, object := minioctrl.SplitObjectURL(resource.ObjectURL)
	if bucket == "" {
		return fmt.Errorf("resource %d has malformed object URL %q", resource.ID, resource.ObjectURL)
	}

	data, err := t.minioService.GetObject(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if _, err := t.ingestService.IngestText(ctx, resource.ID, string(data), nil); err != nil {
		return fmt.Errorf("failed to ingest document: %w", err)
	}
	return nil
}
