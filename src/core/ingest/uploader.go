package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"docqa/src/storage/minioctrl"
	"docqa/src/storage/postgres/resourcectrl"
)

// IngestQueue schedules background ingestion of an uploaded resource.
type IngestQueue interface {
	EnqueueIngest(ctx context.Context, resourceID int64) (jobID int, err error)
}

// Uploader stores an uploaded document and queues it for ingestion.
type Uploader struct {
	objects   *minioctrl.MinioService
	resources *resourcectrl.ResourceService
	queue     IngestQueue
}

func NewUploader(objects *minioctrl.MinioService, resources *resourcectrl.ResourceService, queue IngestQueue) *Uploader {
	return &Uploader{
		objects:   objects,
		resources: resources,
		queue:     queue,
	}
}

type UploadResult struct {
	ResourceID int64  `json:"resource_id"`
	Filename   string `json:"filename"`
	JobID      int    `json:"job_id"`
	Status     string `json:"status"`
}

// Upload writes the original document to object storage, records it in the
// catalog and enqueues an ingest job. Chunking and embedding happen in the
// background worker.
func (u *Uploader) Upload(ctx context.Context, filename string, content []byte) (*UploadResult, error) {
	if err := u.objects.EnsureBucketExists(ctx, minioctrl.DocumentsBucket); err != nil {
		return nil, err
	}

	objectName := uuid.New().String() + "-" + filename
	if err := u.objects.PutObject(ctx, minioctrl.DocumentsBucket, objectName, content); err != nil {
		return nil, err
	}

	objectURL := minioctrl.DocumentsBucket + "/" + objectName
	resource, err := u.resources.Create(ctx, filename, objectURL)
	if err != nil {
		return nil, err
	}

	jobID, err := u.queue.EnqueueIngest(ctx, resource.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue ingest job: %w", err)
	}

	return &UploadResult{
		ResourceID: resource.ID,
		Filename:   resource.Filename,
		JobID:      jobID,
		Status:     "queued",
	}, nil
}

// List returns the catalog of uploaded resources, newest first.
func (u *Uploader) List(ctx context.Context, limit, offset int) ([]resourcectrl.Resource, error) {
	return u.resources.List(ctx, limit, offset)
}
