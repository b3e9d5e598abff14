package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const DefaultQueryLimit = 4

// SDK wraps the Weaviate client with the operations the fragment index
// needs: schema management, batched chunk writes and vector queries.
type SDK struct {
	client *weaviate.Client
}

func NewSDK(client *weaviate.Client) *SDK {
	return &SDK{client: client}
}

// ChunkClassProperties is the schema used for indexed document chunks.
func ChunkClassProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "source", DataType: []string{"string"}},
		{Name: "resourceId", DataType: []string{"string"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
	}
}

// EnsureSchema creates the class if it does not exist yet. Vectors are
// supplied by the caller, so the class carries no vectorizer module.
func (w *SDK) EnsureSchema(ctx context.Context, className string, properties []*models.Property) error {
	exists, err := w.classExists(ctx, className)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      className,
		Properties: properties,
		Vectorizer: "none",
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create weaviate class: %w", err)
	}
	return nil
}

func (w *SDK) classExists(ctx context.Context, className string) (bool, error) {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == className {
			return true, nil
		}
	}
	return false, nil
}

// DeleteSchema removes a class and everything indexed under it.
func (w *SDK) DeleteSchema(ctx context.Context, className string) error {
	if err := w.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete weaviate class: %w", err)
	}
	return nil
}

// VectorObject is a single chunk with its embedding and properties.
type VectorObject struct {
	Vector     []float32
	Properties map[string]interface{}
}

// BatchAddVectors indexes multiple chunks in one batch call.
func (w *SDK) BatchAddVectors(ctx context.Context, className string, objects []VectorObject) error {
	objs := make([]*models.Object, len(objects))
	for i, obj := range objects {
		objs[i] = &models.Object{
			Class:      className,
			Properties: obj.Properties,
			Vector:     obj.Vector,
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add vectors: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch operation returned no results")
	}
	return nil
}

// QueryConfig configures a vector similarity search.
type QueryConfig struct {
	Fields    []string
	Limit     int
	Certainty float64
}

// QueryResult is a single similarity hit.
type QueryResult struct {
	ID         string
	Score      float64
	Properties map[string]interface{}
}

// QueryVectors runs a nearVector search over a class and returns the hits
// in similarity order.
func (w *SDK) QueryVectors(ctx context.Context, className string, vector []float32, config QueryConfig) ([]QueryResult, error) {
	fields := make([]graphql.Field, len(config.Fields))
	for i, field := range config.Fields {
		fields[i] = graphql.Field{Name: field}
	}
	fields = append(fields, graphql.Field{Name: "_additional { id distance }"})

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	if config.Certainty > 0 {
		nearVector.WithCertainty(float32(config.Certainty))
	}

	if config.Limit <= 0 {
		config.Limit = DefaultQueryLimit
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(config.Limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	var hits []QueryResult
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return hits, nil
	}
	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		hit := QueryResult{Properties: make(map[string]interface{})}
		if additional, ok := objMap["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				hit.ID = id
			}
			if distance, ok := additional["distance"].(float64); ok {
				hit.Score = distance
			}
		}
		for k, v := range objMap {
			if k != "_additional" {
				hit.Properties[k] = v
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}
