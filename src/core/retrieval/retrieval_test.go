package retrieval_test

import (
	"context"
	"testing"

	"docqa/src/core/retrieval"
	"docqa/src/storage/weaviate"
)

type fakeEmbedder struct {
	vector []float32
}

func (f fakeEmbedder) GetEmbedding(_ context.Context, _ string) ([]float32, error) {
	return f.vector, nil
}

type fakeIndex struct {
	gotClass string
	gotLimit int
	hits     []weaviate.QueryResult
}

func (f *fakeIndex) QueryVectors(_ context.Context, className string, _ []float32, config weaviate.QueryConfig) ([]weaviate.QueryResult, error) {
	f.gotClass = className
	f.gotLimit = config.Limit
	return f.hits, nil
}

func TestRetrieveMapsHitsToFragments(t *testing.T) {
	index := &fakeIndex{
		hits: []weaviate.QueryResult{
			{Properties: map[string]interface{}{
				"content":    "chunk one",
				"source":     "0",
				"resourceId": "42",
				"chunkIndex": float64(0),
			}},
			{Properties: map[string]interface{}{
				"content": "chunk two",
			}},
			{Properties: map[string]interface{}{
				// no content, skipped
				"source": "3",
			}},
		},
	}
	store := retrieval.NewStore(index, fakeEmbedder{vector: []float32{0.1, 0.2}}, "DocumentChunk")

	fragments, err := store.Retrieve(context.Background(), "a question", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if index.gotClass != "DocumentChunk" {
		t.Errorf("class = %q, want DocumentChunk", index.gotClass)
	}
	if index.gotLimit != 2 {
		t.Errorf("limit = %d, want 2", index.gotLimit)
	}
	if len(fragments) != 2 {
		t.Fatalf("fragments = %d, want 2", len(fragments))
	}
	if fragments[0].Text != "chunk one" {
		t.Errorf("fragment[0].Text = %q", fragments[0].Text)
	}
	if fragments[0].Metadata["source"] != "0" {
		t.Errorf("fragment[0] source = %q, want 0", fragments[0].Metadata["source"])
	}
	if fragments[0].Metadata["chunkIndex"] != "0" {
		t.Errorf("fragment[0] chunkIndex = %q, want 0", fragments[0].Metadata["chunkIndex"])
	}
	if len(fragments[1].Metadata) != 0 {
		t.Errorf("fragment[1] metadata = %v, want empty", fragments[1].Metadata)
	}
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	index := &fakeIndex{}
	store := retrieval.NewStore(index, fakeEmbedder{vector: []float32{1}}, "DocumentChunk")

	if _, err := store.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if index.gotLimit != retrieval.DefaultTopK {
		t.Errorf("limit = %d, want %d", index.gotLimit, retrieval.DefaultTopK)
	}
}
