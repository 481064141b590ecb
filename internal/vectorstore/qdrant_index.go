package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"studymate/internal/model"
)

// QdrantIndex keeps chunk vectors in a Qdrant collection. Point ids are the
// chunk row ids, and the payload carries enough to rebuild the chunk without a
// database round trip.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewQdrantIndex ensures the collection exists, creating it with cosine
// distance when missing.
func NewQdrantIndex(ctx context.Context, client *qdrant.Client, collection string, vectorSize uint64) (*QdrantIndex, error) {
	idx := &QdrantIndex{client: client, collection: collection, vectorSize: vectorSize}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %q: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", q.collection, err)
	}
	return nil
}

func (q *QdrantIndex) Save(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		vec, err := c.EmbeddingVector()
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		if len(vec) == 0 {
			return fmt.Errorf("qdrant: chunk %d of document %d has no embedding", c.Position, doc.ID)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(c.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chat_id":     c.ChatID,
				"document_id": int64(c.DocumentID),
				"position":    int64(c.Position),
				"source":      c.Source,
				"content":     c.Content,
			}),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, filter Filter, query []float32, k int) ([]Hit, error) {
	if filter.ChatID == "" {
		return nil, ErrEmptyFilter
	}
	if k <= 0 {
		return nil, nil
	}

	conditions := []*qdrant.Condition{qdrant.NewMatch("chat_id", filter.ChatID)}
	if filter.DocumentID != 0 {
		conditions = append(conditions, qdrant.NewMatchInt("document_id", int64(filter.DocumentID)))
	}
	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         &qdrant.Filter{Must: conditions},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		chunk := model.DocumentChunk{ID: uint(p.GetId().GetNum())}
		payload := p.GetPayload()
		chunk.ChatID = payload["chat_id"].GetStringValue()
		chunk.DocumentID = uint(payload["document_id"].GetIntegerValue())
		chunk.Position = int(payload["position"].GetIntegerValue())
		chunk.Source = payload["source"].GetStringValue()
		chunk.Content = payload["content"].GetStringValue()
		hits = append(hits, Hit{Chunk: chunk, Score: p.GetScore()})
	}
	rank(hits)
	return hits, nil
}
