// Package vectorstore ranks stored chunks against a query embedding within a
// chat or document scope.
package vectorstore

import (
	"context"
	"sort"

	"studymate/internal/model"
)

// Filter narrows a search to one chat and, when DocumentID is non-zero, to a
// single document of that chat.
type Filter struct {
	ChatID     string
	DocumentID uint
}

type Hit struct {
	Chunk model.DocumentChunk
	Score float32
}

// Index stores chunk embeddings and answers nearest-neighbour queries.
// Save is called inside the ingestion transaction, so a failed Save leaves no
// chunk rows behind.
type Index interface {
	Save(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk) error
	Search(ctx context.Context, filter Filter, query []float32, k int) ([]Hit, error)
}

// rank orders hits by descending score. Equal scores go to the older chunk.
func rank(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}
