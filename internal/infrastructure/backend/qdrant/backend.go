package qdrant

import (
	"context"
	"fmt"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

// DenseBackend is the vector/semantic retrieval modality: query text is
// embedded, then matched against dense passage vectors.
type DenseBackend struct {
	client   *Client
	embedder ports.Embedder
}

func NewDenseBackend(client *Client, embedder ports.Embedder) *DenseBackend {
	return &DenseBackend{client: client, embedder: embedder}
}

func (b *DenseBackend) Method() domain.RetrievalMethod { return domain.MethodVector }

func (b *DenseBackend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]domain.RankedEntry, error) {
	queryVector, err := b.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := b.client.searchDense(ctx, queryVector, topK, filters)
	if err != nil {
		return nil, err
	}
	return entriesFromPoints(points, "semantic"), nil
}

// SparseBackend is the lexical retrieval modality: the query is encoded
// into a hashed term-frequency sparse vector matched against the named
// sparse vectors of the same collection. No embedding call involved.
type SparseBackend struct {
	client *Client
}

func NewSparseBackend(client *Client) *SparseBackend {
	return &SparseBackend{client: client}
}

func (b *SparseBackend) Method() domain.RetrievalMethod { return domain.MethodSparse }

func (b *SparseBackend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]domain.RankedEntry, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	points, err := b.client.searchSparse(ctx, sparse, topK, filters)
	if err != nil {
		return nil, err
	}
	return entriesFromPoints(points, "lexical"), nil
}
