package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"memo-rag/internal/models"
)

// VectorDBManager encapsulates one in-memory chromem-go database holding a
// single collection. A new manager is created for every upload batch.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorDBManager creates an empty in-memory collection. embed is only
// used for documents and queries that come without an embedding.
func NewVectorDBManager(collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// CreateDocs adds multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// SearchWithQueryOptions performs a similarity search. NResults is clamped
// to the collection size, an empty collection yields no results. Equal
// similarities are ordered by source, page, chunk and id, so the same query
// always returns the same results.
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	limit := opts.NResults
	if limit <= 0 || limit > count {
		limit = count
	}

	// chromem cuts ties arbitrarily, so rank everything and cut here
	opts.NResults = count
	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	sortResults(results)
	return results[:min(limit, len(results))], nil
}

func sortResults(results []chromem.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Metadata[models.MetaSource] != b.Metadata[models.MetaSource] {
			return a.Metadata[models.MetaSource] < b.Metadata[models.MetaSource]
		}
		if pa, pb := atoi(a.Metadata[models.MetaPage]), atoi(b.Metadata[models.MetaPage]); pa != pb {
			return pa < pb
		}
		if ca, cb := atoi(a.Metadata[models.MetaChunk]), atoi(b.Metadata[models.MetaChunk]); ca != cb {
			return ca < cb
		}
		return a.ID < b.ID
	})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Export writes the collection to filePath. A non-empty encryption key must
// be 32 bytes long.
func (m *VectorDBManager) Export(filePath string, compress bool, encryptionKey string) error {
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", filePath).Bool("compress", compress).Msg("Exporting collection")
	err := m.db.ExportToFile(filePath, compress, encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// ChunkDocument converts a chunk and its embedding into a chromem document.
func ChunkDocument(chunk models.Chunk, embedding []float32) chromem.Document {
	return chromem.Document{
		ID:      chunk.ID,
		Content: chunk.Content,
		Metadata: map[string]string{
			models.MetaSource: chunk.Source,
			models.MetaPage:   strconv.Itoa(chunk.PageNumber),
			models.MetaChunk:  strconv.Itoa(chunk.ChunkID),
		},
		Embedding: embedding,
	}
}

// ResultSource converts a query result back into a chunk with its score.
func ResultSource(r chromem.Result) models.Source {
	return models.Source{
		Chunk: models.Chunk{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Metadata[models.MetaSource],
			PageNumber: atoi(r.Metadata[models.MetaPage]),
			ChunkID:    atoi(r.Metadata[models.MetaChunk]),
		},
		Similarity: r.Similarity,
	}
}
