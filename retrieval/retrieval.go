package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/types"
)

// Ranking defaults
const (
	DefaultTopK          = 5
	DefaultMaxTopK       = 20
	DefaultMinSimilarity = 0.3
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
)

// Options configure the retrieval service
type Options struct {
	DB            storage.DB
	Embedder      types.Embedder
	DefaultTopK   int
	MaxTopK       int
	MinSimilarity float64
	VectorWeight  float64
	KeywordWeight float64
}

// Service searches chunks by embedding similarity, optionally blended
// with full-text rank, over completed live documents only.
type Service struct {
	db            storage.DB
	embedder      types.Embedder
	defaultTopK   int
	maxTopK       int
	minSimilarity float64
	vectorWeight  float64
	keywordWeight float64
}

// New creates a retrieval service, applying defaults to unset options
func New(options Options) (*Service, error) {
	if options.DB == nil {
		return nil, fmt.Errorf("retrieval database is not set")
	}
	if options.Embedder == nil {
		return nil, fmt.Errorf("retrieval embedder is not set")
	}
	if options.DefaultTopK <= 0 {
		options.DefaultTopK = DefaultTopK
	}
	if options.MaxTopK <= 0 {
		options.MaxTopK = DefaultMaxTopK
	}
	if options.MinSimilarity <= 0 {
		options.MinSimilarity = DefaultMinSimilarity
	}
	if options.VectorWeight <= 0 {
		options.VectorWeight = DefaultVectorWeight
	}
	if options.KeywordWeight <= 0 {
		options.KeywordWeight = DefaultKeywordWeight
	}
	return &Service{
		db:            options.DB,
		embedder:      options.Embedder,
		defaultTopK:   options.DefaultTopK,
		maxTopK:       options.MaxTopK,
		minSimilarity: options.MinSimilarity,
		vectorWeight:  options.VectorWeight,
		keywordWeight: options.KeywordWeight,
	}, nil
}

// Search retrieves the chunks most relevant to the query. Dense search
// ranks by cosine similarity alone; hybrid blends it with ts_rank. The
// similarity floor always applies to the vector component. An empty
// corpus yields an empty result, never an error.
func (s *Service) Search(ctx context.Context, query string, opts types.SearchOptions) (*types.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("search query must not be empty")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = s.minSimilarity
	}

	start := time.Now()

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var results []types.SearchResult
	switch opts.Type {
	case types.SearchTypeHybrid:
		results, err = s.hybridSearch(ctx, query, embedding, topK, minSimilarity, opts.DocumentIDs)
	default:
		results, err = s.denseSearch(ctx, embedding, topK, minSimilarity, opts.DocumentIDs)
	}
	if err != nil {
		return nil, err
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	log.Trace("[Retrieval] %q %s: %d results in %.1fms", truncate(query, 50), opts.Type, len(results), elapsed)

	return &types.SearchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		SearchTimeMs: elapsed,
	}, nil
}

// denseSearch ranks by cosine similarity, closest first, ties broken by
// chunk index.
func (s *Service) denseSearch(ctx context.Context, embedding []float32, topK int, minSimilarity float64, documentIDs []string) ([]types.SearchResult, error) {
	sql := `
		SELECT c.id, c.document_id, d.original_filename, c.content, c.page_number, c.metadata,
			1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.is_deleted = FALSE AND d.status = 'completed' AND c.embedding IS NOT NULL`
	args := []interface{}{pgvector.NewVector(embedding)}
	if len(documentIDs) > 0 {
		args = append(args, documentIDs)
		sql += fmt.Sprintf(" AND c.document_id = ANY($%d::uuid[])", len(args))
	}
	args = append(args, topK)
	sql += fmt.Sprintf(" ORDER BY c.embedding <=> $1, c.chunk_index LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.VectorSearch(err)
	}
	defer rows.Close()

	results := []types.SearchResult{}
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentFilename, &r.Content,
			&r.PageNumber, &r.Metadata, &r.SimilarityScore); err != nil {
			return nil, errs.VectorSearch(err)
		}
		if r.SimilarityScore >= minSimilarity {
			results = append(results, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorSearch(err)
	}
	return results, nil
}

// hybridSearch ranks by the weighted blend of cosine similarity and
// full-text rank. The floor filters on the vector component while the
// reported score is the blend.
func (s *Service) hybridSearch(ctx context.Context, query string, embedding []float32, topK int, minSimilarity float64, documentIDs []string) ([]types.SearchResult, error) {
	sql := `
		SELECT c.id, c.document_id, d.original_filename, c.content, c.page_number, c.metadata,
			1 - (c.embedding <=> $1) AS vector_score,
			$3::float8 * (1 - (c.embedding <=> $1))
				+ $4::float8 * COALESCE(ts_rank(c.search_vector, plainto_tsquery('english', $2)), 0) AS combined_score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.is_deleted = FALSE AND d.status = 'completed' AND c.embedding IS NOT NULL`
	args := []interface{}{pgvector.NewVector(embedding), query, s.vectorWeight, s.keywordWeight}
	if len(documentIDs) > 0 {
		args = append(args, documentIDs)
		sql += fmt.Sprintf(" AND c.document_id = ANY($%d::uuid[])", len(args))
	}
	args = append(args, topK)
	sql += fmt.Sprintf(" ORDER BY combined_score DESC, c.embedding <=> $1, c.chunk_index LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.VectorSearch(err)
	}
	defer rows.Close()

	results := []types.SearchResult{}
	for rows.Next() {
		var r types.SearchResult
		var vectorScore float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentFilename, &r.Content,
			&r.PageNumber, &r.Metadata, &vectorScore, &r.SimilarityScore); err != nil {
			return nil, errs.VectorSearch(err)
		}
		if vectorScore >= minSimilarity {
			results = append(results, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorSearch(err)
	}
	return results, nil
}

// SearchDocuments matches the query against document summary embeddings,
// returning whole documents instead of chunks. No similarity floor.
func (s *Service) SearchDocuments(ctx context.Context, query string, topK int) ([]types.DocumentMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("search query must not be empty")
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT d.id, d.original_filename, COALESCE(d.summary, ''),
			1 - (d.summary_embedding <=> $1) AS similarity
		FROM documents d
		WHERE d.is_deleted = FALSE AND d.status = 'completed' AND d.summary_embedding IS NOT NULL
		ORDER BY d.summary_embedding <=> $1
		LIMIT $2`, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, errs.VectorSearch(err)
	}
	defer rows.Close()

	matches := []types.DocumentMatch{}
	for rows.Next() {
		var m types.DocumentMatch
		if err := rows.Scan(&m.DocumentID, &m.Filename, &m.Summary, &m.Similarity); err != nil {
			return nil, errs.VectorSearch(err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorSearch(err)
	}
	return matches, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
