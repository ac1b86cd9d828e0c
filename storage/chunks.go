package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ragent-io/ragent/types"
)

// Chunks is the chunks table repository
type Chunks struct {
	db DB
}

const chunkColumns = `id, document_id, chunk_index, page_number, content, content_type,
	COALESCE(token_count, 0), metadata, created_at`

func scanChunk(row pgx.Row) (*types.Chunk, error) {
	chunk := &types.Chunk{}
	err := row.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.PageNumber,
		&chunk.Content, &chunk.ContentKind, &chunk.TokenCount, &chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

const insertChunkSQL = `
	INSERT INTO chunks (
		id, document_id, chunk_index, page_number, content, content_type,
		token_count, embedding, search_vector, metadata, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, to_tsvector('english', $5), $9, $10)`

// CreateBatch inserts chunks in one round trip, filling the full-text
// vector from the content as it goes.
func (r *Chunks) CreateBatch(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now().UTC()
		}
		if chunk.ContentKind == "" {
			chunk.ContentKind = types.ContentKindText
		}
		batch.Queue(insertChunkSQL,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.PageNumber,
			chunk.Content, string(chunk.ContentKind), chunk.TokenCount,
			vectorOrNil(chunk.Embedding), chunk.Metadata, chunk.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %d of document %s: %w",
				chunks[i].ChunkIndex, chunks[i].DocumentID, err)
		}
	}
	return nil
}

// ListByDocument returns a document's chunks in index order. A zero
// limit returns them all.
func (r *Chunks) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]*types.Chunk, error) {
	sql := `SELECT ` + chunkColumns + ` FROM chunks WHERE document_id = $1 ORDER BY chunk_index`
	args := []interface{}{documentID}
	if limit > 0 {
		args = append(args, limit, offset)
		sql += " LIMIT $2 OFFSET $3"
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks of %s: %w", documentID, err)
	}
	defer rows.Close()

	chunks := []*types.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return chunks, nil
}

// CountByDocument returns how many chunks a document has
func (r *Chunks) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks of %s: %w", documentID, err)
	}
	return count, nil
}

// DeleteByDocument removes every chunk of a document, used before a
// reprocessing run writes the new set.
func (r *Chunks) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}
