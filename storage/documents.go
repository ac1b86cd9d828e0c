package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// Documents is the documents table repository
type Documents struct {
	db DB
}

const documentColumns = `id, filename, original_filename, mime_type, file_size_bytes, file_hash,
	status, COALESCE(error_message, ''), COALESCE(page_count, 0), total_chunks,
	COALESCE(summary, ''), metadata, processing_started_at, processing_completed_at,
	created_at, updated_at, is_deleted, deleted_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.ContentType,
		&doc.FileSize, &doc.FileHash, &doc.Status, &doc.ProcessingError,
		&doc.PageCount, &doc.ChunkCount, &doc.Summary, &doc.Metadata,
		&doc.ProcessingStartedAt, &doc.ProcessingCompletedAt,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.IsDeleted, &doc.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Create inserts a new document row
func (r *Documents) Create(ctx context.Context, doc *types.Document) error {
	if doc.CreatedAt.IsZero() {
		now := time.Now().UTC()
		doc.CreatedAt = now
		doc.UpdatedAt = now
	}
	if doc.Status == "" {
		doc.Status = types.DocumentStatusPending
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO documents (
			id, filename, original_filename, mime_type, file_size_bytes, file_hash,
			status, error_message, page_count, total_chunks, summary, summary_embedding,
			metadata, processing_started_at, processing_completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		doc.ID, doc.Filename, doc.OriginalFilename, doc.ContentType, doc.FileSize, doc.FileHash,
		string(doc.Status), textOrNil(doc.ProcessingError), doc.PageCount, doc.ChunkCount,
		textOrNil(doc.Summary), vectorOrNil(doc.SummaryEmbedding), doc.Metadata,
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a live document by id
func (r *Documents) Get(ctx context.Context, id string) (*types.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND is_deleted = FALSE`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.DocumentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// GetByHash returns the most recent live document with the given content
// hash, or nil when none exists.
func (r *Documents) GetByHash(ctx context.Context, fileHash string) (*types.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE file_hash = $1 AND is_deleted = FALSE
		 ORDER BY created_at DESC LIMIT 1`, fileHash)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by hash: %w", err)
	}
	return doc, nil
}

// GetByFilename returns the most recent live document whose stored or
// original filename matches, or nil when none exists.
func (r *Documents) GetByFilename(ctx context.Context, filename string) (*types.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE (filename = $1 OR original_filename = $1) AND is_deleted = FALSE
		 ORDER BY created_at DESC LIMIT 1`, filename)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document by filename: %w", err)
	}
	return doc, nil
}

// List returns one page of live documents, newest first, with the total
// count. An empty status matches every status.
func (r *Documents) List(ctx context.Context, status types.DocumentStatus, page, pageSize int) ([]*types.Document, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	where := "is_deleted = FALSE"
	args := []interface{}{}
	if status != "" {
		args = append(args, string(status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM documents WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []*types.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, total, nil
}

// Update writes the mutable document fields back
func (r *Documents) Update(ctx context.Context, doc *types.Document) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET
			status = $2, error_message = $3, page_count = $4, total_chunks = $5,
			summary = $6, summary_embedding = $7, metadata = $8,
			processing_started_at = $9, processing_completed_at = $10, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		doc.ID, string(doc.Status), textOrNil(doc.ProcessingError), doc.PageCount,
		doc.ChunkCount, textOrNil(doc.Summary), vectorOrNil(doc.SummaryEmbedding),
		doc.Metadata, doc.ProcessingStartedAt, doc.ProcessingCompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.DocumentNotFound(doc.ID)
	}
	return nil
}

// SoftDelete flags a document as deleted. Chunks stay in place and drop
// out of search through the join predicate.
func (r *Documents) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.DocumentNotFound(id)
	}
	return nil
}

// FailStale marks documents stuck in processing since before the cutoff
// as failed and returns how many were touched.
func (r *Documents) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET
			status = $1, error_message = $2, processing_completed_at = NOW(), updated_at = NOW()
		WHERE status = $3 AND is_deleted = FALSE AND processing_started_at < $4`,
		string(types.DocumentStatusFailed), reason, string(types.DocumentStatusProcessing), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeDeleted hard-deletes documents soft-deleted before the cutoff.
// Chunk rows go with them through the foreign key.
func (r *Documents) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE is_deleted = TRUE AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// textOrNil maps an empty string to SQL NULL
func textOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
