package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// DB is the query surface shared by the pool and open transactions, so
// every repository works inside and outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults
}

// Options configure the storage layer
type Options struct {
	DatabaseURL string
	PoolSize    int // Max pool connections, default pgx's
	Dimension   int // Embedding column dimension, default 768
}

// Repos bundles the table repositories over one connection source
type Repos struct {
	Documents *Documents
	Chunks    *Chunks
	Chats     *Chats
	Messages  *Messages
}

func newRepos(db DB) *Repos {
	return &Repos{
		Documents: &Documents{db: db},
		Chunks:    &Chunks{db: db},
		Chats:     &Chats{db: db},
		Messages:  &Messages{db: db},
	}
}

// Storage owns the Postgres pool and the pool-backed repositories
type Storage struct {
	*Repos
	pool      *pgxpool.Pool
	dimension int
}

// New connects to Postgres and bootstraps the schema
func New(ctx context.Context, options Options) (*Storage, error) {
	if options.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}
	if options.Dimension <= 0 {
		options.Dimension = 768
	}

	config, err := pgxpool.ParseConfig(options.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if options.PoolSize > 0 {
		config.MaxConns = int32(options.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	storage := &Storage{
		Repos:     newRepos(pool),
		pool:      pool,
		dimension: options.Dimension,
	}

	if err := storage.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("[Storage] connected, pool max %d", config.MaxConns)
	return storage, nil
}

// Pool exposes the underlying pool for direct queries
func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *Storage) Close() {
	s.pool.Close()
}

// WithTx runs fn with transaction-bound repositories. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Storage) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveProcessed persists a finished processing run in one transaction:
// the document flips to completed with its summary, and the chunk set
// is replaced wholesale.
func (s *Storage) SaveProcessed(ctx context.Context, document *types.Document, processed *types.ProcessedDocument) error {
	document.MarkCompleted(processed.PageCount, len(processed.Chunks))
	document.Summary = processed.Summary
	document.SummaryEmbedding = processed.SummaryEmbedding
	if len(processed.Metadata) > 0 {
		document.Metadata = processed.Metadata
	}

	return s.WithTx(ctx, func(r *Repos) error {
		if err := r.Chunks.DeleteByDocument(ctx, document.ID); err != nil {
			return err
		}
		if err := r.Chunks.CreateBatch(ctx, processed.Chunks); err != nil {
			return err
		}
		return r.Documents.Update(ctx, document)
	})
}

// vectorOrNil maps an empty embedding to SQL NULL
func vectorOrNil(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
