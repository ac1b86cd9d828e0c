package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaoapp/kun/log"
)

// schemaDDL bootstraps the full schema. Every statement is idempotent
// so the service can run it on each start. %[1]d is the embedding
// dimension.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	filename VARCHAR(255) NOT NULL,
	original_filename VARCHAR(255) NOT NULL,
	mime_type VARCHAR(100) NOT NULL,
	file_size_bytes BIGINT NOT NULL,
	file_hash VARCHAR(64) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	error_message TEXT,
	page_count INTEGER,
	total_chunks INTEGER NOT NULL DEFAULT 0,
	summary TEXT,
	summary_embedding vector(%[1]d),
	search_vector TSVECTOR,
	metadata JSONB,
	processing_started_at TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_file_hash ON documents (file_hash);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
CREATE INDEX IF NOT EXISTS idx_documents_is_deleted ON documents (is_deleted);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);

CREATE TABLE IF NOT EXISTS chunks (
	id UUID PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	page_number INTEGER,
	content TEXT NOT NULL,
	content_type VARCHAR(50) NOT NULL DEFAULT 'text',
	token_count INTEGER,
	embedding vector(%[1]d),
	search_vector TSVECTOR,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_page_number ON chunks (page_number);
CREATE INDEX IF NOT EXISTS idx_chunks_chunk_index ON chunks (chunk_index);
CREATE INDEX IF NOT EXISTS idx_chunks_search_vector ON chunks USING GIN (search_vector);

CREATE TABLE IF NOT EXISTS chats (
	id UUID PRIMARY KEY,
	title VARCHAR(255),
	summary TEXT,
	active_branch VARCHAR(100) NOT NULL DEFAULT 'main',
	branches JSONB NOT NULL DEFAULT '{}',
	message_count INTEGER NOT NULL DEFAULT 0,
	last_message_at TIMESTAMPTZ,
	settings JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_chats_is_deleted ON chats (is_deleted);
CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats (updated_at);
CREATE INDEX IF NOT EXISTS idx_chats_last_message_at ON chats (last_message_at);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	chat_id UUID NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
	parent_id UUID REFERENCES messages (id) ON DELETE SET NULL,
	branch VARCHAR(100) NOT NULL DEFAULT 'main',
	role VARCHAR(20) NOT NULL,
	message_type VARCHAR(20) NOT NULL DEFAULT 'text',
	content TEXT NOT NULL,
	token_count INTEGER,
	tool_name VARCHAR(100),
	tool_params JSONB,
	tool_call_id VARCHAR(100),
	attachments JSONB,
	sources JSONB,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id);
CREATE INDEX IF NOT EXISTS idx_messages_parent_id ON messages (parent_id);
CREATE INDEX IF NOT EXISTS idx_messages_branch ON messages (branch);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at);
CREATE INDEX IF NOT EXISTS idx_messages_is_deleted ON messages (is_deleted);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_indexes
		WHERE schemaname = current_schema()
			AND indexname = 'idx_chunks_embedding'
	) THEN
		EXECUTE 'CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
END
$$;
`

// ensureSchema creates extensions, tables and indexes when missing
func (s *Storage) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(schemaDDL, s.dimension))
	if err != nil {
		// ivfflat needs rows to build its lists; without them the index
		// is skipped and search falls back to a sequential scan.
		if strings.Contains(err.Error(), "ivfflat") {
			log.Warn("[Storage] ivfflat index skipped: %s", err.Error())
			return nil
		}
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	log.Trace("[Storage] schema ready, dimension %d", s.dimension)
	return nil
}
