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

// Messages is the messages table repository
type Messages struct {
	db DB
}

const messageColumns = `id, chat_id, parent_id, branch, role, message_type, content,
	COALESCE(token_count, 0), tool_name, tool_params, tool_call_id, attachments,
	sources, metadata, created_at, is_deleted, deleted_at`

func scanMessage(row pgx.Row) (*types.Message, error) {
	msg := &types.Message{}
	err := row.Scan(
		&msg.ID, &msg.ChatID, &msg.ParentID, &msg.Branch, &msg.Role, &msg.Kind,
		&msg.Content, &msg.TokenCount, &msg.ToolName, &msg.ToolParams, &msg.ToolCallID,
		&msg.Attachments, &msg.Sources, &msg.Metadata, &msg.CreatedAt,
		&msg.IsDeleted, &msg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Create inserts a new message node
func (r *Messages) Create(ctx context.Context, msg *types.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Branch == "" {
		msg.Branch = types.DefaultBranch
	}
	if msg.Kind == "" {
		msg.Kind = types.MessageKindText
	}
	if msg.TokenCount == 0 {
		msg.TokenCount = types.EstimateTokens(msg.Content)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (
			id, chat_id, parent_id, branch, role, message_type, content, token_count,
			tool_name, tool_params, tool_call_id, attachments, sources, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		msg.ID, msg.ChatID, msg.ParentID, msg.Branch, string(msg.Role), string(msg.Kind),
		msg.Content, msg.TokenCount, msg.ToolName, msg.ToolParams, msg.ToolCallID,
		msg.Attachments, msg.Sources, msg.Metadata, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message %s: %w", msg.ID, err)
	}
	return nil
}

// Get returns a live message by id
func (r *Messages) Get(ctx context.Context, id string) (*types.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND is_deleted = FALSE`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.MessageNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// LastInBranch returns the newest live message of a branch, or nil when
// the branch is empty.
func (r *Messages) LastInBranch(ctx context.Context, chatID, branch string) (*types.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1 AND branch = $2 AND is_deleted = FALSE
		 ORDER BY created_at DESC LIMIT 1`, chatID, branch)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last message of %s/%s: %w", chatID, branch, err)
	}
	return msg, nil
}

// Chain returns the parent chain of a message in chronological order,
// root first. The walk stops at a deleted or detached ancestor, the same
// cut a branch view sees.
func (r *Messages) Chain(ctx context.Context, leafID string) ([]types.Message, error) {
	rows, err := r.db.Query(ctx, `
		WITH RECURSIVE thread AS (
			SELECT id, chat_id, parent_id, branch, role, message_type, content,
				COALESCE(token_count, 0) AS token_count, tool_name, tool_params, tool_call_id,
				attachments, sources, metadata, created_at, is_deleted, deleted_at, 0 AS depth
			FROM messages WHERE id = $1 AND is_deleted = FALSE
			UNION ALL
			SELECT m.id, m.chat_id, m.parent_id, m.branch, m.role, m.message_type, m.content,
				COALESCE(m.token_count, 0), m.tool_name, m.tool_params, m.tool_call_id,
				m.attachments, m.sources, m.metadata, m.created_at, m.is_deleted, m.deleted_at,
				thread.depth + 1
			FROM messages m JOIN thread ON m.id = thread.parent_id
			WHERE m.is_deleted = FALSE
		)
		SELECT id, chat_id, parent_id, branch, role, message_type, content, token_count,
			tool_name, tool_params, tool_call_id, attachments, sources, metadata,
			created_at, is_deleted, deleted_at
		FROM thread ORDER BY depth DESC`, leafID)
	if err != nil {
		return nil, fmt.Errorf("failed to walk message chain from %s: %w", leafID, err)
	}
	defer rows.Close()

	chain := []types.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		chain = append(chain, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message chain: %w", err)
	}
	return chain, nil
}

// ListByBranch returns a branch's live messages oldest first. An empty
// branch name returns the whole chat.
func (r *Messages) ListByBranch(ctx context.Context, chatID, branch string) ([]types.Message, error) {
	sql := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 AND is_deleted = FALSE`
	args := []interface{}{chatID}
	if branch != "" {
		args = append(args, branch)
		sql += " AND branch = $2"
	}
	sql += " ORDER BY created_at"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of %s: %w", chatID, err)
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
