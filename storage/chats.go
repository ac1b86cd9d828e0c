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

// Chats is the chats table repository
type Chats struct {
	db DB
}

const chatColumns = `id, COALESCE(title, ''), COALESCE(summary, ''), active_branch, branches,
	message_count, last_message_at, settings, created_at, updated_at, is_deleted, deleted_at`

func scanChat(row pgx.Row) (*types.Chat, error) {
	chat := &types.Chat{}
	err := row.Scan(
		&chat.ID, &chat.Title, &chat.Summary, &chat.ActiveBranch, &chat.Branches,
		&chat.MessageCount, &chat.LastMessageAt, &chat.Settings,
		&chat.CreatedAt, &chat.UpdatedAt, &chat.IsDeleted, &chat.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Create inserts a new chat row
func (r *Chats) Create(ctx context.Context, chat *types.Chat) error {
	if chat.CreatedAt.IsZero() {
		now := time.Now().UTC()
		chat.CreatedAt = now
		chat.UpdatedAt = now
	}
	if chat.ActiveBranch == "" {
		chat.ActiveBranch = types.DefaultBranch
	}
	if chat.Branches == nil {
		chat.Branches = map[string]types.BranchInfo{
			types.DefaultBranch: {CreatedAt: chat.CreatedAt},
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO chats (
			id, title, summary, active_branch, branches, message_count,
			last_message_at, settings, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		chat.ID, textOrNil(chat.Title), textOrNil(chat.Summary), chat.ActiveBranch,
		chat.Branches, chat.MessageCount, chat.LastMessageAt, chat.Settings,
		chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat %s: %w", chat.ID, err)
	}
	return nil
}

// Get returns a live chat by id
func (r *Chats) Get(ctx context.Context, id string) (*types.Chat, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = $1 AND is_deleted = FALSE`, id)
	chat, err := scanChat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ChatNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", id, err)
	}
	return chat, nil
}

// List returns one page of live chats, most recently active first, with
// the total count.
func (r *Chats) List(ctx context.Context, page, pageSize int) ([]*types.Chat, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chats WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count chats: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE is_deleted = FALSE
		 ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := []*types.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return chats, total, nil
}

// Update writes the mutable chat fields back
func (r *Chats) Update(ctx context.Context, chat *types.Chat) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE chats SET
			title = $2, summary = $3, active_branch = $4, branches = $5,
			message_count = $6, last_message_at = $7, settings = $8, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		chat.ID, textOrNil(chat.Title), textOrNil(chat.Summary), chat.ActiveBranch,
		chat.Branches, chat.MessageCount, chat.LastMessageAt, chat.Settings,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat %s: %w", chat.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ChatNotFound(chat.ID)
	}
	return nil
}

// RecordMessage bumps the message counters after an append
func (r *Chats) RecordMessage(ctx context.Context, chatID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE chats SET
			message_count = message_count + 1, last_message_at = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`, chatID, at)
	if err != nil {
		return fmt.Errorf("failed to record message on chat %s: %w", chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ChatNotFound(chatID)
	}
	return nil
}

// SoftDelete flags a chat as deleted
func (r *Chats) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE chats SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ChatNotFound(id)
	}
	return nil
}

// PurgeDeleted hard-deletes chats soft-deleted before the cutoff,
// cascading to their messages.
func (r *Chats) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chats WHERE is_deleted = TRUE AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge chats: %w", err)
	}
	return tag.RowsAffected(), nil
}
