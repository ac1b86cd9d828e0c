package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/types"
)

// MaxTitleLength caps generated and fallback chat titles
const MaxTitleLength = 100

// Titler names a chat after its first user message
type Titler interface {
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

// Options configure the conversation service
type Options struct {
	Storage *storage.Storage
	Cache   *store.Cache // optional branch-view hot cache
	Titler  Titler       // optional, fallback titles are used without it
}

// Service persists chats, branches and messages and serves branch
// views. A branch view is the parent chain of the branch's newest
// message, so messages shared with the parent branch are included.
type Service struct {
	storage *storage.Storage
	cache   *store.Cache
	titler  Titler
}

// New creates the conversation service
func New(options Options) (*Service, error) {
	if options.Storage == nil {
		return nil, fmt.Errorf("chat service requires a storage backend")
	}
	return &Service{
		storage: options.Storage,
		cache:   options.Cache,
		titler:  options.Titler,
	}, nil
}

// CreateChat starts a conversation on the default branch. When an
// initial user message is given and no title was supplied, a short
// title is derived from that message.
func (s *Service) CreateChat(ctx context.Context, title string, initialMessage string) (*types.Chat, error) {
	if title == "" && initialMessage != "" {
		title = s.titleFor(ctx, initialMessage)
	}

	now := time.Now().UTC()
	chat := &types.Chat{
		ID:           uuid.NewString(),
		Title:        title,
		ActiveBranch: types.DefaultBranch,
		Branches:     map[string]types.BranchInfo{types.DefaultBranch: {CreatedAt: now}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.storage.WithTx(ctx, func(r *storage.Repos) error {
		if err := r.Chats.Create(ctx, chat); err != nil {
			return err
		}
		if initialMessage == "" {
			return nil
		}
		msg := &types.Message{
			ID:      uuid.NewString(),
			ChatID:  chat.ID,
			Branch:  chat.ActiveBranch,
			Role:    types.RoleUser,
			Kind:    types.MessageKindText,
			Content: initialMessage,
		}
		if err := r.Messages.Create(ctx, msg); err != nil {
			return err
		}
		return r.Chats.RecordMessage(ctx, chat.ID, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	log.Info("[Chat] created %s %q", chat.ID, chat.Title)
	return s.Get(ctx, chat.ID)
}

// Get returns a live chat by id
func (s *Service) Get(ctx context.Context, chatID string) (*types.Chat, error) {
	return s.storage.Chats.Get(ctx, chatID)
}

// List returns one page of live chats, most recently active first,
// with the total count.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]*types.Chat, int, error) {
	return s.storage.Chats.List(ctx, page, pageSize)
}

// AddMessageInput carries the fields of a new message. Zero values
// mean text kind, no parent override and no extras.
type AddMessageInput struct {
	Role        types.Role
	Content     string
	ParentID    *string
	Kind        types.MessageKind
	ToolName    *string
	ToolParams  map[string]interface{}
	ToolCallID  *string
	Attachments []map[string]interface{}
	Sources     []types.Source
	Metadata    map[string]interface{}
}

// AddMessage appends a message to the chat's active branch. Without an
// explicit parent the last live message of that branch is used, or the
// branch's fork point when the branch has no messages yet, so the
// first message after CreateBranch forks the graph there.
func (s *Service) AddMessage(ctx context.Context, chatID string, in AddMessageInput) (*types.Message, error) {
	if in.Role == "" {
		return nil, errs.Validation("message role is required")
	}

	var msg *types.Message
	err := s.storage.WithTx(ctx, func(r *storage.Repos) error {
		chat, err := r.Chats.Get(ctx, chatID)
		if err != nil {
			return err
		}

		parentID := in.ParentID
		if parentID == nil {
			last, err := r.Messages.LastInBranch(ctx, chatID, chat.ActiveBranch)
			if err != nil {
				return err
			}
			if last != nil {
				parentID = &last.ID
			} else if info, ok := chat.Branches[chat.ActiveBranch]; ok {
				parentID = info.FromMessageID
			}
		}

		msg = &types.Message{
			ID:          uuid.NewString(),
			ChatID:      chatID,
			ParentID:    parentID,
			Branch:      chat.ActiveBranch,
			Role:        in.Role,
			Kind:        in.Kind,
			Content:     in.Content,
			ToolName:    in.ToolName,
			ToolParams:  in.ToolParams,
			ToolCallID:  in.ToolCallID,
			Attachments: in.Attachments,
			Sources:     in.Sources,
			Metadata:    in.Metadata,
		}
		if err := r.Messages.Create(ctx, msg); err != nil {
			return err
		}
		return r.Chats.RecordMessage(ctx, chatID, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(chatID, msg.Branch)
	return msg, nil
}

// HistoryQuery selects which branch view GetHistory returns
type HistoryQuery struct {
	Branch        string // empty means the active branch
	UptoMessageID string // walk parent links from this message instead
	Max           int    // keep only the newest Max messages
}

// GetHistory returns one branch view in chronological order, oldest
// first. With UptoMessageID the view is the parent chain of that
// message. Otherwise it is the chain of the branch's newest message,
// served from the hot cache when possible.
func (s *Service) GetHistory(ctx context.Context, chatID string, query HistoryQuery) ([]types.Message, error) {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if query.UptoMessageID != "" {
		msg, err := s.storage.Messages.Get(ctx, query.UptoMessageID)
		if err != nil {
			return nil, err
		}
		if msg.ChatID != chatID {
			return nil, errs.MessageNotFound(query.UptoMessageID)
		}
		history, err := s.storage.Messages.Chain(ctx, query.UptoMessageID)
		if err != nil {
			return nil, err
		}
		return tail(history, query.Max), nil
	}

	branch := query.Branch
	if branch == "" {
		branch = chat.ActiveBranch
	}

	if s.cache != nil {
		if history, ok := s.cache.GetHistory(chatID, branch); ok {
			return tail(history, query.Max), nil
		}
	}

	history, err := s.branchView(ctx, chat, branch)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetHistory(chatID, branch, history); err != nil {
			log.Warn("[Chat] cache history %s/%s: %s", chatID, branch, err.Error())
		}
	}
	return tail(history, query.Max), nil
}

// CreateBranch records a new branch forked at fromMessageID and makes
// it active
func (s *Service) CreateBranch(ctx context.Context, chatID string, name string, fromMessageID *string) (*types.Chat, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validation("branch name is required")
	}

	var chat *types.Chat
	err := s.storage.WithTx(ctx, func(r *storage.Repos) error {
		var err error
		chat, err = r.Chats.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if chat.HasBranch(name) {
			return errs.Validation("branch %q already exists in chat %s", name, chatID)
		}
		if fromMessageID != nil {
			msg, err := r.Messages.Get(ctx, *fromMessageID)
			if err != nil {
				return err
			}
			if msg.ChatID != chatID {
				return errs.MessageNotFound(*fromMessageID)
			}
		}
		chat.Branches[name] = types.BranchInfo{
			CreatedAt:     time.Now().UTC(),
			FromMessageID: fromMessageID,
		}
		chat.ActiveBranch = name
		return r.Chats.Update(ctx, chat)
	})
	if err != nil {
		return nil, err
	}

	log.Info("[Chat] %s branch %q created", chatID, name)
	return chat, nil
}

// SwitchBranch makes an existing branch the active one
func (s *Service) SwitchBranch(ctx context.Context, chatID string, name string) (*types.Chat, error) {
	var chat *types.Chat
	err := s.storage.WithTx(ctx, func(r *storage.Repos) error {
		var err error
		chat, err = r.Chats.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasBranch(name) {
			return errs.InvalidBranch(chatID, name)
		}
		if chat.ActiveBranch == name {
			return nil
		}
		chat.ActiveBranch = name
		return r.Chats.Update(ctx, chat)
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat soft-deletes a chat. Its messages disappear with it
// through the deletion filter.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.storage.Chats.SoftDelete(ctx, chatID); err != nil {
		return err
	}

	branches := make([]string, 0, len(chat.Branches))
	for name := range chat.Branches {
		branches = append(branches, name)
	}
	s.invalidate(chatID, branches...)

	log.Info("[Chat] deleted %s", chatID)
	return nil
}

// branchView resolves the linear view of one branch: the parent chain
// of its newest live message, or of its fork point when the branch has
// no messages yet.
func (s *Service) branchView(ctx context.Context, chat *types.Chat, branch string) ([]types.Message, error) {
	last, err := s.storage.Messages.LastInBranch(ctx, chat.ID, branch)
	if err != nil {
		return nil, err
	}

	leaf := ""
	if last != nil {
		leaf = last.ID
	} else if info, ok := chat.Branches[branch]; ok && info.FromMessageID != nil {
		leaf = *info.FromMessageID
	}
	if leaf == "" {
		return []types.Message{}, nil
	}
	return s.storage.Messages.Chain(ctx, leaf)
}

func (s *Service) titleFor(ctx context.Context, firstMessage string) string {
	if s.titler != nil {
		title, err := s.titler.GenerateTitle(ctx, firstMessage)
		if err != nil {
			log.Warn("[Chat] title generation failed: %s", err.Error())
		} else if title != "" {
			return clipTitle(title)
		}
	}
	return clipTitle(firstMessage)
}

func (s *Service) invalidate(chatID string, branches ...string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateHistory(chatID, branches...)
}

func clipTitle(title string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) > MaxTitleLength {
		return string(runes[:MaxTitleLength])
	}
	return title
}

func tail(history []types.Message, max int) []types.Message {
	if max > 0 && len(history) > max {
		return history[len(history)-max:]
	}
	return history
}
