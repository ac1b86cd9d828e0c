package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/chat"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// messageRequest is the body of message posts, SSE streams, and the
// frames a chat WebSocket client sends.
type messageRequest struct {
	Content     string                   `json:"content"`
	ParentID    *string                  `json:"parent_id"`
	Attachments []map[string]interface{} `json:"attachments"`
}

type chatCreateRequest struct {
	Title          string `json:"title"`
	InitialMessage string `json:"initial_message"`
}

type branchCreateRequest struct {
	BranchName    string  `json:"branch_name"`
	FromMessageID *string `json:"from_message_id"`
}

type branchSwitchRequest struct {
	BranchName string `json:"branch_name"`
}

func (s *Server) createChat(c *gin.Context) {
	var req chatCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("invalid chat payload: %s", err))
		return
	}

	created, err := s.chats.CreateChat(c.Request.Context(), req.Title, req.InitialMessage)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listChats(c *gin.Context) {
	page, pageSize, err := pagination(c)
	if err != nil {
		fail(c, err)
		return
	}

	chats, total, err := s.chats.List(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listPayload("chats", chats, total, page, pageSize))
}

func (s *Server) getChat(c *gin.Context) {
	id := c.Param("id")
	conversation, err := s.chats.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	messages, err := s.chats.GetHistory(c.Request.Context(), id, chat.HistoryQuery{})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chatDetail{Chat: conversation, Messages: messages})
}

// chatDetail is the single-chat view: the chat row plus the messages
// of its active branch.
type chatDetail struct {
	*types.Chat
	Messages []types.Message `json:"messages"`
}

func (s *Server) deleteChat(c *gin.Context) {
	if err := s.chats.DeleteChat(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// beginTurn validates and stores the user message, then assembles the
// model-facing history up to but excluding it.
func (s *Server) beginTurn(ctx context.Context, chatID string, req messageRequest) (*types.Message, []types.ChatMessage, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, nil, errs.Validation("message content must not be empty")
	}

	userMessage, err := s.chats.AddMessage(ctx, chatID, chat.AddMessageInput{
		Role:        types.RoleUser,
		Content:     req.Content,
		ParentID:    req.ParentID,
		Attachments: req.Attachments,
	})
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.chats.GetHistory(ctx, chatID, chat.HistoryQuery{UptoMessageID: userMessage.ID})
	if err != nil {
		return nil, nil, err
	}
	// The agent receives the user message separately.
	if n := len(messages); n > 0 {
		messages = messages[:n-1]
	}
	return userMessage, types.ToChatMessages(messages), nil
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("invalid message payload: %s", err))
		return
	}

	ctx := c.Request.Context()
	chatID := c.Param("id")

	userMessage, history, err := s.beginTurn(ctx, chatID, req)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := s.agent.Run(ctx, req.Content, history)
	if err != nil {
		fail(c, err)
		return
	}

	assistant, err := s.chats.AddMessage(ctx, chatID, chat.AddMessageInput{
		Role:     types.RoleAssistant,
		Content:  result.Response,
		ParentID: &userMessage.ID,
		Sources:  result.Sources,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assistant)
}

// relayTurn runs the agent over the stored history, forwards every
// event through send, and persists the assistant reply once a done
// event arrived. Turns that end without one leave no assistant message.
func (s *Server) relayTurn(ctx context.Context, chatID string, userMessage *types.Message, content string, history []types.ChatMessage, send func(types.StreamEvent) error) error {
	var response string
	var sources []types.Source
	finished := false

	err := s.agent.RunStream(ctx, content, history, func(event types.StreamEvent) error {
		if event.Event == types.EventDone {
			finished = true
			if text, ok := event.Data["response"].(string); ok {
				response = text
			}
			if cited, ok := event.Data["sources"].([]types.Source); ok {
				sources = cited
			}
		}
		return send(event)
	})
	if err != nil {
		return err
	}
	if !finished {
		return nil
	}

	_, err = s.chats.AddMessage(ctx, chatID, chat.AddMessageInput{
		Role:     types.RoleAssistant,
		Content:  response,
		ParentID: &userMessage.ID,
		Sources:  sources,
	})
	return err
}

func (s *Server) streamMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("invalid message payload: %s", err))
		return
	}

	ctx := c.Request.Context()
	chatID := c.Param("id")

	userMessage, history, err := s.beginTurn(ctx, chatID, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	write := func(event types.StreamEvent) error {
		payload, err := jsoniter.Marshal(event.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Event, payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := s.relayTurn(ctx, chatID, userMessage, req.Content, history, write); err != nil {
		log.Error("[API] stream %s: %s", chatID, err.Error())
		write(types.StreamEvent{
			Event: types.EventError,
			Data:  map[string]interface{}{"error": err.Error()},
		})
	}
}

func (s *Server) createBranch(c *gin.Context) {
	var req branchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("invalid branch payload: %s", err))
		return
	}
	if strings.TrimSpace(req.BranchName) == "" {
		fail(c, errs.Validation("branch_name must not be empty"))
		return
	}

	updated, err := s.chats.CreateBranch(c.Request.Context(), c.Param("id"), req.BranchName, req.FromMessageID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) switchBranch(c *gin.Context) {
	var req branchSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("invalid branch payload: %s", err))
		return
	}
	if strings.TrimSpace(req.BranchName) == "" {
		fail(c, errs.Validation("branch_name must not be empty"))
		return
	}

	updated, err := s.chats.SwitchBranch(c.Request.Context(), c.Param("id"), req.BranchName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) chatHistory(c *gin.Context) {
	maxMessages, err := queryInt(c, "max_messages", 0)
	if err != nil {
		fail(c, err)
		return
	}
	if raw := c.Query("max_messages"); raw != "" && (maxMessages < 1 || maxMessages > 100) {
		fail(c, errs.Validation("max_messages must be between 1 and 100"))
		return
	}

	messages, err := s.chats.GetHistory(c.Request.Context(), c.Param("id"), chat.HistoryQuery{
		Branch:        c.Query("branch"),
		UptoMessageID: c.Query("message_id"),
		Max:           maxMessages,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}
