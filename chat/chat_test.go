package chat

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/types"
)

type fakeTitler struct {
	title string
	err   error
	calls int
}

func (f *fakeTitler) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	f.calls++
	return f.title, f.err
}

// testService connects to the database named by POSTGRES_TEST_URL and
// starts from empty tables. Tests skip when the variable is unset.
func testService(t *testing.T, titler Titler, cache *store.Cache) (*Service, *storage.Storage) {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	s, err := storage.New(context.Background(), storage.Options{DatabaseURL: url, Dimension: 768})
	require.Nil(t, err)
	t.Cleanup(s.Close)

	_, err = s.Pool().Exec(context.Background(), "TRUNCATE chats CASCADE")
	require.Nil(t, err)

	service, err := New(Options{Storage: s, Cache: cache, Titler: titler})
	require.Nil(t, err)
	return service, s
}

func testCache(t *testing.T) *store.Cache {
	t.Helper()
	kv, err := store.New(store.Options{Backend: store.BackendLRU, Size: 256})
	require.Nil(t, err)
	return store.NewCache(kv, store.CacheOptions{})
}

// addText appends a plain message and spaces creations apart so branch
// ordering by timestamp is deterministic
func addText(t *testing.T, service *Service, chatID string, role types.Role, content string) *types.Message {
	t.Helper()
	msg, err := service.AddMessage(context.Background(), chatID, AddMessageInput{Role: role, Content: content})
	require.Nil(t, err)
	time.Sleep(2 * time.Millisecond)
	return msg
}

func contents(messages []types.Message) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.Content)
	}
	return out
}

func TestCreateChatGeneratesTitle(t *testing.T) {
	titler := &fakeTitler{title: "Deadline Questions"}
	service, _ := testService(t, titler, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "", "When is the deadline for the report?")
	require.Nil(t, err)

	assert.Equal(t, "Deadline Questions", chat.Title)
	assert.Equal(t, 1, titler.calls)
	assert.Equal(t, types.DefaultBranch, chat.ActiveBranch)
	assert.True(t, chat.HasBranch(types.DefaultBranch))
	assert.Equal(t, 1, chat.MessageCount)
	require.NotNil(t, chat.LastMessageAt)

	history, err := service.GetHistory(ctx, chat.ID, HistoryQuery{})
	require.Nil(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, "When is the deadline for the report?", history[0].Content)
	assert.Nil(t, history[0].ParentID)
}

func TestCreateChatTitleFallback(t *testing.T) {
	titler := &fakeTitler{err: assert.AnError}
	service, _ := testService(t, titler, nil)

	first := strings.Repeat("the same question over and over ", 8)
	chat, err := service.CreateChat(context.Background(), "", first)
	require.Nil(t, err)

	assert.Equal(t, MaxTitleLength, len([]rune(chat.Title)))
	assert.True(t, strings.HasPrefix(first, chat.Title))
}

func TestCreateChatKeepsExplicitTitle(t *testing.T) {
	titler := &fakeTitler{title: "ignored"}
	service, _ := testService(t, titler, nil)

	chat, err := service.CreateChat(context.Background(), "Planning", "hello")
	require.Nil(t, err)

	assert.Equal(t, "Planning", chat.Title)
	assert.Equal(t, 0, titler.calls)

	// No initial message means no message row and no title call
	empty, err := service.CreateChat(context.Background(), "", "")
	require.Nil(t, err)
	assert.Empty(t, empty.Title)
	assert.Equal(t, 0, empty.MessageCount)
	assert.Equal(t, 0, titler.calls)
}

func TestBranchFork(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "fork", "")
	require.Nil(t, err)

	m1 := addText(t, service, chat.ID, types.RoleUser, "m1")
	m2 := addText(t, service, chat.ID, types.RoleAssistant, "m2")
	m3 := addText(t, service, chat.ID, types.RoleUser, "m3")
	m4 := addText(t, service, chat.ID, types.RoleAssistant, "m4")

	// Parent linkage follows the branch tip
	assert.Nil(t, m1.ParentID)
	require.NotNil(t, m2.ParentID)
	assert.Equal(t, m1.ID, *m2.ParentID)
	require.NotNil(t, m4.ParentID)
	assert.Equal(t, m3.ID, *m4.ParentID)

	forked, err := service.CreateBranch(ctx, chat.ID, "alt", &m2.ID)
	require.Nil(t, err)
	assert.Equal(t, "alt", forked.ActiveBranch)
	require.True(t, forked.HasBranch("alt"))
	require.NotNil(t, forked.Branches["alt"].FromMessageID)
	assert.Equal(t, m2.ID, *forked.Branches["alt"].FromMessageID)

	// An unwritten branch still shows its ancestry up to the fork point
	view, err := service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: "alt"})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1", "m2"}, contents(view))

	// The first message after the fork gets the fork point as parent
	m5 := addText(t, service, chat.ID, types.RoleUser, "m5")
	require.NotNil(t, m5.ParentID)
	assert.Equal(t, m2.ID, *m5.ParentID)
	assert.Equal(t, "alt", m5.Branch)

	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: "alt"})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1", "m2", "m5"}, contents(view))

	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: "main"})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, contents(view))

	// The active branch view is the alt view now
	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1", "m2", "m5"}, contents(view))

	_ = m4
}

func TestGetHistoryUptoMessage(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "walk", "")
	require.Nil(t, err)

	addText(t, service, chat.ID, types.RoleUser, "m1")
	addText(t, service, chat.ID, types.RoleAssistant, "m2")
	m3 := addText(t, service, chat.ID, types.RoleUser, "m3")
	addText(t, service, chat.ID, types.RoleAssistant, "m4")

	view, err := service.GetHistory(ctx, chat.ID, HistoryQuery{UptoMessageID: m3.ID})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, contents(view))

	// Max keeps only the newest messages
	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{Max: 2})
	require.Nil(t, err)
	assert.Equal(t, []string{"m3", "m4"}, contents(view))

	// Messages of another chat are not reachable
	other, err := service.CreateChat(ctx, "other", "")
	require.Nil(t, err)
	_, err = service.GetHistory(ctx, other.ID, HistoryQuery{UptoMessageID: m3.ID})
	assert.True(t, errs.IsKind(err, errs.KindMessageNotFound))
}

func TestSwitchBranch(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "switch", "")
	require.Nil(t, err)

	_, err = service.SwitchBranch(ctx, chat.ID, "missing")
	assert.True(t, errs.IsKind(err, errs.KindInvalidBranch))

	m1 := addText(t, service, chat.ID, types.RoleUser, "m1")
	_, err = service.CreateBranch(ctx, chat.ID, "alt", &m1.ID)
	require.Nil(t, err)

	back, err := service.SwitchBranch(ctx, chat.ID, types.DefaultBranch)
	require.Nil(t, err)
	assert.Equal(t, types.DefaultBranch, back.ActiveBranch)

	// Switching to the current branch changes nothing
	same, err := service.SwitchBranch(ctx, chat.ID, types.DefaultBranch)
	require.Nil(t, err)
	assert.Equal(t, types.DefaultBranch, same.ActiveBranch)
}

func TestCreateBranchValidation(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "branches", "")
	require.Nil(t, err)

	_, err = service.CreateBranch(ctx, chat.ID, "  ", nil)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = service.CreateBranch(ctx, chat.ID, types.DefaultBranch, nil)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	other, err := service.CreateChat(ctx, "other", "")
	require.Nil(t, err)
	m1 := addText(t, service, other.ID, types.RoleUser, "m1")

	_, err = service.CreateBranch(ctx, chat.ID, "alt", &m1.ID)
	assert.True(t, errs.IsKind(err, errs.KindMessageNotFound))
}

func TestDeleteChat(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "gone", "hello")
	require.Nil(t, err)

	require.Nil(t, service.DeleteChat(ctx, chat.ID))

	_, err = service.Get(ctx, chat.ID)
	assert.True(t, errs.IsKind(err, errs.KindChatNotFound))

	_, err = service.AddMessage(ctx, chat.ID, AddMessageInput{Role: types.RoleUser, Content: "late"})
	assert.True(t, errs.IsKind(err, errs.KindChatNotFound))

	// Repeating the delete has no further effect
	err = service.DeleteChat(ctx, chat.ID)
	assert.True(t, errs.IsKind(err, errs.KindChatNotFound))
}

func TestHistoryHotCache(t *testing.T) {
	cache := testCache(t)
	service, s := testService(t, nil, cache)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "cached", "")
	require.Nil(t, err)
	addText(t, service, chat.ID, types.RoleUser, "m1")

	view, err := service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: types.DefaultBranch})
	require.Nil(t, err)
	require.Len(t, view, 1)

	// A write that bypasses the service is invisible while the cached
	// view is live
	sneaked := &types.Message{
		ID:      "99999999-9999-4999-8999-999999999999",
		ChatID:  chat.ID,
		Branch:  types.DefaultBranch,
		Role:    types.RoleUser,
		Content: "sneaked",
	}
	require.Nil(t, s.Messages.Create(ctx, sneaked))

	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: types.DefaultBranch})
	require.Nil(t, err)
	assert.Equal(t, []string{"m1"}, contents(view))

	// AddMessage invalidates the branch view
	addText(t, service, chat.ID, types.RoleAssistant, "m2")
	view, err = service.GetHistory(ctx, chat.ID, HistoryQuery{Branch: types.DefaultBranch})
	require.Nil(t, err)
	assert.Contains(t, contents(view), "m2")
}

func TestAddMessageValidation(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "strict", "")
	require.Nil(t, err)

	_, err = service.AddMessage(ctx, chat.ID, AddMessageInput{Content: "no role"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = service.AddMessage(ctx, "00000000-0000-4000-8000-000000000000",
		AddMessageInput{Role: types.RoleUser, Content: "orphan"})
	assert.True(t, errs.IsKind(err, errs.KindChatNotFound))
}

func TestAddMessageSources(t *testing.T) {
	service, _ := testService(t, nil, nil)
	ctx := context.Background()

	chat, err := service.CreateChat(ctx, "sourced", "")
	require.Nil(t, err)

	toolName := "rag_search"
	msg, err := service.AddMessage(ctx, chat.ID, AddMessageInput{
		Role:     types.RoleAssistant,
		Content:  "The deadline is December 15th [Source 1].",
		Kind:     types.MessageKindText,
		ToolName: &toolName,
		Sources: []types.Source{
			{Index: 1, Document: "plan.pdf", Page: intPtr(3), Similarity: float64Ptr(0.91)},
		},
	})
	require.Nil(t, err)

	view, err := service.GetHistory(ctx, chat.ID, HistoryQuery{})
	require.Nil(t, err)
	require.Len(t, view, 1)
	require.Len(t, view[0].Sources, 1)
	assert.Equal(t, "plan.pdf", view[0].Sources[0].Document)
	require.NotNil(t, view[0].Sources[0].Page)
	assert.Equal(t, 3, *view[0].Sources[0].Page)
	require.NotNil(t, view[0].ToolName)
	assert.Equal(t, "rag_search", *view[0].ToolName)
	_ = msg
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }
