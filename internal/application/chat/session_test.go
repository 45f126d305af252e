package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainChat "github.com/aimaestro/backend/internal/domain/chat"
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/storage"
)

func newSessionFixture(t *testing.T) *SessionStore {
	t.Helper()

	db, err := storage.OpenDB(&config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSessionStore(
		storage.NewConversationRepository(db),
		storage.NewMessageRepository(db),
	)
}

func TestResolveOrCreateMintsToken(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	conv, created, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "user-1", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, conv.SessionToken)
	assert.True(t, conv.IsActive)

	// 同一 token 解析回同一会话，不新建
	again, created2, err := sessions.ResolveOrCreate(ctx, conv.SessionToken, 1, "web", "user-1", nil)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestResolveOrCreateKeepsEndedConversation(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)
	require.NoError(t, sessions.End(ctx, conv.SessionToken, nil, ""))

	// 已结束的会话也按原样返回，由编排器决定拒绝
	resolved, created, err := sessions.ResolveOrCreate(ctx, conv.SessionToken, 1, "web", "", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, resolved.Ended())
}

func TestHistoryOrdering(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		role := domainChat.RoleUser
		if i%2 == 1 {
			role = domainChat.RoleAssistant
		}
		_, err := sessions.AppendMessage(ctx, conv.ID, role, fmt.Sprintf("msg-%d", i), nil)
		require.NoError(t, err)
	}

	history, err := sessions.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)

	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	sessions := newSessionFixture(t)
	_, err := sessions.AppendMessage(context.Background(), 999, domainChat.RoleUser, "x", nil)
	assert.ErrorIs(t, err, domainChat.ErrConversationNotFound)
}

func TestEndFirstCallWins(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)

	rating := 5
	require.NoError(t, sessions.End(ctx, conv.SessionToken, &rating, "great"))

	first, err := sessions.GetByToken(ctx, conv.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, first.EndedAt)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 5, *first.Rating)
	assert.Equal(t, "great", first.Feedback)
	assert.False(t, first.IsActive)

	// 第二次结束是静默空操作，时间戳和评分保持第一次的值
	time.Sleep(1100 * time.Millisecond)
	worse := 1
	require.NoError(t, sessions.End(ctx, conv.SessionToken, &worse, "changed my mind"))

	second, err := sessions.GetByToken(ctx, conv.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, first.EndedAt.Unix(), second.EndedAt.Unix())
	assert.Equal(t, 5, *second.Rating)
	assert.Equal(t, "great", second.Feedback)
}

func TestEndUnknownToken(t *testing.T) {
	sessions := newSessionFixture(t)
	err := sessions.End(context.Background(), "no-such-token", nil, "")
	assert.ErrorIs(t, err, domainChat.ErrConversationNotFound)
}
