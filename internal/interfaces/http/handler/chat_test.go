package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appChat "github.com/aimaestro/backend/internal/application/chat"
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/storage"
)

func newChatHandlerFixture(t *testing.T) (*ChatHandler, *appChat.SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.OpenDB(&config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := appChat.NewSessionStore(
		storage.NewConversationRepository(db),
		storage.NewMessageRepository(db),
	)
	return NewChatHandler(nil, sessions, nil, nil), sessions
}

func endRequest(t *testing.T, h *ChatHandler, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+token+"/end", strings.NewReader(body))
	c.Params = gin.Params{{Key: "token", Value: token}}
	h.End(c)
	return w
}

func TestEndAcceptsEmptyBody(t *testing.T) {
	h, sessions := newChatHandlerFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)

	// rating/feedback 都可选，不带请求体也能结束会话
	w := endRequest(t, h, conv.SessionToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	ended, err := sessions.GetByToken(ctx, conv.SessionToken)
	require.NoError(t, err)
	assert.True(t, ended.Ended())
}

func TestEndRejectsMalformedBody(t *testing.T) {
	h, sessions := newChatHandlerFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)

	// 截断的 JSON 仍然是 400，空体宽容不等于不校验
	w := endRequest(t, h, conv.SessionToken, "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	still, err := sessions.GetByToken(ctx, conv.SessionToken)
	require.NoError(t, err)
	assert.False(t, still.Ended())
}

func TestEndRejectsOutOfRangeRating(t *testing.T) {
	h, sessions := newChatHandlerFixture(t)
	ctx := context.Background()

	conv, _, err := sessions.ResolveOrCreate(ctx, "", 1, "web", "", nil)
	require.NoError(t, err)

	w := endRequest(t, h, conv.SessionToken, `{"rating": 6}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndUnknownTokenNotFound(t *testing.T) {
	h, _ := newChatHandlerFixture(t)

	w := endRequest(t, h, "no-such-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
