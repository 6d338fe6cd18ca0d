package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-bot/internal/config"
	"community-bot/internal/service"
)

type stubStatus bool

func (s stubStatus) Ready() bool { return bool(s) }

type stubWelcome struct {
	members []service.NewMember
	queued  []int64
	err     error
}

func (w *stubWelcome) NewMembers(context.Context) ([]service.NewMember, error) {
	return w.members, w.err
}

func (w *stubWelcome) Enqueue(_ context.Context, userID int64) (bool, error) {
	if w.err != nil {
		return false, w.err
	}
	for _, id := range w.queued {
		if id == userID {
			return false, nil
		}
	}
	w.queued = append(w.queued, userID)
	return true, nil
}

type stubDB struct{ err error }

func (d stubDB) Ping(context.Context) error { return d.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(deps Deps) *Server {
	return New(config.DashboardConfig{Addr: ":0", AllowedOrigins: []string{"http://localhost:5173"}}, deps)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: &stubWelcome{}})
	w := do(t, s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"logged_in":true,"missing_config":[]}`, w.Body.String())

	s = newTestServer(Deps{MissingConfig: []string{"bot.token"}})
	w = do(t, s, http.MethodGet, "/api/status")
	assert.JSONEq(t, `{"logged_in":false,"missing_config":["bot.token"]}`, w.Body.String())
}

func TestNewMembers(t *testing.T) {
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	welcome := &stubWelcome{members: []service.NewMember{{
		ID:           123456789012345678,
		Name:         "newbie",
		DisplayName:  "Newbie",
		JoinedAt:     joined,
		MessageCount: 4,
	}}}
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: welcome})

	w := do(t, s, http.MethodGet, "/api/welcome-wagon/new-members")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{
		"id": "123456789012345678",
		"name": "newbie",
		"display_name": "Newbie",
		"joined_at": "2024-05-01T12:00:00Z",
		"message_count": 4
	}]`, w.Body.String())
}

func TestNewMembersEmptyIsArray(t *testing.T) {
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: &stubWelcome{}})
	w := do(t, s, http.MethodGet, "/api/welcome-wagon/new-members")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestWelcomeWagonUnavailableWithoutBot(t *testing.T) {
	s := newTestServer(Deps{MissingConfig: []string{"bot.token"}})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/welcome-wagon/new-members"},
		{http.MethodPost, "/api/welcome-wagon/graduate/1"},
		{http.MethodPost, "/graduate/1"},
	} {
		w := do(t, s, tc.method, tc.path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
	}
}

func TestGraduate(t *testing.T) {
	welcome := &stubWelcome{}
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: welcome})

	w := do(t, s, http.MethodPost, "/api/welcome-wagon/graduate/42")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"queued":true}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/welcome-wagon/graduate/42")
	assert.JSONEq(t, `{"queued":false}`, w.Body.String())
	assert.Equal(t, []int64{42}, welcome.queued)

	w = do(t, s, http.MethodPost, "/api/welcome-wagon/graduate/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGraduateFormRedirects(t *testing.T) {
	welcome := &stubWelcome{}
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: welcome})

	w := do(t, s, http.MethodPost, "/graduate/7")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, []int64{7}, welcome.queued)
}

func TestGraduateStoreError(t *testing.T) {
	s := newTestServer(Deps{Status: stubStatus(true), Welcome: &stubWelcome{err: errors.New("db down")}})
	w := do(t, s, http.MethodPost, "/api/welcome-wagon/graduate/42")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(Deps{DB: stubDB{}})
	w := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	s = newTestServer(Deps{DB: stubDB{err: errors.New("refused")}})
	w = do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "refused", body["error"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(Deps{})
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(config.DashboardConfig{Addr: "127.0.0.1:0"}, Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop")
	}
}
