package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chatstream-backend/internal/cache"
	"github.com/yungbote/chatstream-backend/internal/data/repos"
	"github.com/yungbote/chatstream-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/http/middleware"
	"github.com/yungbote/chatstream-backend/internal/jobs/worker"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/tokenizer"
	"github.com/yungbote/chatstream-backend/internal/platform/zhipu"
	"github.com/yungbote/chatstream-backend/internal/services"
)

type scriptedLLM struct {
	deltas []string
	err    error
}

func (s *scriptedLLM) Model() string { return "scripted" }

func (s *scriptedLLM) StreamChat(ctx context.Context, history []types.ContextMessage, question string, onDelta func(string)) (string, error) {
	var b strings.Builder
	for _, d := range s.deltas {
		b.WriteString(d)
		onDelta(d)
	}
	return b.String(), s.err
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	auth   services.AuthService
	llm    *scriptedLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := logger.NewNop()

	users := repos.NewUserRepo(db, log)
	convs := repos.NewConversationRepo(db, log)
	turns := repos.NewTurnRepo(db, log)
	pool := worker.NewPool(0, log)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	llm := &scriptedLLM{}
	counter := tokenizer.CounterFunc(func(s string) int { return len(s) })
	chat := services.NewChatStreamService(
		log, convs, turns,
		services.NewContextBuilder(log, turns, counter, services.ContextBuilderConfig{ReserveTokens: services.DefaultReserveTokens}),
		cache.NewLocal(16, time.Hour, log),
		llm, pool, observability.NewMetrics(), services.ChatStreamConfig{},
	)
	auth := services.NewAuthService(log, "handler-secret", time.Hour)

	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(nil).HealthCheck)
	api := r.Group("/api")
	api.Use(middleware.NewAuthMiddleware(log, auth).RequireAuth())
	chatH := NewChatHandler(log, chat, time.Second)
	sessH := NewSessionHandler(services.NewSessionService(log, convs, turns))
	histH := NewHistoryHandler(services.NewHistoryService(log, turns, convs, users))
	api.GET("/chat/stream", chatH.Stream)
	api.POST("/chat/stream", chatH.StreamPost)
	api.GET("/chat/history", sessH.ChatHistory)
	api.POST("/sessions/new", sessH.Create)
	api.GET("/sessions", sessH.List)
	api.GET("/sessions/:id/messages", sessH.Messages)
	api.GET("/history", histH.List)

	return &testServer{router: r, db: db, auth: auth, llm: llm}
}

func (s *testServer) user(t *testing.T, name, role string) (*types.User, string) {
	t.Helper()
	u := testutil.SeedUser(t, context.Background(), s.db, name)
	u.Role = role
	tok, err := s.auth.IssueAccessToken(u)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return u, tok
}

func (s *testServer) do(t *testing.T, method, target, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *testServer, token string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sessions/new", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create session status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Session types.Conversation `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if out.Session.Name != types.DefaultConversationName {
		t.Fatalf("name=%q", out.Session.Name)
	}
	return out.Session.ID.String()
}

func TestChatStream_StreamsFrames(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.user(t, "ana", types.UserRoleUser)
	convID := createSession(t, s, tok)
	s.llm.deltas = []string{"Hi", " there"}

	rec := s.do(t, http.MethodGet, "/api/chat/stream?question=hello&sessionId="+convID, tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}
	want := "event: message\ndata: Hi\n\n" +
		"event: message\ndata:  there\n\n" +
		"event: done\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body=%q", rec.Body.String())
	}

	hist := s.do(t, http.MethodGet, "/api/chat/history?sessionId="+convID, tok, "")
	var msgs struct {
		Messages []services.TranscriptMessage `json:"messages"`
	}
	if err := json.Unmarshal(hist.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(msgs.Messages) != 2 || msgs.Messages[1].Content != "Hi there" {
		t.Fatalf("messages=%+v", msgs.Messages)
	}
}

func TestChatStream_PostBody(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.user(t, "ben", types.UserRoleUser)
	convID := createSession(t, s, tok)
	s.llm.deltas = []string{"line one\nline two"}

	rec := s.do(t, http.MethodPost, "/api/chat/stream", tok, `{"question":"q","sessionId":"`+convID+`"}`)
	want := "event: message\ndata: line one\ndata: line two\n\n" +
		"event: done\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestChatStream_RejectionsAreJSON(t *testing.T) {
	s := newTestServer(t)
	_, owner := s.user(t, "owner", types.UserRoleUser)
	_, other := s.user(t, "other", types.UserRoleUser)
	convID := createSession(t, s, owner)

	cases := []struct {
		name   string
		target string
		token  string
		status int
		code   string
	}{
		{"foreign conversation", "/api/chat/stream?question=hi&sessionId=" + convID, other, http.StatusNotFound, "invalid_conversation"},
		{"bad id", "/api/chat/stream?question=hi&sessionId=xyz", owner, http.StatusNotFound, "invalid_conversation"},
		{"blank question", "/api/chat/stream?question=%20&sessionId=" + convID, owner, http.StatusBadRequest, "invalid_question"},
		{"no token", "/api/chat/stream?question=hi&sessionId=" + convID, "", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tc.target, tc.token, "")
			if rec.Code != tc.status {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v body=%s", err, rec.Body.String())
			}
			if env.Error.Code != tc.code {
				t.Fatalf("code=%q want=%q", env.Error.Code, tc.code)
			}
		})
	}
}

func TestChatStream_UpstreamFailureIsErrorFrame(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.user(t, "cai", types.UserRoleUser)
	convID := createSession(t, s, tok)
	s.llm.err = &zhipu.HTTPError{StatusCode: http.StatusTooManyRequests}

	rec := s.do(t, http.MethodGet, "/api/chat/stream?question=hi&sessionId="+convID, tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: error\ndata: ") || !strings.Contains(body, `"code":"llm_unavailable"`) {
		t.Fatalf("body=%q", body)
	}
	if strings.Contains(body, "event: done") {
		t.Fatalf("done after error: %q", body)
	}
}

func TestSessions_ListAndOwnership(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.user(t, "alice", types.UserRoleUser)
	_, bob := s.user(t, "bob", types.UserRoleUser)
	convID := createSession(t, s, alice)

	rec := s.do(t, http.MethodGet, "/api/sessions", alice, "")
	var list struct {
		Sessions []types.Conversation `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID.String() != convID {
		t.Fatalf("sessions=%+v", list.Sessions)
	}

	if rec := s.do(t, http.MethodGet, "/api/sessions/"+convID+"/messages", bob, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign messages status=%d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/sessions/nope/messages", alice, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rec.Code)
	}
}

func TestHistory_AdminFilter(t *testing.T) {
	s := newTestServer(t)
	alice, aliceTok := s.user(t, "alice", types.UserRoleUser)
	_, adminTok := s.user(t, "root", types.UserRoleAdmin)
	convID := createSession(t, s, aliceTok)
	s.llm.deltas = []string{"answer"}
	s.do(t, http.MethodGet, "/api/chat/stream?question=hi&sessionId="+convID, aliceTok, "")

	rec := s.do(t, http.MethodGet, "/api/history?userId="+alice.ID.String(), adminTok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var page services.HistoryPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Username != "alice" || page.Items[0].Answer != "answer" {
		t.Fatalf("page=%+v", page)
	}

	if rec := s.do(t, http.MethodGet, "/api/history?userId="+uuid.NewString(), aliceTok, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin filter status=%d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/history?page=x", aliceTok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad page status=%d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", NewHealthHandler(nil).HealthCheck)
	r.GET("/down", NewHealthHandler(func(context.Context) error { return errors.New("db down") }).HealthCheck)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("ok: %d %q", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("down: %d", rec.Code)
	}
}
