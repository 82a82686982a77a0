package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"mooddiary/internal/app"
	"mooddiary/internal/ratelimit"
	"mooddiary/internal/usertoken"
	"mooddiary/internal/util"
	"mooddiary/pkg/analysis"
	"mooddiary/pkg/domain"
	"mooddiary/pkg/store"
)

type scriptedAnalyzer struct {
	reply string
	err   error
}

func (f *scriptedAnalyzer) Analyze(_ context.Context, diaryText string) (domain.AnalysisRecord, error) {
	if f.err != nil {
		return domain.AnalysisRecord{}, f.err
	}
	return analysis.DefaultRecord(diaryText), nil
}

func (f *scriptedAnalyzer) GenerateFollowup(_ context.Context, _ string, _ []domain.ConversationTurn, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestServer(t *testing.T, analyzer app.EmotionAnalyzer, cfg Config) *httptest.Server {
	t.Helper()
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: "test-secret-test-secret-test-1234"})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Analyzer: analyzer,
		Tokens:   tokens,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg.App = appCore
	cfg.Tokens = tokens
	srv := httptest.NewServer(New(cfg).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func registerUser(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register expected 201, got %d", resp.StatusCode)
	}
	var out authResponse
	decodeBody(t, resp, &out)
	if out.Token == "" {
		t.Fatalf("expected token in register response")
	}
	return out.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{})

	token := registerUser(t, srv, "alice")

	resp := do(t, http.MethodGet, srv.URL+"/api/users/me", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me expected 200, got %d", resp.StatusCode)
	}
	var me domain.User
	decodeBody(t, resp, &me)
	if me.Username != "alice" {
		t.Fatalf("unexpected user %+v", me)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/users/me", "not-a-token")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token expected 401, got %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/users/me", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate register expected 400, got %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "short",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong-pass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401, got %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/auth/login", "", map[string]string{
		"username": "alice", "password": "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}
	var out authResponse
	decodeBody(t, resp, &out)
	if out.Token == "" {
		t.Fatalf("expected token on login")
	}
}

func TestEntryLifecycle(t *testing.T) {
	analyzer := &scriptedAnalyzer{reply: "괜찮아요, 그런 날도 있어요. 내일은 더 나을 거예요."}
	srv := newTestServer(t, analyzer, Config{})
	token := registerUser(t, srv, "alice")

	resp := postJSON(t, srv.URL+"/api/entries", token, map[string]string{"text": "오늘은 날씨가 좋았다"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", resp.StatusCode)
	}
	var entry domain.DiaryEntry
	decodeBody(t, resp, &entry)
	if entry.ID == "" || len(entry.Conversations) != 1 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/entries/"+entry.ID, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/entries/"+entry.ID,
		bytes.NewReader([]byte(`{"text":"사실 힘든 하루였다"}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update expected 200, got %d", resp.StatusCode)
	}
	var updated domain.DiaryEntry
	decodeBody(t, resp, &updated)
	if updated.Text != "사실 힘든 하루였다" {
		t.Fatalf("expected updated text, got %q", updated.Text)
	}

	resp = postJSON(t, srv.URL+"/api/entries/"+entry.ID+"/reply", token, map[string]string{"message": "계속 우울해요"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reply expected 200, got %d", resp.StatusCode)
	}
	var replied replyResponse
	decodeBody(t, resp, &replied)
	if replied.AIResponse != analyzer.reply {
		t.Fatalf("unexpected reply %q", replied.AIResponse)
	}
	if len(replied.Conversations) != 3 {
		t.Fatalf("expected full conversation log in reply response, got %d turns", len(replied.Conversations))
	}
	last := replied.Conversations[len(replied.Conversations)-1]
	if last.Role != domain.RoleAssistant || last.Message != analyzer.reply {
		t.Fatalf("unexpected closing turn %+v", last)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/stats", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats expected 200, got %d", resp.StatusCode)
	}
	var stats app.Stats
	decodeBody(t, resp, &stats)
	if stats.TotalEntries != 1 || len(stats.Timeline) != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/api/entries/"+entry.ID, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/entries/"+entry.ID, token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete expected 404, got %d", resp.StatusCode)
	}
}

func TestEntriesScopedByOwner(t *testing.T) {
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{})
	tokenA := registerUser(t, srv, "alice")
	tokenB := registerUser(t, srv, "bob")

	resp := postJSON(t, srv.URL+"/api/entries", tokenA, map[string]string{"text": "비밀 일기"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", resp.StatusCode)
	}
	var entry domain.DiaryEntry
	decodeBody(t, resp, &entry)

	resp = do(t, http.MethodGet, srv.URL+"/api/entries", tokenA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list expected 200, got %d", resp.StatusCode)
	}
	var owned entryListResponse
	decodeBody(t, resp, &owned)
	if owned.Count != 1 || len(owned.Items) != 1 || owned.Items[0].ID != entry.ID {
		t.Fatalf("expected alice's entry listed, got %+v", owned)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/entries", tokenB)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list expected 200, got %d", resp.StatusCode)
	}
	var listing entryListResponse
	decodeBody(t, resp, &listing)
	if listing.Count != 0 || len(listing.Items) != 0 {
		t.Fatalf("expected no entries for bob, got %+v", listing)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/entries/"+entry.ID, tokenB)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign get expected 404, got %d", resp.StatusCode)
	}

	// anonymous requests see only the shared anonymous owner's entries
	resp = do(t, http.MethodGet, srv.URL+"/api/entries", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous list expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &listing)
	if listing.Count != 0 {
		t.Fatalf("expected no anonymous entries, got %+v", listing)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{})

	resp := postJSON(t, srv.URL+"/api/analyze", "", map[string]string{"text": "그냥 그런 하루"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze expected 200, got %d", resp.StatusCode)
	}
	var record domain.AnalysisRecord
	decodeBody(t, resp, &record)
	if record.Sentiment.Label != domain.SentimentNeutral {
		t.Fatalf("unexpected record %+v", record)
	}

	resp = postJSON(t, srv.URL+"/api/analyze", "", map[string]string{"text": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty text expected 422, got %d", resp.StatusCode)
	}
}

func TestInternalErrorsHidden(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)

	s.writeAppError(rec, req, fmt.Errorf("check username: %w", errors.New("disk I/O error")))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for storage failure, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk I/O") {
		t.Fatalf("expected internal detail hidden, got %s", rec.Body.String())
	}
}

func TestAnalyzeBackendDown(t *testing.T) {
	srv := newTestServer(t, &scriptedAnalyzer{err: errors.New("connection refused")}, Config{})

	resp := postJSON(t, srv.URL+"/api/analyze", "", map[string]string{"text": "텍스트"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 when model unreachable, got %d", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/entries", "", map[string]string{"text": "텍스트"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 on create when model unreachable, got %d", resp.StatusCode)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit:register", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{RegisterLimiter: limiter})

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
			"username": fmt.Sprintf("user%d", i),
			"email":    fmt.Sprintf("user%d@example.com", i),
			"password": "password1",
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("request %d expected 201, got %d", i, resp.StatusCode)
		}
	}
	resp := postJSON(t, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "user3", "email": "user3@example.com", "password": "password1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimitKeysByForwardedClient(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit:register", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	trusted, err := util.NewTrustedProxies([]string{"127.0.0.1"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	srv := newTestServer(t, &scriptedAnalyzer{}, Config{RegisterLimiter: limiter, TrustedProxies: trusted})

	register := func(username, forwardedFor string) int {
		body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password1"}`, username, username)
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/register", strings.NewReader(body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	// distinct forwarded clients get independent windows
	if code := register("maru", "203.0.113.5"); code != http.StatusCreated {
		t.Fatalf("first client expected 201, got %d", code)
	}
	if code := register("boro", "203.0.113.6"); code != http.StatusCreated {
		t.Fatalf("second client expected 201, got %d", code)
	}
	if code := register("dubu", "203.0.113.5"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat client expected 429, got %d", code)
	}
}
