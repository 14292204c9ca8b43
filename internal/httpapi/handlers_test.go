package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voice-agent-platform/internal/agents"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/calls"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/prompt"
	"voice-agent-platform/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	content string
	err     error
}

func (f fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

// failingRepo wraps the memory repo and fails inserts.
type failingRepo struct {
	*agents.MemoryRepo
	err error
}

func (r failingRepo) Insert(ctx context.Context, a agents.Agent) error { return r.err }

type env struct {
	h      Handlers
	agents *agents.MemoryRepo
	calls  *calls.MemoryRepo
}

func newEnv(t *testing.T) env {
	t.Helper()
	agentRepo := agents.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return env{
		h: Handlers{
			Auth:       m,
			Agents:     agents.NewService(agentRepo, nil, nil),
			Calls:      callRepo,
			Translator: prompt.NewTranslator(fakeChat{content: `{"agent_name":"Front Desk","agent_type":"receptionist"}`}, ""),
			Reports:    reporting.NewService(reporting.NewStoreRepo(agentRepo, callRepo)),
		},
		agents: agentRepo,
		calls:  callRepo,
	}
}

func as(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role))
		c.Next()
	}
}

func (e env) router(userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/token", e.h.IssueToken)
	r.POST("/api/auth/refresh", e.h.RefreshToken)

	api := r.Group("/api", as(userID, role))
	api.POST("/parse-prompt", e.h.ParsePrompt)
	api.POST("/create-agent", e.h.CreateAgent)
	api.GET("/agents", e.h.ListAgents)
	api.GET("/agents/:id", e.h.GetAgent)
	api.GET("/agents/slug/:slug", e.h.GetAgentBySlug)
	api.PATCH("/agents/:id/status", e.h.SetAgentStatus)
	api.POST("/agents/:id/provision", e.h.ProvisionAgent)
	api.DELETE("/agents/:id", e.h.DeleteAgent)
	api.GET("/agents/:id/calls", e.h.ListAgentCalls)
	api.GET("/calls", e.h.ListCalls)
	api.GET("/dashboard/stats", e.h.DashboardStats)
	api.GET("/reports/calls", e.h.CallsSummary)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (e env) createAgent(t *testing.T, userID, name string) agents.Agent {
	t.Helper()
	a, err := e.h.Agents.ForUser(userID).Create(context.Background(), agents.CreateRequest{UserID: userID, Config: agents.Config{"agent_name": name}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestCreateAgent(t *testing.T) {
	e := newEnv(t)
	r := e.router("u1", "user")

	w := do(r, http.MethodPost, "/api/create-agent", `{"config":{"agent_name":"Front Desk"},"userId":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	agent, _ := body["agent"].(map[string]any)
	if body["success"] != true || agent["name"] != "Front Desk" || agent["status"] != "draft" || agent["id"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(agent) != 3 {
		t.Fatalf("expected only id, name, status; got %v", agent)
	}

	w = do(r, http.MethodPost, "/api/create-agent", `{"config":{},"userId":"u1","deploy":true}`)
	agent, _ = decode(t, w)["agent"].(map[string]any)
	if agent["name"] != "Untitled Agent" || agent["status"] != "deploying" {
		t.Fatalf("unexpected fallback agent %v", agent)
	}
}

func TestCreateAgent_Validation(t *testing.T) {
	e := newEnv(t)
	r := e.router("u1", "user")

	for _, body := range []string{`{"userId":"u1"}`, `{"config":{"agent_name":"x"}}`, `{"config":null,"userId":"u1"}`, `nope`} {
		w := do(r, http.MethodPost, "/api/create-agent", body)
		if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "Config and userId required" {
			t.Fatalf("%s: expected 400, got %d %s", body, w.Code, w.Body.String())
		}
	}

	w := do(r, http.MethodPost, "/api/create-agent", `{"config":{},"userId":"u2"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign userId, got %d", w.Code)
	}

	w = do(e.router("", "service"), http.MethodPost, "/api/create-agent", `{"config":{},"userId":"u2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected service caller to create for any user, got %d", w.Code)
	}
}

func TestCreateAgent_StoreErrorSurfacesMessage(t *testing.T) {
	e := newEnv(t)
	e.h.Agents = agents.NewService(failingRepo{MemoryRepo: e.agents, err: errors.New("duplicate key value")}, nil, nil)

	w := do(e.router("u1", "user"), http.MethodPost, "/api/create-agent", `{"config":{},"userId":"u1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg, _ := decode(t, w)["error"].(string); !strings.Contains(msg, "duplicate key value") {
		t.Fatalf("expected store message, got %q", msg)
	}
}

func TestParsePrompt(t *testing.T) {
	e := newEnv(t)
	r := e.router("u1", "user")

	w := do(r, http.MethodPost, "/api/parse-prompt", `{"prompt":"A receptionist for a dental office"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	cfg, _ := body["config"].(map[string]any)
	meta, _ := cfg["_meta"].(map[string]any)
	if body["success"] != true || cfg["agent_name"] != "Front Desk" || meta["original_prompt"] != "A receptionist for a dental office" {
		t.Fatalf("unexpected body %v", body)
	}

	w = do(r, http.MethodPost, "/api/parse-prompt", `{"prompt":""}`)
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "Prompt is required" {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestParsePrompt_Failures(t *testing.T) {
	e := newEnv(t)
	e.h.Translator = prompt.NewTranslator(nil, "")
	w := do(e.router("u1", "user"), http.MethodPost, "/api/parse-prompt", `{"prompt":"x"}`)
	body := decode(t, w)
	if w.Code != http.StatusInternalServerError || body["success"] != false || body["error"] != "OpenAI API key not configured" {
		t.Fatalf("unexpected not-configured response %d %v", w.Code, body)
	}

	e.h.Translator = prompt.NewTranslator(fakeChat{err: errors.New("rate limited")}, "")
	w = do(e.router("u1", "user"), http.MethodPost, "/api/parse-prompt", `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "rate limited") {
		t.Fatalf("unexpected upstream failure response %d %s", w.Code, w.Body.String())
	}

	e.h.Translator = prompt.NewTranslator(fakeChat{content: "not json"}, "")
	w = do(e.router("u1", "user"), http.MethodPost, "/api/parse-prompt", `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on malformed model output, got %d", w.Code)
	}
}

func TestAgents_OwnershipIsolation(t *testing.T) {
	e := newEnv(t)
	mine := e.createAgent(t, "u1", "Mine")
	theirs := e.createAgent(t, "u2", "Theirs")
	r := e.router("u1", "user")

	if w := do(r, http.MethodGet, "/api/agents/"+mine.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("expected own agent, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/agents/"+theirs.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign agent, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/agents/slug/"+theirs.Slug, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign slug, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/agents/"+theirs.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting foreign agent, got %d", w.Code)
	}

	w := do(r, http.MethodGet, "/api/agents?userId=u2", "")
	list, _ := decode(t, w)["agents"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["id"] != mine.ID {
		t.Fatalf("user listing must ignore userId override, got %v", list)
	}

	w = do(e.router("admin-1", "admin"), http.MethodGet, "/api/agents?userId=u2", "")
	list, _ = decode(t, w)["agents"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["id"] != theirs.ID {
		t.Fatalf("admin listing should honour userId, got %v", list)
	}
}

func TestAgents_StatusProvisionDelete(t *testing.T) {
	e := newEnv(t)
	a := e.createAgent(t, "u1", "Front Desk")
	r := e.router("u1", "user")

	w := do(r, http.MethodPatch, "/api/agents/"+a.ID+"/status", `{"status":"paused"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPatch, "/api/agents/"+a.ID+"/status", `{"status":"live"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	svc := e.router("", "service")
	w = do(svc, http.MethodPost, "/api/agents/"+a.ID+"/provision", `{"phone_number":"+15550001111","elevenlabs_agent_id":"el_1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got, _ := decode(t, w)["agent"].(map[string]any)
	if got["status"] != "active" || got["elevenlabs_agent_id"] != "el_1" {
		t.Fatalf("unexpected provisioned agent %v", got)
	}

	b := e.createAgent(t, "u1", "Second")
	w = do(svc, http.MethodPost, "/api/agents/"+b.ID+"/provision", `{"elevenlabs_agent_id":"el_1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused external id, got %d", w.Code)
	}

	if w := do(r, http.MethodDelete, "/api/agents/"+a.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/agents/"+a.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected deleted agent hidden, got %d", w.Code)
	}
}

func TestCalls_ListingWithAgentInfo(t *testing.T) {
	e := newEnv(t)
	a := e.createAgent(t, "u1", "Front Desk")
	other := e.createAgent(t, "u2", "Other")
	now := time.Now().UTC()
	for i, c := range []calls.Call{
		{ID: "c1", AgentID: a.ID, Status: calls.StatusCompleted, DurationSecs: 60, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "c2", AgentID: a.ID, Status: calls.StatusCompleted, DurationSecs: 30, CreatedAt: now.Add(-time.Minute)},
		{ID: "c3", AgentID: other.ID, Status: calls.StatusCompleted, CreatedAt: now},
	} {
		if err := e.calls.Insert(context.Background(), c); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	r := e.router("u1", "user")

	w := do(r, http.MethodGet, "/api/calls?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	list, _ := decode(t, w)["calls"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(list))
	}
	first := list[0].(map[string]any)
	agent, _ := first["agent"].(map[string]any)
	if first["id"] != "c2" || agent["name"] != "Front Desk" {
		t.Fatalf("unexpected first call %v", first)
	}

	w = do(r, http.MethodGet, "/api/agents/"+a.ID+"/calls?limit=1", "")
	list, _ = decode(t, w)["calls"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected limit applied, got %d", len(list))
	}
	if w := do(r, http.MethodGet, "/api/agents/"+other.ID+"/calls", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign agent calls, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/calls?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/dashboard/stats", "")
	stats := decode(t, w)
	if stats["total_agents"] != float64(1) || stats["total_calls"] != float64(2) || stats["total_minutes"] != 1.5 || stats["calls_this_week"] != float64(2) {
		t.Fatalf("unexpected stats %v", stats)
	}

	w = do(r, http.MethodGet, "/api/reports/calls?agentId="+a.ID, "")
	summary := decode(t, w)
	if w.Code != http.StatusOK || summary["completed_calls"] != float64(2) {
		t.Fatalf("unexpected summary %d %v", w.Code, summary)
	}
	if w := do(r, http.MethodGet, "/api/reports/calls?from=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", w.Code)
	}
}

func TestAuth_IssueAndRefresh(t *testing.T) {
	e := newEnv(t)
	r := e.router("", "service")

	w := do(r, http.MethodPost, "/api/auth/token", `{"user_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pair := decode(t, w)
	access, _ := pair["access_token"].(string)
	refresh, _ := pair["refresh_token"].(string)
	claims, err := e.h.Auth.Verify(access, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.UserID != "u1" || claims.Role != "user" {
		t.Fatalf("unexpected access token: %+v %v", claims, err)
	}

	w = do(r, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+access+`"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected access token rejected as refresh, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/auth/token", `{"user_id":"u1","role":"service"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected service role refused, got %d", w.Code)
	}
}
