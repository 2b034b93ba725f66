package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func loginAs(t *testing.T, r http.Handler, email, password string) string {
	t.Helper()
	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/users/login", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var info struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &info); err != nil || info.Token == "" {
		t.Fatalf("login token missing: %s", resp.Data)
	}
	return info.Token
}

func TestHealthzBypassesReadinessGate(t *testing.T) {
	prev := config.GetDB()
	config.SetDB(nil)
	t.Cleanup(func() { config.SetDB(prev) })

	r := newRouter(config.GetLogger())
	if w, _ := doRequest(t, r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/cosheet/list", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database is ready, got %d", w.Code)
	}
}

func TestRouter_AuthAndErrors(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	hashed, err := utils.HashPasswordString("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := db.Exec("UPDATE users SET password = ? WHERE id = ?", hashed, userID).Error; err != nil {
		t.Fatalf("set password: %v", err)
	}

	r := newRouter(config.GetLogger())

	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/cosheet/list", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodPost, "/api/v1/users/login", "", gin.H{"email": "asha@example.com", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	token := loginAs(t, r, "asha@example.com", "secret123")

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/users/me", token, nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}
	var me struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "asha@example.com" {
		t.Fatalf("unexpected me payload: %s", resp.Data)
	}
	if w.Header().Get("X-Correlation-Id") == "" {
		t.Fatalf("correlation id header missing")
	}

	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/analysis/daily?fromDate=2025-13-01&toDate=2025-01-01", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid range, got %d: %s", w.Code, w.Body.String())
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/analysis/target/abc", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad user id, got %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/analysis/target/1?dims=calls,bogus", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown dimension, got %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodPost, "/api/v1/users/add", token, gin.H{}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin, got %d", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodGet, "/api/v1/no-such-route", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouter_NotFoundKeepsMessage(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	hashed, _ := utils.HashPasswordString("secret123")
	db.Exec("UPDATE users SET password = ? WHERE id = ?", hashed, userID)

	r := newRouter(config.GetLogger())
	token := loginAs(t, r, "asha@example.com", "secret123")

	w, resp := doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/interviewanalysis/%d", userID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(resp.Error, "No analysis found for this user") {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestRouter_DailyAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	hashed, _ := utils.HashPasswordString("secret123")
	db.Exec("UPDATE users SET password = ? WHERE id = ?", hashed, userID)

	r := newRouter(config.GetLogger())
	token := loginAs(t, r, "asha@example.com", "secret123")

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/analysis/daily?fromDate=2025-03-01&toDate=2025-03-03", token, nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("daily analysis: status %d body %s", w.Code, w.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("empty daily analysis payload")
	}
}

func TestMailPubSubHandler_AcksMalformed(t *testing.T) {
	testutil.SetupDB(t, time.UTC)
	r := newRouter(config.GetLogger())

	req := httptest.NewRequest(http.MethodPost, "/pubsub", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("malformed envelope should be acked, got %d", w.Code)
	}

	// valid envelope, payload without an outbox id
	var env PubSubMessage
	env.Message.ID = "m-1"
	env.Message.Data = []byte(`{"kind":"jd"}`)
	body, _ := json.Marshal(env)
	req = httptest.NewRequest(http.MethodPost, "/pubsub", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("poisoned payload should be acked, got %d", w.Code)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example.com, ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("blank csv should give nil")
	}
}
