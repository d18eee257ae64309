package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/transport"
)

type fakeSessions struct{}

func (fakeSessions) Sessions() []transport.SessionInfo {
	return []transport.SessionInfo{{PeerHash: data.DigestHash([]byte("a")), Transport: "NTCP"}}
}

func (fakeSessions) Addresses() []data.RouterAddress { return nil }

func newTestController(t *testing.T) *Controller {
	t.Helper()
	ctrl, err := New(Config{
		Listen:    "127.0.0.1:0",
		JWTSecret: "test-secret",
		Username:  "admin",
		Password:  "hunter2",
	}, fakeSessions{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctrl
}

func doJSON(ctrl *Controller, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ctrl.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginThenListSessions(t *testing.T) {
	ctrl := newTestController(t)

	rec := doJSON(ctrl, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Username: "admin", Password: "hunter2",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token")
	}

	rec = doJSON(ctrl, http.MethodGet, "/api/v1/sessions", nil, resp.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d body=%s", rec.Code, rec.Body.String())
	}
	var sessions []transport.SessionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Transport != "NTCP" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ctrl := newTestController(t)
	rec := doJSON(ctrl, http.MethodPost, "/api/v1/auth/login", loginRequest{
		Username: "admin", Password: "wrong",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionsRequiresAuth(t *testing.T) {
	ctrl := newTestController(t)
	rec := doJSON(ctrl, http.MethodGet, "/api/v1/sessions", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}
