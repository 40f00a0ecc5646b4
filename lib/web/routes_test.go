// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/switchyard-ci/switchyard/lib/access"
)

const testWebhookSecret = "webhook-secret-for-testing"
const testSessionSecret = "session-secret-for-testing"

func signPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// recordingSink collects webhook deliveries.
type recordingSink struct {
	mu         sync.Mutex
	deliveries []string
	fail       bool
}

func (s *recordingSink) Deliver(_ context.Context, event string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sink failure")
	}
	s.deliveries = append(s.deliveries, event+":"+string(payload))
	return nil
}

// staticAuth accepts one username/password pair.
type staticAuth struct {
	username string
	password string
}

func (a *staticAuth) Authenticate(_ context.Context, username, password string) (access.Identity, error) {
	if username == a.username && password == a.password {
		return access.Identity(username), nil
	}
	return access.Anonymous, fmt.Errorf("invalid credentials")
}

func testRouter(t *testing.T, sink *recordingSink) (http.Handler, *Sessions) {
	t.Helper()

	sessions, err := NewSessions(SessionConfig{Secret: []byte(testSessionSecret)})
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	handler := NewRouter(RouterConfig{
		Policy:        access.NewPolicy([]access.Identity{"admin"}),
		Sessions:      sessions,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		WebhookSecret: []byte(testWebhookSecret),
		Sink:          sink,
		Auth:          &staticAuth{username: "dev", password: "hunter2"},
		EngineRoutes: []Route{
			{
				Method:  http.MethodGet,
				Pattern: "/status",
				Role:    access.Viewer,
				Handler: func(writer http.ResponseWriter, _ *http.Request) {
					io.WriteString(writer, "status")
				},
			},
			{
				Method:  http.MethodPost,
				Pattern: "/rebuild",
				Role:    access.Builder,
				Handler: func(writer http.ResponseWriter, _ *http.Request) {
					io.WriteString(writer, "rebuilding")
				},
			},
			{
				Method:  http.MethodPost,
				Pattern: "/shutdown",
				Role:    access.Admin,
				Handler: func(writer http.ResponseWriter, _ *http.Request) {
					io.WriteString(writer, "bye")
				},
			},
		},
	})
	return handler, sessions
}

// login performs the login flow and returns the session cookie.
func login(t *testing.T, handler http.Handler, username, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	request := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", recorder.Code, http.StatusOK)
	}
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func TestWebhookProbe(t *testing.T) {
	handler, _ := testRouter(t, &recordingSink{})

	request := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
}

func TestWebhookDelivery(t *testing.T) {
	sink := &recordingSink{}
	handler, _ := testRouter(t, sink)

	body := []byte(`{"ref":"refs/heads/master"}`)
	request := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	request.Header.Set("X-Hub-Signature-256", signPayload([]byte(testWebhookSecret), body))
	request.Header.Set("X-Gitlab-Event", "Push Hook")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
	if len(sink.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sink.deliveries))
	}
	if want := "Push Hook:" + string(body); sink.deliveries[0] != want {
		t.Errorf("delivery = %q, want %q", sink.deliveries[0], want)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	sink := &recordingSink{}
	handler, _ := testRouter(t, sink)

	body := []byte(`{"ref":"refs/heads/master"}`)
	tests := map[string]string{
		"missing":      "",
		"wrong_secret": signPayload([]byte("not-the-secret"), body),
		"not_hex":      "sha256=zzzz",
	}
	for name, signature := range tests {
		t.Run(name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			if signature != "" {
				request.Header.Set("X-Hub-Signature-256", signature)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			if recorder.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", recorder.Code, http.StatusForbidden)
			}
		})
	}
	if len(sink.deliveries) != 0 {
		t.Errorf("unsigned payloads reached the sink: %v", sink.deliveries)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	handler, sessions := testRouter(t, &recordingSink{})

	cookie := login(t, handler, "dev", "hunter2")

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(cookie)
	if identity := sessions.Verify(request); identity != "dev" {
		t.Errorf("identity = %q, want %q", identity, "dev")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler, _ := testRouter(t, &recordingSink{})

	body, _ := json.Marshal(loginRequest{Username: "dev", Password: "wrong"})
	request := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			t.Error("failed login set a session cookie")
		}
	}
}

func TestEngineRoutePolicy(t *testing.T) {
	handler, _ := testRouter(t, &recordingSink{})
	devCookie := login(t, handler, "dev", "hunter2")

	tests := []struct {
		name       string
		method     string
		path       string
		cookie     *http.Cookie
		wantStatus int
	}{
		{"anonymous_viewer_allowed", http.MethodGet, "/status", nil, http.StatusOK},
		{"anonymous_builder_denied", http.MethodPost, "/rebuild", nil, http.StatusForbidden},
		{"authenticated_viewer_allowed", http.MethodGet, "/status", devCookie, http.StatusOK},
		{"authenticated_builder_allowed", http.MethodPost, "/rebuild", devCookie, http.StatusOK},
		{"authenticated_admin_denied", http.MethodPost, "/shutdown", devCookie, http.StatusForbidden},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(test.method, test.path, nil)
			if test.cookie != nil {
				request.AddCookie(test.cookie)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			if recorder.Code != test.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, test.wantStatus)
			}
			if test.wantStatus == http.StatusForbidden {
				if !strings.Contains(recorder.Body.String(), "forbidden") {
					t.Errorf("body = %q, want forbidden envelope", recorder.Body.String())
				}
			}
		})
	}
}

func TestPermissivePolicyAllowsAnonymous(t *testing.T) {
	sessions, err := NewSessions(SessionConfig{Secret: []byte(testSessionSecret)})
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	handler := NewRouter(RouterConfig{
		Policy:        access.AllowAll(),
		Sessions:      sessions,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		WebhookSecret: []byte(testWebhookSecret),
		Sink:          &recordingSink{},
		EngineRoutes: []Route{
			{
				Method:  http.MethodPost,
				Pattern: "/shutdown",
				Role:    access.Admin,
				Handler: func(writer http.ResponseWriter, _ *http.Request) {},
			},
		},
	})

	request := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", recorder.Code, http.StatusOK)
	}
}
