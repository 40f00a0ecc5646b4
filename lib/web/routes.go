// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/switchyard-ci/switchyard/lib/access"
)

// maxWebhookBody bounds a webhook payload read.
const maxWebhookBody = 4 * 1024 * 1024

// Route is one engine-exposed HTTP route. The router consults the
// access policy for Role before the handler runs.
type Route struct {
	Method  string
	Pattern string
	Role    access.Role
	Handler http.HandlerFunc
}

// WebhookSink receives verified webhook deliveries. The payload is
// the raw body; parsing it is the sink's concern.
type WebhookSink interface {
	Deliver(ctx context.Context, event string, payload []byte) error
}

// AuthProvider validates login credentials and returns the caller's
// identity.
type AuthProvider interface {
	Authenticate(ctx context.Context, username, password string) (access.Identity, error)
}

// RouterConfig assembles the full route table.
type RouterConfig struct {
	Policy   *access.Policy
	Sessions *Sessions
	Logger   *slog.Logger

	// WebhookSecret is the shared secret webhook deliveries are
	// signed with.
	WebhookSecret []byte

	// Sink receives webhook payloads after signature verification.
	Sink WebhookSink

	// Auth backs the login route. Nil disables login entirely; the
	// deployment then runs with the allow-all policy.
	Auth AuthProvider

	// EngineRoutes are the inspection and control routes the
	// pipeline engine exposes, each gated on its declared role.
	EngineRoutes []Route

	// Metrics, when set, is mounted at GET /metrics. Scrapers carry
	// no session, so the endpoint is not role-gated.
	Metrics http.Handler
}

// NewRouter builds the route table: the webhook route, the login
// route, and the engine's routes wrapped in the policy guard.
func NewRouter(config RouterConfig) http.Handler {
	router := chi.NewRouter()

	// Every request carries its session identity on the context,
	// whether or not the matched route checks a role.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := config.Sessions.Verify(request)
			next.ServeHTTP(writer, request.WithContext(withIdentity(request.Context(), identity)))
		})
	})

	// Forges probe the webhook endpoint with GET before delivering.
	router.Get("/webhook", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		io.WriteString(writer, "ok\n")
	})
	router.Post("/webhook", webhookHandler(config))

	if config.Auth != nil {
		router.Post("/login", loginHandler(config))
	}

	if config.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", config.Metrics)
	}

	for _, route := range config.EngineRoutes {
		router.Method(route.Method, route.Pattern, requireRole(config.Policy, route.Role, route.Handler))
	}

	return router
}

// requireRole wraps a handler in the access-policy check. Denials are
// explicit 403s, never a generic failure.
func requireRole(policy *access.Policy, role access.Role, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		caller := IdentityFromContext(request.Context())
		if !policy.Allow(caller, role) {
			writeJSONError(writer, http.StatusForbidden, "forbidden")
			return
		}
		next(writer, request)
	})
}

// webhookHandler verifies the delivery signature and hands the raw
// payload to the sink. Signature failures are 401 with an empty body:
// an unauthenticated sender learns nothing about why.
func webhookHandler(config RouterConfig) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(io.LimitReader(request.Body, maxWebhookBody))
		if err != nil {
			http.Error(writer, "", http.StatusBadRequest)
			return
		}
		if len(body) == 0 {
			http.Error(writer, "", http.StatusBadRequest)
			return
		}

		signature := request.Header.Get("X-Hub-Signature-256")
		if err := VerifyWebhookSignature(config.WebhookSecret, body, signature); err != nil {
			config.Logger.Warn("webhook signature verification failed",
				"error", err,
				"remote_addr", request.RemoteAddr,
			)
			http.Error(writer, "", http.StatusForbidden)
			return
		}

		event := request.Header.Get("X-Gitlab-Event")
		if event == "" {
			event = request.Header.Get("X-GitHub-Event")
		}

		if err := config.Sink.Deliver(request.Context(), event, body); err != nil {
			config.Logger.Error("webhook delivery failed",
				"event", event,
				"error", err,
			)
			writeJSONError(writer, http.StatusInternalServerError, "delivery failed")
			return
		}

		writer.WriteHeader(http.StatusOK)
	}
}

// loginRequest is the login route's JSON body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginHandler authenticates credentials against the provider and
// issues the session cookie. Bad credentials are 401 without detail.
func loginHandler(config RouterConfig) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		var credentials loginRequest
		if err := json.NewDecoder(request.Body).Decode(&credentials); err != nil {
			writeJSONError(writer, http.StatusBadRequest, "invalid request body")
			return
		}

		identity, err := config.Auth.Authenticate(request.Context(), credentials.Username, credentials.Password)
		if err != nil || identity == access.Anonymous {
			config.Logger.Warn("login failed",
				"username", credentials.Username,
				"remote_addr", request.RemoteAddr,
			)
			writeJSONError(writer, http.StatusUnauthorized, "invalid credentials")
			return
		}

		if err := config.Sessions.Issue(writer, identity); err != nil {
			config.Logger.Error("session issue failed", "error", err)
			writeJSONError(writer, http.StatusInternalServerError, "internal error")
			return
		}

		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(map[string]string{"identity": string(identity)})
	}
}

// writeJSONError writes the {"error": ...} envelope.
func writeJSONError(writer http.ResponseWriter, status int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"error": message})
}
