// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/switchyard-ci/switchyard/lib/access"
	"github.com/switchyard-ci/switchyard/lib/buildstatus"
	"github.com/switchyard-ci/switchyard/lib/vat"
	"github.com/switchyard-ci/switchyard/lib/web"
)

// submitTimeout caps a single submission-backend call.
const submitTimeout = 10 * time.Second

// Config configures the reference engine.
type Config struct {
	Logger *slog.Logger

	// BranchRef is the ref rebuilds target when a request does not
	// name one. Empty means the default branch ref.
	BranchRef string

	// Backend, when set, is the sturdy reference of a submission
	// backend. Every ref that goes pending is submitted to it,
	// best-effort.
	Backend *vat.SturdyRef
}

// Engine tracks build status for the repositories it has seen. All
// methods are safe for concurrent use; the index carries the locking.
type Engine struct {
	logger    *slog.Logger
	branchRef string
	index     *buildstatus.MemoryIndex

	// backend is nil when no submission backend is configured.
	backend *vat.Client
}

// New creates an engine with an empty index.
func New(config Config) (*Engine, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("engine: Logger is required")
	}
	branchRef := config.BranchRef
	if branchRef == "" {
		branchRef = buildstatus.DefaultBranchRef
	}

	var backend *vat.Client
	if config.Backend != nil {
		var err error
		backend, err = vat.Dial(config.Backend)
		if err != nil {
			return nil, fmt.Errorf("engine: dialing submission backend: %w", err)
		}
	}

	return &Engine{
		logger:    config.Logger,
		branchRef: branchRef,
		index:     buildstatus.NewMemoryIndex(),
		backend:   backend,
	}, nil
}

// Run is the engine's supervised loop. The reference engine has no
// background work, so it just holds its place in the race until
// shutdown.
func (e *Engine) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Index exposes the read-only build-status view.
func (e *Engine) Index() buildstatus.Index {
	return e.index
}

// pushEvent is the subset of a forge push payload the engine reads.
// GitLab nests the repository path under project; GitHub under
// repository.full_name. Both are accepted.
type pushEvent struct {
	Ref     string `json:"ref"`
	Project struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Deliver ingests a verified webhook payload: a push marks the pushed
// ref pending. Unknown event types are acknowledged and dropped —
// the forge must not retry them forever.
func (e *Engine) Deliver(_ context.Context, event string, payload []byte) error {
	var push pushEvent
	if err := json.Unmarshal(payload, &push); err != nil {
		return fmt.Errorf("engine: decoding push payload: %w", err)
	}

	path := push.Project.PathWithNamespace
	if path == "" {
		path = push.Repository.FullName
	}
	owner, repo, err := splitRepoPath(path)
	if err != nil {
		e.logger.Debug("webhook without repository path dropped", "event", event)
		return nil
	}
	if push.Ref == "" {
		e.logger.Debug("webhook without ref dropped", "event", event, "repository", path)
		return nil
	}

	e.index.SetRef(owner, repo, push.Ref, buildstatus.Pending)
	e.logger.Info("push recorded",
		"owner", owner,
		"repository", repo,
		"ref", push.Ref,
	)
	e.submit(owner, repo, push.Ref)
	return nil
}

// Rebuild marks a ref pending again, as if freshly pushed.
func (e *Engine) Rebuild(owner, repo, ref string) {
	if ref == "" {
		ref = e.branchRef
	}
	e.index.SetRef(owner, repo, ref, buildstatus.Pending)
	e.logger.Info("rebuild requested",
		"owner", owner,
		"repository", repo,
		"ref", ref,
	)
	e.submit(owner, repo, ref)
}

// submit hands a pending ref to the submission backend, when one is
// configured. Best-effort: the ref stays pending either way, and a
// backend outage must not fail webhook ingestion.
func (e *Engine) submit(owner, repo, ref string) {
	if e.backend == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		err := e.backend.Call(ctx, "submit", refRequest{Owner: owner, Repo: repo, Ref: ref}, nil)
		if err != nil {
			e.logger.Warn("submission backend call failed",
				"owner", owner,
				"repository", repo,
				"ref", ref,
				"error", err,
			)
		}
	}()
}

// Report records a build result for a ref the engine is tracking.
func (e *Engine) Report(owner, repo, ref string, passed bool) {
	status := buildstatus.Failed
	if passed {
		status = buildstatus.Passed
	}
	e.index.SetRef(owner, repo, ref, status)
}

// snapshot renders the whole index as owner → repository → ref →
// status name.
func (e *Engine) snapshot() map[string]map[string]map[string]string {
	out := make(map[string]map[string]map[string]string)
	for _, owner := range e.index.Owners() {
		repos := make(map[string]map[string]string)
		for _, repo := range e.index.Repositories(owner) {
			refs := make(map[string]string)
			for _, ref := range e.index.Refs(owner, repo) {
				if status, ok := e.index.RefStatus(owner, repo, ref); ok {
					refs[ref] = status.String()
				}
			}
			repos[repo] = refs
		}
		out[owner] = repos
	}
	return out
}

// Routes are the engine's web entry points: status inspection for
// viewers, rebuild for builders.
func (e *Engine) Routes() []web.Route {
	return []web.Route{
		{
			Method:  http.MethodGet,
			Pattern: "/status",
			Role:    access.Viewer,
			Handler: e.handleStatus,
		},
		{
			Method:  http.MethodPost,
			Pattern: "/repos/{owner}/{repo}/rebuild",
			Role:    access.Builder,
			Handler: e.handleRebuild,
		},
	}
}

func (e *Engine) handleStatus(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(e.snapshot())
}

func (e *Engine) handleRebuild(writer http.ResponseWriter, request *http.Request) {
	owner := chi.URLParam(request, "owner")
	repo := chi.URLParam(request, "repo")
	ref := request.URL.Query().Get("ref")

	e.Rebuild(owner, repo, ref)

	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(map[string]string{
		"owner": owner,
		"repo":  repo,
		"ref":   orDefault(ref, e.branchRef),
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// splitRepoPath splits "owner/repo" into its parts.
func splitRepoPath(path string) (owner, repo string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			owner, repo = path[:i], path[i+1:]
			if owner == "" || repo == "" {
				break
			}
			return owner, repo, nil
		}
	}
	return "", "", fmt.Errorf("engine: malformed repository path %q", path)
}
