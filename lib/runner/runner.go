// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/switchyard-ci/switchyard/lib/access"
	"github.com/switchyard-ci/switchyard/lib/buildstatus"
	"github.com/switchyard-ci/switchyard/lib/capability"
	"github.com/switchyard-ci/switchyard/lib/telemetry"
	"github.com/switchyard-ci/switchyard/lib/vat"
	"github.com/switchyard-ci/switchyard/lib/web"
)

// drainTimeout bounds how long Run waits for the losing loops after
// the first one finishes. In-flight work past it is dropped.
const drainTimeout = 15 * time.Second

// State is the runner's lifecycle phase.
type State int

const (
	// Booting covers capability bootstrap and engine construction.
	Booting State = iota
	// Serving means all loops are running and the engine capability
	// is resolved.
	Serving
	// Terminated means a loop has finished and the process is going
	// down.
	Terminated
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Serving:
		return "serving"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine is the pipeline engine as the runner sees it: a run-loop, a
// set of HTTP routes, a build-status index for the metrics walk, a
// capability target for remote calls, and a webhook sink.
type Engine interface {
	web.WebhookSink

	// Run is the engine's long-running loop. It should block until
	// ctx is cancelled.
	Run(ctx context.Context) error

	// Routes are the engine's inspection and control routes.
	Routes() []web.Route

	// Index is the owners → repositories → refs build-status view
	// the metrics aggregator walks.
	Index() buildstatus.Index

	// Capability is the object served to remote callers once the
	// engine exists.
	Capability() capability.Target
}

// Config assembles a Runner.
type Config struct {
	// Vat configures the capability bootstrap. Its Promise and
	// Logger fields are filled by the runner.
	Vat vat.BootstrapConfig

	// WebAddress is the web surface's TCP listen address.
	WebAddress string

	Policy   *access.Policy
	Sessions *web.Sessions
	Registry *telemetry.Registry
	Logger   *slog.Logger

	// WebhookSecret signs inbound webhook deliveries.
	WebhookSecret []byte

	// Auth backs the login route. Nil disables login.
	Auth web.AuthProvider

	// BranchRef is the ref the metrics aggregator counts. Empty
	// means the default branch ref.
	BranchRef string

	// Build constructs the pipeline engine. It runs concurrently
	// with the capability bootstrap; a returned error rejects the
	// engine capability and terminates the process.
	Build func(ctx context.Context) (Engine, error)
}

// Runner drives the process through Booting, Serving, Terminated.
type Runner struct {
	config Config
	state  atomic.Int32
	web    atomic.Pointer[web.Server]
}

// New creates a runner. Run may be called once.
func New(config Config) *Runner {
	if config.Build == nil {
		panic("runner: Build is required")
	}
	if config.Logger == nil {
		panic("runner: Logger is required")
	}
	return &Runner{config: config}
}

// State reports the current lifecycle phase.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// WebAddr returns the web server's resolved listen address, or nil
// before the runner reaches Serving. With a port-0 address this
// carries the assigned port.
func (r *Runner) WebAddr() net.Addr {
	server := r.web.Load()
	if server == nil {
		return nil
	}
	select {
	case <-server.Ready():
		return server.Addr()
	default:
		return nil
	}
}

// loopResult identifies which supervised loop finished and how.
type loopResult struct {
	name string
	err  error
}

// Run executes the whole lifecycle and blocks until a loop finishes
// or startup fails. The returned error is nil only when the winning
// loop exited cleanly during an orderly shutdown.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.config.Logger

	// The capability cell: the promise side goes to the vat so the
	// listener can accept calls before the engine exists; the
	// resolver stays here.
	promise, resolver := capability.New()

	bootstrapConfig := r.config.Vat
	bootstrapConfig.Promise = promise
	bootstrapConfig.Logger = logger

	bootstrap, err := vat.Bootstrap(bootstrapConfig)
	if err != nil {
		return fmt.Errorf("capability bootstrap: %w", err)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan loopResult, 3)
	var loops sync.WaitGroup

	startLoop := func(name string, loop func(context.Context) error) {
		loops.Add(1)
		go func() {
			defer loops.Done()
			results <- loopResult{name: name, err: loop(ctx)}
		}()
	}

	// The capability server starts now, during Booting: calls that
	// arrive before the engine exists queue on the promise.
	if bootstrap.Vat != nil {
		startLoop("capability server", bootstrap.Vat.Serve)
	}

	// Engine construction is concurrent with the vat already
	// accepting connections.
	engine, err := r.config.Build(ctx)
	if err != nil {
		// Queued and future capability calls fail as unavailable.
		resolver.Reject(err)
		return fmt.Errorf("engine construction: %w", err)
	}
	resolver.Resolve(engine.Capability())

	branchRef := r.config.BranchRef
	if branchRef == "" {
		branchRef = buildstatus.DefaultBranchRef
	}
	var metricsHandler http.Handler
	if r.config.Registry != nil {
		telemetry.NewAggregator(r.config.Registry, engine.Index(), branchRef)
		metricsHandler = r.config.Registry.Handler()
	}

	router := web.NewRouter(web.RouterConfig{
		Policy:        r.config.Policy,
		Sessions:      r.config.Sessions,
		Logger:        logger,
		WebhookSecret: r.config.WebhookSecret,
		Sink:          engine,
		Auth:          r.config.Auth,
		EngineRoutes:  engine.Routes(),
		Metrics:       metricsHandler,
	})
	webServer := web.NewServer(web.ServerConfig{
		Address: r.config.WebAddress,
		Handler: router,
		Logger:  logger,
	})
	r.web.Store(webServer)

	startLoop("engine", engine.Run)
	startLoop("web server", webServer.Serve)

	r.state.Store(int32(Serving))
	logger.Info("serving", "web_address", r.config.WebAddress)

	// First finisher wins; the others are cancelled and given a
	// bounded drain.
	winner := <-results
	r.state.Store(int32(Terminated))
	cancel()

	drained := make(chan struct{})
	go func() {
		loops.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		logger.Warn("shutdown drain timed out")
	}

	if winner.err != nil {
		return fmt.Errorf("%s terminated: %w", winner.name, winner.err)
	}
	if parent.Err() == nil {
		// A loop returned cleanly without being asked to stop. That
		// is still termination: nothing restarts it.
		return fmt.Errorf("%s exited unexpectedly", winner.name)
	}
	logger.Info("shutdown complete", "loop", winner.name)
	return nil
}
