// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package vat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/switchyard-ci/switchyard/lib/capability"
	"github.com/switchyard-ci/switchyard/lib/codec"
)

// readTimeout is how long the server waits for a client to send its
// request. A well-behaved client sends immediately after connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long the server waits for the response write.
const writeTimeout = 10 * time.Second

// maxMessageSize bounds a single CBOR request or response. Capability
// calls carry small control payloads, not bulk data.
const maxMessageSize = 1024 * 1024

// request is the wire-format envelope for inbound calls.
type request struct {
	Service string           `cbor:"service"`
	Method  string           `cbor:"method"`
	Payload codec.RawMessage `cbor:"payload,omitempty"`
}

// Response is the wire-format envelope for all vat responses.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Vat routes inbound capability calls to registered services. Each
// connection handles exactly one request/response cycle: the client
// writes a CBOR request, the vat dispatches it through the service's
// promise, writes a CBOR response, and the connection closes.
//
// Services are registered before Serve; the promise side means a
// service can be registered — and dialed — before the object behind
// it exists.
type Vat struct {
	identity *Identity
	logger   *slog.Logger

	mu       sync.Mutex
	services map[ServiceID]*capability.Promise

	listener net.Listener

	// activeConnections tracks in-flight dispatches for graceful
	// shutdown. Serve waits for them before returning.
	activeConnections sync.WaitGroup
}

// NewVat creates a vat for a listening identity. Call Register for
// each service, then Listen, then Serve.
func NewVat(identity *Identity, logger *slog.Logger) (*Vat, error) {
	if !identity.Listening() {
		return nil, fmt.Errorf("vat: identity is client-only, nothing to serve")
	}
	return &Vat{
		identity: identity,
		logger:   logger,
		services: make(map[ServiceID]*capability.Promise),
	}, nil
}

// Register binds a service id to the promise side of a capability
// cell. Panics on a duplicate id — that is a wiring error.
func (v *Vat) Register(serviceID ServiceID, promise *capability.Promise) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.services[serviceID]; exists {
		panic(fmt.Sprintf("vat: duplicate service registration for %s", serviceID))
	}
	v.services[serviceID] = promise
}

// Listen binds the TCP listener on the identity's internal bind
// address. Binding is separate from Serve so that bootstrap can fail
// fast — a vat that cannot bind must not let the process proceed into
// serving with a partial capability surface.
func (v *Vat) Listen(bindAddress string) error {
	listener, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return fmt.Errorf("vat: listening on %s: %w", bindAddress, err)
	}
	v.listener = listener
	return nil
}

// Addr returns the bound listen address. Only valid after Listen.
// Useful when the bind address uses port 0.
func (v *Vat) Addr() net.Addr {
	return v.listener.Addr()
}

// Serve accepts connections and dispatches requests until ctx is
// cancelled, then stops accepting and waits for active dispatches to
// drain. Listen must have been called.
func (v *Vat) Serve(ctx context.Context) error {
	if v.listener == nil {
		return fmt.Errorf("vat: Serve called before Listen")
	}
	defer v.listener.Close()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		v.listener.Close()
	}()

	v.logger.Info("vat listening", "address", v.listener.Addr().String())

	for {
		conn, err := v.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			v.logger.Error("accept failed", "error", err)
			continue
		}

		v.activeConnections.Add(1)
		go func() {
			defer v.activeConnections.Done()
			v.handleConnection(ctx, conn)
		}()
	}

	v.activeConnections.Wait()
	return nil
}

// handleConnection processes one request/response cycle.
func (v *Vat) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so no framing is needed. LimitReader
	// keeps a malicious client from exhausting memory.
	var incoming request
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&incoming); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		v.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if incoming.Service == "" {
		v.writeError(conn, "missing required field: service")
		return
	}
	if incoming.Method == "" {
		v.writeError(conn, "missing required field: method")
		return
	}

	serviceID, err := ParseServiceID(incoming.Service)
	if err != nil {
		v.writeError(conn, "invalid service id")
		return
	}

	v.mu.Lock()
	promise, exists := v.services[serviceID]
	v.mu.Unlock()
	if !exists {
		// Same response for malformed and unknown ids: the id space
		// is unguessable and probing it must not leak which services
		// exist.
		v.writeError(conn, "no such service")
		return
	}

	data, err := promise.Call(ctx, incoming.Method, incoming.Payload)
	if err != nil {
		if errors.Is(err, capability.ErrUnavailable) {
			v.writeError(conn, "service unavailable")
			return
		}
		v.logger.Debug("call failed",
			"method", incoming.Method,
			"error", err,
		)
		v.writeError(conn, err.Error())
		return
	}

	v.writeSuccess(conn, data)
}

// writeError sends {ok: false, error: message}. Write failures are
// logged at debug level — the connection is closing regardless.
func (v *Vat) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
	}); err != nil {
		v.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} with the target's response payload in
// the data field when present.
func (v *Vat) writeSuccess(conn net.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if len(data) > 0 {
		response.Data = codec.RawMessage(data)
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		v.logger.Debug("failed to write success response", "error", err)
	}
}
