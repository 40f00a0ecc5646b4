// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/switchyard-ci/switchyard/lib/capability"
	"github.com/switchyard-ci/switchyard/lib/codec"
)

// refRequest addresses one tracked ref. Ref may be empty for the
// default branch.
type refRequest struct {
	Owner string `cbor:"owner"`
	Repo  string `cbor:"repo"`
	Ref   string `cbor:"ref,omitempty"`
}

// reportRequest is a build backend's result for a ref.
type reportRequest struct {
	refRequest
	Passed bool `cbor:"passed"`
}

// statusResponse is the answer to a "status" call.
type statusResponse struct {
	Status string `cbor:"status"`
	Known  bool   `cbor:"known"`
}

// Capability is the engine's remote surface. Possession of the
// service id is the authorization: every method is available to any
// caller that can name the service.
func (e *Engine) Capability() capability.Target {
	return capability.TargetFunc(e.call)
}

func (e *Engine) call(_ context.Context, method string, payload []byte) ([]byte, error) {
	switch method {
	case "status":
		var req refRequest
		if err := codec.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("engine: decoding status request: %w", err)
		}
		ref := orDefault(req.Ref, e.branchRef)
		status, known := e.index.RefStatus(req.Owner, req.Repo, ref)
		return codec.Marshal(statusResponse{Status: status.String(), Known: known})

	case "rebuild":
		var req refRequest
		if err := codec.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("engine: decoding rebuild request: %w", err)
		}
		if req.Owner == "" || req.Repo == "" {
			return nil, fmt.Errorf("engine: rebuild requires owner and repo")
		}
		e.Rebuild(req.Owner, req.Repo, req.Ref)
		return nil, nil

	case "report":
		var req reportRequest
		if err := codec.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("engine: decoding report request: %w", err)
		}
		if req.Owner == "" || req.Repo == "" {
			return nil, fmt.Errorf("engine: report requires owner and repo")
		}
		e.Report(req.Owner, req.Repo, orDefault(req.Ref, e.branchRef), req.Passed)
		return nil, nil

	default:
		return nil, fmt.Errorf("engine: unknown method %q", method)
	}
}
