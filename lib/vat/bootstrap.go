// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package vat

import (
	"fmt"
	"log/slog"

	"github.com/switchyard-ci/switchyard/lib/capability"
	"github.com/switchyard-ci/switchyard/lib/secret"
)

// BootstrapConfig describes how a process joins the capability
// network at startup.
type BootstrapConfig struct {
	// PublicAddress is the "tcp:host:port" other vats use to reach
	// this one. Empty means client-only: no listener, no published
	// reference.
	PublicAddress string

	// BindAddress is the host:port the listener actually binds.
	// Optional; derived from PublicAddress when empty.
	BindAddress string

	// Seed is the secret key material the network identity derives
	// from. Borrowed for the duration of the call.
	Seed *secret.Buffer

	// ServiceLabel names the service registered on the vat. The
	// published service id is derived from it and the seed.
	ServiceLabel string

	// SturdyRefPath is where the published reference is persisted so
	// collaborating processes can find this service across restarts.
	SturdyRefPath string

	// Promise backs the registered service. The service accepts calls
	// as soon as the vat serves; callers block until the promise
	// resolves.
	Promise *capability.Promise

	Logger *slog.Logger
}

// BootstrapResult is the established network presence.
type BootstrapResult struct {
	Identity *Identity

	// Vat is nil in client-only mode.
	Vat *Vat

	// Ref is the published sturdy reference, nil in client-only mode.
	Ref *SturdyRef
}

// Bootstrap establishes the process's network identity and, for a
// listening configuration, binds the vat, registers the service, and
// persists its sturdy reference. Any failure here is fatal to the
// caller: a process that cannot publish its capability surface must
// not come up half-connected.
//
// The listener is bound but not yet serving; the caller runs
// result.Vat.Serve as one of its supervised loops.
func Bootstrap(config BootstrapConfig) (*BootstrapResult, error) {
	if config.PublicAddress == "" {
		// Client-only mode: no listener, no published reference. An
		// identity is derived only when a seed is provisioned; plain
		// dial-out needs none.
		result := &BootstrapResult{}
		if config.Seed != nil {
			identity, err := ClientIdentity(config.Seed)
			if err != nil {
				return nil, fmt.Errorf("deriving identity: %w", err)
			}
			result.Identity = identity
		}
		config.Logger.Info("capability network in client-only mode")
		return result, nil
	}

	identity, err := NewIdentity(config.Seed, config.PublicAddress)
	if err != nil {
		return nil, fmt.Errorf("deriving identity: %w", err)
	}

	v, err := NewVat(identity, config.Logger)
	if err != nil {
		return nil, err
	}

	serviceID := identity.ServiceID(config.ServiceLabel)
	v.Register(serviceID, config.Promise)

	bindAddress := config.BindAddress
	if bindAddress == "" {
		bindAddress, err = hostPort(config.PublicAddress)
		if err != nil {
			return nil, fmt.Errorf("deriving bind address: %w", err)
		}
	}
	if err := v.Listen(bindAddress); err != nil {
		return nil, err
	}

	ref, err := NewSturdyRef(identity, serviceID)
	if err != nil {
		return nil, err
	}
	if err := ref.WriteFile(config.SturdyRefPath); err != nil {
		return nil, fmt.Errorf("persisting sturdy ref: %w", err)
	}

	config.Logger.Info("capability service published",
		"label", config.ServiceLabel,
		"address", config.PublicAddress,
		"ref_path", config.SturdyRefPath,
	)

	return &BootstrapResult{Identity: identity, Vat: v, Ref: ref}, nil
}
