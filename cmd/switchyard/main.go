// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/switchyard-ci/switchyard/lib/access"
	"github.com/switchyard-ci/switchyard/lib/config"
	"github.com/switchyard-ci/switchyard/lib/engine"
	"github.com/switchyard-ci/switchyard/lib/process"
	"github.com/switchyard-ci/switchyard/lib/runner"
	"github.com/switchyard-ci/switchyard/lib/secret"
	"github.com/switchyard-ci/switchyard/lib/telemetry"
	"github.com/switchyard-ci/switchyard/lib/vat"
	"github.com/switchyard-ci/switchyard/lib/version"
	"github.com/switchyard-ci/switchyard/lib/web"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "path to switchyard.yaml (overrides SWITCHYARD_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("switchyard")
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The network identity seed is only needed when the capability
	// listener is enabled.
	var seed *secret.Buffer
	if cfg.Network.PublicAddress != "" {
		seed, err = secret.ReadFromPath(cfg.Secrets.SeedFile)
		if err != nil {
			return fmt.Errorf("reading identity seed: %w", err)
		}
		defer seed.Close()
	}

	var webhookSecret []byte
	if cfg.Secrets.WebhookSecretFile != "" {
		buffer, err := secret.ReadFromPath(cfg.Secrets.WebhookSecretFile)
		if err != nil {
			return fmt.Errorf("reading webhook secret: %w", err)
		}
		defer buffer.Close()
		webhookSecret = buffer.Bytes()
	}

	// The deployment-mode switch: with authentication disabled the
	// whole policy is allow-all and cookies are not secure. Selected
	// once here, never per request.
	policy := access.AllowAll()
	var auth web.AuthProvider
	sessionSecret := []byte("insecure-development-sessions")
	secureCookies := false
	if cfg.Auth.Enabled {
		privileged := make([]access.Identity, 0, len(cfg.Auth.Privileged))
		for _, identity := range cfg.Auth.Privileged {
			privileged = append(privileged, access.Identity(identity))
		}
		policy = access.NewPolicy(privileged)
		auth = newDigestAuth(cfg.Auth.Users)
		secureCookies = cfg.Web.SecureCookies

		buffer, err := secret.ReadFromPath(cfg.Secrets.SessionSecretFile)
		if err != nil {
			return fmt.Errorf("reading session secret: %w", err)
		}
		defer buffer.Close()
		sessionSecret = buffer.Bytes()
	} else {
		logger.Warn("authentication disabled, all roles granted to every caller")
	}

	// The submission backend is another process, reached through the
	// sturdy reference it persisted.
	var backendRef *vat.SturdyRef
	if cfg.Paths.SubmissionRef != "" {
		backendRef, err = vat.ReadRefFile(cfg.Paths.SubmissionRef)
		if err != nil {
			return fmt.Errorf("reading submission backend ref: %w", err)
		}
	}

	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}
	sessions, err := web.NewSessions(web.SessionConfig{
		Secret: sessionSecret,
		TTL:    ttl,
		Secure: secureCookies,
	})
	if err != nil {
		return err
	}

	r := runner.New(runner.Config{
		Vat: vat.BootstrapConfig{
			PublicAddress: cfg.Network.PublicAddress,
			BindAddress:   cfg.Network.BindAddress,
			Seed:          seed,
			ServiceLabel:  cfg.Network.ServiceLabel,
			SturdyRefPath: cfg.Paths.SturdyRef,
		},
		WebAddress:    cfg.Web.Address,
		Policy:        policy,
		Sessions:      sessions,
		Registry:      telemetry.NewRegistry(),
		Logger:        logger,
		WebhookSecret: webhookSecret,
		Auth:          auth,
		Build: func(context.Context) (runner.Engine, error) {
			return engine.New(engine.Config{
				Logger:  logger,
				Backend: backendRef,
			})
		},
	})

	logger.Info("switchyard starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
	)
	return r.Run(ctx)
}
