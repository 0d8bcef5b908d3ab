// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/streamplay/internal/config"
	"github.com/ManuGH/streamplay/internal/daemon"
	"github.com/ManuGH/streamplay/internal/health"
	xglog "github.com/ManuGH/streamplay/internal/log"
	xgtls "github.com/ManuGH/streamplay/internal/tls"
	"github.com/ManuGH/streamplay/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

// resolveConfigPath prefers an explicit path and otherwise picks up
// ${STREAMPLAY_DATA_DIR}/config.yaml when it exists.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA_DIR", ""))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		case "storage":
			os.Exit(runStorageCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := resolveConfigPath(*configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str(xglog.FieldPath, path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, path).
		Msg("loaded configuration")

	checks := health.StartupChecks{
		DataDir:    cfg.DataDir,
		ListenAddr: cfg.Server.ListenAddr,
		TLSCert:    cfg.Server.TLSCert,
		TLSKey:     cfg.Server.TLSKey,
	}
	if cfg.Provider.Kind == "http" {
		checks.ProviderBaseURL = cfg.Provider.BaseURL
	}
	if err := health.PerformStartupChecks(checks); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	if cfg.Server.TLSAuto && cfg.Server.TLSCert == "" {
		certPath, keyPath, err := xgtls.EnsureCertificates(xgtls.Config{
			Dir:    filepath.Join(cfg.DataDir, "certs"),
			Logger: xglog.WithComponent("tls"),
		})
		if err != nil {
			logger.Fatal().
				Err(err).
				Str(xglog.FieldEvent, "tls.ensure_failed").
				Msg("failed to ensure TLS certificates")
		}
		cfg.Server.TLSCert, cfg.Server.TLSKey = certPath, keyPath
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.ListenAddr).
		Msg("starting streamplay")
	logger.Info().Msgf("→ Catalog: %s", cfg.Catalog.Backend)
	if cfg.Provider.Kind == "http" {
		logger.Info().Msgf("→ Media provider: %s (token: %v)", maskURL(cfg.Provider.BaseURL), cfg.Provider.Token != "")
	} else {
		logger.Info().Msg("→ Media provider: local catalog")
	}
	logger.Info().Msgf("→ Cache: %s, bus: %s, resume: %s", cfg.Cache.Backend, cfg.Bus.Backend, cfg.Resume.Backend)
	logger.Info().Msgf("→ Sessions: max %d, idle timeout %s", cfg.Player.MaxSessions, cfg.Player.IdleTimeout)
	if cfg.Server.TLSCert != "" {
		logger.Info().Msgf("→ TLS: enabled (cert: %s)", cfg.Server.TLSCert)
	}
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)

	rt, err := daemon.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "runtime.build_failed").
			Msg("failed to build runtime")
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:  logger,
		Handler: rt.API.Handler(),
	})
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "manager.creation_failed").
			Msg("failed to create daemon manager")
	}
	mgr.RegisterShutdownHook("runtime", rt.Close)

	holder := config.NewHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt.Sessions)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
