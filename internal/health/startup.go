// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/log"
)

// StartupChecks lists what PerformStartupChecks validates.
type StartupChecks struct {
	DataDir         string
	ListenAddr      string
	ProviderBaseURL string // empty when the catalog provider is used
	TLSCert         string
	TLSKey          string
}

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(c StartupChecks) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if c.DataDir != "" {
		if err := checkDataDir(logger, c.DataDir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}
	if err := checkListenAddr(c.ListenAddr); err != nil {
		return err
	}
	if c.ProviderBaseURL != "" {
		u, err := url.Parse(c.ProviderBaseURL)
		if err != nil {
			return fmt.Errorf("invalid provider base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("provider base url scheme must be http or https, got: %s", u.Scheme)
		}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		if c.TLSCert == "" || c.TLSKey == "" {
			return fmt.Errorf("TLS configuration requires both cert and key")
		}
		if err := checkFileReadable(c.TLSCert); err != nil {
			return fmt.Errorf("TLS cert: %w", err)
		}
		if err := checkFileReadable(c.TLSKey); err != nil {
			return fmt.Errorf("TLS key: %w", err)
		}
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
