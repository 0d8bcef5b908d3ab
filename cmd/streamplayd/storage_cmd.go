// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/streamplay/internal/config"
	"github.com/ManuGH/streamplay/internal/persistence/sqlite"
)

// knownDatabases are the SQLite files the daemon keeps in its data dir.
var knownDatabases = []string{"catalog.sqlite", "resume.sqlite"}

func runStorageCLI(args []string) int {
	return storageCLI(args, os.Stdout, os.Stderr)
}

func storageCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  streamplayd storage verify [--path PATH | --all] [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string  Path to a specific SQLite database file")
	_, _ = fmt.Fprintln(w, "  --all          Verify all known databases in $STREAMPLAY_DATA_DIR")
	_, _ = fmt.Fprintln(w, "  --mode string  Verification mode: quick (default) or full")
}

func runStorageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("streamplayd storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var path, mode string
	var all bool
	fs.StringVar(&path, "path", "", "Path to the SQLite database file")
	fs.StringVar(&mode, "mode", "quick", "Verification mode: quick or full")
	fs.BoolVar(&all, "all", false, "Verify all known databases in $STREAMPLAY_DATA_DIR")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !all && path == "" {
		fmt.Fprintln(stderr, "Error: --path or --all is required")
		return 2
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "quick" && mode != "full" {
		fmt.Fprintf(stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", mode)
		return 2
	}

	if !all {
		return doVerify(path, mode, stdout, stderr)
	}

	dataDir := config.ParseString(config.EnvPrefix+"DATA_DIR", "")
	if dataDir == "" {
		fmt.Fprintln(stderr, "Error: --all requires STREAMPLAY_DATA_DIR to be set.")
		return 2
	}

	exitCode, checked := 0, 0
	for _, name := range knownDatabases {
		dbPath := filepath.Join(dataDir, name)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			continue
		}
		checked++
		if code := doVerify(dbPath, mode, stdout, stderr); code != 0 {
			exitCode = code
		}
	}
	if checked == 0 {
		fmt.Fprintf(stderr, "Error: no databases found in %s (expected one of: %s)\n",
			dataDir, strings.Join(knownDatabases, ", "))
		return 2
	}
	return exitCode
}

func doVerify(path, mode string, stdout, stderr io.Writer) int {
	fmt.Fprintf(stderr, "Verifying integrity of %s (mode: %s)...\n", path, mode)

	issues, err := sqlite.VerifyIntegrity(path, mode)
	if err != nil {
		fmt.Fprintf(stderr, "Verification interrupted by system error: %v\n", err)
		return 1
	}
	if issues != nil {
		fmt.Fprintf(stderr, "Corruption detected in %s:\n", path)
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return 1
	}

	fmt.Fprintf(stdout, "%s: ok\n", path)
	return 0
}
