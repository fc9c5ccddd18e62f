// cmd/neuroscan/main.go
//
// This is the entry point for the NeuroScan console.
//
// Flow:
// 1. Resolve the state directory (~/.neuroscan, or NEUROSCAN_HOME)
// 2. Initialize it (config file, logs/, reports/)
// 3. Wire config -> logbook -> API client -> session gate
// 4. Launch the TUI

package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neuroscan-project/neuroscan/internal/api"
	"github.com/neuroscan-project/neuroscan/internal/config"
	"github.com/neuroscan-project/neuroscan/internal/logbook"
	"github.com/neuroscan-project/neuroscan/internal/session"
	"github.com/neuroscan-project/neuroscan/internal/tui"
)

func main() {
	stateDir, err := config.DefaultStateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving state directory: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitStateDir(stateDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s: %v\n", stateDir, err)
		os.Exit(1)
	}

	cfg, err := config.New(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	lb, err := logbook.New(cfg.LogsDir(), cfg.LogLevel())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening logbook: %v\n", err)
		os.Exit(1)
	}
	defer lb.Close()

	timeout := time.Duration(cfg.TimeoutSeconds()) * time.Second
	client := api.NewClient(cfg.BaseURL(), lb.Logger(), api.WithTimeout(timeout))

	store, err := session.NewCredentialStore(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening credential store: %v\n", err)
		os.Exit(1)
	}
	gate := session.NewGate(store, client, lb.Logger())

	p := tea.NewProgram(
		tui.NewApp(cfg, client, gate, lb, tui.WithRequestTimeout(timeout)),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
