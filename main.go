// loom - a local-first terminal interface for branching LLM chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/orchestrator"
	"github.com/jeranaias/loom-tui/internal/provider"
	"github.com/jeranaias/loom-tui/internal/store"
	"github.com/jeranaias/loom-tui/internal/tui"
	"github.com/jeranaias/loom-tui/internal/vault"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// maintenanceFlags are the one-shot operations that run without the TUI.
type maintenanceFlags struct {
	setKey     string
	checkKey   string
	deleteKey  string
	exportData string
	importData string
}

func (f maintenanceFlags) active() bool {
	return f.setKey != "" || f.checkKey != "" || f.deleteKey != "" ||
		f.exportData != "" || f.importData != ""
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.loom/config.toml)")
		showVersion = flag.Bool("version", false, "print version and exit")
		mf          maintenanceFlags
	)
	flag.StringVar(&mf.setKey, "set-key", "", "store an API key for `provider` (prompted, encrypted at rest)")
	flag.StringVar(&mf.checkKey, "check-key", "", "verify the stored credential for `provider` with a minimal request")
	flag.StringVar(&mf.deleteKey, "delete-key", "", "remove stored settings (including the API key) for `provider`")
	flag.StringVar(&mf.exportData, "export-data", "", "write a full backup of all conversations and settings to `path`")
	flag.StringVar(&mf.importData, "import-data", "", "replace all store contents from a backup at `path`")
	flag.Parse()

	if *showVersion {
		fmt.Printf("loom %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath, mf); err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, mf maintenanceFlags) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "chat.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	v, err := vault.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}

	if mf.active() {
		return runMaintenance(cfg, st, v, mf)
	}

	// Streaming goroutines report through the Bubble Tea program, which
	// does not exist until after the orchestrator. The atomic pointer
	// closes that loop.
	var program atomic.Pointer[tea.Program]

	orch := orchestrator.New(st, v, orchestrator.Options{
		ProviderConfig: func(name string) provider.Config {
			pc := cfg.Providers[name]
			return provider.Config{BaseURL: pc.BaseURL, Models: pc.Models}
		},
		OnUpdate: func(slot *orchestrator.Slot) {
			if p := program.Load(); p != nil {
				p.Send(tui.SlotUpdateMsg{Slot: slot})
			}
		},
	})

	p := tea.NewProgram(tui.New(cfg, st, orch), tea.WithAltScreen())
	program.Store(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// =============================================================================
// MAINTENANCE OPERATIONS
// =============================================================================

// runMaintenance dispatches the one-shot flags. Exactly one operation runs
// per invocation; the first flag set wins.
func runMaintenance(cfg *config.Config, st *store.Store, v *vault.Vault, mf maintenanceFlags) error {
	switch {
	case mf.setKey != "":
		key, err := readSecret(fmt.Sprintf("API key for %s: ", mf.setKey))
		if err != nil {
			return err
		}
		if key == "" {
			return errors.New("empty API key, nothing stored")
		}
		if err := setProviderKey(st, v, mf.setKey, key); err != nil {
			return err
		}
		fmt.Printf("Stored encrypted API key for %s. Verify with -check-key %s.\n", mf.setKey, mf.setKey)
		return nil

	case mf.checkKey != "":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		ok, err := checkProviderKey(ctx, cfg, st, v, mf.checkKey)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("credential for %s was rejected", mf.checkKey)
		}
		fmt.Printf("Credential for %s is valid.\n", mf.checkKey)
		return nil

	case mf.deleteKey != "":
		if err := st.DeleteSettings(mf.deleteKey); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Printf("No settings stored for %s.\n", mf.deleteKey)
				return nil
			}
			return err
		}
		fmt.Printf("Removed settings for %s.\n", mf.deleteKey)
		return nil

	case mf.exportData != "":
		if err := st.WriteSnapshotFile(mf.exportData); err != nil {
			return err
		}
		fmt.Printf("Exported store to %s. API keys remain encrypted in the file.\n", mf.exportData)
		return nil

	case mf.importData != "":
		if err := st.ReadSnapshotFile(mf.importData); err != nil {
			return err
		}
		fmt.Printf("Imported store from %s.\n", mf.importData)
		return nil
	}
	return nil
}

// setProviderKey encrypts a plaintext API key and stores it in the
// provider's settings row, preserving any other stored fields. The
// plaintext never touches the store.
func setProviderKey(st *store.Store, v *vault.Vault, name, plaintext string) error {
	if !provider.IsKnown(name) {
		return fmt.Errorf("%w: %s (known: %s)", provider.ErrUnknownProvider, name,
			strings.Join(provider.Known(), ", "))
	}

	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}

	settings, err := st.Settings(name)
	if errors.Is(err, store.ErrNotFound) {
		settings = model.ChatSettings{Provider: name}
	} else if err != nil {
		return err
	}
	settings.APIKey = ciphertext
	return st.SaveSettings(settings)
}

// checkProviderKey decrypts the stored key, builds the real provider
// client, and runs its minimal credential request. ok=false means the
// remote side rejected the key; err covers everything else.
func checkProviderKey(ctx context.Context, cfg *config.Config, st *store.Store, v *vault.Vault, name string) (bool, error) {
	if !provider.IsKnown(name) {
		return false, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, name)
	}

	settings, err := st.Settings(name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	key, err := v.Decrypt(settings.APIKey)
	if err != nil {
		return false, fmt.Errorf("decrypt stored key: %w", err)
	}

	pc := cfg.Providers[name]
	p, err := provider.New(name, provider.Config{APIKey: key, BaseURL: pc.BaseURL, Models: pc.Models})
	if err != nil {
		return false, err
	}
	return p.TestCredential(ctx)
}

// readSecret reads a secret from stdin, without echo when stdin is a
// terminal. Piped input falls back to a plain line read.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		secret := strings.TrimSpace(string(raw))
		vault.ZeroBytes(raw)
		return secret, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// STARTUP HELPERS
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// setupLogging configures the default logger from config: level, plus an
// optional log file (stderr is useless under the alt screen).
func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	log.SetLevel(level)

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(f)
	}
	return nil
}
