package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"needle/internal/config"
	"needle/internal/daemonrun"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\nlibrary_dir = %q\n",
		filepath.Join(base, "data"), filepath.Join(base, "logs"), filepath.Join(base, "library"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRootPassesConfigAndLogLevel(t *testing.T) {
	var gotCfg *config.Config
	var gotOpts daemonrun.Options
	run = func(_ context.Context, cfg *config.Config, opts daemonrun.Options) error {
		gotCfg, gotOpts = cfg, opts
		return nil
	}
	t.Cleanup(func() { run = daemonrun.Run })

	path := writeConfig(t)
	if err := execute(t, "--config", path, "--log-level", "debug"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if gotCfg == nil || gotCfg.Paths.DataDir != filepath.Join(filepath.Dir(path), "data") {
		t.Fatalf("expected the config file to be loaded, got %+v", gotCfg)
	}
	if gotOpts.LogLevel != "debug" {
		t.Fatalf("expected log level override, got %q", gotOpts.LogLevel)
	}
}

func TestRootRequiresExplicitEnvFile(t *testing.T) {
	run = func(context.Context, *config.Config, daemonrun.Options) error {
		t.Fatal("daemon must not start")
		return nil
	}
	t.Cleanup(func() { run = daemonrun.Run })

	missing := filepath.Join(t.TempDir(), "missing.env")
	err := execute(t, "--config", writeConfig(t), "--env-file", missing)
	if err == nil || !strings.Contains(err.Error(), "load env file") {
		t.Fatalf("expected env file error, got %v", err)
	}
}
