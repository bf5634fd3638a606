package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
run:
  world_size: 6
  spec_file: runs/two-spokes.yaml
  timeout: 90s
logging:
  quiet: true
state:
  db_path: ${HUBSPOKE_TEST_DIR}/runs.db
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("HUBSPOKE_TEST_DIR", "/data")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Run.WorldSize != 6 {
		t.Errorf("expected world_size 6, got %d", cfg.Run.WorldSize)
	}
	if cfg.Run.SpecFile != "runs/two-spokes.yaml" {
		t.Errorf("expected spec_file runs/two-spokes.yaml, got %q", cfg.Run.SpecFile)
	}
	if cfg.Run.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Run.Timeout)
	}
	if !cfg.Logging.Quiet {
		t.Error("expected logging.quiet to be true")
	}
	if cfg.State.DBPath != "/data/runs.db" {
		t.Errorf("expected expanded db_path, got %q", cfg.State.DBPath)
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("run:\n  world_size: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HUBSPOKE_RUN_WORLD_SIZE", "9")
	t.Setenv("HUBSPOKE_STATE_DISABLED", "true")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Run.WorldSize != 9 {
		t.Errorf("expected env world_size 9, got %d", cfg.Run.WorldSize)
	}
	if !cfg.State.Disabled {
		t.Error("expected state.disabled from env")
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "hubspoke"), 0755); err != nil {
		t.Fatal(err)
	}
	user := "run:\n  world_size: 3\n  spec_file: user.yaml\n"
	if err := os.WriteFile(filepath.Join(xdg, "hubspoke", "config.yaml"), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigName), []byte("run:\n  world_size: 12\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.WorldSize != 12 {
		t.Errorf("expected project world_size 12, got %d", cfg.Run.WorldSize)
	}
	if cfg.Run.SpecFile != "user.yaml" {
		t.Errorf("expected user spec_file to survive merge, got %q", cfg.Run.SpecFile)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := &Config{
		Run:   RunConfig{WorldSize: 4, Timeout: time.Minute},
		State: StateConfig{DBPath: "/tmp/ledger.db"},
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if got.Run.WorldSize != 4 || got.Run.Timeout != time.Minute || got.State.DBPath != "/tmp/ledger.db" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if dir := getUserConfigDir(); dir != "/custom/config/hubspoke" {
		t.Errorf("expected /custom/config/hubspoke, got %q", dir)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("expandPath(~/x.db) = %q", got)
	}
}
