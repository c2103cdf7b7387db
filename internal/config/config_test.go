package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "agent.db"))

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.MaxIterations != 5 {
		t.Fatalf("unexpected max iterations %d", cfg.MaxIterations)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", cfg.LLMModel)
	}
	if !cfg.ModerationEnabled {
		t.Fatal("moderation should default to enabled")
	}
	if cfg.ServiceLogin != "community-support-bot" {
		t.Fatalf("unexpected service login %q", cfg.ServiceLogin)
	}
	if len(cfg.BugLabels) != 2 {
		t.Fatalf("unexpected bug labels %v", cfg.BugLabels)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
http_addr: ":9999"
storage_path: ` + filepath.Join(dir, "custom.db") + `
max_iterations: 3
llm_model: test-model
llm_base_url: "https://llm.internal/"
moderation_enabled: false
turn_timeout: 45s
bug_labels: [triage]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.MaxIterations != 3 {
		t.Fatalf("unexpected max iterations %d", cfg.MaxIterations)
	}
	if cfg.LLMModel != "test-model" {
		t.Fatalf("unexpected model %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "https://llm.internal" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.LLMBaseURL)
	}
	if cfg.ModerationEnabled {
		t.Fatal("moderation_enabled: false not applied")
	}
	if cfg.TurnTimeout != 45*time.Second {
		t.Fatalf("unexpected turn timeout %v", cfg.TurnTimeout)
	}
	if len(cfg.BugLabels) != 1 || cfg.BugLabels[0] != "triage" {
		t.Fatalf("unexpected bug labels %v", cfg.BugLabels)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "storage_path: " + filepath.Join(dir, "file.db") + "\nmax_iterations: 3\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LLM_API_KEY", "sk-env")
	t.Setenv("GITHUB_TOKEN", "ghp-env")
	t.Setenv("MAX_ITERATIONS", "7")
	t.Setenv("MODERATION_ENABLED", "off")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLMAPIKey != "sk-env" {
		t.Fatalf("unexpected api key %q", cfg.LLMAPIKey)
	}
	if cfg.TrackerToken != "ghp-env" {
		t.Fatalf("unexpected tracker token %q", cfg.TrackerToken)
	}
	if cfg.MaxIterations != 7 {
		t.Fatalf("env MAX_ITERATIONS not applied: %d", cfg.MaxIterations)
	}
	if cfg.ModerationEnabled {
		t.Fatal("env MODERATION_ENABLED=off not applied")
	}
}

func TestLoadClampsIterations(t *testing.T) {
	t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "agent.db"))
	t.Setenv("MAX_ITERATIONS", "50")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxIterations != 10 {
		t.Fatalf("iterations not clamped: %d", cfg.MaxIterations)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "storage_path: " + filepath.Join(dir, "file.db") + "\nturn_timeout: sometime\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duration") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}

func TestLoadCreatesStorageDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_PATH", filepath.Join(dir, "nested", "deep", "agent.db"))

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.StoragePath)); err != nil {
		t.Fatalf("storage dir not created: %v", err)
	}
}
