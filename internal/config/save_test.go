package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Agents["weather"] = AgentConfig{Command: "weather-cli", Timeout: Duration(5 * time.Second)}

	if err := Save(cfg, path, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Saved config is not valid JSON: %v", err)
	}

	// Durations are written as strings
	if !strings.Contains(string(data), `"timeout": "5s"`) {
		t.Errorf("expected string duration in output:\n%s", data)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := DefaultConfig()
	original.LogLevel = "debug"
	original.ConcurrencyLimit = 3
	original.Retry.AttemptTimeout = Duration(2 * time.Second)
	original.Agents["email"] = AgentConfig{
		Command: "mailx",
		Args:    []string{"-s", "report"},
		Env:     map[string]string{"SMTP_HOST": "localhost"},
	}

	if err := Save(original, path, false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadWithEnv("", path, map[string]string{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LogLevel != "debug" || loaded.ConcurrencyLimit != 3 {
		t.Errorf("scalar fields lost: %+v", loaded)
	}
	if loaded.Retry.AttemptTimeout != original.Retry.AttemptTimeout {
		t.Errorf("AttemptTimeout = %v, want %v", loaded.Retry.AttemptTimeout, original.Retry.AttemptTimeout)
	}
	email := loaded.Agents["email"]
	if email.Command != "mailx" || len(email.Args) != 2 || email.Env["SMTP_HOST"] != "localhost" {
		t.Errorf("email agent = %+v", email)
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"log_level": "warn"}`), 0644); err != nil {
		t.Fatalf("writing existing config: %v", err)
	}

	err := Save(DefaultConfig(), path, false)
	if !errors.Is(err, ErrConfigExists) {
		t.Fatalf("expected ErrConfigExists, got %v", err)
	}

	if err := Save(DefaultConfig(), path, true); err != nil {
		t.Fatalf("forced Save failed: %v", err)
	}
	loaded, err := LoadWithEnv("", path, map[string]string{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", loaded.LogLevel)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.ConcurrencyLimit = -2

	if err := Save(cfg, path, false); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("invalid config should not be written, stat err = %v", err)
	}
}
