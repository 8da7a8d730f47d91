package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("QUILL_API_TOKEN", "")
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "--overwrite") {
		t.Fatalf("expected existing file to be refused, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, target) {
		t.Fatalf("unexpected validate output:\n%s", out)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nbackpressure = \"drop\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("QUILL_API_TOKEN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[paths]\ndata_dir = " + strconv.Quote(filepath.Join(dir, "data")) +
		"\napi_token = \"tok-secret\"\n\n[llm]\napi_key = \"sk-secret\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") || strings.Contains(out, "tok-secret") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "<redacted>") || !strings.Contains(out, "[workflow]") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	t.Setenv("QUILL_NTFY_TOPIC", "")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\napi_key = \"k\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"test-notify"}, path)
	if err == nil || !strings.Contains(err.Error(), "ntfy_topic") {
		t.Fatalf("expected missing topic error, got %v", err)
	}
}

func TestLogsCommandFiltersByWorkflow(t *testing.T) {
	t.Setenv("QUILL_API_TOKEN", "")
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "config.toml")
	cfg := "[paths]\ndata_dir = " + strconv.Quote(filepath.Join(dir, "data")) + "\nlog_dir = " + strconv.Quote(logDir) + "\n\n[llm]\napi_key = \"k\"\n"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	logLines := "INFO engine: [11111111 drafting] step completed\nINFO engine: [22222222 editing] step completed\n"
	if err := os.WriteFile(filepath.Join(logDir, "quill.log"), []byte(logLines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--workflow", "22222222-aaaa"}, path)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "11111111") || !strings.Contains(out, "22222222 editing") {
		t.Fatalf("unexpected filtered logs:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, path)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "INFO engine: [22222222 editing] step completed" {
		t.Fatalf("unexpected tail output: %q", out)
	}
}
