package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalConfig = `
service:
  name: porter
gateway:
  listen: "127.0.0.1:0"
api:
  listen: "127.0.0.1:0"
registry:
  url: "http://localhost:5100/api/plugins"
`

func TestRunCLI_NoArgsShowsUsage(t *testing.T) {
	if got := runCLI(nil); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
}

func TestRunCLI_UnknownCommand(t *testing.T) {
	if got := runCLI([]string{"bogus"}); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
}

func TestRunCLI_Help(t *testing.T) {
	for _, cmd := range []string{"help", "--help", "-h"} {
		if got := runCLI([]string{cmd}); got != 0 {
			t.Errorf("%s exit = %d, want 0", cmd, got)
		}
	}
}

func TestRunCLI_Version(t *testing.T) {
	if got := runCLI([]string{"version"}); got != 0 {
		t.Errorf("exit = %d, want 0", got)
	}
	if got := runCLI([]string{"version", "--json"}); got != 0 {
		t.Errorf("json exit = %d, want 0", got)
	}
}

func TestConfigCheck_ValidConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	if got := runCLI([]string{"config", "check", "--config", path}); got != 0 {
		t.Errorf("exit = %d, want 0", got)
	}
}

func TestConfigCheck_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "registry:\n  url: not-a-url\n")
	if got := runCLI([]string{"config", "check", "--config", path}); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
}

func TestConfigCheck_MissingFile(t *testing.T) {
	if got := runCLI([]string{"config", "check", "--config", "/nonexistent/config.yaml"}); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
}

func TestConfigHashUpdate_ThenCheckPassesAndTamperFails(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	if got := runCLI([]string{"config", "hash-update", "--config", path}); got != 0 {
		t.Fatalf("hash-update exit = %d, want 0", got)
	}
	if got := runCLI([]string{"config", "check", "--config", path}); got != 0 {
		t.Errorf("check after hash-update exit = %d, want 0", got)
	}

	if err := os.WriteFile(path, []byte(minimalConfig+"\n# tampered\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := runCLI([]string{"config", "check", "--config", path}); got != 1 {
		t.Errorf("check after tamper exit = %d, want 1", got)
	}
}

func TestVersionInfo_Defaults(t *testing.T) {
	info := currentVersionInfo()
	if info.Version == "" {
		t.Error("version must never be empty")
	}
}
