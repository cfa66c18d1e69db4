package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes the root command with args and returns stdout and the error.
// The env file points into a temp dir so a stray .env never leaks in.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "easyremind version dev") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestValidateCommand_Defaults(t *testing.T) {
	out, err := runCmd(t, "validate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "configuration valid") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	t.Setenv("GATEWAY", "sms")

	_, err := runCmd(t, "validate")
	if err == nil {
		t.Fatal("expected error for unknown gateway")
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected exitError, got %T", err)
	}
	if ee.code != exitInvalidConfig {
		t.Errorf("expected exit code %d, got %d", exitInvalidConfig, ee.code)
	}
	if !strings.Contains(err.Error(), "GATEWAY") {
		t.Errorf("expected error to name GATEWAY, got %q", err.Error())
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	if code := execute([]string{"version", "--env-file", missing}); code != exitSuccess {
		t.Errorf("version: expected %d, got %d", exitSuccess, code)
	}

	t.Setenv("REGISTRY", "sqlite")
	if code := execute([]string{"validate", "--env-file", missing}); code != exitInvalidConfig {
		t.Errorf("validate: expected %d, got %d", exitInvalidConfig, code)
	}

	if code := execute([]string{"no-such-command"}); code != exitRuntimeError {
		t.Errorf("unknown command: expected %d, got %d", exitRuntimeError, code)
	}
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	t.Setenv("GATEWAY", "webhook")
	t.Setenv("WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("WEBHOOK_SECRET", "supersecretvalue")

	out, err := runCmd(t, "config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "supersecretvalue") {
		t.Errorf("secret leaked in config output: %s", out)
	}
	if !strings.Contains(out, `"gateway": "webhook"`) {
		t.Errorf("expected gateway in output: %s", out)
	}
}

func TestEnvFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := writeFile(envFile, "GATEWAY=carrier-pigeon\n"); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set; make sure
	// GATEWAY is unset for the duration of the test.
	t.Setenv("GATEWAY", "")
	unsetenv(t, "GATEWAY")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--env-file", envFile})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("expected validation error naming the env-file value, got %v", err)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// unsetenv removes key; t.Setenv beforehand restores it after the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
}
