package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cpunion/replybot/pkg/handles"
	"github.com/cpunion/replybot/pkg/ledger"
)

func setupCLIHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"SOCIAL_API_KEY", "SOCIAL_API_SECRET", "SOCIAL_ACCESS_TOKEN", "SOCIAL_ACCESS_TOKEN_SECRET",
		"SOCIAL_READ_API_KEY", "GOOGLE_API_KEY", "GOOGLE_API_KEYS", "GOOGLE_MODEL",
		"REPLYBOT_MY_HANDLE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return home
}

func runCLI(t *testing.T, args []string, stdin string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := setupCLIHome(t)
	target := filepath.Join(home, "cfg", "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected an error when the file exists")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = runCLI(t, []string{"--config", target, "config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Not ready to run")
}

func TestStatsWithoutState(t *testing.T) {
	setupCLIHome(t)

	out, err := runCLI(t, []string{"stats"}, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Replies in window: 0/17 (17 remaining)")
}

func TestStatsCountsLedger(t *testing.T) {
	home := setupCLIHome(t)
	path := filepath.Join(home, ".local", "share", "replybot", "ledger.json")
	l, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	if err := l.RecordReply("p1", time.Now().UTC().Add(-time.Hour), ledger.Meta{}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, err := runCLI(t, []string{"stats"}, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Replies in window: 1/17 (16 remaining)")
}

func TestRunRequiresCredentials(t *testing.T) {
	setupCLIHome(t)

	_, err := runCLI(t, []string{"run", "--dry-run"}, "")
	if err == nil || !strings.Contains(err.Error(), "read_api_key") {
		t.Fatalf("expected missing read key error, got %v", err)
	}

	t.Setenv("SOCIAL_READ_API_KEY", "read")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("REPLYBOT_MY_HANDLE", "me")
	_, err = runCLI(t, []string{"run"}, "")
	if err == nil || !strings.Contains(err.Error(), "--dry-run") {
		t.Fatalf("expected posting credentials error, got %v", err)
	}
}

func TestRunRejectsEmptyHandleList(t *testing.T) {
	home := setupCLIHome(t)
	t.Setenv("SOCIAL_READ_API_KEY", "read")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("REPLYBOT_MY_HANDLE", "me")

	path := filepath.Join(home, ".config", "replybot", "handles.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("# nobody yet\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, []string{"run", "--dry-run"}, "")
	if !errors.Is(err, handles.ErrEmpty) {
		t.Fatalf("expected handles.ErrEmpty, got %v", err)
	}
}

func TestRefreshRequiresReadKey(t *testing.T) {
	setupCLIHome(t)
	if _, err := runCLI(t, []string{"refresh"}, ""); err == nil {
		t.Fatal("expected an error without a read key")
	}
}
