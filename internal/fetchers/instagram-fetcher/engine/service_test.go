package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/state"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("IG_DOTENV", "0")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExecuteVersion(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.HasPrefix(out, "instagram-fetcher "+Version) {
		t.Fatalf("out=%q", out)
	}
}

func TestStateShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last.json")
	updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := state.NewFileStore(path, "[test]").Save(context.Background(), state.RunState{LastSeenID: "abc123", UpdatedAt: updated}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STATE_BACKEND", "")

	out, err := runCommand(t, "state", "show", "--state-file", path)
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	if !strings.Contains(out, "last_seen_id=abc123\n") || !strings.Contains(out, "updated_at=2025-03-01T12:00:00Z") {
		t.Fatalf("out=%q", out)
	}
}

func TestRunRequiresWebhook(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("DRY_RUN", "")

	_, err := runCommand(t, "--instagram-username", "hashtagutd")
	if err == nil || !strings.Contains(err.Error(), "DISCORD_WEBHOOK_URL is required") {
		t.Fatalf("err=%v", err)
	}
}

func TestWorkerCommandIsHidden(t *testing.T) {
	cmd := newRootCommand()
	worker, _, err := cmd.Find([]string{WorkerCommand})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if worker.Name() != WorkerCommand || !worker.Hidden {
		t.Fatalf("worker=%s hidden=%v", worker.Name(), worker.Hidden)
	}
}
