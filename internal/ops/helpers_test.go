package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/rolodex/internal/config"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
	"github.com/hpungsan/rolodex/internal/store"
)

// newTestEnv opens a fresh database in a temp dir. Import/export paths
// directly inside that dir are allowed. The reminder scheduler is never
// started, so nothing fires during tests.
func newTestEnv(t *testing.T) (*Env, string) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir}

	return &Env{
		Store:     store.New(database, nil),
		Config:    cfg,
		Reminders: reminder.NewCronScheduler(nil, nil),
	}, tmpDir
}

func mustAdd(t *testing.T, env *Env, input AddInput) string {
	t.Helper()
	out, err := Add(context.Background(), env, input)
	if err != nil {
		t.Fatalf("Add(%q) failed: %v", input.Name, err)
	}
	return out.ID
}

func stringPtr(s string) *string {
	return &s
}

func int64Ptr(n int64) *int64 {
	return &n
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !errors.Is(err, code) {
		t.Fatalf("expected %s, got: %v", code, err)
	}
}
