package flagctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/database"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

func TestNewRootCommandStructure(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "flagctl" {
		t.Fatalf("unexpected root use: %s", cmd.Use)
	}
	for _, path := range [][]string{{"migrate"}, {"seed"}, {"list"}, {"get"}, {"set"}, {"eval"}, {"cache", "flush"}} {
		if c, _, err := cmd.Find(path); err != nil || c == nil || c.Name() != path[len(path)-1] {
			t.Fatalf("expected subcommand %v: err=%v", path, err)
		}
	}
	set, _, err := cmd.Find([]string{"set"})
	if err != nil {
		t.Fatalf("find set: %v", err)
	}
	for _, name := range []string{"mode", "users", "by"} {
		if f := set.Flags().Lookup(name); f == nil {
			t.Fatalf("expected --%s flag on set", name)
		}
	}
	for _, name := range []string{"ci", "env-file", "timeout"} {
		if f := cmd.PersistentFlags().Lookup(name); f == nil {
			t.Fatalf("expected persistent --%s flag", name)
		}
	}
}

func TestRunCIPathSuccessAndError(t *testing.T) {
	opts := &options{ci: true, timeout: time.Second}
	details, err := run(opts, "title", "list", func(ctx context.Context) ([]string, error) {
		return []string{"ok"}, nil
	})
	if err != nil || len(details) != 1 || details[0] != "ok" {
		t.Fatalf("expected success details, got details=%v err=%v", details, err)
	}

	_, err = run(opts, "title", "list", func(ctx context.Context) ([]string, error) {
		return nil, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected propagated error")
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	opts := &options{ci: true, timeout: 10 * time.Millisecond}
	_, err := run(opts, "title", "slow", func(ctx context.Context) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLoadConfigDBEnvParseError(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bad.env")
	if err := os.WriteFile(envFile, []byte("FEATURE_FLAG_CACHE_TTL=not-a-duration\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("FEATURE_FLAG_CACHE_TTL") })
	if _, _, err := loadConfigDB(envFile); err == nil || !strings.Contains(err.Error(), "FEATURE_FLAG_CACHE_TTL") {
		t.Fatalf("expected config parse error, got %v", err)
	}
}

func setSQLiteEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "flagctl.db"))
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("s", 32))
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestMigrateCommandCI(t *testing.T) {
	envFile := setSQLiteEnv(t)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--ci", "--env-file", envFile, "migrate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestSeedAndTargetingCommands(t *testing.T) {
	envFile := setSQLiteEnv(t)
	cfg, db, err := loadConfigDB(envFile)
	if err != nil {
		t.Fatalf("load config db: %v", err)
	}
	t.Cleanup(func() { closeDB(db) })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	details, err := seedDemoUsers(ctx, users, true)
	if err != nil || len(details) != 3 || !strings.HasPrefix(details[0], "would create") {
		t.Fatalf("unexpected dry run: details=%v err=%v", details, err)
	}
	if _, err := users.FindByEmail(ctx, "admin@example.com"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("dry run must not write, got %v", err)
	}
	if _, err := seedDemoUsers(ctx, users, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	details, err = seedDemoUsers(ctx, users, false)
	if err != nil || !strings.HasPrefix(details[0], "exists") {
		t.Fatalf("expected idempotent seed, details=%v err=%v", details, err)
	}

	admin, err := users.FindByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	member, err := users.FindByEmail(ctx, "member@example.com")
	if err != nil {
		t.Fatalf("find member: %v", err)
	}

	svc := service.NewFeatureFlagService(repository.NewFeatureFlagRepository(db), users, service.FeatureFlagServiceOptions{
		MaxTargetedUsers: cfg.FeatureFlagMaxTargetedUsers,
	})

	if _, err := setTargeting(ctx, svc, service.UpdateTargetingInput{Flag: "AGENTS_FEATURE", Mode: "CUSTOM", UserIDs: []uint{member.ID}}); err == nil {
		t.Fatal("expected error without --by")
	}
	details, err = setTargeting(ctx, svc, service.UpdateTargetingInput{Flag: "AGENTS_FEATURE", Mode: "CUSTOM", UserIDs: []uint{member.ID}, UpdatedBy: admin.ID})
	if err != nil || details[0] != "AGENTS_FEATURE set to CUSTOM with 1 users" {
		t.Fatalf("unexpected set result: details=%v err=%v", details, err)
	}
	if _, err := setTargeting(ctx, svc, service.UpdateTargetingInput{Flag: "AGENTS_FEATURE", Mode: "custom", UpdatedBy: admin.ID}); !errors.Is(err, service.ErrInvalidTargetMode) {
		t.Fatalf("expected invalid mode error, got %v", err)
	}

	details, err = getTargeting(ctx, svc, "AGENTS_FEATURE")
	if err != nil || len(details) != 2 || !strings.Contains(details[1], "member@example.com") {
		t.Fatalf("unexpected get result: details=%v err=%v", details, err)
	}

	details, err = listTargeting(ctx, svc)
	if err != nil || len(details) != 5 {
		t.Fatalf("unexpected list result: details=%v err=%v", details, err)
	}
	var found bool
	for _, line := range details {
		if strings.HasPrefix(line, "AGENTS_FEATURE mode=CUSTOM members=1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected AGENTS_FEATURE summary in %v", details)
	}

	details, err = evalFlag(ctx, svc, "AGENTS_FEATURE", member.ID)
	if err != nil || !strings.Contains(details[0], "enabled=true") {
		t.Fatalf("unexpected eval for member: details=%v err=%v", details, err)
	}
	details, err = evalFlag(ctx, svc, "AGENTS_FEATURE", admin.ID)
	if err != nil || !strings.Contains(details[0], "enabled=false") {
		t.Fatalf("unexpected eval for admin: details=%v err=%v", details, err)
	}
	if _, err := evalFlag(ctx, svc, "NOPE", 0); !errors.Is(err, service.ErrUnknownFeatureFlag) {
		t.Fatalf("expected unknown flag error, got %v", err)
	}
}
