package flagctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/config"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/database"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/tools/common"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/tools/ui"
)

type options struct {
	ci      bool
	envFile string
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "flagctl",
		Short:         "Inspect and manage feature flag targeting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "emit JSON result instead of the interactive view")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file loaded before reading config")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall command timeout")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newListCommand(opts),
		newGetCommand(opts),
		newSetCommand(opts),
		newEvalCommand(opts),
		newCacheCommand(opts),
	)
	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "migrate", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				if err := database.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				return []string{"schema up to date"}, nil
			})
			return err
		},
	}
}

func newSeedCommand(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo admin, premium and free users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "seed", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB(db)
				return seedDemoUsers(ctx, repository.NewUserRepository(db), dryRun)
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be created")
	return cmd
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered flag with its targeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "list", withService(opts, listTargeting))
			return err
		},
	}
}

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get FLAG",
		Short: "Show a flag's targeting and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "get", withService(opts, func(ctx context.Context, svc service.FeatureFlagService) ([]string, error) {
				return getTargeting(ctx, svc, args[0])
			}))
			return err
		},
	}
}

func newSetCommand(opts *options) *cobra.Command {
	var (
		mode    string
		userIDs []uint
		by      uint
	)
	cmd := &cobra.Command{
		Use:   "set FLAG",
		Short: "Replace a flag's targeting mode and member list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := service.UpdateTargetingInput{Flag: args[0], Mode: mode, UserIDs: userIDs, UpdatedBy: by}
			_, err := run(opts, "flagctl", "set", withService(opts, func(ctx context.Context, svc service.FeatureFlagService) ([]string, error) {
				return setTargeting(ctx, svc, in)
			}))
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "ALL, PREMIUM, NON_PREMIUM or CUSTOM")
	cmd.Flags().UintSliceVar(&userIDs, "users", nil, "user ids for CUSTOM mode")
	cmd.Flags().UintVar(&by, "by", 0, "admin user id recorded as updater")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newEvalCommand(opts *options) *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "eval FLAG",
		Short: "Evaluate a flag for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "eval", withService(opts, func(ctx context.Context, svc service.FeatureFlagService) ([]string, error) {
				return evalFlag(ctx, svc, args[0], userID)
			}))
			return err
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id, 0 for anonymous")
	return cmd
}

func newCacheCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Evaluation cache maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(opts, "flagctl", "cache flush", withService(opts, func(ctx context.Context, svc service.FeatureFlagService) ([]string, error) {
				if err := svc.FlushCache(ctx); err != nil {
					return nil, err
				}
				return []string{"evaluation cache flushed"}, nil
			}))
			return err
		},
	})
	return cmd
}

func run(opts *options, title, action string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	label := strings.TrimSpace(title + " " + action)
	timed := func(ctx context.Context) ([]string, error) {
		timeout := opts.timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	}
	if opts.ci {
		details, err := timed(context.Background())
		common.PrintCIResult(err == nil, label, details, err)
		return details, err
	}
	return ui.Run(label, timed)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withService builds the flag service the way the API does, minus the
// process-local cache which a one-shot command cannot share.
func withService(opts *options, fn func(ctx context.Context, svc service.FeatureFlagService) ([]string, error)) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		cfg, db, err := loadConfigDB(opts.envFile)
		if err != nil {
			return nil, err
		}
		defer closeDB(db)

		svcOpts := service.FeatureFlagServiceOptions{MaxTargetedUsers: cfg.FeatureFlagMaxTargetedUsers}
		if cfg.FeatureFlagCacheEnabled && cfg.FeatureFlagCacheRedisEnabled {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			defer client.Close()
			svcOpts.Cache = service.NewRedisFeatureFlagEvaluationCacheStore(client, cfg.RedisKeyPrefix)
			svcOpts.CacheTTL = cfg.FeatureFlagCacheTTL
		}
		if cfg.StorageEnabled {
			resolver, err := service.NewMinIOImageResolver(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
			if err != nil {
				return nil, err
			}
			svcOpts.Images = resolver
		}
		svc := service.NewFeatureFlagService(repository.NewFeatureFlagRepository(db), repository.NewUserRepository(db), svcOpts)
		return fn(ctx, svc)
	}
}

func listTargeting(ctx context.Context, svc service.FeatureFlagService) ([]string, error) {
	summaries, err := svc.ListTargeting(ctx)
	if err != nil {
		return nil, err
	}
	details := make([]string, 0, len(summaries))
	for _, s := range summaries {
		line := fmt.Sprintf("%s mode=%s members=%d default=%t", s.Flag, s.TargetMode, s.MemberCount, s.DefaultValue)
		if s.UpdatedBy != nil {
			line += fmt.Sprintf(" updated_by=%d", *s.UpdatedBy)
		}
		details = append(details, line)
	}
	return details, nil
}

func getTargeting(ctx context.Context, svc service.FeatureFlagService, flag string) ([]string, error) {
	view, err := svc.GetTargeting(ctx, flag)
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("%s mode=%s", view.Flag, view.TargetMode)}
	for _, u := range view.Users {
		email := u.Email
		if email == "" {
			email = "(missing user)"
		}
		details = append(details, fmt.Sprintf("user %d %s enabled=%t premium=%t", u.UserID, email, u.Enabled, u.IsPremium))
	}
	return details, nil
}

func setTargeting(ctx context.Context, svc service.FeatureFlagService, in service.UpdateTargetingInput) ([]string, error) {
	if in.UpdatedBy == 0 {
		return nil, errors.New("--by must name the admin making the change")
	}
	if err := svc.UpdateTargeting(ctx, in); err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("%s set to %s", in.Flag, in.Mode)
	if in.Mode == string(domain.TargetModeCustom) {
		detail += fmt.Sprintf(" with %d users", len(in.UserIDs))
	}
	return []string{detail}, nil
}

func evalFlag(ctx context.Context, svc service.FeatureFlagService, flag string, userID uint) ([]string, error) {
	res := svc.Evaluate(ctx, flag, userID)
	if res.Source == service.EvaluationSourceUnknown {
		return nil, fmt.Errorf("%w: %s", service.ErrUnknownFeatureFlag, flag)
	}
	return []string{fmt.Sprintf("%s user=%d enabled=%t source=%s", res.Key, userID, res.Enabled, res.Source)}, nil
}

var demoUsers = []domain.User{
	{Email: "admin@example.com", IsAdmin: true, Profile: &domain.Profile{DisplayName: "Demo Admin"}},
	{Email: "premium@example.com", IsPremium: true, Profile: &domain.Profile{DisplayName: "Premium Member"}},
	{Email: "member@example.com", Profile: &domain.Profile{DisplayName: "Free Member"}},
}

func seedDemoUsers(ctx context.Context, users repository.UserRepository, dryRun bool) ([]string, error) {
	details := make([]string, 0, len(demoUsers))
	for _, tmpl := range demoUsers {
		existing, err := users.FindByEmail(ctx, tmpl.Email)
		switch {
		case err == nil:
			details = append(details, fmt.Sprintf("exists %s id=%d", existing.Email, existing.ID))
			continue
		case !errors.Is(err, repository.ErrUserNotFound):
			return details, err
		}
		if dryRun {
			details = append(details, "would create "+tmpl.Email)
			continue
		}
		u := tmpl
		profile := *tmpl.Profile
		u.Profile = &profile
		if err := users.Create(ctx, &u); err != nil {
			return details, fmt.Errorf("create %s: %w", tmpl.Email, err)
		}
		details = append(details, fmt.Sprintf("created %s id=%d", u.Email, u.ID))
	}
	return details, nil
}
