package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/config"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/observability"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
)

var (
	ErrUnknownFeatureFlag           = errors.New("unknown feature flag")
	ErrInvalidTargetMode            = errors.New("invalid target mode")
	ErrCustomTargetingRequiresUsers = errors.New("custom targeting requires at least one user id")
	ErrTooManyTargetedUsers         = errors.New("too many targeted users")
	ErrInvalidTargetedUser          = errors.New("targeted user id must be positive")
	ErrMalformedTargeting           = errors.New("malformed feature flag targeting")
)

// IsValidationError reports whether err is an admin input error raised before
// any write.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnknownFeatureFlag) ||
		errors.Is(err, ErrInvalidTargetMode) ||
		errors.Is(err, ErrCustomTargetingRequiresUsers) ||
		errors.Is(err, ErrTooManyTargetedUsers) ||
		errors.Is(err, ErrInvalidTargetedUser)
}

const (
	EvaluationSourceStore    = "store"
	EvaluationSourceCache    = "cache"
	EvaluationSourceFallback = "fallback"
	EvaluationSourceUnknown  = "unknown"
)

type FeatureFlagEvaluation struct {
	Key     domain.FlagKey `json:"key"`
	Enabled bool           `json:"enabled"`
	Source  string         `json:"source"`
}

type FlagTargetingUser struct {
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	Enabled     bool   `json:"enabled"`
	IsPremium   bool   `json:"is_premium"`
	IsAdmin     bool   `json:"is_admin"`
	DisplayName string `json:"display_name"`
	Image       string `json:"image"`
}

type FlagTargetingView struct {
	Flag       domain.FlagKey      `json:"flag"`
	TargetMode domain.TargetMode   `json:"target_mode"`
	UpdatedBy  *uint               `json:"updated_by,omitempty"`
	UpdatedAt  *time.Time          `json:"updated_at,omitempty"`
	Users      []FlagTargetingUser `json:"users"`
}

type FlagTargetingSummary struct {
	Flag         domain.FlagKey    `json:"flag"`
	Description  string            `json:"description"`
	DefaultValue bool              `json:"default_value"`
	TargetMode   domain.TargetMode `json:"target_mode"`
	MemberCount  int64             `json:"member_count"`
	UpdatedBy    *uint             `json:"updated_by,omitempty"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
}

type UpdateTargetingInput struct {
	Flag      string
	Mode      string
	UserIDs   []uint
	UpdatedBy uint
}

type FeatureFlagService interface {
	// IsFeatureEnabledForUser never fails; userID 0 is anonymous.
	IsFeatureEnabledForUser(ctx context.Context, flag string, userID uint) bool
	Evaluate(ctx context.Context, flag string, userID uint) FeatureFlagEvaluation
	EvaluateAll(ctx context.Context, userID uint) []FeatureFlagEvaluation
	GetTargeting(ctx context.Context, flag string) (*FlagTargetingView, error)
	ListTargeting(ctx context.Context) ([]FlagTargetingSummary, error)
	UpdateTargeting(ctx context.Context, in UpdateTargetingInput) error
	FlushCache(ctx context.Context) error
}

type FeatureFlagServiceOptions struct {
	Cache            FeatureFlagEvaluationCacheStore
	CacheTTL         time.Duration
	MaxTargetedUsers int
	Images           ProfileImageResolver
	Logger           *slog.Logger
}

type featureFlagService struct {
	flags            repository.FeatureFlagRepository
	users            repository.UserRepository
	cache            FeatureFlagEvaluationCacheStore
	cacheTTL         time.Duration
	maxTargetedUsers int
	images           ProfileImageResolver
	logger           *slog.Logger
}

func NewFeatureFlagService(flags repository.FeatureFlagRepository, users repository.UserRepository, opts FeatureFlagServiceOptions) FeatureFlagService {
	svc := &featureFlagService{
		flags:            flags,
		users:            users,
		cache:            opts.Cache,
		cacheTTL:         opts.CacheTTL,
		maxTargetedUsers: opts.MaxTargetedUsers,
		images:           opts.Images,
		logger:           opts.Logger,
	}
	if svc.cache == nil {
		svc.cache = NewNoopFeatureFlagEvaluationCacheStore()
	}
	if svc.maxTargetedUsers <= 0 {
		svc.maxTargetedUsers = config.DefaultMaxTargetedUsers
	}
	if svc.images == nil {
		svc.images = NewPassthroughImageResolver()
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func (s *featureFlagService) IsFeatureEnabledForUser(ctx context.Context, flag string, userID uint) bool {
	return s.Evaluate(ctx, flag, userID).Enabled
}

func (s *featureFlagService) Evaluate(ctx context.Context, rawFlag string, userID uint) FeatureFlagEvaluation {
	flag, ok := domain.ParseFlagKey(rawFlag)
	if !ok {
		s.logger.WarnContext(ctx, "feature flag evaluation for unknown key", "flag", rawFlag, "user_id", userID)
		observability.RecordFeatureFlagEvaluation(ctx, "unknown", EvaluationSourceUnknown, false)
		return FeatureFlagEvaluation{Key: domain.FlagKey(rawFlag), Enabled: false, Source: EvaluationSourceUnknown}
	}

	ctx, span := observability.StartSpan(ctx, "feature_flag.evaluate", attribute.String("flag", string(flag)))
	defer span.End()

	cacheKey := evaluationCacheKey(flag, userID)
	if enabled, hit := s.cachedEvaluation(ctx, cacheKey); hit {
		observability.RecordFeatureFlagEvaluation(ctx, string(flag), EvaluationSourceCache, enabled)
		return FeatureFlagEvaluation{Key: flag, Enabled: enabled, Source: EvaluationSourceCache}
	}

	enabled, err := s.evaluateFromStore(ctx, flag, userID)
	if err != nil {
		fallback := domain.DefaultValue(flag)
		span.RecordError(err)
		span.SetStatus(codes.Error, "targeting unavailable")
		s.logger.WarnContext(ctx, "feature flag targeting unavailable, using default",
			"flag", string(flag),
			"user_id", userID,
			"default", fallback,
			"error", err.Error(),
		)
		observability.RecordFeatureFlagEvaluation(ctx, string(flag), EvaluationSourceFallback, fallback)
		return FeatureFlagEvaluation{Key: flag, Enabled: fallback, Source: EvaluationSourceFallback}
	}

	s.storeEvaluation(ctx, cacheKey, enabled)
	observability.RecordFeatureFlagEvaluation(ctx, string(flag), EvaluationSourceStore, enabled)
	return FeatureFlagEvaluation{Key: flag, Enabled: enabled, Source: EvaluationSourceStore}
}

func (s *featureFlagService) EvaluateAll(ctx context.Context, userID uint) []FeatureFlagEvaluation {
	keys := domain.FlagKeys()
	out := make([]FeatureFlagEvaluation, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.Evaluate(ctx, string(key), userID))
	}
	return out
}

func (s *featureFlagService) evaluateFromStore(ctx context.Context, flag domain.FlagKey, userID uint) (bool, error) {
	snap, err := s.flags.LoadSnapshot(ctx, string(flag))
	if err != nil {
		return false, fmt.Errorf("load targeting: %w", err)
	}
	mode := domain.TargetModeAll
	if snap.Targeting != nil {
		mode = snap.Targeting.TargetMode
		if !mode.Valid() {
			return false, fmt.Errorf("%w: target mode %q", ErrMalformedTargeting, mode)
		}
	}

	var user *domain.UserAttributes
	if userID != 0 {
		switch mode {
		case domain.TargetModePremium, domain.TargetModeNonPremium:
			u, err := s.users.FindByID(ctx, userID)
			switch {
			case errors.Is(err, repository.ErrUserNotFound):
				// unknown users are evaluated like anonymous ones
			case err != nil:
				return false, fmt.Errorf("load user attributes: %w", err)
			default:
				attrs := u.Attributes()
				user = &attrs
			}
		default:
			user = &domain.UserAttributes{UserID: userID}
		}
	}
	return EvaluateTargeting(mode, enabledMemberSet(snap.Members), user), nil
}

func (s *featureFlagService) cachedEvaluation(ctx context.Context, cacheKey string) (bool, bool) {
	if s.cacheTTL <= 0 {
		return false, false
	}
	payload, ok, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		observability.RecordFeatureFlagCacheEvent(ctx, "get_error")
		s.logger.DebugContext(ctx, "feature flag cache read failed", "key", cacheKey, "error", err.Error())
		return false, false
	}
	if !ok || len(payload) != 1 {
		observability.RecordFeatureFlagCacheEvent(ctx, "miss")
		return false, false
	}
	observability.RecordFeatureFlagCacheEvent(ctx, "hit")
	return payload[0] == '1', true
}

func (s *featureFlagService) storeEvaluation(ctx context.Context, cacheKey string, enabled bool) {
	if s.cacheTTL <= 0 {
		return
	}
	payload := []byte{'0'}
	if enabled {
		payload[0] = '1'
	}
	if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
		observability.RecordFeatureFlagCacheEvent(ctx, "set_error")
		s.logger.DebugContext(ctx, "feature flag cache write failed", "key", cacheKey, "error", err.Error())
	}
}

func (s *featureFlagService) GetTargeting(ctx context.Context, rawFlag string) (*FlagTargetingView, error) {
	flag, ok := domain.ParseFlagKey(rawFlag)
	if !ok {
		return nil, ErrUnknownFeatureFlag
	}
	snap, err := s.flags.LoadSnapshot(ctx, string(flag))
	if err != nil {
		return nil, fmt.Errorf("load targeting: %w", err)
	}
	view := &FlagTargetingView{Flag: flag, TargetMode: domain.TargetModeAll, Users: []FlagTargetingUser{}}
	if snap.Targeting != nil {
		view.TargetMode = snap.Targeting.TargetMode
		view.UpdatedBy = snap.Targeting.UpdatedBy
		updatedAt := snap.Targeting.UpdatedAt
		view.UpdatedAt = &updatedAt
	}
	if len(snap.Members) == 0 {
		return view, nil
	}

	ids := make([]uint, 0, len(snap.Members))
	for _, m := range snap.Members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load targeted users: %w", err)
	}
	byID := make(map[uint]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for _, m := range snap.Members {
		row := FlagTargetingUser{UserID: m.UserID, Enabled: m.Enabled}
		if u, ok := byID[m.UserID]; ok {
			row.Email = u.Email
			row.IsPremium = u.IsPremium
			row.IsAdmin = u.IsAdmin
			if u.Profile != nil {
				row.DisplayName = u.Profile.DisplayName
				row.Image = s.resolveImage(ctx, u.Profile.Image)
			}
		}
		view.Users = append(view.Users, row)
	}
	return view, nil
}

func (s *featureFlagService) resolveImage(ctx context.Context, image string) string {
	resolved, err := s.images.ResolveImageURL(ctx, image)
	if err != nil {
		s.logger.WarnContext(ctx, "profile image url resolution failed", "image", image, "error", err.Error())
		return ""
	}
	return resolved
}

func (s *featureFlagService) ListTargeting(ctx context.Context) ([]FlagTargetingSummary, error) {
	targetings, err := s.flags.ListTargetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targetings: %w", err)
	}
	counts, err := s.flags.CountMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	byKey := make(map[string]domain.FeatureFlagTargeting, len(targetings))
	for _, t := range targetings {
		byKey[t.FlagKey] = t
	}

	defs := domain.FlagDefinitions()
	out := make([]FlagTargetingSummary, 0, len(defs))
	for _, def := range defs {
		summary := FlagTargetingSummary{
			Flag:         def.Key,
			Description:  def.Description,
			DefaultValue: def.Default,
			TargetMode:   domain.TargetModeAll,
			MemberCount:  counts[string(def.Key)],
		}
		if t, ok := byKey[string(def.Key)]; ok {
			summary.TargetMode = t.TargetMode
			summary.UpdatedBy = t.UpdatedBy
			updatedAt := t.UpdatedAt
			summary.UpdatedAt = &updatedAt
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *featureFlagService) UpdateTargeting(ctx context.Context, in UpdateTargetingInput) error {
	flag, ok := domain.ParseFlagKey(in.Flag)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeatureFlag, in.Flag)
	}
	mode, ok := domain.ParseTargetMode(in.Mode)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTargetMode, in.Mode)
	}

	var userIDs []uint
	if mode == domain.TargetModeCustom {
		if len(in.UserIDs) == 0 {
			return ErrCustomTargetingRequiresUsers
		}
		if len(in.UserIDs) > s.maxTargetedUsers {
			return fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyTargetedUsers, len(in.UserIDs), s.maxTargetedUsers)
		}
		for _, id := range in.UserIDs {
			if id == 0 {
				return ErrInvalidTargetedUser
			}
		}
		userIDs = in.UserIDs
	}

	var updatedBy *uint
	if in.UpdatedBy != 0 {
		actor := in.UpdatedBy
		updatedBy = &actor
	}

	ctx, span := observability.StartSpan(ctx, "feature_flag.update_targeting",
		attribute.String("flag", string(flag)),
		attribute.String("mode", string(mode)),
		attribute.Int("user_count", len(userIDs)),
	)
	defer span.End()

	err := s.flags.WithinTransaction(ctx, func(tx repository.FeatureFlagRepository) error {
		if err := tx.UpsertTargeting(ctx, &domain.FeatureFlagTargeting{
			FlagKey:    string(flag),
			TargetMode: mode,
			UpdatedBy:  updatedBy,
		}); err != nil {
			return fmt.Errorf("upsert targeting: %w", err)
		}
		// non-CUSTOM modes clear any previous allow-list
		if err := tx.ReplaceMembers(ctx, string(flag), userIDs); err != nil {
			return fmt.Errorf("replace members: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "targeting update failed")
		observability.RecordFeatureFlagTargetingWrite(ctx, string(flag), string(mode), "error")
		s.logger.ErrorContext(ctx, "feature flag targeting update failed", "flag", string(flag), "mode", string(mode), "error", err.Error())
		return err
	}

	if err := s.cache.InvalidateFlag(ctx, string(flag)); err != nil {
		observability.RecordFeatureFlagCacheEvent(ctx, "invalidate_error")
		s.logger.WarnContext(ctx, "feature flag cache invalidation failed", "flag", string(flag), "error", err.Error())
	}
	observability.RecordFeatureFlagTargetingWrite(ctx, string(flag), string(mode), "success")
	s.logger.InfoContext(ctx, "feature flag targeting updated",
		"flag", string(flag),
		"mode", string(mode),
		"user_count", len(userIDs),
		"updated_by", in.UpdatedBy,
	)
	return nil
}

func (s *featureFlagService) FlushCache(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}
