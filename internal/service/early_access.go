package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
)

// EarlyAccessService decides who may use the platform during early access.
// EARLY_ACCESS_MODE targets the users who are let in; admins always pass
// since the flag evaluator itself never looks at admin status.
type EarlyAccessService interface {
	CanAccess(ctx context.Context, userID uint) bool
}

type earlyAccessService struct {
	flags  FeatureFlagService
	users  repository.UserRepository
	logger *slog.Logger
}

func NewEarlyAccessService(flags FeatureFlagService, users repository.UserRepository, logger *slog.Logger) EarlyAccessService {
	if logger == nil {
		logger = slog.Default()
	}
	return &earlyAccessService{flags: flags, users: users, logger: logger}
}

func (s *earlyAccessService) CanAccess(ctx context.Context, userID uint) bool {
	if userID != 0 {
		u, err := s.users.FindByID(ctx, userID)
		switch {
		case err == nil && u.IsAdmin:
			return true
		case err != nil && !errors.Is(err, repository.ErrUserNotFound):
			s.logger.WarnContext(ctx, "early access admin lookup failed", "user_id", userID, "error", err.Error())
		}
	}
	return s.flags.IsFeatureEnabledForUser(ctx, string(domain.FlagEarlyAccessMode), userID)
}
