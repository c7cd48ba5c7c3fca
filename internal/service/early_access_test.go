package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
)

type stubFeatureFlagService struct {
	FeatureFlagService
	enabled map[domain.FlagKey]bool
	calls   int
}

func (s *stubFeatureFlagService) IsFeatureEnabledForUser(_ context.Context, flag string, _ uint) bool {
	s.calls++
	return s.enabled[domain.FlagKey(flag)]
}

func TestEarlyAccessCanAccess(t *testing.T) {
	users := &stubUserRepository{findByIDFn: func(id uint) (*domain.User, error) {
		switch id {
		case 1:
			return &domain.User{ID: 1, IsAdmin: true}, nil
		case 2:
			return &domain.User{ID: 2}, nil
		case 3:
			return nil, errors.New("db down")
		default:
			return nil, repository.ErrUserNotFound
		}
	}}
	ctx := context.Background()

	t.Run("flag on for everyone lets everyone in", func(t *testing.T) {
		flags := &stubFeatureFlagService{enabled: map[domain.FlagKey]bool{domain.FlagEarlyAccessMode: true}}
		svc := NewEarlyAccessService(flags, users, nil)
		for _, id := range []uint{0, 1, 2, 3, 99} {
			if !svc.CanAccess(ctx, id) {
				t.Fatalf("expected user %d to pass", id)
			}
		}
	})

	t.Run("flag off admits admins only", func(t *testing.T) {
		svc := NewEarlyAccessService(&stubFeatureFlagService{}, users, nil)
		if !svc.CanAccess(ctx, 1) {
			t.Fatal("expected admin bypass")
		}
		for _, id := range []uint{0, 2, 3, 99} {
			if svc.CanAccess(ctx, id) {
				t.Fatalf("expected user %d to be gated", id)
			}
		}
	})

	t.Run("admin bypass skips flag evaluation", func(t *testing.T) {
		flags := &stubFeatureFlagService{}
		svc := NewEarlyAccessService(flags, users, nil)
		_ = svc.CanAccess(ctx, 1)
		if flags.calls != 0 {
			t.Fatalf("expected no flag evaluation for admin, got %d", flags.calls)
		}
	})
}
