package repository

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/observability"
)

var ErrFeatureFlagTargetingNotFound = errors.New("feature flag targeting not found")

const memberInsertBatchSize = 200

// TargetingSnapshot is a record and its members read from one transaction.
// Targeting is nil when the flag has never been configured; Members is only
// loaded for CUSTOM targeting.
type TargetingSnapshot struct {
	Targeting *domain.FeatureFlagTargeting
	Members   []domain.FeatureFlagUser
}

type FeatureFlagRepository interface {
	FindTargeting(ctx context.Context, flagKey string) (*domain.FeatureFlagTargeting, error)
	ListTargetings(ctx context.Context) ([]domain.FeatureFlagTargeting, error)
	ListMembers(ctx context.Context, flagKey string) ([]domain.FeatureFlagUser, error)
	CountMembers(ctx context.Context) (map[string]int64, error)
	LoadSnapshot(ctx context.Context, flagKey string) (TargetingSnapshot, error)
	UpsertTargeting(ctx context.Context, targeting *domain.FeatureFlagTargeting) error
	ReplaceMembers(ctx context.Context, flagKey string, userIDs []uint) error
	WithinTransaction(ctx context.Context, fn func(repo FeatureFlagRepository) error) error
}

type GormFeatureFlagRepository struct{ db *gorm.DB }

func NewFeatureFlagRepository(db *gorm.DB) FeatureFlagRepository {
	return &GormFeatureFlagRepository{db: db}
}

func (r *GormFeatureFlagRepository) FindTargeting(ctx context.Context, flagKey string) (*domain.FeatureFlagTargeting, error) {
	targeting, err := findTargeting(r.db.WithContext(ctx), flagKey)
	if err != nil {
		if errors.Is(err, ErrFeatureFlagTargetingNotFound) {
			observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "find", "not_found")
			return nil, err
		}
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "find", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "find", "success")
	return targeting, nil
}

func (r *GormFeatureFlagRepository) ListTargetings(ctx context.Context) ([]domain.FeatureFlagTargeting, error) {
	var targetings []domain.FeatureFlagTargeting
	if err := r.db.WithContext(ctx).Order("flag_key asc").Find(&targetings).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "list", "success")
	return targetings, nil
}

func (r *GormFeatureFlagRepository) ListMembers(ctx context.Context, flagKey string) ([]domain.FeatureFlagUser, error) {
	members, err := listMembers(r.db.WithContext(ctx), flagKey)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_user", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_user", "list", "success")
	return members, nil
}

func (r *GormFeatureFlagRepository) CountMembers(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		FlagKey string
		Total   int64
	}
	err := r.db.WithContext(ctx).Model(&domain.FeatureFlagUser{}).
		Select("flag_key, count(*) as total").
		Group("flag_key").
		Scan(&rows).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_user", "count", "error")
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.FlagKey] = row.Total
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_user", "count", "success")
	return out, nil
}

// LoadSnapshot reads the record and, for CUSTOM targeting, its members inside
// one read transaction so a concurrent ReplaceMembers is seen entirely or not
// at all.
func (r *GormFeatureFlagRepository) LoadSnapshot(ctx context.Context, flagKey string) (TargetingSnapshot, error) {
	var snap TargetingSnapshot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		targeting, err := findTargeting(tx, flagKey)
		if err != nil {
			if errors.Is(err, ErrFeatureFlagTargetingNotFound) {
				return nil
			}
			return err
		}
		snap.Targeting = targeting
		if targeting.TargetMode != domain.TargetModeCustom {
			return nil
		}
		members, err := listMembers(tx, flagKey)
		if err != nil {
			return err
		}
		snap.Members = members
		return nil
	}, r.readTxOptions()...)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "snapshot", "error")
		return TargetingSnapshot{}, err
	}
	if snap.Targeting == nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "snapshot", "not_found")
	} else {
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "snapshot", "success")
	}
	return snap, nil
}

// UpsertTargeting keeps at most one row per flag key; a second write overwrites
// mode and audit columns.
func (r *GormFeatureFlagRepository) UpsertTargeting(ctx context.Context, targeting *domain.FeatureFlagTargeting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flag_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"target_mode", "updated_by", "updated_at"}),
	}).Create(targeting).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_targeting", "upsert", "success")
	return nil
}

// ReplaceMembers swaps the full member set of a flag. Duplicate ids are
// collapsed; an empty list clears the set.
func (r *GormFeatureFlagRepository) ReplaceMembers(ctx context.Context, flagKey string, userIDs []uint) error {
	rows := make([]domain.FeatureFlagUser, 0, len(userIDs))
	for _, id := range dedupeIDs(userIDs) {
		rows = append(rows, domain.FeatureFlagUser{FlagKey: flagKey, UserID: id, Enabled: true})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flag_key = ?", flagKey).Delete(&domain.FeatureFlagUser{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, memberInsertBatchSize).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "feature_flag_user", "replace", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "feature_flag_user", "replace", "success")
	return nil
}

func (r *GormFeatureFlagRepository) WithinTransaction(ctx context.Context, fn func(repo FeatureFlagRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormFeatureFlagRepository{db: tx})
	})
}

// readTxOptions asks postgres for a single snapshot across statements; sqlite
// transactions are already serializable.
func (r *GormFeatureFlagRepository) readTxOptions() []*sql.TxOptions {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	}
	return nil
}

func findTargeting(db *gorm.DB, flagKey string) (*domain.FeatureFlagTargeting, error) {
	var targeting domain.FeatureFlagTargeting
	if err := db.Where("flag_key = ?", flagKey).First(&targeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeatureFlagTargetingNotFound
		}
		return nil, err
	}
	return &targeting, nil
}

func listMembers(db *gorm.DB, flagKey string) ([]domain.FeatureFlagUser, error) {
	var members []domain.FeatureFlagUser
	if err := db.Where("flag_key = ?", flagKey).Order("id asc").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
