package database

import (
	"gorm.io/gorm"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Profile{},
		&domain.FeatureFlagTargeting{},
		&domain.FeatureFlagUser{},
	)
}
