package domain

import "time"

type TargetMode string

const (
	TargetModeAll        TargetMode = "ALL"
	TargetModePremium    TargetMode = "PREMIUM"
	TargetModeNonPremium TargetMode = "NON_PREMIUM"
	TargetModeCustom     TargetMode = "CUSTOM"
)

var targetModes = []TargetMode{TargetModeAll, TargetModePremium, TargetModeNonPremium, TargetModeCustom}

// TargetModes returns the closed set of target modes in display order.
func TargetModes() []TargetMode {
	return append([]TargetMode(nil), targetModes...)
}

// ParseTargetMode rejects anything outside the closed set; no case folding.
func ParseTargetMode(raw string) (TargetMode, bool) {
	for _, m := range targetModes {
		if string(m) == raw {
			return m, true
		}
	}
	return "", false
}

func (m TargetMode) Valid() bool {
	_, ok := ParseTargetMode(string(m))
	return ok
}

// FeatureFlagTargeting is the single targeting record of a flag key.
type FeatureFlagTargeting struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	FlagKey    string     `gorm:"uniqueIndex;size:128;not null" json:"flag_key"`
	TargetMode TargetMode `gorm:"size:32;not null;default:ALL" json:"target_mode"`
	UpdatedBy  *uint      `gorm:"index" json:"updated_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FeatureFlagUser is one explicit (flag, user) membership used by CUSTOM targeting.
type FeatureFlagUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FlagKey   string    `gorm:"size:128;not null;index:idx_flag_user,unique" json:"flag_key"`
	UserID    uint      `gorm:"not null;index:idx_flag_user,unique;index" json:"user_id"`
	Enabled   bool      `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}
