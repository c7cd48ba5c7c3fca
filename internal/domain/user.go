package domain

import "time"

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	IsPremium bool      `gorm:"not null;default:false" json:"is_premium"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	Profile   *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Image       string    `gorm:"size:1024" json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserAttributes is the read-only view of a user used by flag evaluation.
type UserAttributes struct {
	UserID    uint
	IsPremium bool
	IsAdmin   bool
}

func (u *User) Attributes() UserAttributes {
	return UserAttributes{UserID: u.ID, IsPremium: u.IsPremium, IsAdmin: u.IsAdmin}
}
