package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User model
type User struct {
	ID                   string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
	Email                string        `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash         []byte        `gorm:"not null" json:"-"`
	FirstName            string        `gorm:"size:100;not null" json:"firstName"`
	LastName             string        `gorm:"size:100;not null" json:"lastName"`
	IsAdmin              bool          `gorm:"default:false;not null" json:"isAdmin"`
	IsVerified           bool          `gorm:"default:false;not null" json:"isVerified"`
	ResetPasswordToken   *string       `gorm:"size:128" json:"-"`
	ResetPasswordExpires *time.Time    `json:"-"`
	Applications         []Application `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
