package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Policy is a detection or response rule. Inactive policies are kept for history.
type Policy struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"size:1000" json:"description"`
	Rule        string    `gorm:"type:text" json:"rule"`
	IsActive    bool      `gorm:"not null;default:false;index" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Policy) TableName() string { return "policies" }

func (p *Policy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
