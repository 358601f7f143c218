package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AlertStatusOpen         = "OPEN"
	AlertStatusAcknowledged = "ACKNOWLEDGED"
	AlertStatusResolved     = "RESOLVED"
)

// Alert is raised from one or more events; only OPEN alerts count as active.
type Alert struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	EventID   *string   `gorm:"size:36;index" json:"eventId"`
	Title     string    `gorm:"size:300" json:"title"`
	Severity  string    `gorm:"size:20" json:"severity"`
	Status    string    `gorm:"size:20;not null;index" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Alert) TableName() string { return "alerts" }

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
