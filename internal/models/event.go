package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a single security event reported by an agent
type Event struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"size:100;not null;index" json:"type"`
	Source    string    `gorm:"size:200;not null;index" json:"source"` // agent / sensor identifier
	RiskScore float64   `gorm:"not null;default:0" json:"riskScore"`
	Status    string    `gorm:"size:50;not null;index" json:"status"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Event) TableName() string { return "events" }

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = e.Timestamp.UTC()
	return nil
}
