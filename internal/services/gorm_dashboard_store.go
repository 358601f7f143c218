package services

import (
	"context"
	"time"

	"github.com/huangang/secwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDashboardStore answers dashboard queries with GORM. The timestamp
// column is referenced through clause builders so it is quoted on every
// dialect. SQLite keeps timestamps as text carrying a UTC offset, so there
// they are compared and ordered through julianday() instead.
type GormDashboardStore struct {
	db             *gorm.DB
	textTimestamps bool
}

func NewGormDashboardStore(db *gorm.DB) *GormDashboardStore {
	return &GormDashboardStore{
		db:             db,
		textTimestamps: db.Dialector.Name() == "sqlite",
	}
}

func (s *GormDashboardStore) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Event{}).Count(&n).Error
	return n, err
}

func (s *GormDashboardStore) CountAlertsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (s *GormDashboardStore) CountPolicies(ctx context.Context, active bool) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Policy{}).
		Where("is_active = ?", active).
		Count(&n).Error
	return n, err
}

func (s *GormDashboardStore) CountDistinctSources(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("source IS NOT NULL").
		Distinct("source").
		Count(&n).Error
	return n, err
}

func (s *GormDashboardStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	q := s.db.WithContext(ctx).
		Select("id", "type", "source", "risk_score", "status", "timestamp")
	if s.textTimestamps {
		q = q.Order("julianday(timestamp) DESC")
	} else {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true})
	}

	var events []models.Event
	err := q.Limit(limit).Find(&events).Error
	return events, err
}

func (s *GormDashboardStore) EventTimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	q := s.db.WithContext(ctx).Model(&models.Event{})
	if s.textTimestamps {
		q = q.Where("julianday(timestamp) > julianday(?)", since.UTC())
	} else {
		q = q.Where(clause.Gt{Column: clause.Column{Name: "timestamp"}, Value: since.UTC()})
	}

	var timestamps []time.Time
	err := q.Pluck("timestamp", &timestamps).Error
	return timestamps, err
}
