package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/huangang/secwatch/internal/metrics"
	"github.com/huangang/secwatch/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// RecentEventsLimit is how many of the newest events the dashboard lists.
	RecentEventsLimit = 10
	// LookbackWindow scopes the hourly event histogram.
	LookbackWindow = 24 * time.Hour
)

// Store operations, used as log and metric labels.
const (
	OpCountEvents         = "count_events"
	OpCountOpenAlerts     = "count_open_alerts"
	OpCountActivePolicies = "count_active_policies"
	OpCountSources        = "count_distinct_sources"
	OpRecentEvents        = "recent_events"
	OpEventsSince         = "event_timestamps_since"
)

// DashboardStore is the read-only query surface the dashboard needs.
type DashboardStore interface {
	CountEvents(ctx context.Context) (int64, error)
	CountAlertsByStatus(ctx context.Context, status string) (int64, error)
	CountPolicies(ctx context.Context, active bool) (int64, error)
	// CountDistinctSources counts distinct non-null event sources.
	CountDistinctSources(ctx context.Context) (int64, error)
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	// EventTimestampsSince returns the timestamp of every event strictly after since.
	EventTimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// RetrievalError reports which store operation failed while building the dashboard.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

type DashboardStats struct {
	TotalEvents    int64 `json:"totalEvents"`
	ActiveAlerts   int64 `json:"activeAlerts"`
	ActiveSources  int64 `json:"activeSources"`
	ActivePolicies int64 `json:"activePolicies"`
}

type RecentEvent struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Source    string  `json:"source"`
	RiskScore float64 `json:"riskScore"`
	Status    string  `json:"status"`
	Timestamp ISOTime `json:"timestamp"`
}

type HourlyBucket struct {
	Hour  ISOTime `json:"hour"`
	Count int64   `json:"count"`
}

type DashboardResponse struct {
	Stats        DashboardStats `json:"stats"`
	RecentEvents []RecentEvent  `json:"recentEvents"`
	EventsByHour []HourlyBucket `json:"eventsByHour"`
}

type DashboardService struct {
	store   DashboardStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDashboardService builds the service on store. m may be nil.
func NewDashboardService(store DashboardStore, m *metrics.Metrics) *DashboardService {
	return &DashboardService{
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// GetStats runs all dashboard queries concurrently and assembles the payload.
// The first failing query cancels the rest; the returned error is a *RetrievalError.
func (s *DashboardService) GetStats(ctx context.Context) (*DashboardResponse, error) {
	var (
		stats      DashboardStats
		recent     []models.Event
		timestamps []time.Time
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.query(ctx, OpCountEvents, func(ctx context.Context) (err error) {
			stats.TotalEvents, err = s.store.CountEvents(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.query(ctx, OpCountOpenAlerts, func(ctx context.Context) (err error) {
			stats.ActiveAlerts, err = s.store.CountAlertsByStatus(ctx, models.AlertStatusOpen)
			return err
		})
	})
	g.Go(func() error {
		return s.query(ctx, OpCountActivePolicies, func(ctx context.Context) (err error) {
			stats.ActivePolicies, err = s.store.CountPolicies(ctx, true)
			return err
		})
	})
	g.Go(func() error {
		return s.query(ctx, OpCountSources, func(ctx context.Context) (err error) {
			stats.ActiveSources, err = s.store.CountDistinctSources(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.query(ctx, OpRecentEvents, func(ctx context.Context) (err error) {
			recent, err = s.store.RecentEvents(ctx, RecentEventsLimit)
			return err
		})
	})
	g.Go(func() error {
		since := s.now().Add(-LookbackWindow)
		return s.query(ctx, OpEventsSince, func(ctx context.Context) (err error) {
			timestamps, err = s.store.EventTimestampsSince(ctx, since)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DashboardResponse{
		Stats:        stats,
		RecentEvents: toRecentEvents(recent),
		EventsByHour: BucketByHour(timestamps),
	}, nil
}

func (s *DashboardService) query(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveQuery(op, time.Since(start), err)
	if err != nil {
		return &RetrievalError{Op: op, Err: err}
	}
	return nil
}

func toRecentEvents(events []models.Event) []RecentEvent {
	out := make([]RecentEvent, 0, len(events))
	for _, e := range events {
		out = append(out, RecentEvent{
			ID:        e.ID,
			Type:      e.Type,
			Source:    e.Source,
			RiskScore: e.RiskScore,
			Status:    e.Status,
			Timestamp: ISOTime(e.Timestamp),
		})
	}
	return out
}

// BucketByHour counts timestamps per UTC clock hour and returns the buckets
// in ascending hour order. The result is never nil.
func BucketByHour(timestamps []time.Time) []HourlyBucket {
	counts := make(map[int64]int64)
	for _, ts := range timestamps {
		counts[ts.UTC().Truncate(time.Hour).Unix()]++
	}

	buckets := make([]HourlyBucket, 0, len(counts))
	for hour, n := range counts {
		buckets = append(buckets, HourlyBucket{
			Hour:  ISOTime(time.Unix(hour, 0).UTC()),
			Count: n,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Hour.Time().Before(buckets[j].Hour.Time())
	})
	return buckets
}
