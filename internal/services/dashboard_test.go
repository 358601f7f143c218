package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/huangang/secwatch/internal/metrics"
	"github.com/huangang/secwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func hourAt(h, m int) time.Time {
	return time.Date(2024, 3, 9, h, m, 0, 0, time.UTC)
}

func TestBucketByHour_MergesWithinHour(t *testing.T) {
	buckets := BucketByHour([]time.Time{hourAt(11, 5), hourAt(10, 15), hourAt(10, 45)})

	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	expected := []struct {
		hour  string
		count int64
	}{
		{"2024-03-09T10:00:00.000Z", 2},
		{"2024-03-09T11:00:00.000Z", 1},
	}
	for i, exp := range expected {
		if got := buckets[i].Hour.String(); got != exp.hour {
			t.Errorf("bucket[%d].Hour = %s, expected %s", i, got, exp.hour)
		}
		if buckets[i].Count != exp.count {
			t.Errorf("bucket[%d].Count = %d, expected %d", i, buckets[i].Count, exp.count)
		}
	}
}

func TestBucketByHour_Empty(t *testing.T) {
	buckets := BucketByHour(nil)
	if buckets == nil {
		t.Fatal("buckets should be an empty slice, not nil")
	}
	b, _ := json.Marshal(buckets)
	if string(b) != "[]" {
		t.Errorf("expected [], got %s", b)
	}
}

func TestBucketByHour_NormalizesZones(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	buckets := BucketByHour([]time.Time{
		hourAt(10, 20),
		time.Date(2024, 3, 9, 19, 40, 0, 0, tokyo), // 10:40 UTC
	})

	if len(buckets) != 1 || buckets[0].Count != 2 {
		t.Fatalf("expected one bucket of 2, got %+v", buckets)
	}
	if got := buckets[0].Hour.String(); got != "2024-03-09T10:00:00.000Z" {
		t.Errorf("Hour = %s", got)
	}
}

func TestBucketByHour_SortedAndConserved(t *testing.T) {
	var timestamps []time.Time
	base := hourAt(0, 0)
	for i := 0; i < 200; i++ {
		// walk backwards so the input is in descending order
		timestamps = append(timestamps, base.Add(-time.Duration(i*7)*time.Minute))
	}

	buckets := BucketByHour(timestamps)

	var sum int64
	for i, b := range buckets {
		sum += b.Count
		if i > 0 && !buckets[i-1].Hour.Time().Before(b.Hour.Time()) {
			t.Errorf("buckets not strictly ascending at %d: %s then %s", i, buckets[i-1].Hour, b.Hour)
		}
		if b.Hour.Time().Minute() != 0 || b.Hour.Time().Second() != 0 {
			t.Errorf("bucket hour %s is not truncated", b.Hour)
		}
	}
	if sum != int64(len(timestamps)) {
		t.Errorf("bucket counts sum to %d, expected %d", sum, len(timestamps))
	}
}

func seedEvent(t *testing.T, store *GormDashboardStore, source string, ts time.Time) models.Event {
	t.Helper()
	e := models.Event{Type: "login_failure", Source: source, RiskScore: 42.5, Status: "NEW", Timestamp: ts}
	if err := store.db.Create(&e).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return e
}

func TestGetStats_EmptyStore(t *testing.T) {
	svc := NewDashboardService(NewGormDashboardStore(newTestDB(t)), nil)

	resp, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	expected := `{"stats":{"totalEvents":0,"activeAlerts":0,"activeSources":0,"activePolicies":0},"recentEvents":[],"eventsByHour":[]}`
	if string(b) != expected {
		t.Errorf("unexpected payload:\n got %s\nwant %s", b, expected)
	}
}

func TestGetStats_Counts(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedEvent(t, store, "agent-1", now.Add(-time.Duration(i+1)*time.Minute))
	}
	store.db.Create(&models.Alert{Title: "brute force", Severity: "high", Status: models.AlertStatusOpen})
	store.db.Create(&models.Alert{Title: "old", Severity: "low", Status: models.AlertStatusResolved})
	store.db.Create(&models.Policy{Name: "block-tor", IsActive: true})
	store.db.Create(&models.Policy{Name: "draft", IsActive: false})

	resp, err := NewDashboardService(store, nil).GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	expected := DashboardStats{TotalEvents: 3, ActiveAlerts: 1, ActiveSources: 1, ActivePolicies: 1}
	if resp.Stats != expected {
		t.Errorf("Stats = %+v, expected %+v", resp.Stats, expected)
	}
	if len(resp.RecentEvents) != 3 {
		t.Errorf("expected 3 recent events, got %d", len(resp.RecentEvents))
	}
}

func TestGetStats_DistinctSources(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	now := time.Now().UTC()
	for i, src := range []string{"agent-1", "agent-2", "agent-1", "sensor-9", "agent-2"} {
		seedEvent(t, store, src, now.Add(-time.Duration(i)*time.Hour))
	}

	resp, err := NewDashboardService(store, nil).GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if resp.Stats.ActiveSources != 3 {
		t.Errorf("ActiveSources = %d, expected 3", resp.Stats.ActiveSources)
	}
	if resp.Stats.ActiveSources > resp.Stats.TotalEvents {
		t.Errorf("ActiveSources %d exceeds TotalEvents %d", resp.Stats.ActiveSources, resp.Stats.TotalEvents)
	}
}

func TestGetStats_RecentEventsLimitAndOrder(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 15; i++ {
		seedEvent(t, store, "agent-1", base.Add(-time.Duration(i)*time.Hour*5))
	}

	resp, err := NewDashboardService(store, nil).GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if len(resp.RecentEvents) != RecentEventsLimit {
		t.Fatalf("expected %d recent events, got %d", RecentEventsLimit, len(resp.RecentEvents))
	}
	for i := 1; i < len(resp.RecentEvents); i++ {
		prev, cur := resp.RecentEvents[i-1].Timestamp.Time(), resp.RecentEvents[i].Timestamp.Time()
		if prev.Before(cur) {
			t.Errorf("recent events not newest first at %d: %v before %v", i, prev, cur)
		}
	}
	if !resp.RecentEvents[0].Timestamp.Time().Equal(base) {
		t.Errorf("newest event = %v, expected %v", resp.RecentEvents[0].Timestamp.Time(), base)
	}
	if resp.RecentEvents[0].Source != "agent-1" || resp.RecentEvents[0].RiskScore != 42.5 {
		t.Errorf("projection lost fields: %+v", resp.RecentEvents[0])
	}
}

func TestGetStats_LookbackWindow(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

	// outside the window, and exactly on its boundary
	seedEvent(t, store, "agent-1", hourAt(10, 15))
	seedEvent(t, store, "agent-1", now.Add(-LookbackWindow))
	seedEvent(t, store, "agent-1", now.Add(-LookbackWindow+time.Minute))
	seedEvent(t, store, "agent-2", time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC))
	seedEvent(t, store, "agent-2", time.Date(2024, 3, 10, 10, 45, 0, 0, time.UTC))
	seedEvent(t, store, "agent-3", time.Date(2024, 3, 10, 11, 5, 0, 0, time.UTC))

	svc := NewDashboardService(store, nil)
	svc.now = func() time.Time { return now }

	resp, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	b, _ := json.Marshal(resp.EventsByHour)
	expected := `[{"hour":"2024-03-09T12:00:00.000Z","count":1},{"hour":"2024-03-10T10:00:00.000Z","count":2},{"hour":"2024-03-10T11:00:00.000Z","count":1}]`
	if string(b) != expected {
		t.Errorf("eventsByHour:\n got %s\nwant %s", b, expected)
	}
	if resp.Stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, the window must not affect counts", resp.Stats.TotalEvents)
	}
}

// seedForeignEvent stores an event the way an ingestion writer might, keeping
// the offset of ts instead of normalizing it to UTC.
func seedForeignEvent(t *testing.T, store *GormDashboardStore, id, source string, ts time.Time) {
	t.Helper()
	e := models.Event{ID: id, Type: "login_failure", Source: source, RiskScore: 10, Status: "NEW", Timestamp: ts}
	if err := store.db.Session(&gorm.Session{SkipHooks: true}).Create(&e).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
}

func TestGetStats_LookbackWindowMixedOffsets(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	eastern := time.FixedZone("EST", -5*3600)

	// 2024-03-09T11:00Z, before the window opens
	seedForeignEvent(t, store, "evt-old", "agent-1", time.Date(2024, 3, 9, 20, 0, 0, 0, tokyo))
	// 2024-03-10T10:00Z
	seedForeignEvent(t, store, "evt-tokyo", "agent-1", time.Date(2024, 3, 10, 19, 0, 0, 0, tokyo))
	// 2024-03-09T14:00Z
	seedForeignEvent(t, store, "evt-eastern", "agent-2", time.Date(2024, 3, 9, 9, 0, 0, 0, eastern))

	svc := NewDashboardService(store, nil)
	svc.now = func() time.Time { return now }

	resp, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	b, _ := json.Marshal(resp.EventsByHour)
	expected := `[{"hour":"2024-03-09T14:00:00.000Z","count":1},{"hour":"2024-03-10T10:00:00.000Z","count":1}]`
	if string(b) != expected {
		t.Errorf("eventsByHour:\n got %s\nwant %s", b, expected)
	}
	if resp.Stats.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, expected 3", resp.Stats.TotalEvents)
	}
}

func TestRecentEvents_OrderedByInstantAcrossOffsets(t *testing.T) {
	store := NewGormDashboardStore(newTestDB(t))
	seedForeignEvent(t, store, "evt-10z", "agent-1", time.Date(2024, 3, 10, 19, 0, 0, 0, time.FixedZone("JST", 9*3600)))
	seedForeignEvent(t, store, "evt-11z", "agent-1", time.Date(2024, 3, 10, 6, 0, 0, 0, time.FixedZone("EST", -5*3600)))
	seedForeignEvent(t, store, "evt-09z", "agent-1", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))

	events, err := store.RecentEvents(context.Background(), RecentEventsLimit)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}

	var got []string
	for _, e := range events {
		got = append(got, e.ID)
	}
	if strings.Join(got, ",") != "evt-11z,evt-10z,evt-09z" {
		t.Errorf("order = %v, expected newest instant first", got)
	}
}

func TestRecentEvent_JSONShape(t *testing.T) {
	ev := RecentEvent{
		ID:        "evt-1",
		Type:      "port_scan",
		Source:    "sensor-2",
		RiskScore: 7,
		Status:    "NEW",
		Timestamp: ISOTime(time.Date(2024, 3, 9, 10, 15, 30, 250_000_000, time.UTC)),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	expected := `{"id":"evt-1","type":"port_scan","source":"sensor-2","riskScore":7,"status":"NEW","timestamp":"2024-03-09T10:15:30.250Z"}`
	if string(b) != expected {
		t.Errorf("got %s\nwant %s", b, expected)
	}
}

// stubStore answers every query from fixed values unless an error or block is configured.
type stubStore struct {
	failOp string
	err    error
	block  bool // non-failing queries wait for cancellation
}

func (s *stubStore) result(ctx context.Context, op string) error {
	if op == s.failOp {
		return s.err
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *stubStore) CountEvents(ctx context.Context) (int64, error) {
	return 5, s.result(ctx, OpCountEvents)
}

func (s *stubStore) CountAlertsByStatus(ctx context.Context, status string) (int64, error) {
	return 2, s.result(ctx, OpCountOpenAlerts)
}

func (s *stubStore) CountPolicies(ctx context.Context, active bool) (int64, error) {
	return 1, s.result(ctx, OpCountActivePolicies)
}

func (s *stubStore) CountDistinctSources(ctx context.Context) (int64, error) {
	return 2, s.result(ctx, OpCountSources)
}

func (s *stubStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return nil, s.result(ctx, OpRecentEvents)
}

func (s *stubStore) EventTimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	return nil, s.result(ctx, OpEventsSince)
}

func TestGetStats_StoreFailure(t *testing.T) {
	ops := []string{OpCountEvents, OpCountOpenAlerts, OpCountActivePolicies, OpCountSources, OpRecentEvents, OpEventsSince}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			cause := errors.New("connection refused")
			m := metrics.New(nil)
			svc := NewDashboardService(&stubStore{failOp: op, err: cause}, m)

			resp, err := svc.GetStats(context.Background())
			if resp != nil {
				t.Error("no partial payload should be returned on failure")
			}

			var rerr *RetrievalError
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *RetrievalError, got %T (%v)", err, err)
			}
			if rerr.Op != op {
				t.Errorf("Op = %q, expected %q", rerr.Op, op)
			}
			if !errors.Is(err, cause) {
				t.Error("RetrievalError should unwrap to the store error")
			}
			if !strings.HasPrefix(err.Error(), op+": ") {
				t.Errorf("Error() = %q, expected %q prefix", err.Error(), op)
			}
			if got := testutil.ToFloat64(m.QueryFailures.WithLabelValues(op)); got != 1 {
				t.Errorf("QueryFailures[%s] = %v, expected 1", op, got)
			}
		})
	}
}

func TestGetStats_FailFast(t *testing.T) {
	store := &stubStore{failOp: OpRecentEvents, err: errors.New("timeout"), block: true}
	svc := NewDashboardService(store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetStats(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		var rerr *RetrievalError
		if !errors.As(err, &rerr) || rerr.Op != OpRecentEvents {
			t.Errorf("expected failure from %s, got %v", OpRecentEvents, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GetStats did not cancel the outstanding queries")
	}
}

func TestGetStats_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDashboardService(&stubStore{block: true}, nil).GetStats(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGetStats_RecordsQueryLatency(t *testing.T) {
	m := metrics.New(nil)
	if _, err := NewDashboardService(&stubStore{}, m).GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if n := testutil.CollectAndCount(m.QueryDuration); n != 6 {
		t.Errorf("expected 6 query duration series, got %d", n)
	}
}
