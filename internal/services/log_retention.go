package services

import (
	"fmt"

	"github.com/huangang/secwatch/internal/metrics"
	"github.com/huangang/secwatch/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// LogRetention periodically removes system logs past their retention window.
type LogRetention struct {
	svc           *SystemLogService
	metrics       *metrics.Metrics
	retentionDays int
	cron          *cron.Cron
}

// NewLogRetention schedules cleanup on the standard five-field cron spec.
func NewLogRetention(db *gorm.DB, retentionDays int, spec string, m *metrics.Metrics) (*LogRetention, error) {
	r := &LogRetention{
		svc:           NewSystemLogService(db),
		metrics:       m,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := r.cron.AddFunc(spec, func() { r.RunOnce() }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *LogRetention) Start() {
	r.cron.Start()
	logger.Info().Int("retention_days", r.retentionDays).Msg("System log retention scheduler started")
}

// Stop waits for a running cleanup to finish.
func (r *LogRetention) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce performs a single cleanup and returns the number of rows deleted.
func (r *LogRetention) RunOnce() int64 {
	if r.retentionDays <= 0 {
		logger.Debug().Msg("System log cleanup disabled (retention_days <= 0)")
		return 0
	}

	deleted, err := r.svc.CleanupOldLogs(r.retentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to cleanup old system logs")
		return 0
	}

	r.metrics.AddPurged(deleted)
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", r.retentionDays).Msg("Cleaned up old system logs")
	}
	return deleted
}
