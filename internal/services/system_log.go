package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/huangang/secwatch/internal/models"
	"github.com/huangang/secwatch/pkg/logger"
	"gorm.io/gorm"
)

var (
	logDBMu sync.RWMutex
	logDB   *gorm.DB
)

// InitSystemLogger sets the database that LogInfo/LogWarning/LogError persist to.
// Passing nil turns persistence off.
func InitSystemLogger(db *gorm.DB) {
	logDBMu.Lock()
	logDB = db
	logDBMu.Unlock()
}

// LogMeta carries the request context attached to a persisted log entry.
type LogMeta struct {
	RequestID string
	UserID    *uint
	IP        string
	UserAgent string
	Extra     interface{}
}

func LogInfo(module, action, message string, meta LogMeta) {
	writeLog(models.LogLevelInfo, module, action, message, meta)
}

func LogWarning(module, action, message string, meta LogMeta) {
	writeLog(models.LogLevelWarning, module, action, message, meta)
}

func LogError(module, action, message string, meta LogMeta) {
	writeLog(models.LogLevelError, module, action, message, meta)
}

// writeLog is best effort: a failed insert is reported on the process log only.
func writeLog(level, module, action, message string, meta LogMeta) {
	logDBMu.RLock()
	db := logDB
	logDBMu.RUnlock()
	if db == nil {
		return
	}

	var extra string
	if meta.Extra != nil {
		if b, err := json.Marshal(meta.Extra); err == nil {
			extra = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		RequestID: meta.RequestID,
		UserID:    meta.UserID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := db.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("Failed to persist system log")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.StartDate != "" {
		if start, err := time.Parse(time.DateOnly, req.StartDate); err == nil {
			query = query.Where("created_at >= ?", start)
		}
	}
	if req.EndDate != "" {
		if end, err := time.Parse(time.DateOnly, req.EndDate); err == nil {
			query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
		}
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	logs := make([]models.SystemLog, 0, req.PageSize)
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	modules := []string{}
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (s *SystemLogService) Create(entry *models.SystemLog) error {
	return s.db.Create(entry).Error
}

// CleanupOldLogs deletes logs older than retentionDays and returns the number removed.
// A non-positive retention keeps everything.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
