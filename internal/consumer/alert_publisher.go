package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"vitalmesh/internal/config"
	"vitalmesh/internal/models"
	"vitalmesh/internal/motion"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	rediscommon "vitalmesh/common/redis"
)

// 告警类型
const (
	AlertKindMotion    = "motion"
	AlertKindStress    = "stress"
	AlertKindHeartRate = "heart_rate"
)

// AlertPublisher 严重程度升级到 Warning / Critical 时写入告警流
// 边沿触发：同一类型保持同一级别时不重复发布
type AlertPublisher struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger

	mu      sync.Mutex
	session string
	last    map[string]models.Severity
}

// NewAlertPublisher 创建告警发布器
func NewAlertPublisher(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *AlertPublisher {
	return &AlertPublisher{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
		last:        make(map[string]models.Severity),
	}
}

func (a *AlertPublisher) Name() string { return "alert-stream" }

// Evaluate 计算本快照需要发布的告警，并更新边沿状态
func (a *AlertPublisher) Evaluate(snap models.Snapshot) []models.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	if snap.SessionID != a.session {
		a.session = snap.SessionID
		a.last = make(map[string]models.Severity)
	}

	now := time.Now().Unix()
	var alerts []models.Alert
	check := func(kind string, sev models.Severity, detail string, value float64) {
		prev := a.last[kind]
		a.last[kind] = sev
		if sev.Rank() == 0 || sev == prev {
			return
		}
		alerts = append(alerts, models.Alert{
			DeviceID:  snap.DeviceID,
			SessionID: snap.SessionID,
			Cycle:     snap.Cycle,
			Kind:      kind,
			Severity:  sev,
			Detail:    detail,
			Value:     value,
			Timestamp: now,
		})
	}

	check(AlertKindMotion, snap.Motion.Severity, snap.Motion.Label, snap.Motion.AccelMagnitude)
	if snap.GSR != nil {
		check(AlertKindStress, motion.StressSeverity(snap.GSR),
			fmt.Sprintf("stress level %.1f", snap.GSR.StressLevel), snap.GSR.StressLevel)
	}
	if snap.ECG != nil {
		check(AlertKindHeartRate, motion.HeartRateSeverity(snap.ECG),
			fmt.Sprintf("heart rate %d bpm", snap.ECG.HeartRateBPM), float64(snap.ECG.HeartRateBPM))
	}
	return alerts
}

// Handle 发布告警到 Redis Stream
func (a *AlertPublisher) Handle(ctx context.Context, snap models.Snapshot) error {
	alerts := a.Evaluate(snap)
	for _, alert := range alerts {
		id, err := rediscommon.PublishJSONToStream(ctx, a.redisClient,
			a.config.Telemetry.Alerts.Stream, alert, a.config.Telemetry.Alerts.MaxLen)
		if err != nil {
			return fmt.Errorf("failed to publish %s alert: %w", alert.Kind, err)
		}
		a.logger.Warn("Telemetry alert",
			zap.String("device_id", alert.DeviceID),
			zap.String("kind", alert.Kind),
			zap.String("severity", string(alert.Severity)),
			zap.String("detail", alert.Detail),
			zap.String("message_id", id),
		)
	}
	return nil
}

// RecentAlerts 最近 count 条告警（新的在前）
func (a *AlertPublisher) RecentAlerts(ctx context.Context, count int64) ([]models.Alert, error) {
	msgs, err := rediscommon.ReadLatest(ctx, a.redisClient, a.config.Telemetry.Alerts.Stream, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read alert stream: %w", err)
	}

	alerts := make([]models.Alert, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var alert models.Alert
		if err := json.Unmarshal([]byte(data), &alert); err != nil {
			a.logger.Warn("Skipping malformed alert", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
