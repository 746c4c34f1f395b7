package httpapi

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"vitalmesh/internal/models"
	"vitalmesh/internal/motion"

	"go.uber.org/zap"
)

// SnapshotSource 最新快照（由 poller.Poller 实现）
type SnapshotSource interface {
	Latest() models.Snapshot
}

// AlertReader 最近告警（由 consumer.AlertPublisher 实现）
type AlertReader interface {
	RecentAlerts(ctx context.Context, count int64) ([]models.Alert, error)
}

// Statuses 各通道派生的严重程度
type Statuses struct {
	Motion    models.Severity `json:"motion"`
	Stress    models.Severity `json:"stress"`
	HeartRate models.Severity `json:"heart_rate"`
}

// SnapshotView 快照 + 派生状态
type SnapshotView struct {
	models.Snapshot
	Statuses Statuses `json:"statuses"`
}

// HistoryView 历史窗口
type HistoryView struct {
	DeviceID  string                `json:"device_id"`
	SessionID string                `json:"session_id"`
	Points    []models.HistoryPoint `json:"points"`
}

// TelemetryHandler 遥测查询接口
type TelemetryHandler struct {
	snapshots SnapshotSource
	alerts    AlertReader
	logger    *zap.Logger
}

// NewTelemetryHandler alerts 可以为 nil（告警未启用）
func NewTelemetryHandler(snapshots SnapshotSource, alerts AlertReader, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{snapshots: snapshots, alerts: alerts, logger: logger}
}

func (h *TelemetryHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Latest()
	writeJSON(w, http.StatusOK, Ok(SnapshotView{
		Snapshot: snap,
		Statuses: Statuses{
			Motion:    snap.Motion.Severity,
			Stress:    motion.StressSeverity(snap.GSR),
			HeartRate: motion.HeartRateSeverity(snap.ECG),
		},
	}))
}

func (h *TelemetryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.historyView()))
}

func (h *TelemetryHandler) historyView() HistoryView {
	snap := h.snapshots.Latest()
	points := snap.History
	if points == nil {
		points = []models.HistoryPoint{}
	}
	return HistoryView{DeviceID: snap.DeviceID, SessionID: snap.SessionID, Points: points}
}

func (h *TelemetryHandler) GetHistoryChart(w http.ResponseWriter, r *http.Request) {
	view := h.historyView()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderStressChart(w, view.DeviceID, view.Points); err != nil {
		h.logger.Error("Failed to render stress chart", zap.Error(err))
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
	}
}

func (h *TelemetryHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	view := h.historyView()
	data, err := GenerateHistoryExport(view.DeviceID, view.Points)
	if err != nil {
		h.logger.Error("Failed to export stress history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export history"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.DeviceID+`-stress-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *TelemetryHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("alerts are disabled"))
		return
	}
	count := parseInt(r.URL.Query().Get("count"), 20)
	if count < 1 || count > 500 {
		count = 20
	}
	alerts, err := h.alerts.RecentAlerts(r.Context(), int64(count))
	if err != nil {
		h.logger.Error("Failed to read alerts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read alerts"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

// Classify 按幅值分类：/api/v1/motion/classify?accel=1.0&gyro=3
func (h *TelemetryHandler) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accel, err1 := strconv.ParseFloat(q.Get("accel"), 64)
	gyro, err2 := strconv.ParseFloat(q.Get("gyro"), 64)
	if err1 != nil || err2 != nil || !finite(accel) || !finite(gyro) {
		writeJSON(w, http.StatusBadRequest, Fail("accel and gyro must be finite numbers"))
		return
	}
	state := motion.Classify(accel, gyro)
	writeJSON(w, http.StatusOK, Ok(models.MotionStatus{
		State:          state,
		Label:          state.Label(),
		Severity:       motion.SeverityOf(state),
		AccelMagnitude: accel,
		GyroMagnitude:  gyro,
	}))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
