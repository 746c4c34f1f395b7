package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"vitalmesh/internal/models"

	"go.uber.org/zap"
)

// SchemaSQL sensor_readings 表结构
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	id          BIGSERIAL PRIMARY KEY,
	device_id   TEXT        NOT NULL,
	session_id  TEXT        NOT NULL,
	cycle       BIGINT      NOT NULL,
	channel     TEXT        NOT NULL,
	payload     JSONB       NOT NULL,
	stale       BOOLEAN     NOT NULL DEFAULT FALSE,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sensor_readings_device_channel
	ON sensor_readings (device_id, channel, recorded_at DESC);
`

// ReadingRepository 传感器读数归档（PostgreSQL）
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *ReadingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to create sensor_readings: %w", err)
	}
	return nil
}

// InsertSnapshot 在一个事务中写入快照的每个通道（每个有读数的通道一行）
// 返回写入的行数
func (r *ReadingRepository) InsertSnapshot(ctx context.Context, snap models.Snapshot) (int, error) {
	rows, err := snapshotRows(snap)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sensor_readings (device_id, session_id, cycle, channel, payload, stale, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query,
			snap.DeviceID,
			snap.SessionID,
			snap.Cycle,
			row.channel,
			row.payload,
			snap.IsStale(row.channel),
			snap.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s reading: %w", row.channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Archived snapshot",
		zap.String("device_id", snap.DeviceID),
		zap.Int64("cycle", snap.Cycle),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// LatestStress 最近 limit 条非陈旧的 GSR 压力值（按时间正序）
func (r *ReadingRepository) LatestStress(ctx context.Context, deviceID string, limit int) ([]float64, error) {
	query := `
		SELECT (payload->>'stress_level')::float8
		FROM sensor_readings
		WHERE device_id = $1 AND channel = $2 AND NOT stale
		ORDER BY recorded_at DESC, id DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, models.ChannelGSR, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stress history: %w", err)
	}
	defer rows.Close()

	var levels []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if v.Valid {
			levels = append(levels, v.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
	return levels, nil
}

type readingRow struct {
	channel string
	payload []byte
}

func snapshotRows(snap models.Snapshot) ([]readingRow, error) {
	readings := []struct {
		channel string
		value   any
		present bool
	}{
		{models.ChannelDHT22, snap.DHT22, snap.DHT22 != nil},
		{models.ChannelECG, snap.ECG, snap.ECG != nil},
		{models.ChannelGPS, snap.GPS, snap.GPS != nil},
		{models.ChannelGSR, snap.GSR, snap.GSR != nil},
		{models.ChannelIMU, snap.IMU, snap.IMU != nil},
	}

	out := make([]readingRow, 0, len(readings))
	for _, rd := range readings {
		if !rd.present {
			continue
		}
		b, err := json.Marshal(rd.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s reading: %w", rd.channel, err)
		}
		out = append(out, readingRow{channel: rd.channel, payload: b})
	}
	return out, nil
}

// ArchiveHistoryReader 以归档表作为历史来源
type ArchiveHistoryReader struct {
	repo     *ReadingRepository
	deviceID string
	limit    int
}

// NewArchiveHistoryReader 创建归档历史读取器
func NewArchiveHistoryReader(repo *ReadingRepository, deviceID string, limit int) *ArchiveHistoryReader {
	if limit <= 0 {
		limit = 100
	}
	return &ArchiveHistoryReader{repo: repo, deviceID: deviceID, limit: limit}
}

// LoadHistory 实现 poller.HistoryLoader
func (a *ArchiveHistoryReader) LoadHistory(ctx context.Context) ([]float64, error) {
	return a.repo.LatestStress(ctx, a.deviceID, a.limit)
}
