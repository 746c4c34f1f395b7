package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"vitalmesh/internal/config"
	"vitalmesh/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存中没有该设备的数据
var ErrCacheMiss = errors.New("telemetry cache miss")

// CacheManager Redis 实时快照缓存
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) Name() string { return "redis-cache" }

func (c *CacheManager) realtimeKey(deviceID string) string {
	return fmt.Sprintf("%s%s:realtime", c.config.Telemetry.Cache.RealtimeKeyPrefix, deviceID)
}

func (c *CacheManager) historyKey(deviceID string) string {
	return fmt.Sprintf("%s%s:history", c.config.Telemetry.Cache.RealtimeKeyPrefix, deviceID)
}

// Handle 写入实时快照与历史窗口
func (c *CacheManager) Handle(ctx context.Context, snap models.Snapshot) error {
	if err := c.UpdateRealtimeData(ctx, snap); err != nil {
		return err
	}
	return c.UpdateHistory(ctx, snap.DeviceID, snap.History)
}

// UpdateRealtimeData 更新实时快照缓存（带 TTL）
func (c *CacheManager) UpdateRealtimeData(ctx context.Context, snap models.Snapshot) error {
	key := c.realtimeKey(snap.DeviceID)

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = c.redisClient.Set(ctx, key, jsonData, c.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("device_id", snap.DeviceID),
		zap.String("key", key),
		zap.Int64("cycle", snap.Cycle),
	)
	return nil
}

// UpdateHistory 更新历史窗口缓存
func (c *CacheManager) UpdateHistory(ctx context.Context, deviceID string, points []models.HistoryPoint) error {
	if points == nil {
		points = []models.HistoryPoint{}
	}
	jsonData, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := c.redisClient.Set(ctx, c.historyKey(deviceID), jsonData, c.ttl()).Err(); err != nil {
		return fmt.Errorf("failed to set history cache: %w", err)
	}
	return nil
}

// GetRealtimeData 读取设备最近的快照
func (c *CacheManager) GetRealtimeData(ctx context.Context, deviceID string) (*models.Snapshot, error) {
	val, err := c.redisClient.Get(ctx, c.realtimeKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: realtime data for device %s", ErrCacheMiss, deviceID)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// GetHistory 读取设备的历史窗口
func (c *CacheManager) GetHistory(ctx context.Context, deviceID string) ([]models.HistoryPoint, error) {
	val, err := c.redisClient.Get(ctx, c.historyKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: history for device %s", ErrCacheMiss, deviceID)
		}
		return nil, fmt.Errorf("failed to get history cache: %w", err)
	}

	var points []models.HistoryPoint
	if err := json.Unmarshal([]byte(val), &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return points, nil
}

func (c *CacheManager) ttl() time.Duration {
	return time.Duration(c.config.Telemetry.Cache.RealtimeTTL) * time.Second
}
