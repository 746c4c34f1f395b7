package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	"vitalmesh/internal/config"
	"vitalmesh/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func redisBackedConfig(addr string) *config.Config {
	cfg := &config.Config{}
	cfg.Redis.Addr = addr
	t := &cfg.Telemetry
	t.DeviceID = "vm-test"
	t.Fetch.Backend = config.BackendRedis
	t.Fetch.RedisPrefix = "rtdb:"
	t.Fetch.Channels = config.DefaultChannels("sensors/actual")
	t.History.Source = config.HistorySourceNone
	t.History.Capacity = 40
	t.Poll.Interval = 20 * time.Millisecond
	t.Poll.UpdateGrace = time.Millisecond
	t.Cache.Enabled = true
	t.Cache.RealtimeKeyPrefix = "vitalmesh:telemetry:"
	t.Cache.RealtimeTTL = 30
	t.Alerts.Enabled = true
	t.Alerts.Stream = "vitalmesh:alerts:stream"
	t.Alerts.MaxLen = 100
	return cfg
}

func setJSON(t *testing.T, mr *miniredis.Miniredis, key string, v any) {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, string(b)))
}

func TestTelemetryService_RedisBackendEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	setJSON(t, mr, "rtdb:sensors/actual/GSR", map[string]any{"stress_level_0_100": 80})
	setJSON(t, mr, "rtdb:sensors/actual/IMU", map[string]any{
		"accel_g":    map[string]any{"x": 0, "y": 0, "z": 0.1},
		"gyro_deg_s": map[string]any{"x": 0, "y": 0, "z": 0},
	})

	ctx := context.Background()
	svc, err := NewTelemetryService(ctx, redisBackedConfig(mr.Addr()), zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, svc.FirebaseApp())

	require.NoError(t, svc.Start(ctx))

	var snap *models.Snapshot
	require.Eventually(t, func() bool {
		s, err := svc.Cache().GetRealtimeData(ctx, "vm-test")
		if err != nil {
			return false
		}
		snap = s
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.MotionFreeFall, snap.Motion.State)
	require.NotNil(t, snap.GPS)
	assert.Equal(t, models.DefaultLatitude, snap.GPS.Latitude)
	assert.Nil(t, snap.DHT22)

	require.Eventually(t, func() bool {
		alerts, err := svc.Alerts().RecentAlerts(ctx, 10)
		return err == nil && len(alerts) == 2
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(stopCtx))
	assert.False(t, svc.Poller().Running())
}

func TestNewTelemetryService_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewTelemetryService(context.Background(), redisBackedConfig(addr), zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
