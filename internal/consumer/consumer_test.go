package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
	"vitalmesh/internal/config"
	"vitalmesh/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telemetry.Cache.RealtimeKeyPrefix = "vitalmesh:telemetry:"
	cfg.Telemetry.Cache.RealtimeTTL = 30
	cfg.Telemetry.Alerts.Stream = "vitalmesh:alerts:stream"
	cfg.Telemetry.Alerts.MaxLen = 100
	return cfg
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func snapshotAt(cycle int64) models.Snapshot {
	return models.Snapshot{
		DeviceID:  "vm-01",
		SessionID: "s1",
		Cycle:     cycle,
		GSR:       &models.GSRReading{StressLevel: 20},
		ECG:       &models.ECGReading{HeartRateBPM: 70},
		Motion:    models.MotionStatus{State: models.MotionStationary, Label: "Stationary", Severity: models.SeverityNormal},
		History:   []models.HistoryPoint{{SampleNumber: 1, StressLevel: 20}},
		UpdatedAt: time.Now(),
	}
}

func TestCacheManager_RoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheManager(testConfig(), client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Handle(ctx, snapshotAt(3)))

	assert.True(t, mr.Exists("vitalmesh:telemetry:vm-01:realtime"))
	assert.Equal(t, 30*time.Second, mr.TTL("vitalmesh:telemetry:vm-01:realtime"))

	snap, err := cache.GetRealtimeData(ctx, "vm-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Cycle)
	assert.Equal(t, 20.0, snap.GSR.StressLevel)

	points, err := cache.GetHistory(ctx, "vm-01")
	require.NoError(t, err)
	assert.Equal(t, []models.HistoryPoint{{SampleNumber: 1, StressLevel: 20}}, points)
}

func TestCacheManager_Expired(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCacheManager(testConfig(), client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Handle(ctx, snapshotAt(1)))
	mr.FastForward(31 * time.Second)

	_, err := cache.GetRealtimeData(ctx, "vm-01")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = cache.GetHistory(ctx, "vm-01")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAlertPublisher_EdgeTriggered(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewAlertPublisher(testConfig(), client, zap.NewNop())
	ctx := context.Background()

	fall := snapshotAt(1)
	fall.Motion = models.MotionStatus{State: models.MotionFreeFall, Label: "Free Fall", Severity: models.SeverityCritical, AccelMagnitude: 0.2}
	require.NoError(t, pub.Handle(ctx, fall))

	// 同一级别不重复发布
	fall.Cycle = 2
	require.NoError(t, pub.Handle(ctx, fall))

	// 恢复后再次跌落重新触发，同时压力升级
	calm := snapshotAt(3)
	require.NoError(t, pub.Handle(ctx, calm))
	fall.Cycle = 4
	fall.GSR = &models.GSRReading{StressLevel: 75}
	require.NoError(t, pub.Handle(ctx, fall))

	alerts, err := pub.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	assert.Equal(t, AlertKindStress, alerts[0].Kind)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, int64(4), alerts[1].Cycle)
	assert.Equal(t, AlertKindMotion, alerts[1].Kind)
	assert.Equal(t, int64(1), alerts[2].Cycle)
	assert.Equal(t, "Free Fall", alerts[2].Detail)
}

func TestAlertPublisher_NewSessionResetsState(t *testing.T) {
	pub := NewAlertPublisher(testConfig(), nil, zap.NewNop())

	snap := snapshotAt(1)
	snap.ECG = &models.ECGReading{HeartRateBPM: 40}
	assert.Len(t, pub.Evaluate(snap), 1)
	snap.Cycle = 2
	assert.Empty(t, pub.Evaluate(snap))

	snap.SessionID = "s2"
	snap.Cycle = 1
	alerts := pub.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertKindHeartRate, alerts[0].Kind)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, 40.0, alerts[0].Value)
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestMQTTPublisher_Handle(t *testing.T) {
	fp := &fakePublisher{}
	pub := NewMQTTPublisher(fp, "vitalmesh", 0, zap.NewNop())

	require.NoError(t, pub.Handle(context.Background(), snapshotAt(9)))

	require.Len(t, fp.topics, 1)
	assert.Equal(t, "vitalmesh/vm-01/snapshot", fp.topics[0])
	var decoded models.Snapshot
	require.NoError(t, json.Unmarshal(fp.payloads[0], &decoded))
	assert.Equal(t, int64(9), decoded.Cycle)

	fp.err = errors.New("not connected")
	assert.Error(t, pub.Handle(context.Background(), snapshotAt(10)))
}

type recordingSink struct {
	mu     sync.Mutex
	cycles []int64
	err    error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Handle(_ context.Context, snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, snap.Cycle)
	return r.err
}

func TestRun_DedupesAndSkipsUpdating(t *testing.T) {
	ch := make(chan models.Snapshot, 8)
	sink := &recordingSink{err: errors.New("ignored")}

	updating := snapshotAt(1)
	updating.IsUpdating = true
	ch <- models.Snapshot{IsLoading: true}
	ch <- updating
	ch <- snapshotAt(1)
	ch <- snapshotAt(1)
	ch <- snapshotAt(2)
	restarted := snapshotAt(1)
	restarted.SessionID = "s2"
	ch <- restarted
	close(ch)

	Run(context.Background(), ch, sink, zap.NewNop())

	assert.Equal(t, []int64{1, 2, 1}, sink.cycles)
}

type fakeArchiver struct {
	snaps []models.Snapshot
}

func (f *fakeArchiver) InsertSnapshot(_ context.Context, snap models.Snapshot) (int, error) {
	f.snaps = append(f.snaps, snap)
	return 1, nil
}

func TestArchiveWriter_Handle(t *testing.T) {
	fa := &fakeArchiver{}
	w := NewArchiveWriter(fa)

	require.NoError(t, w.Handle(context.Background(), snapshotAt(5)))
	require.Len(t, fa.snaps, 1)
	assert.Equal(t, "postgres-archive", w.Name())
}
