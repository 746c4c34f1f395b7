package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"vitalmesh/internal/fetcher"
	"vitalmesh/internal/history"
	"vitalmesh/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFetcher 每个通道返回预设的 payload 或错误
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]map[string]any
	errs     map[string]error
	calls    int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: make(map[string]map[string]any),
		errs:     make(map[string]error),
	}
}

func (f *fakeFetcher) set(ch string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[ch] = payload
	delete(f.errs, ch)
}

func (f *fakeFetcher) fail(ch string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[ch] = errors.New("connection reset")
}

func (f *fakeFetcher) Channels() []string {
	return models.AllChannels
}

func (f *fakeFetcher) Fetch(_ context.Context, ch string) fetcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res := fetcher.Result{Channel: ch, Path: "sensors/actual/" + ch}
	if err, ok := f.errs[ch]; ok {
		res.Err = fmt.Errorf("%w: %v", fetcher.ErrChannelUnavailable, err)
		return res
	}
	if p, ok := f.payloads[ch]; ok {
		res.Payload, res.Present = p, true
	}
	return res
}

type fakeHistory struct {
	levels []float64
	err    error
}

func (h *fakeHistory) LoadHistory(context.Context) ([]float64, error) {
	return h.levels, h.err
}

func quickConfig() Config {
	return Config{DeviceID: "vm-test", Interval: time.Hour, UpdateGrace: time.Millisecond}
}

func seed(f *fakeFetcher) {
	f.set(models.ChannelDHT22, map[string]any{"humidity_%": 40.0, "temperature_C": 21.5})
	f.set(models.ChannelECG, map[string]any{"heart_rate_bpm": 72.0})
	f.set(models.ChannelGPS, map[string]any{"latitude": 10.0, "longitude": 20.0, "alt": 5.0})
	f.set(models.ChannelGSR, map[string]any{"stress_level_0_100": 30.0})
	f.set(models.ChannelIMU, map[string]any{
		"accel_g":    map[string]any{"x": 0.0, "y": 0.0, "z": 1.0},
		"gyro_deg_s": map[string]any{"x": 1.0, "y": 1.0, "z": 1.0},
	})
}

func TestPoll_MapsAndClassifies(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, history.New(40), zap.NewNop())

	snap := p.Poll(context.Background())

	require.NotNil(t, snap.DHT22)
	assert.Equal(t, 21.5, snap.DHT22.TemperatureC)
	require.NotNil(t, snap.ECG)
	assert.Equal(t, 72, snap.ECG.HeartRateBPM)
	assert.Equal(t, models.MotionStationary, snap.Motion.State)
	assert.False(t, snap.IsUpdating)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, int64(1), snap.Cycle)
	assert.Empty(t, snap.Unavailable)
	require.Len(t, snap.History, 1)
	assert.Equal(t, 30.0, snap.History[0].StressLevel)
}

func TestPoll_FailureIsolation(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())
	first := p.Poll(context.Background())

	// ECG 读取失败，其他通道更新
	f.fail(models.ChannelECG)
	f.set(models.ChannelDHT22, map[string]any{"humidity_%": 55.0, "temperature_C": 30.0})
	second := p.Poll(context.Background())

	assert.Equal(t, []models.Channel{models.ChannelECG}, second.Unavailable)
	assert.True(t, second.IsStale(models.ChannelECG))
	require.NotNil(t, second.ECG)
	assert.Equal(t, first.ECG.HeartRateBPM, second.ECG.HeartRateBPM)
	assert.Equal(t, 30.0, second.DHT22.TemperatureC)

	// 恢复后读到新值
	f.set(models.ChannelECG, map[string]any{"heart_rate_bpm": 130.0})
	third := p.Poll(context.Background())
	assert.Empty(t, third.Unavailable)
	assert.Equal(t, 130, third.ECG.HeartRateBPM)

	m := p.Metrics()
	assert.Equal(t, int64(1), m.ChannelFailures[models.ChannelECG])
	assert.Equal(t, int64(3), m.CyclesCompleted)
}

func TestPoll_AbsentChannels(t *testing.T) {
	f := newFakeFetcher()
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())

	snap := p.Poll(context.Background())

	assert.Nil(t, snap.DHT22)
	assert.Nil(t, snap.IMU)
	assert.Equal(t, models.MotionOffline, snap.Motion.State)
	require.NotNil(t, snap.GPS)
	assert.Equal(t, models.DefaultLatitude, snap.GPS.Latitude)
	assert.Equal(t, models.DefaultLongitude, snap.GPS.Longitude)
	assert.Empty(t, snap.History)
}

func TestPoll_StaleGSRNotAppended(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())
	p.Poll(context.Background())

	f.fail(models.ChannelGSR)
	snap := p.Poll(context.Background())

	assert.Len(t, snap.History, 1)
	require.NotNil(t, snap.GSR)
	assert.Equal(t, 30.0, snap.GSR.StressLevel)
}

func TestPoll_HistoryLoader(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	h := &fakeHistory{levels: []float64{10, 20, 30}}
	p := NewPoller(quickConfig(), f, h, history.New(2), zap.NewNop())

	snap := p.Poll(context.Background())
	require.Len(t, snap.History, 2)
	assert.Equal(t, 20.0, snap.History[0].StressLevel)
	assert.Equal(t, int64(2), snap.History[0].SampleNumber)

	// 加载失败时保留原窗口
	h.err = errors.New("permission denied")
	snap = p.Poll(context.Background())
	require.Len(t, snap.History, 2)
	assert.Equal(t, 30.0, snap.History[1].StressLevel)
	assert.Equal(t, int64(1), p.Metrics().HistoryFailures)
}

func TestSubscribe_ReceivesUpdatingThenFinal(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())
	ch, cancel := p.Subscribe(4)
	defer cancel()

	p.Poll(context.Background())

	first := <-ch
	second := <-ch
	assert.True(t, first.IsUpdating)
	assert.False(t, second.IsUpdating)
	assert.Equal(t, first.Cycle, second.Cycle)
}

func TestSubscribe_SlowSubscriberDropsOldest(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())
	ch, cancel := p.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		p.Poll(context.Background())
	}

	latest := <-ch
	assert.Equal(t, int64(3), latest.Cycle)
	assert.False(t, latest.IsUpdating)
	assert.Equal(t, int64(5), p.Metrics().SnapshotsDropped)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	p := NewPoller(quickConfig(), newFakeFetcher(), nil, nil, zap.NewNop())
	ch, cancel := p.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	p.Poll(context.Background())
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())

	initial := p.Latest()
	assert.True(t, initial.IsLoading)

	ch, cancel := p.Subscribe(8)
	defer cancel()

	h, err := p.Start(context.Background())
	require.NoError(t, err)

	_, err = p.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	select {
	case snap := <-ch:
		assert.Equal(t, int64(1), snap.Cycle)
		assert.Equal(t, p.Session(), snap.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle was not published")
	}

	h.Stop()
	assert.False(t, p.Running())
}

func TestStart_NewSessionResetsNumbering(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	p := NewPoller(quickConfig(), f, nil, nil, zap.NewNop())

	h, err := p.Start(context.Background())
	require.NoError(t, err)
	h.Stop()
	firstSession := p.Session()
	require.Equal(t, int64(1), p.Latest().Cycle)

	h, err = p.Start(context.Background())
	require.NoError(t, err)
	defer h.Stop()

	require.Eventually(t, func() bool {
		s := p.Latest()
		return s.Cycle == 1 && !s.IsUpdating && !s.IsLoading
	}, 2*time.Second, 5*time.Millisecond)

	snap := p.Latest()
	assert.NotEqual(t, firstSession, snap.SessionID)
	require.Len(t, snap.History, 1)
	assert.Equal(t, int64(1), snap.History[0].SampleNumber)
}

func TestStart_InFlightCycleCompletesAfterStop(t *testing.T) {
	f := newFakeFetcher()
	seed(f)
	cfg := quickConfig()
	cfg.UpdateGrace = time.Hour
	p := NewPoller(cfg, f, nil, nil, zap.NewNop())
	ch, cancel := p.Subscribe(4)
	defer cancel()

	h, err := p.Start(context.Background())
	require.NoError(t, err)
	<-ch // isUpdating=true

	h.Stop()
	final := <-ch
	assert.False(t, final.IsUpdating)
	assert.Equal(t, int64(1), final.Cycle)
}
