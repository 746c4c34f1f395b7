package poller

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics 轮询统计
type Metrics struct {
	mu sync.RWMutex

	CyclesCompleted  int64            // 完成的轮询周期数
	ChannelFailures  map[string]int64 // 各通道读取失败次数
	HistoryFailures  int64            // 历史加载失败次数
	SnapshotsDropped int64            // 订阅者来不及消费而丢弃的快照数

	TotalCycleTime time.Duration
	LastCycleTime  time.Duration
	LastCycleAt    time.Time

	StartTime time.Time
}

func newMetrics() *Metrics {
	return &Metrics{
		ChannelFailures: make(map[string]int64),
		StartTime:       time.Now(),
	}
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	failures := make(map[string]int64, len(m.ChannelFailures))
	for k, v := range m.ChannelFailures {
		failures[k] = v
	}
	return Metrics{
		CyclesCompleted:  m.CyclesCompleted,
		ChannelFailures:  failures,
		HistoryFailures:  m.HistoryFailures,
		SnapshotsDropped: m.SnapshotsDropped,
		TotalCycleTime:   m.TotalCycleTime,
		LastCycleTime:    m.LastCycleTime,
		LastCycleAt:      m.LastCycleAt,
		StartTime:        m.StartTime,
	}
}

func (m *Metrics) cycleDone(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesCompleted++
	m.TotalCycleTime += d
	m.LastCycleTime = d
	m.LastCycleAt = time.Now()
}

func (m *Metrics) channelFailed(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChannelFailures[channel]++
}

func (m *Metrics) historyFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryFailures++
}

func (m *Metrics) snapshotDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SnapshotsDropped++
}

// report 输出一次统计日志
func (m *Metrics) report(logger *zap.Logger) {
	s := m.GetSnapshot()
	var avg time.Duration
	if s.CyclesCompleted > 0 {
		avg = s.TotalCycleTime / time.Duration(s.CyclesCompleted)
	}
	var failed int64
	for _, n := range s.ChannelFailures {
		failed += n
	}
	logger.Info("Poller metrics",
		zap.Int64("cycles_completed", s.CyclesCompleted),
		zap.Int64("channel_failures", failed),
		zap.Any("channel_failures_by_channel", s.ChannelFailures),
		zap.Int64("history_failures", s.HistoryFailures),
		zap.Int64("snapshots_dropped", s.SnapshotsDropped),
		zap.Duration("avg_cycle_time", avg),
		zap.Duration("last_cycle_time", s.LastCycleTime),
		zap.Duration("uptime", time.Since(s.StartTime)),
	)
}
