// Package poller 定时执行 读取 -> 映射 -> 分类 周期，并把结果快照发布给订阅者
//
// 单个通道失败只影响该通道（沿用上一次的读数），不会中断周期，也不会重试。
// 快照在周期完成后整体发布，发布后不再修改。
package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
	"vitalmesh/internal/fetcher"
	"vitalmesh/internal/history"
	"vitalmesh/internal/mapper"
	"vitalmesh/internal/models"
	"vitalmesh/internal/motion"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyRunning 重复启动
var ErrAlreadyRunning = errors.New("poller already running")

// ChannelFetcher 通道读取（由 fetcher.SnapshotFetcher 实现）
type ChannelFetcher interface {
	Channels() []string
	Fetch(ctx context.Context, channel string) fetcher.Result
}

// HistoryLoader 历史压力值读取（由 fetcher.HistoryReader 实现）
type HistoryLoader interface {
	LoadHistory(ctx context.Context) ([]float64, error)
}

// Config 轮询配置
type Config struct {
	DeviceID        string
	Interval        time.Duration // 周期间隔，默认 3s
	UpdateGrace     time.Duration // isUpdating 保持为 true 的时长，默认 500ms
	MetricsInterval time.Duration // 指标日志间隔，0 表示不输出
}

// Poller 轮询调度器
type Poller struct {
	cfg     Config
	fetcher ChannelFetcher
	history HistoryLoader
	window  *history.Window
	metrics *Metrics
	logger  *zap.Logger

	// 串行化周期（后台循环与 Poll 共用）
	cycleMu sync.Mutex

	mu      sync.RWMutex
	running bool
	session string
	cycle   int64
	latest  models.Snapshot
	subs    map[int]chan models.Snapshot
	nextSub int
}

// NewPoller 创建轮询调度器
// historyLoader 可以为 nil：此时每个新的 GSR 读数直接追加到窗口
func NewPoller(cfg Config, channelFetcher ChannelFetcher, historyLoader HistoryLoader, window *history.Window, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.UpdateGrace < 0 {
		cfg.UpdateGrace = 0
	}
	if window == nil {
		window = history.New(history.DefaultCapacity)
	}
	p := &Poller{
		cfg:     cfg,
		fetcher: channelFetcher,
		history: historyLoader,
		window:  window,
		metrics: newMetrics(),
		logger:  logger,
		subs:    make(map[int]chan models.Snapshot),
	}
	p.resetSession()
	return p
}

// Handle 运行中的轮询
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop 停止后续周期并等待循环退出（进行中的周期会完成）
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done 循环退出时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start 立即执行一次周期，之后按 Interval 执行
// 每次 Start 都是一个新的会话：新的 session id，历史窗口重新编号
func (p *Poller) Start(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	p.cycleMu.Lock()
	p.resetSession()
	p.cycleMu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go p.loop(loopCtx, h.done)

	p.logger.Info("Poller started",
		zap.String("device_id", p.cfg.DeviceID),
		zap.String("session_id", p.Session()),
		zap.Duration("interval", p.cfg.Interval),
		zap.Strings("channels", p.fetcher.Channels()),
	)
	return h, nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		p.logger.Info("Poller stopped", zap.String("session_id", p.Session()))
	}()

	p.runCycle(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var report <-chan time.Time
	if p.cfg.MetricsInterval > 0 {
		t := time.NewTicker(p.cfg.MetricsInterval)
		defer t.Stop()
		report = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx)
		case <-report:
			p.metrics.report(p.logger)
		}
	}
}

// Poll 同步执行一次周期并返回最终快照（isUpdating=false）
func (p *Poller) Poll(ctx context.Context) models.Snapshot {
	return p.runCycle(ctx)
}

func (p *Poller) runCycle(ctx context.Context) models.Snapshot {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	// 停止只影响后续周期
	cycleCtx := context.WithoutCancel(ctx)
	start := time.Now()

	prev := p.Latest()
	results := p.fetchAll(cycleCtx)

	p.mu.Lock()
	p.cycle++
	cycle := p.cycle
	session := p.session
	p.mu.Unlock()

	snap := models.Snapshot{
		DeviceID:   p.cfg.DeviceID,
		SessionID:  session,
		Cycle:      cycle,
		IsUpdating: true,
		UpdatedAt:  time.Now(),
	}

	gsrFresh := false
	for _, res := range results {
		if res.Unavailable() {
			snap.Unavailable = append(snap.Unavailable, res.Channel)
			p.metrics.channelFailed(res.Channel)
		}
		switch res.Channel {
		case models.ChannelDHT22:
			snap.DHT22 = resolve(res, prev.DHT22, mapper.MapDHT22)
		case models.ChannelECG:
			snap.ECG = resolve(res, prev.ECG, mapper.MapECG)
		case models.ChannelGPS:
			snap.GPS = resolve(res, prev.GPS, mapper.MapGPS)
			if snap.GPS == nil && !res.Unavailable() {
				gps := mapper.MapGPS(nil)
				snap.GPS = &gps
			}
		case models.ChannelGSR:
			snap.GSR = resolve(res, prev.GSR, mapper.MapGSR)
			gsrFresh = res.Present && !res.Unavailable()
		case models.ChannelIMU:
			snap.IMU = resolve(res, prev.IMU, mapper.MapIMU)
		}
	}
	sort.Strings(snap.Unavailable)
	snap.Motion = motion.Evaluate(snap.IMU)

	p.updateHistory(cycleCtx, snap.GSR, gsrFresh)
	snap.History = p.window.Snapshot()

	p.publish(snap)

	if p.cfg.UpdateGrace > 0 {
		timer := time.NewTimer(p.cfg.UpdateGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	final := snap
	final.IsUpdating = false
	p.publish(final)

	elapsed := time.Since(start)
	p.metrics.cycleDone(elapsed)
	p.logger.Debug("Poll cycle completed",
		zap.String("session_id", session),
		zap.Int64("cycle", cycle),
		zap.Strings("unavailable", snap.Unavailable),
		zap.String("motion", string(snap.Motion.State)),
		zap.Duration("duration", elapsed),
	)
	return final
}

// fetchAll 并发读取所有通道，等待全部完成
func (p *Poller) fetchAll(ctx context.Context) []fetcher.Result {
	channels := p.fetcher.Channels()
	results := make([]fetcher.Result, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch string) {
			defer wg.Done()
			results[i] = p.fetcher.Fetch(ctx, ch)
		}(i, ch)
	}
	wg.Wait()
	return results
}

func (p *Poller) updateHistory(ctx context.Context, gsr *models.GSRReading, gsrFresh bool) {
	if p.history == nil {
		if gsrFresh && gsr != nil {
			p.window.Append(gsr.StressLevel)
		}
		return
	}

	levels, err := p.history.LoadHistory(ctx)
	if err != nil {
		p.metrics.historyFailed()
		p.logger.Warn("Failed to load stress history, keeping previous window", zap.Error(err))
		return
	}
	p.window.Replace(levels)
}

// resolve 失败沿用旧值；路径不存在返回 nil
func resolve[T any](res fetcher.Result, prev *T, mapFn func(map[string]any) T) *T {
	if res.Unavailable() {
		return prev
	}
	if !res.Present {
		return nil
	}
	v := mapFn(res.Payload)
	return &v
}

// Subscribe 订阅快照；buffer < 1 时为 1
// 订阅者消费过慢时丢弃最旧的待处理快照，不会阻塞轮询
func (p *Poller) Subscribe(buffer int) (<-chan models.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.Snapshot, buffer)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (p *Poller) publish(snap models.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = snap
	for _, ch := range p.subs {
		p.deliver(ch, snap)
	}
}

func (p *Poller) deliver(ch chan models.Snapshot, snap models.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
			p.metrics.snapshotDropped()
		default:
		}
	}
}

// Latest 最近一次发布的快照
func (p *Poller) Latest() models.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Session 当前会话 id
func (p *Poller) Session() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// Running 是否有后台循环在运行
func (p *Poller) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Metrics 指标快照
func (p *Poller) Metrics() Metrics {
	return p.metrics.GetSnapshot()
}

// Window 历史窗口
func (p *Poller) Window() *history.Window {
	return p.window
}

func (p *Poller) resetSession() {
	p.window.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = uuid.NewString()
	p.cycle = 0
	p.latest = models.Snapshot{
		DeviceID:  p.cfg.DeviceID,
		SessionID: p.session,
		Motion:    motion.Evaluate(nil),
		History:   []models.HistoryPoint{},
		IsLoading: true,
		UpdatedAt: time.Now(),
	}
}
