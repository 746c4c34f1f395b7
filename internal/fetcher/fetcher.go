// Package fetcher 从键路径存储读取各传感器通道的最新快照
//
// 读取失败不会向上抛出：结果中带 ErrChannelUnavailable，由调用方决定沿用旧值。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"vitalmesh/internal/mapper"

	"go.uber.org/zap"
)

// ChannelGSRKey 历史节点中 GSR 子对象的键
const ChannelGSRKey = "GSR"

var (
	// ErrChannelUnavailable 通道读取失败或超时
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrHistoryLoad 历史数据加载失败
	ErrHistoryLoad = errors.New("history load failure")
)

// Source 键路径存储（Realtime Database / REST / Redis）
type Source interface {
	// Read 返回 path 处的对象；路径不存在时返回 (nil, nil)
	Read(ctx context.Context, path string) (map[string]any, error)
	// ReadOrdered 按 key 排序，返回 path 下最后 limit 个子节点
	ReadOrdered(ctx context.Context, path string, limit int) ([]Entry, error)
}

// Entry 有序子节点
type Entry struct {
	Key   string
	Value any
}

// Result 单个通道的读取结果
type Result struct {
	Channel string
	Path    string
	Payload map[string]any
	Present bool
	Err     error
}

// Unavailable 读取失败（区别于“路径下没有数据”）
func (r Result) Unavailable() bool {
	return r.Err != nil
}

// SnapshotFetcher 通道快照读取器
type SnapshotFetcher struct {
	source   Source
	channels map[string]string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSnapshotFetcher 创建快照读取器
// channels: 通道名 -> 存储路径；timeout 为 0 时不限制单次读取时长
func NewSnapshotFetcher(source Source, channels map[string]string, timeout time.Duration, logger *zap.Logger) *SnapshotFetcher {
	copied := make(map[string]string, len(channels))
	for ch, p := range channels {
		copied[ch] = p
	}
	return &SnapshotFetcher{
		source:   source,
		channels: copied,
		timeout:  timeout,
		logger:   logger,
	}
}

// Channels 返回已配置的通道（按名称排序）
func (f *SnapshotFetcher) Channels() []string {
	out := make([]string, 0, len(f.channels))
	for ch := range f.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Fetch 读取单个通道
func (f *SnapshotFetcher) Fetch(ctx context.Context, channel string) (res Result) {
	res.Channel = channel
	path, ok := f.channels[channel]
	if !ok {
		res.Err = fmt.Errorf("%w: %s is not configured", ErrChannelUnavailable, channel)
		return res
	}
	res.Path = path

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			res.Payload, res.Present = nil, false
			res.Err = fmt.Errorf("%w: %s: panic: %v", ErrChannelUnavailable, channel, rec)
			f.logger.Error("Panic while reading channel",
				zap.String("channel", channel),
				zap.String("path", path),
				zap.Any("panic", rec),
			)
		}
	}()

	payload, err := f.source.Read(ctx, path)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %v", ErrChannelUnavailable, channel, err)
		f.logger.Warn("Failed to read channel",
			zap.String("channel", channel),
			zap.String("path", path),
			zap.Error(err),
		)
		return res
	}

	res.Payload = payload
	res.Present = payload != nil
	return res
}

// HistoryReader 读取有序历史路径中的 GSR 压力值
type HistoryReader struct {
	source Source
	path   string
	limit  int
	logger *zap.Logger
}

// NewHistoryReader 创建历史读取器（limit <= 0 时读取 100 条）
func NewHistoryReader(source Source, path string, limit int, logger *zap.Logger) *HistoryReader {
	if limit <= 0 {
		limit = 100
	}
	return &HistoryReader{
		source: source,
		path:   path,
		limit:  limit,
		logger: logger,
	}
}

// LoadHistory 返回按 key 顺序排列的压力值
// 每个历史节点形如 {"GSR": {"stress_level_0_100": 42.5}, ...}，没有数值的节点跳过
func (h *HistoryReader) LoadHistory(ctx context.Context) ([]float64, error) {
	entries, err := h.source.ReadOrdered(ctx, h.path, h.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHistoryLoad, h.path, err)
	}

	levels := make([]float64, 0, len(entries))
	for _, e := range entries {
		node, ok := e.Value.(map[string]any)
		if !ok {
			continue
		}
		gsr, ok := node[ChannelGSRKey].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := mapper.Number(gsr[mapper.FieldStressLevel]); ok {
			levels = append(levels, v)
		}
	}

	h.logger.Debug("Loaded stress history",
		zap.String("path", h.path),
		zap.Int("entries", len(entries)),
		zap.Int("samples", len(levels)),
	)
	return levels, nil
}
