// Package history 有界的压力历史窗口（FIFO 淘汰）
package history

import (
	"sync"
	"vitalmesh/internal/models"
)

// DefaultCapacity 默认保留的采样点数
const DefaultCapacity = 40

// Window 单写多读的环形窗口
type Window struct {
	mu       sync.RWMutex
	capacity int
	points   []models.HistoryPoint
	next     int64 // 下一个 sampleNumber
}

// New 创建窗口，capacity < 1 时使用 DefaultCapacity
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		points:   make([]models.HistoryPoint, 0, capacity),
		next:     1,
	}
}

// Append 追加一个采样点并返回它；超出容量时淘汰最旧的点
func (w *Window) Append(stress float64) models.HistoryPoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(stress)
}

func (w *Window) appendLocked(stress float64) models.HistoryPoint {
	p := models.HistoryPoint{SampleNumber: w.next, StressLevel: stress}
	w.next++
	if len(w.points) == w.capacity {
		copy(w.points, w.points[1:])
		w.points = w.points[:len(w.points)-1]
	}
	w.points = append(w.points, p)
	return p
}

// Replace 用一批按时间排序的历史值重建窗口，编号从 1 重新开始
func (w *Window) Replace(levels []float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = w.points[:0]
	w.next = 1
	for _, v := range levels {
		w.appendLocked(v)
	}
}

// Reset 清空窗口（新的轮询会话）
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = w.points[:0]
	w.next = 1
}

// Snapshot 返回按到达顺序排列的副本
func (w *Window) Snapshot() []models.HistoryPoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.HistoryPoint, len(w.points))
	copy(out, w.points)
	return out
}

// Len 当前点数
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.points)
}

// Capacity 最大点数
func (w *Window) Capacity() int {
	return w.capacity
}
