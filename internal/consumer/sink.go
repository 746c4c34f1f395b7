// Package consumer 快照订阅者：Redis 缓存、告警流、MQTT 转发、PostgreSQL 归档
package consumer

import (
	"context"
	"vitalmesh/internal/models"

	"go.uber.org/zap"
)

// Sink 处理一个已完成周期的快照
type Sink interface {
	Name() string
	Handle(ctx context.Context, snap models.Snapshot) error
}

// Run 从 snapshots 读取快照并交给 sink，直到 ctx 结束或通道关闭
// 只处理周期最终快照（isUpdating=false），同一 (session, cycle) 只处理一次
func Run(ctx context.Context, snapshots <-chan models.Snapshot, sink Sink, logger *zap.Logger) {
	var lastSession string
	var lastCycle int64

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.IsUpdating || snap.IsLoading {
				continue
			}
			if snap.SessionID == lastSession && snap.Cycle <= lastCycle {
				continue
			}
			lastSession, lastCycle = snap.SessionID, snap.Cycle

			if err := sink.Handle(ctx, snap); err != nil {
				logger.Error("Failed to handle snapshot",
					zap.String("sink", sink.Name()),
					zap.String("session_id", snap.SessionID),
					zap.Int64("cycle", snap.Cycle),
					zap.Error(err),
				)
			}
		}
	}
}
