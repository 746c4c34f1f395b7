package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"vitalmesh/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（由 common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher 把每个快照转发到 <prefix>/<device>/snapshot
type MQTTPublisher struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTPublisher 创建 MQTT 转发器
func NewMQTTPublisher(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

func (m *MQTTPublisher) Name() string { return "mqtt" }

// Topic 设备快照主题
func (m *MQTTPublisher) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/snapshot", m.topicPrefix, deviceID)
}

func (m *MQTTPublisher) Handle(_ context.Context, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	topic := m.Topic(snap.DeviceID)
	if err := m.publisher.Publish(topic, m.qos, false, payload); err != nil {
		return err
	}
	m.logger.Debug("Published snapshot", zap.String("topic", topic), zap.Int64("cycle", snap.Cycle))
	return nil
}
