package models

import "time"

// HistoryPoint 压力历史采样点
type HistoryPoint struct {
	SampleNumber int64   `json:"sample_number"`
	StressLevel  float64 `json:"stress_level"`
}

// Snapshot 一次轮询周期的完整结果，发布后不再修改
type Snapshot struct {
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Cycle     int64  `json:"cycle"`

	DHT22 *DHT22Reading `json:"dht22"`
	ECG   *ECGReading   `json:"ecg"`
	GPS   *GPSReading   `json:"gps"`
	GSR   *GSRReading   `json:"gsr"`
	IMU   *IMUReading   `json:"imu"`

	Motion  MotionStatus   `json:"motion"`
	History []HistoryPoint `json:"history"`

	// 本周期读取失败、沿用上一次值的通道
	Unavailable []Channel `json:"unavailable,omitempty"`

	IsLoading  bool      `json:"is_loading"`
	IsUpdating bool      `json:"is_updating"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsStale 判断通道本周期是否沿用旧值
func (s *Snapshot) IsStale(ch Channel) bool {
	for _, c := range s.Unavailable {
		if c == ch {
			return true
		}
	}
	return false
}

// Alert 严重程度升级时发布的告警
type Alert struct {
	DeviceID  string   `json:"device_id"`
	SessionID string   `json:"session_id"`
	Cycle     int64    `json:"cycle"`
	Kind      string   `json:"kind"` // motion / stress / heart_rate
	Severity  Severity `json:"severity"`
	Detail    string   `json:"detail"`
	Value     float64  `json:"value"`
	Timestamp int64    `json:"timestamp"`
}
