package models

import "math"

// Channel 传感器通道名（对应实时库 sensors/actual 下的子节点）
type Channel = string

const (
	ChannelDHT22 Channel = "DHT22" // 温湿度
	ChannelECG   Channel = "ECG"   // 心率
	ChannelGPS   Channel = "GPS"   // 定位
	ChannelGSR   Channel = "GSR"   // 皮电 / 压力
	ChannelIMU   Channel = "IMU"   // 加速度计 + 陀螺仪
)

// AllChannels 默认轮询的全部通道
var AllChannels = []Channel{ChannelDHT22, ChannelECG, ChannelGPS, ChannelGSR, ChannelIMU}

// GPS 缺省坐标（纽约）
const (
	DefaultLatitude  = 40.7128
	DefaultLongitude = -74.0060
)

// Vector3 三轴读数
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude 欧氏范数
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DHT22Reading 温湿度读数
type DHT22Reading struct {
	HumidityPercent float64 `json:"humidity_percent"`
	TemperatureC    float64 `json:"temperature_c"`
}

// ECGReading 心率读数
type ECGReading struct {
	HeartRateBPM int `json:"heart_rate_bpm"`
}

// GPSReading 定位读数
type GPSReading struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"alt"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// GSRReading 皮电读数
type GSRReading struct {
	ConductanceUS  float64 `json:"conductance_us"`
	ResistanceKOhm float64 `json:"resistance_kohm"`
	StressLevel    float64 `json:"stress_level"` // 0-100
}

// IMUReading 惯性测量读数（加速度单位 g，角速度单位 deg/s）
type IMUReading struct {
	Accel       Vector3 `json:"accel_g"`
	Gyro        Vector3 `json:"gyro_deg_s"`
	TimestampMs int64   `json:"timestamp_ms"`
}
