// Package mapper 把实时库中的松散载荷转换为强类型读数
//
// 所有函数都是纯函数：字段缺失或不是数值时使用固定默认值，不返回错误。
package mapper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"vitalmesh/internal/models"
)

// 实时库字段名
const (
	FieldHumidity    = "humidity_%"
	FieldTemperature = "temperature_C"
	FieldHeartRate   = "heart_rate_bpm"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldAltitude    = "alt"
	FieldTimestampMs = "timestamp_ms"
	FieldConductance = "conductance_uS"
	FieldResistance  = "resistance_kOhm"
	FieldStressLevel = "stress_level_0_100"
	FieldAccel       = "accel_g"
	FieldGyro        = "gyro_deg_s"
)

// MapDHT22 温湿度
func MapDHT22(payload map[string]any) models.DHT22Reading {
	return models.DHT22Reading{
		HumidityPercent: Float(payload, FieldHumidity, 0),
		TemperatureC:    Float(payload, FieldTemperature, 0),
	}
}

// MapECG 心率
func MapECG(payload map[string]any) models.ECGReading {
	return models.ECGReading{
		HeartRateBPM: int(Int(payload, FieldHeartRate, 0)),
	}
}

// MapGPS 定位；经纬度缺失时使用纽约坐标
func MapGPS(payload map[string]any) models.GPSReading {
	return models.GPSReading{
		Latitude:    Float(payload, FieldLatitude, models.DefaultLatitude),
		Longitude:   Float(payload, FieldLongitude, models.DefaultLongitude),
		Altitude:    Float(payload, FieldAltitude, 0),
		TimestampMs: Int(payload, FieldTimestampMs, 0),
	}
}

// MapGSR 皮电 / 压力
func MapGSR(payload map[string]any) models.GSRReading {
	return models.GSRReading{
		ConductanceUS:  Float(payload, FieldConductance, 0),
		ResistanceKOhm: Float(payload, FieldResistance, 0),
		StressLevel:    Float(payload, FieldStressLevel, 0),
	}
}

// MapIMU 加速度计 + 陀螺仪
func MapIMU(payload map[string]any) models.IMUReading {
	return models.IMUReading{
		Accel:       Vector(payload, FieldAccel),
		Gyro:        Vector(payload, FieldGyro),
		TimestampMs: Int(payload, FieldTimestampMs, 0),
	}
}

// Vector 读取 {x,y,z} 子对象，缺失分量为 0
func Vector(payload map[string]any, key string) models.Vector3 {
	sub, _ := payload[key].(map[string]any)
	return models.Vector3{
		X: Float(sub, "x", 0),
		Y: Float(sub, "y", 0),
		Z: Float(sub, "z", 0),
	}
}

// Float 读取数值字段，失败返回 def
func Float(payload map[string]any, key string, def float64) float64 {
	if payload == nil {
		return def
	}
	if v, ok := Number(payload[key]); ok {
		return v
	}
	return def
}

// Int 读取整数字段（小数截断），失败返回 def
func Int(payload map[string]any, key string, def int64) int64 {
	v, ok := Number(payload[key])
	if !ok || v >= math.MaxInt64 || v < math.MinInt64 {
		return def
	}
	return int64(v)
}

// Number 把 JSON 解码后可能出现的数值类型统一为 float64
// 布尔、非数字字符串、NaN/Inf 都视为非数值
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
