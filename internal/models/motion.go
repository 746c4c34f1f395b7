package models

// MotionState 由加速度/角速度幅值推导的运动状态
type MotionState string

const (
	MotionFreeFall         MotionState = "FreeFall"
	MotionStationary       MotionState = "Stationary"
	MotionGentleMovement   MotionState = "GentleMovement"
	MotionModerateRotation MotionState = "ModerateRotation"
	MotionFastRotation     MotionState = "FastRotation"
	MotionIntenseMovement  MotionState = "IntenseMovement"
	MotionTiltedPosition   MotionState = "TiltedPosition"
	MotionDetected         MotionState = "MotionDetected"
	MotionOffline          MotionState = "Offline"
)

// Label 展示名称
func (s MotionState) Label() string {
	switch s {
	case MotionFreeFall:
		return "Free Fall"
	case MotionStationary:
		return "Stationary"
	case MotionGentleMovement:
		return "Gentle Movement"
	case MotionModerateRotation:
		return "Moderate Rotation"
	case MotionFastRotation:
		return "Fast Rotation"
	case MotionIntenseMovement:
		return "Intense Movement"
	case MotionTiltedPosition:
		return "Tilted Position"
	case MotionDetected:
		return "Motion Detected"
	default:
		return "Offline"
	}
}

// Severity 状态严重程度
type Severity string

const (
	SeverityNormal   Severity = "Normal"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
	SeverityOffline  Severity = "Offline"
)

// Rank 用于比较严重程度（Offline 不参与告警）
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// MotionStatus 一次分类的完整结果
type MotionStatus struct {
	State          MotionState `json:"state"`
	Label          string      `json:"label"`
	Severity       Severity    `json:"severity"`
	AccelMagnitude float64     `json:"accel_magnitude"`
	GyroMagnitude  float64     `json:"gyro_magnitude"`
}
