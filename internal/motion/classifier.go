// Package motion 根据加速度 / 角速度幅值推导运动状态与严重程度
//
// 分类是一个按顺序匹配的级联规则（第一条命中即返回），不是打分模型：
//  1. accel < 0.5                         -> FreeFall
//  2. accel ∈ [0.9, 1.1] 且 gyro < 5        -> Stationary
//  3. accel ∈ [0.7, 1.3] 且 gyro ∈ [5, 20]  -> GentleMovement
//  4. gyro ∈ [20, 50]                      -> ModerateRotation
//  5. gyro > 50                            -> FastRotation
//  6. accel > 2.0                          -> IntenseMovement
//  7. accel < 0.7                          -> TiltedPosition
//  8. 其他                                  -> MotionDetected
//
// 没有 IMU 读数时直接返回 Offline（先于规则 1）。
package motion

import "vitalmesh/internal/models"

// Classify 纯函数，对任意实数输入都有确定结果（NaN 落入 MotionDetected）
func Classify(accelMagnitude, gyroMagnitude float64) models.MotionState {
	a, g := accelMagnitude, gyroMagnitude
	switch {
	case a < 0.5:
		return models.MotionFreeFall
	case between(a, 0.9, 1.1) && g < 5:
		return models.MotionStationary
	case between(a, 0.7, 1.3) && between(g, 5, 20):
		return models.MotionGentleMovement
	case between(g, 20, 50):
		return models.MotionModerateRotation
	case g > 50:
		return models.MotionFastRotation
	case a > 2.0:
		return models.MotionIntenseMovement
	case a < 0.7:
		return models.MotionTiltedPosition
	default:
		return models.MotionDetected
	}
}

// ClassifyReading 对 IMU 读数分类，nil 表示离线
func ClassifyReading(imu *models.IMUReading) models.MotionState {
	if imu == nil {
		return models.MotionOffline
	}
	return Classify(imu.Accel.Magnitude(), imu.Gyro.Magnitude())
}

// SeverityOf 运动状态 -> 严重程度
func SeverityOf(state models.MotionState) models.Severity {
	switch state {
	case models.MotionFreeFall:
		return models.SeverityCritical
	case models.MotionFastRotation:
		return models.SeverityWarning
	case models.MotionOffline:
		return models.SeverityOffline
	default:
		return models.SeverityNormal
	}
}

// Evaluate 计算完整的运动状态（幅值 + 状态 + 严重程度）
func Evaluate(imu *models.IMUReading) models.MotionStatus {
	state := ClassifyReading(imu)
	status := models.MotionStatus{
		State:    state,
		Label:    state.Label(),
		Severity: SeverityOf(state),
	}
	if imu != nil {
		status.AccelMagnitude = imu.Accel.Magnitude()
		status.GyroMagnitude = imu.Gyro.Magnitude()
	}
	return status
}

// StressSeverity GSR 压力等级：>70 Critical，>50 Warning
func StressSeverity(gsr *models.GSRReading) models.Severity {
	if gsr == nil {
		return models.SeverityOffline
	}
	switch {
	case gsr.StressLevel > 70:
		return models.SeverityCritical
	case gsr.StressLevel > 50:
		return models.SeverityWarning
	default:
		return models.SeverityNormal
	}
}

// HeartRateSeverity 心率：0 视为无信号，<50 Warning，>120 Critical
func HeartRateSeverity(ecg *models.ECGReading) models.Severity {
	if ecg == nil || ecg.HeartRateBPM == 0 {
		return models.SeverityOffline
	}
	switch {
	case ecg.HeartRateBPM > 120:
		return models.SeverityCritical
	case ecg.HeartRateBPM < 50:
		return models.SeverityWarning
	default:
		return models.SeverityNormal
	}
}

func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
