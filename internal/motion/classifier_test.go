package motion

import (
	"math"
	"math/rand"
	"testing"
	"vitalmesh/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Cascade(t *testing.T) {
	cases := []struct {
		name  string
		accel float64
		gyro  float64
		want  models.MotionState
	}{
		{"free fall short-circuits stationary", 0.3, 2, models.MotionFreeFall},
		{"stationary", 1.0, 3, models.MotionStationary},
		{"stationary bounds inclusive", 0.9, 4.99, models.MotionStationary},
		{"gyro dominates accel in stationary range", 1.0, 60, models.MotionFastRotation},
		{"gentle movement", 1.2, 10, models.MotionGentleMovement},
		{"gentle movement lower gyro bound", 1.0, 5, models.MotionGentleMovement},
		{"gentle movement upper gyro bound", 0.7, 20, models.MotionGentleMovement},
		{"moderate rotation", 1.5, 20, models.MotionModerateRotation},
		{"moderate rotation upper bound", 3.0, 50, models.MotionModerateRotation},
		{"fast rotation beats intense", 2.5, 50.01, models.MotionFastRotation},
		{"intense movement", 2.5, 2, models.MotionIntenseMovement},
		{"tilted position", 0.6, 2, models.MotionTiltedPosition},
		{"tilted with gentle gyro outside accel range", 0.65, 10, models.MotionTiltedPosition},
		{"free fall boundary is exclusive", 0.5, 2, models.MotionTiltedPosition},
		{"motion detected", 1.5, 2, models.MotionDetected},
		{"nan falls through", math.NaN(), math.NaN(), models.MotionDetected},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.accel, c.gyro))
		})
	}
}

func TestClassify_DeterministicAndTotal(t *testing.T) {
	valid := map[models.MotionState]bool{
		models.MotionFreeFall: true, models.MotionStationary: true, models.MotionGentleMovement: true,
		models.MotionModerateRotation: true, models.MotionFastRotation: true, models.MotionIntenseMovement: true,
		models.MotionTiltedPosition: true, models.MotionDetected: true,
	}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		a := r.Float64()*6 - 1
		g := r.Float64() * 120
		first := Classify(a, g)
		assert.True(t, valid[first], "unexpected state %q for (%f, %f)", first, a, g)
		assert.Equal(t, first, Classify(a, g))
	}
}

func TestClassifyReading_Offline(t *testing.T) {
	assert.Equal(t, models.MotionOffline, ClassifyReading(nil))

	status := Evaluate(nil)
	assert.Equal(t, models.MotionOffline, status.State)
	assert.Equal(t, models.SeverityOffline, status.Severity)
	assert.Equal(t, "Offline", status.Label)
}

func TestEvaluate_UsesMagnitudes(t *testing.T) {
	imu := &models.IMUReading{
		Accel: models.Vector3{X: 0.1, Y: 0.1, Z: 0.1},
		Gyro:  models.Vector3{X: 3, Y: 4, Z: 0},
	}
	status := Evaluate(imu)
	assert.Equal(t, models.MotionFreeFall, status.State)
	assert.Equal(t, models.SeverityCritical, status.Severity)
	assert.Equal(t, "Free Fall", status.Label)
	assert.InDelta(t, math.Sqrt(0.03), status.AccelMagnitude, 1e-12)
	assert.InDelta(t, 5.0, status.GyroMagnitude, 1e-12)
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityOf(models.MotionFreeFall))
	assert.Equal(t, models.SeverityWarning, SeverityOf(models.MotionFastRotation))
	assert.Equal(t, models.SeverityNormal, SeverityOf(models.MotionIntenseMovement))
	assert.Equal(t, models.SeverityNormal, SeverityOf(models.MotionStationary))
	assert.Equal(t, models.SeverityOffline, SeverityOf(models.MotionOffline))
}

func TestStressSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityOffline, StressSeverity(nil))
	assert.Equal(t, models.SeverityNormal, StressSeverity(&models.GSRReading{StressLevel: 50}))
	assert.Equal(t, models.SeverityWarning, StressSeverity(&models.GSRReading{StressLevel: 70}))
	assert.Equal(t, models.SeverityCritical, StressSeverity(&models.GSRReading{StressLevel: 70.1}))
}

func TestHeartRateSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityOffline, HeartRateSeverity(nil))
	assert.Equal(t, models.SeverityOffline, HeartRateSeverity(&models.ECGReading{}))
	assert.Equal(t, models.SeverityWarning, HeartRateSeverity(&models.ECGReading{HeartRateBPM: 45}))
	assert.Equal(t, models.SeverityNormal, HeartRateSeverity(&models.ECGReading{HeartRateBPM: 120}))
	assert.Equal(t, models.SeverityCritical, HeartRateSeverity(&models.ECGReading{HeartRateBPM: 121}))
}
