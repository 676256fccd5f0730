package eyelid

import (
	"testing"
	"time"

	"github.com/coglet/coglet-core/internal/pwm"
	"github.com/coglet/coglet-core/internal/servo"
)

func testLid(t *testing.T) *servo.Servo {
	t.Helper()
	sim := pwm.NewSimBus()
	bus, err := pwm.NewBus(sim, 50)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return servo.New(bus, 2, servo.Config{
		MinAngleDeg: 30, MaxAngleDeg: 150, MinPulseUs: 600, MaxPulseUs: 2400,
		MaxSpeedDegS: 900, MaxAccelDegS2: 3000, NeutralDeg: 90,
	})
}

func testConfig() Config {
	return Config{OpenAngleDeg: 90, BlinkMinS: 0.01, BlinkMaxS: 0.02, BlinkCloseS: 0.01, BlinkHoldS: 0.01, BlinkOpenS: 0.01}
}

func TestClosedAngleIsOpenMinus60(t *testing.T) {
	c := New(testConfig(), testLid(t))
	if got := c.closedAngle(); got != 30 {
		t.Errorf("closedAngle = %v, want 30", got)
	}
}

func TestSetModeHoldDrivesToGivenAngle(t *testing.T) {
	lid := testLid(t)
	c := New(testConfig(), lid)
	c.SetMode(Hold, 75)
	if got := lid.TargetAngle(); got != 75 {
		t.Errorf("TargetAngle = %v, want 75 after SetMode(Hold, 75)", got)
	}
}

func TestSetModeClosedDrivesToClosedAngle(t *testing.T) {
	lid := testLid(t)
	c := New(testConfig(), lid)
	c.SetMode(Closed, 0)
	if got := lid.TargetAngle(); got != c.closedAngle() {
		t.Errorf("TargetAngle = %v, want %v (closed)", got, c.closedAngle())
	}
}

func TestSetModeSleepInterpolatesByFraction(t *testing.T) {
	lid := testLid(t)
	c := New(testConfig(), lid)
	c.SetMode(Sleep, 1.0) // fully closed
	if got := lid.TargetAngle(); got != c.closedAngle() {
		t.Errorf("TargetAngle = %v, want %v (sleep frac=1 is fully closed)", got, c.closedAngle())
	}
	c.SetMode(Sleep, 0.0) // fully open
	if got := lid.TargetAngle(); got != 90 {
		t.Errorf("TargetAngle = %v, want 90 (sleep frac=0 is fully open)", got)
	}
}

func TestSetOverrideThenAutoResume(t *testing.T) {
	lid := testLid(t)
	c := New(testConfig(), lid)
	c.Start()
	defer c.Shutdown()

	c.SetOverride(60, 30*time.Millisecond)
	if got := lid.TargetAngle(); got != 60 {
		t.Errorf("TargetAngle = %v, want 60 during override", got)
	}

	time.Sleep(80 * time.Millisecond)
	c.mu.Lock()
	mode := c.mode
	override := c.override
	c.mu.Unlock()
	if override {
		t.Error("override still active after its duration elapsed")
	}
	if mode != Auto {
		t.Errorf("mode = %v, want Auto after override expiry", mode)
	}
}

func TestShutdownForcesClosedAndStopsLoop(t *testing.T) {
	lid := testLid(t)
	c := New(testConfig(), lid)
	c.Start()
	c.Shutdown()

	if got := lid.TargetAngle(); got != c.closedAngle() {
		t.Errorf("TargetAngle after Shutdown = %v, want %v (closed)", got, c.closedAngle())
	}
}
