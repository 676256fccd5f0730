package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/coglet/coglet-core/internal/pwm"
	"github.com/coglet/coglet-core/internal/servo"
	"github.com/coglet/coglet-core/internal/vision"
)

func testServos(t *testing.T) Servos {
	t.Helper()
	sim := pwm.NewSimBus()
	bus, err := pwm.NewBus(sim, 50)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	mk := func(ch int) *servo.Servo {
		return servo.New(bus, ch, servo.Config{
			MinAngleDeg: 0, MaxAngleDeg: 180, MinPulseUs: 500, MaxPulseUs: 2500,
			MaxSpeedDegS: 1000, MaxAccelDegS2: 4000, NeutralDeg: 90,
		})
	}
	return Servos{
		EyeL: mk(0), EyeR: mk(1), Pitch: mk(3),
		WheelL: mk(8), WheelR: mk(9),
	}
}

func testConfig() Config {
	return Config{
		UpdateIntervalS: 1, InvokeIntervalS: 0, InvokeTimeoutS: 1, NeutralTimeoutS: 1,
		FrameWidth: 320, FrameHeight: 240,
		EyeDeadzonePx: 5, EyeGainDegPerPx: 0.1, EyeMaxDeltaDeg: 30,
		PitchDeadzonePx: 5, PitchGainDegPerPx: 0.1, PitchMaxDeltaDeg: 30,
		WheelDeadzoneDeg: 2, WheelFollowDelayS: 0, WheelInputMin: 0, WheelInputMax: 30,
		WheelPower: 1, WheelOutputMin: 0, WheelOutputMax: 1,
	}
}

type fakeInvoker struct {
	dets []vision.Detection
	err  error
}

func (f fakeInvoker) InvokeOnce(ctx context.Context, timeout time.Duration) ([]vision.Detection, error) {
	return f.dets, f.err
}

func TestHandleDetectionMovesEyesTowardTarget(t *testing.T) {
	sv := testServos(t)
	tr := New(testConfig(), sv, fakeInvoker{})
	// Detection far right of center (frame width 320, center at 160).
	tr.handleDetection(vision.Detection{X: 260, Y: 120})

	if got := sv.EyeL.TargetAngle(); got <= 90 {
		t.Errorf("EyeL target = %v, want > 90 (moved toward detection)", got)
	}
	if got := sv.EyeR.TargetAngle(); got <= 90 {
		t.Errorf("EyeR target = %v, want > 90", got)
	}
}

func TestHandleDetectionIgnoresWithinDeadzone(t *testing.T) {
	sv := testServos(t)
	tr := New(testConfig(), sv, fakeInvoker{})
	tr.handleDetection(vision.Detection{X: 161, Y: 121}) // 1px off center, within deadzone

	if got := sv.EyeL.TargetAngle(); got != 90 {
		t.Errorf("EyeL target = %v, want 90 (within deadzone, no movement)", got)
	}
}

func TestHandleDetectionClampsDelta(t *testing.T) {
	sv := testServos(t)
	cfg := testConfig()
	cfg.EyeMaxDeltaDeg = 5
	tr := New(cfg, sv, fakeInvoker{})
	tr.handleDetection(vision.Detection{X: 320, Y: 120}) // huge offset

	if got := sv.EyeL.TargetAngle(); got > 95 {
		t.Errorf("EyeL target = %v, want <= 95 (clamped to MaxDeltaDeg=5)", got)
	}
}

func TestHandleMissingNeutralizesAfterTimeout(t *testing.T) {
	sv := testServos(t)
	tr := New(testConfig(), sv, fakeInvoker{})
	tr.handleDetection(vision.Detection{X: 260, Y: 120})
	if sv.EyeL.TargetAngle() == 90 {
		t.Fatal("setup: expected eye to have moved off neutral")
	}

	tr.lastDetection = time.Now().Add(-2 * time.Second) // older than NeutralTimeoutS=1
	tr.handleMissing(time.Now())

	if got := sv.EyeL.TargetAngle(); got != 90 {
		t.Errorf("EyeL target after handleMissing = %v, want 90 (neutralized)", got)
	}
}

func TestHandleMissingDoesNothingBeforeTimeout(t *testing.T) {
	sv := testServos(t)
	tr := New(testConfig(), sv, fakeInvoker{})
	tr.handleDetection(vision.Detection{X: 260, Y: 120})
	before := sv.EyeL.TargetAngle()

	tr.lastDetection = time.Now() // fresh
	tr.handleMissing(time.Now())

	if got := sv.EyeL.TargetAngle(); got != before {
		t.Errorf("EyeL target = %v, want unchanged %v (within NeutralTimeoutS)", got, before)
	}
}

func TestWheelFollowRemapsNonLinearlyAfterDelay(t *testing.T) {
	sv := testServos(t)
	tr := New(testConfig(), sv, fakeInvoker{})
	// Force a large eye deviation directly, bypassing gain/clamp math.
	sv.EyeL.SetTarget(150)
	now := time.Now()
	for i := 0; i < 20; i++ {
		now = now.Add(20 * time.Millisecond)
		_ = sv.EyeL.Update(now)
	}

	tr.updateWheels() // first call only arms the deviation timer
	tr.updateWheels() // second call, delay already elapsed (WheelFollowDelayS=0), applies the remap
	if got := sv.WheelL.TargetAngle(); got == 90 {
		t.Error("expected wheel to move off neutral once eye deviation exceeds deadzone and delay elapses")
	}
}

func TestStartStopIsIdempotentAndStopsLoop(t *testing.T) {
	sv := testServos(t)
	cfg := testConfig()
	cfg.UpdateIntervalS = 0.005
	tr := New(cfg, sv, fakeInvoker{dets: []vision.Detection{{X: 200, Y: 120, Score: 1}}})
	tr.Start()
	time.Sleep(20 * time.Millisecond)
	tr.Stop()
	tr.Stop() // must not panic on double Stop
}
