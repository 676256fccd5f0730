package servo

import (
	"context"
	"testing"
	"time"

	"github.com/coglet/coglet-core/internal/pwm"
)

func newTestServo(bus *pwm.Bus, channel int, neutral float64) *Servo {
	return New(bus, channel, Config{
		MinAngleDeg: 0, MaxAngleDeg: 180, MinPulseUs: 500, MaxPulseUs: 2500,
		MaxSpeedDegS: 360, MaxAccelDegS2: 1440, NeutralDeg: neutral,
	})
}

func TestRegisterRejectsDuplicateNameAndChannel(t *testing.T) {
	sim := pwm.NewSimBus()
	bus, _ := pwm.NewBus(sim, 50)
	r := NewRegistry()

	if err := r.Register("a", 0, newTestServo(bus, 0, 90)); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("a", 1, newTestServo(bus, 1, 90)); err == nil {
		t.Error("expected error registering duplicate name")
	}
	if err := r.Register("b", 0, newTestServo(bus, 0, 90)); err == nil {
		t.Error("expected error registering duplicate channel")
	}
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	sim := pwm.NewSimBus()
	bus, _ := pwm.NewBus(sim, 50)
	r := NewRegistry()
	_ = r.Register("a", 0, newTestServo(bus, 0, 90))
	r.Freeze()

	if err := r.Register("b", 1, newTestServo(bus, 1, 90)); err == nil {
		t.Error("expected error registering after Freeze")
	}
}

func TestGetReturnsNilForUnknownName(t *testing.T) {
	r := NewRegistry()
	if got := r.Get("missing"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
}

func TestRunUpdateLoopTicksUntilCancelled(t *testing.T) {
	sim := pwm.NewSimBus()
	bus, _ := pwm.NewBus(sim, 50)
	r := NewRegistry()
	s := newTestServo(bus, 0, 90)
	_ = r.Register("a", 0, s)
	s.SetTarget(150)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunUpdateLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunUpdateLoop did not return after ctx cancellation")
	}

	if s.CurrentAngle() == 90 {
		t.Error("expected servo angle to have moved while the update loop ran")
	}
}

func TestShutdownDrivesToCalibratedStopAndReleases(t *testing.T) {
	sim := pwm.NewSimBus()
	bus, _ := pwm.NewBus(sim, 50)
	r := NewRegistry()
	s := newTestServo(bus, 2, 90)
	_ = r.Register("x", 2, s)
	s.SetTarget(170)

	cal := Calibration{2: ChannelCalibration{StopDeg: 45}}
	r.Shutdown(cal, 500*time.Millisecond)

	if got := s.CurrentAngle(); got < 44 || got > 46 {
		t.Errorf("CurrentAngle after Shutdown = %v, want ~45 (calibrated stop)", got)
	}
}
