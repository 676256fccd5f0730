// Package servo implements motion-profile-limited actuators on top of a PWM
// bus, and the process-wide registry that wires them to a fixed layout.
package servo

import (
	"sync"
	"time"

	"github.com/coglet/coglet-core/internal/pwm"
)

// Config is the per-actuator configuration (data model §3).
type Config struct {
	MinAngleDeg    float64
	MaxAngleDeg    float64
	MinPulseUs     float64
	MaxPulseUs     float64
	MaxSpeedDegS   float64
	MaxAccelDegS2  float64
	DeadzoneDeg    float64
	NeutralDeg     float64
	Invert         bool
	PWMFreqHz      float64
}

// Servo wraps one PWM channel with a motion-profile limiter: clamp,
// deadzone, speed and acceleration limits, angle<->pulse linear mapping.
// Ported from pca9685_servo.py's Servo class.
type Servo struct {
	mu      sync.Mutex
	bus     *pwm.Bus
	channel int
	cfg     Config

	currentAngle float64
	currentVel   float64
	targetAngle  float64
	lastTick     time.Time
	lastPulseUs  float64
	havePulse    bool
}

// New creates a Servo parked at cfg.NeutralDeg, channel bound to bus.
func New(bus *pwm.Bus, channel int, cfg Config) *Servo {
	return &Servo{
		bus:          bus,
		channel:      channel,
		cfg:          cfg,
		currentAngle: cfg.NeutralDeg,
		targetAngle:  cfg.NeutralDeg,
		lastTick:     time.Time{},
	}
}

// SetTarget clamps angle to [min,max], applies invert, and rejects a change
// smaller than DeadzoneDeg as a no-op.
func (s *Servo) SetTarget(angle float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	angle = clamp(angle, s.cfg.MinAngleDeg, s.cfg.MaxAngleDeg)
	if s.cfg.Invert {
		angle = s.cfg.MaxAngleDeg + s.cfg.MinAngleDeg - angle
	}
	if abs(angle-s.targetAngle) < s.cfg.DeadzoneDeg {
		return
	}
	s.targetAngle = angle
}

// Update advances the motion profile to now and writes the resulting pulse
// to the PWM bus if it changed. Returns any bus write error (non-fatal to
// the motion state, which has already advanced).
func (s *Servo) Update(now time.Time) error {
	s.mu.Lock()

	if s.lastTick.IsZero() {
		s.lastTick = now
	}
	dt := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if dt <= 0 {
		s.mu.Unlock()
		return nil
	}

	e := s.targetAngle - s.currentAngle
	maxStep := s.cfg.MaxSpeedDegS * dt
	desiredV := sign(e) * minF(abs(e)/dt, s.cfg.MaxSpeedDegS)

	maxDv := s.cfg.MaxAccelDegS2 * dt
	dv := clamp(desiredV-s.currentVel, -maxDv, maxDv)
	s.currentVel = clamp(s.currentVel+dv, -s.cfg.MaxSpeedDegS, s.cfg.MaxSpeedDegS)

	next := s.currentAngle + s.currentVel*dt
	// Never overshoot: once within one step of target, snap.
	if abs(e) <= maxStep || abs(e) <= abs(s.currentVel*dt) {
		next = s.targetAngle
		s.currentVel = 0
	}
	s.currentAngle = clamp(next, s.cfg.MinAngleDeg, s.cfg.MaxAngleDeg)

	pulseUs := s.angleToPulse(s.currentAngle)
	needsWrite := !s.havePulse || abs(pulseUs-s.lastPulseUs) > 0.5
	channel := s.channel
	bus := s.bus
	s.mu.Unlock()

	if !needsWrite {
		return nil
	}
	if err := bus.SetPulseUs(channel, pulseUs); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastPulseUs = pulseUs
	s.havePulse = true
	s.mu.Unlock()
	return nil
}

// Release stops issuing pulses for this servo's channel.
func (s *Servo) Release() error {
	return s.bus.Release(s.channel)
}

// CurrentAngle returns the current motion-profiled angle.
func (s *Servo) CurrentAngle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAngle
}

// TargetAngle returns the last commanded target.
func (s *Servo) TargetAngle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetAngle
}

// NeutralDeg returns the configured rest angle.
func (s *Servo) NeutralDeg() float64 {
	return s.cfg.NeutralDeg
}

// Channel returns the PWM channel this servo drives.
func (s *Servo) Channel() int {
	return s.channel
}

func (s *Servo) angleToPulse(angle float64) float64 {
	span := s.cfg.MaxAngleDeg - s.cfg.MinAngleDeg
	if span <= 0 {
		return s.cfg.MinPulseUs
	}
	frac := (angle - s.cfg.MinAngleDeg) / span
	return s.cfg.MinPulseUs + frac*(s.cfg.MaxPulseUs-s.cfg.MinPulseUs)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
