// Package tracker implements the closed-loop error-centric face tracker:
// eye/pitch/yaw deadzone-gain-clamp control plus delayed non-linear
// base-rotation wheel follow, ported from face_tracker.py.
package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/coglet/coglet-core/internal/servo"
	"github.com/coglet/coglet-core/internal/vision"
)

// Config carries every gain/deadzone/clamp/interval constant (spec §6).
type Config struct {
	UpdateIntervalS   float64
	InvokeIntervalS   float64
	InvokeTimeoutS    float64
	NeutralTimeoutS   float64
	CoordinatesAreCenter bool
	FrameWidth        float64
	FrameHeight       float64

	EyeDeadzonePx      float64
	EyeGainDegPerPx    float64
	EyeMaxDeltaDeg     float64

	PitchDeadzonePx    float64
	PitchGainDegPerPx  float64
	PitchMaxDeltaDeg   float64

	YawEnabled         bool
	YawDeadzonePx      float64
	YawGainDegPerPx    float64
	YawMaxDeltaDeg     float64

	WheelDeadzoneDeg   float64
	WheelFollowDelayS  float64
	WheelInputMin      float64
	WheelInputMax      float64
	WheelPower         float64
	WheelOutputMin     float64
	WheelOutputMax     float64

	VisionFailStreakDegrade int

	PatrolEnabled     bool
	PatrolAfterS      float64
	PatrolStepDeg     float64
	PatrolStepEveryS  float64
}

// Servos bundles the disjoint handles the tracker drives. Yaw may be nil
// (disabled by default, matching the original's empty-channel default).
type Servos struct {
	EyeL, EyeR *servo.Servo
	Pitch      *servo.Servo
	Yaw        *servo.Servo
	WheelL, WheelR *servo.Servo
}

// Invoker is the narrow vision contract the tracker polls.
type Invoker interface {
	InvokeOnce(ctx context.Context, timeout time.Duration) ([]vision.Detection, error)
}

// Tracker runs its own goroutine once Start is called.
type Tracker struct {
	cfg    Config
	sv     Servos
	vis    Invoker

	mu       sync.Mutex
	enabled  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup

	lastInvoke     time.Time
	lastDetection  time.Time
	failStreak     int
	eyeDevSince    time.Time
	haveDevSince   bool
	patrolPhase    int
	lastPatrolStep time.Time
}

// New builds a Tracker, enabled by default.
func New(cfg Config, sv Servos, vis Invoker) *Tracker {
	return &Tracker{cfg: cfg, sv: sv, vis: vis, enabled: true, stopCh: make(chan struct{})}
}

// SetEnabled toggles whether Update ticks act on detections.
func (t *Tracker) SetEnabled(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = v
}

// Start launches the tracker goroutine.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.loop()
}

// Stop signals the goroutine to exit and waits for it.
func (t *Tracker) Stop() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	t.wg.Wait()
}

func (t *Tracker) loop() {
	defer t.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-t.stopCh:
			return
		case <-time.After(time.Duration(t.cfg.UpdateIntervalS * float64(time.Second))):
		}

		t.mu.Lock()
		enabled := t.enabled
		t.mu.Unlock()
		if !enabled {
			continue
		}

		now := time.Now()
		if !t.lastInvoke.IsZero() && now.Sub(t.lastInvoke).Seconds() < t.cfg.InvokeIntervalS {
			continue
		}
		t.lastInvoke = now

		detections, err := t.vis.InvokeOnce(ctx, time.Duration(t.cfg.InvokeTimeoutS*float64(time.Second)))
		if err != nil {
			t.failStreak++
			t.handleMissing(now)
			continue
		}
		t.failStreak = 0

		if len(detections) == 0 {
			t.handleMissing(now)
			continue
		}

		t.lastDetection = now
		t.haveDevSince = false
		t.patrolPhase = 0
		best := bestDetection(detections)
		t.handleDetection(best)
	}
}

func bestDetection(ds []vision.Detection) vision.Detection {
	best := ds[0]
	for _, d := range ds[1:] {
		if d.Score > best.Score {
			best = d
		}
	}
	return best
}

func (t *Tracker) handleDetection(d vision.Detection) {
	var cx, cy float64
	if t.cfg.CoordinatesAreCenter {
		cx, cy = d.CenterX, d.CenterY
	} else {
		cx, cy = d.X, d.Y
	}
	ex := cx - t.cfg.FrameWidth/2
	ey := cy - t.cfg.FrameHeight/2

	if math.Abs(ex) > t.cfg.EyeDeadzonePx {
		delta := clamp(ex*t.cfg.EyeGainDegPerPx, -t.cfg.EyeMaxDeltaDeg, t.cfg.EyeMaxDeltaDeg)
		if t.sv.EyeL != nil {
			t.sv.EyeL.SetTarget(t.sv.EyeL.TargetAngle() + delta)
		}
		if t.sv.EyeR != nil {
			t.sv.EyeR.SetTarget(t.sv.EyeR.TargetAngle() + delta)
		}
	}

	if math.Abs(ey) > t.cfg.PitchDeadzonePx && t.sv.Pitch != nil {
		delta := clamp(ey*t.cfg.PitchGainDegPerPx, -t.cfg.PitchMaxDeltaDeg, t.cfg.PitchMaxDeltaDeg)
		t.sv.Pitch.SetTarget(t.sv.Pitch.TargetAngle() + delta)
	}

	if t.cfg.YawEnabled && t.sv.Yaw != nil && math.Abs(ex) > t.cfg.YawDeadzonePx {
		delta := clamp(ex*t.cfg.YawGainDegPerPx, -t.cfg.YawMaxDeltaDeg, t.cfg.YawMaxDeltaDeg)
		t.sv.Yaw.SetTarget(t.sv.Yaw.TargetAngle() + delta)
	}

	t.updateWheels()
}

// updateWheels implements the delayed non-linear wheel-follow remap.
func (t *Tracker) updateWheels() {
	if t.sv.EyeL == nil || t.sv.WheelL == nil || t.sv.WheelR == nil {
		return
	}
	eyeDev := t.sv.EyeL.CurrentAngle() - t.sv.EyeL.NeutralDeg()
	dev := math.Abs(eyeDev)

	if dev < t.cfg.WheelDeadzoneDeg {
		t.haveDevSince = false
		t.sv.WheelL.SetTarget(t.sv.WheelL.NeutralDeg())
		t.sv.WheelR.SetTarget(t.sv.WheelR.NeutralDeg())
		return
	}

	if !t.haveDevSince {
		t.haveDevSince = true
		t.eyeDevSince = time.Now()
		return
	}
	if time.Since(t.eyeDevSince).Seconds() < t.cfg.WheelFollowDelayS {
		return
	}

	u := clamp((dev-t.cfg.WheelInputMin)/(t.cfg.WheelInputMax-t.cfg.WheelInputMin), 0, 1)
	v := math.Pow(u, t.cfg.WheelPower)
	mag := t.cfg.WheelOutputMin + v*(t.cfg.WheelOutputMax-t.cfg.WheelOutputMin)
	signed := mag * sign(eyeDev)

	t.sv.WheelL.SetTarget(t.sv.WheelL.NeutralDeg() + signed)
	t.sv.WheelR.SetTarget(t.sv.WheelR.NeutralDeg() + signed)
}

// handleMissing returns tracked servos to neutral once the vision signal has
// been absent for longer than NeutralTimeoutS; otherwise, once absent even
// longer, it runs a patrol look-around sequence (a supplementary behavior
// from the original's idle-scan, not a literal spec requirement).
func (t *Tracker) handleMissing(now time.Time) {
	if t.lastDetection.IsZero() || now.Sub(t.lastDetection).Seconds() <= t.cfg.NeutralTimeoutS {
		return
	}

	t.neutralizeAll()

	if !t.cfg.PatrolEnabled {
		return
	}
	if now.Sub(t.lastDetection).Seconds() < t.cfg.PatrolAfterS {
		return
	}
	if now.Sub(t.lastPatrolStep).Seconds() < t.cfg.PatrolStepEveryS {
		return
	}
	t.lastPatrolStep = now
	t.patrolStep()
}

func (t *Tracker) neutralizeAll() {
	for _, s := range []*servo.Servo{t.sv.EyeL, t.sv.EyeR, t.sv.Pitch, t.sv.Yaw, t.sv.WheelL, t.sv.WheelR} {
		if s != nil {
			s.SetTarget(s.NeutralDeg())
		}
	}
	t.haveDevSince = false
}

// patrolStep advances a simple left/center/right/center look-around cycle.
func (t *Tracker) patrolStep() {
	if t.sv.EyeL == nil || t.sv.EyeR == nil {
		return
	}
	offsets := []float64{-t.cfg.PatrolStepDeg, 0, t.cfg.PatrolStepDeg, 0}
	offset := offsets[t.patrolPhase%len(offsets)]
	t.patrolPhase++

	t.sv.EyeL.SetTarget(t.sv.EyeL.NeutralDeg() + offset)
	t.sv.EyeR.SetTarget(t.sv.EyeR.NeutralDeg() + offset)
	if t.cfg.YawEnabled && t.sv.Yaw != nil {
		t.sv.Yaw.SetTarget(t.sv.Yaw.NeutralDeg() + offset)
	}
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

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
