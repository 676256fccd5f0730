// Package eyelid implements the autonomous blink loop with an
// override-for-duration API used by listening animations, ported from
// eyelid_controller.py.
package eyelid

import (
	"math/rand"
	"sync"
	"time"

	"github.com/coglet/coglet-core/internal/servo"
)

// Mode is the public eyelid state.
type Mode int

const (
	Auto Mode = iota
	Hold
	Closed
	Sleep
)

// Config carries the blink timing and angle constants.
type Config struct {
	OpenAngleDeg  float64
	BlinkMinS     float64
	BlinkMaxS     float64
	BlinkCloseS   float64
	BlinkHoldS    float64
	BlinkOpenS    float64
}

// Controller owns a background blink goroutine driving the LID servo.
type Controller struct {
	cfg   Config
	lid   *servo.Servo

	mu       sync.Mutex
	mode     Mode
	sleepFrac float64
	override  bool
	overrideUntil time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Controller in Auto mode; call Start to begin blinking.
func New(cfg Config, lid *servo.Servo) *Controller {
	return &Controller{cfg: cfg, lid: lid, mode: Auto, stopCh: make(chan struct{})}
}

// closedAngle returns open_angle - 60deg; the lid servo's SetTarget clamps
// it to the servo's limits.
func (c *Controller) closedAngle() float64 {
	return c.cfg.OpenAngleDeg - 60
}

// Start launches the blink loop goroutine.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.loop()
}

// SetMode switches between Auto/Hold/Closed/Sleep. angle is used for Hold;
// frac in [0,1] is used for Sleep.
func (c *Controller) SetMode(mode Mode, angleOrFrac float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.override = false
	if mode == Sleep {
		c.sleepFrac = clamp01(angleOrFrac)
	}
	c.applyModeTargetLocked(angleOrFrac)
}

// SetOverride suspends blinking, drives the lid to angle, and resumes Auto
// after duration elapses.
func (c *Controller) SetOverride(angle float64, duration time.Duration) {
	c.mu.Lock()
	c.override = true
	c.overrideUntil = time.Now().Add(duration)
	c.mu.Unlock()

	c.lid.SetTarget(angle)
	c.syncTick()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.interruptibleSleep(duration)
		c.mu.Lock()
		if c.override && !time.Now().Before(c.overrideUntil) {
			c.override = false
			c.mode = Auto
		}
		c.mu.Unlock()
	}()
}

// Shutdown forces the Closed terminal pose regardless of prior mode and
// stops the blink loop.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.mode = Closed
	c.override = false
	c.mu.Unlock()
	c.lid.SetTarget(c.closedAngle())
	c.syncTick()

	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.wg.Wait()
}

func (c *Controller) applyModeTargetLocked(angleOrFrac float64) {
	switch c.mode {
	case Hold:
		c.lid.SetTarget(angleOrFrac)
	case Closed:
		c.lid.SetTarget(c.closedAngle())
	case Sleep:
		open := c.cfg.OpenAngleDeg
		closed := c.closedAngle()
		c.lid.SetTarget(open + c.sleepFrac*(closed-open))
	case Auto:
		c.lid.SetTarget(c.cfg.OpenAngleDeg)
	}
}

// loop runs the autonomous blink cycle while in Auto mode and not overridden.
func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		mode := c.mode
		override := c.override
		c.mu.Unlock()

		if mode != Auto || override {
			if c.interruptibleSleep(50 * time.Millisecond) {
				return
			}
			continue
		}

		interval := randRange(c.cfg.BlinkMinS, c.cfg.BlinkMaxS)
		if c.interruptibleSleep(time.Duration(interval * float64(time.Second))) {
			return
		}

		if !c.canBlink() {
			continue
		}
		c.lid.SetTarget(c.closedAngle())
		if c.interruptibleSleep(time.Duration(c.cfg.BlinkCloseS * float64(time.Second))) {
			return
		}
		if c.interruptibleSleep(time.Duration(c.cfg.BlinkHoldS * float64(time.Second))) {
			return
		}
		if !c.canBlink() {
			continue
		}
		c.lid.SetTarget(c.cfg.OpenAngleDeg)
		if c.interruptibleSleep(time.Duration(c.cfg.BlinkOpenS * float64(time.Second))) {
			return
		}
	}
}

func (c *Controller) canBlink() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == Auto && !c.override
}

// interruptibleSleep sleeps in small slices so Shutdown/mode changes are
// noticed promptly rather than after one long uninterruptible sleep. Returns
// true if the stop signal fired.
func (c *Controller) interruptibleSleep(d time.Duration) bool {
	const slice = 20 * time.Millisecond
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		select {
		case <-c.stopCh:
			return true
		case <-time.After(slice):
		}
	}
	return false
}

// syncTick forces several immediate motion-profile ticks so a set target
// visually snaps instead of drifting in via the next loop iteration.
func (c *Controller) syncTick() {
	now := time.Now()
	for i := 0; i < 5; i++ {
		now = now.Add(20 * time.Millisecond)
		_ = c.lid.Update(now)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func randRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}
