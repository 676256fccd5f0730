package servo

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Registry is the process-wide name->Servo map. Immutable after Freeze.
type Registry struct {
	byName  map[string]*Servo
	byChan  map[int]string
	frozen  bool
}

// NewRegistry returns an empty, mutable registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Servo),
		byChan: make(map[int]string),
	}
}

// Register binds name to a Servo on channel. Fails on duplicate name or
// channel, or once the registry is frozen.
func (r *Registry) Register(name string, channel int, s *Servo) error {
	if r.frozen {
		return fmt.Errorf("servo: registry frozen, cannot register %q", name)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("servo: duplicate name %q", name)
	}
	if existing, ok := r.byChan[channel]; ok {
		return fmt.Errorf("servo: channel %d already bound to %q", channel, existing)
	}
	r.byName[name] = s
	r.byChan[channel] = name
	return nil
}

// Freeze makes the registry immutable; subsequent Register calls fail.
func (r *Registry) Freeze() { r.frozen = true }

// Get returns the servo bound to name, or nil if unregistered.
func (r *Registry) Get(name string) *Servo {
	return r.byName[name]
}

// All returns every registered name.
func (r *Registry) All() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// RunUpdateLoop ticks every registered servo's motion profile at interval
// until ctx is cancelled. One goroutine drives every channel so no two
// callers ever race on the same PWM write.
func (r *Registry) RunUpdateLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for name, s := range r.byName {
				if err := s.Update(now); err != nil {
					log.Printf("⚠️ servo %s update: %v", name, err)
				}
			}
		}
	}
}

// Shutdown drives every registered servo to its calibrated stop angle (or
// neutral if the overlay doesn't name a stop angle), ticking the motion
// profile until settled or deadline elapses, then releases every channel.
func (r *Registry) Shutdown(cal Calibration, deadline time.Duration) {
	target := make(map[string]float64, len(r.byName))
	for name, s := range r.byName {
		angle := s.NeutralDeg()
		if stop, ok := cal.StopAngle(s.Channel()); ok {
			angle = stop
		}
		s.SetTarget(angle)
		target[name] = angle
	}

	tickInterval := 20 * time.Millisecond
	deadlineAt := time.Now().Add(deadline)
	for time.Now().Before(deadlineAt) {
		now := time.Now()
		settled := true
		for name, s := range r.byName {
			_ = s.Update(now)
			if abs(s.CurrentAngle()-target[name]) > 0.5 {
				settled = false
			}
		}
		if settled {
			break
		}
		time.Sleep(tickInterval)
	}

	for _, s := range r.byName {
		_ = s.Release()
	}
}
