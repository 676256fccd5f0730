// Package anim implements the short-lived animation loops (listening,
// thinking, talking), each owning a disjoint set of servos and a stop
// signal, ported from coglet-pi.py's _mouth_loop/_thinking_loop and the
// anim_*_start/stop entry points.
package anim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/coglet/coglet-core/internal/eyelid"
	"github.com/coglet/coglet-core/internal/servo"
)

// Loop is a start/stop animation controller. Safe to call Stop multiple
// times (idempotent).
type Loop struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	run     func(stop <-chan struct{})
}

// Start launches the loop if not already running.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	stop := l.stopCh
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(stop)
	}()
}

// Stop idempotently halts the loop and waits for it to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()
	l.wg.Wait()
}

func sleepOrStop(stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-stop:
		return true
	case <-time.After(d):
		return false
	}
}

// NewListening builds the "curious" animation: small NRL oscillation plus a
// raised-lid eyelid override, restoring the lid to auto on stop.
func NewListening(nrl *servo.Servo, lid *eyelid.Controller, raisedLidAngleDeg, amplitudeDeg float64, stepMs int) *Loop {
	l := &Loop{}
	l.run = func(stop <-chan struct{}) {
		neutral := nrl.NeutralDeg()
		lid.SetMode(eyelid.Hold, raisedLidAngleDeg)
		defer lid.SetMode(eyelid.Auto, 0)

		dir := 1.0
		for {
			nrl.SetTarget(neutral + dir*amplitudeDeg)
			dir = -dir
			if sleepOrStop(stop, time.Duration(stepMs)*time.Millisecond) {
				nrl.SetTarget(neutral)
				return
			}
		}
	}
	return l
}

// NewThinking builds the alternating-ear + slow-nod animation.
func NewThinking(eal, ear, npt *servo.Servo, earSwingDeg, noddAmplitudeDeg float64, tickMs int) *Loop {
	l := &Loop{}
	l.run = func(stop <-chan struct{}) {
		ealN, earN, nptN := eal.NeutralDeg(), ear.NeutralDeg(), npt.NeutralDeg()
		defer func() {
			eal.SetTarget(ealN)
			ear.SetTarget(earN)
			npt.SetTarget(nptN)
		}()

		phase := 0
		for {
			if phase%2 == 0 {
				eal.SetTarget(ealN + earSwingDeg)
				ear.SetTarget(earN - earSwingDeg)
			} else {
				eal.SetTarget(ealN - earSwingDeg)
				ear.SetTarget(earN + earSwingDeg)
			}
			nod := noddAmplitudeDeg
			if phase%4 >= 2 {
				nod = -nod
			}
			npt.SetTarget(nptN + nod)
			phase++
			if sleepOrStop(stop, time.Duration(tickMs)*time.Millisecond) {
				return
			}
		}
	}
	return l
}

// NewTalking builds the mouth-flap animation, stepping between closed and
// open every mouthStepMs plus a random jitter of up to mouthStepMs/3 ms
// while TTS plays. The caller stops it on TTS-DONE.
func NewTalking(mou *servo.Servo, openAngleDeg, closedAngleDeg float64, mouthStepMs int) *Loop {
	l := &Loop{}
	l.run = func(stop <-chan struct{}) {
		neutral := mou.NeutralDeg()
		defer mou.SetTarget(neutral)

		open := false
		for {
			jitter := time.Duration(rand.Intn(mouthStepMs/3+1)) * time.Millisecond
			if open {
				mou.SetTarget(closedAngleDeg)
			} else {
				mou.SetTarget(openAngleDeg)
			}
			open = !open
			if sleepOrStop(stop, time.Duration(mouthStepMs)*time.Millisecond+jitter) {
				return
			}
		}
	}
	return l
}
