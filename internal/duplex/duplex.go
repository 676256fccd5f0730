// Package duplex implements the scoped half-duplex TTS mute gate described
// in spec §4.11, ported from audio.py's module-level listen-enable switch
// and coglet-pi.py's half_duplex_tts scoping.
package duplex

import (
	"context"
	"sync"
	"time"
)

// Muter is the narrow mic-mute contract the gate drives.
type Muter interface {
	SetListen(enabled bool)
	Flush()
}

// Rearmer is called on gate exit to force the wake detector to rearm.
type Rearmer interface {
	ResetAfterTTS()
}

// Gate serializes TTS utterances: concurrent Acquire calls block until the
// holder releases. A buffered 1-slot channel stands in for a cancellable
// mutex so a context timeout never leaves a goroutine holding the lock.
type Gate struct {
	sem              chan struct{}
	mic              Muter
	wake             Rearmer
	bargeIn          bool
	cooldownAfterTTS time.Duration
}

// New builds a Gate. bargeIn controls whether entering the gate mutes the
// mic at all.
func New(mic Muter, wake Rearmer, bargeIn bool, cooldownAfterTTS time.Duration) *Gate {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &Gate{sem: sem, mic: mic, wake: wake, bargeIn: bargeIn, cooldownAfterTTS: cooldownAfterTTS}
}

// Acquire blocks until the gate is free, then mutes the mic (unless
// barge-in is enabled) and returns a release func. The release func waits
// cooldownAfterTTS, flushes the mic queue, and rearms the wake detector —
// all skipped when barge-in was on, since the mic was never muted.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-g.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !g.bargeIn {
		g.mic.SetListen(false)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if !g.bargeIn {
				time.Sleep(g.cooldownAfterTTS)
				g.mic.Flush()
				g.mic.SetListen(true)
				if g.wake != nil {
					g.wake.ResetAfterTTS()
				}
			}
			g.sem <- struct{}{}
		})
	}, nil
}
