// Package wake implements the window/hop framed wake-word gate: edge-trigger
// firing, debounce, post-TTS suppression, and rearm, ported from audio.py's
// Wakeword class.
package wake

import (
	"sync"
	"time"
)

// hopSnapSamples is the fixed 80ms-at-16kHz snap unit (spec §4.10).
const hopSnapSamples = 1280

// Scorer is the narrow ML-inference contract: feed raw samples accumulated
// into the configured window, get back a score in [0,1]. Backed by
// sherpa.KeywordSpotter in production.
type Scorer interface {
	Score(window []float32) float64
}

// Config carries the wake thresholds (spec §6).
type Config struct {
	SampleRate        int
	WinMs             int
	HopMs             int
	Threshold         float64
	MinGapS           float64
	SuppressAfterTTSS float64
	RearmRatio        float64
	RearmLowCount     int
}

// Event is surfaced once per rearmed cycle.
type Event struct {
	DetectedAt time.Time
	Confidence float64
}

// Detector accumulates samples into a ring sized to the window, scoring
// every hop.
type Detector struct {
	cfg    Config
	scorer Scorer

	mu           sync.Mutex
	window       []float32
	winSamples   int
	hopSamples   int
	sinceHop     int

	armed         bool
	lastFire      time.Time
	suppressUntil time.Time
	lowCount      int
	wasAboveThreshold bool
}

// New snaps WinMs/HopMs to multiples of 80ms (1280 samples @ 16kHz) and
// returns an armed Detector.
func New(cfg Config, scorer Scorer) *Detector {
	hopMsSnapped := snapMs(cfg.HopMs, cfg.SampleRate)
	winMsSnapped := snapMs(cfg.WinMs, cfg.SampleRate)
	winSamples := cfg.SampleRate * winMsSnapped / 1000
	hopSamples := cfg.SampleRate * hopMsSnapped / 1000

	return &Detector{
		cfg:        cfg,
		scorer:     scorer,
		window:     make([]float32, 0, winSamples),
		winSamples: winSamples,
		hopSamples: hopSamples,
		armed:      true,
	}
}

func snapMs(ms, sampleRate int) int {
	unitMs := hopSnapSamples * 1000 / sampleRate
	if unitMs <= 0 {
		unitMs = 80
	}
	n := (ms + unitMs/2) / unitMs
	if n < 1 {
		n = 1
	}
	return n * unitMs
}

// Feed appends samples and returns a fired Event whenever the hop boundary
// crosses with an armed, above-threshold, edge-triggered score.
func (d *Detector) Feed(samples []float32) *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.window = append(d.window, samples...)
	if len(d.window) > d.winSamples {
		d.window = d.window[len(d.window)-d.winSamples:]
	}
	d.sinceHop += len(samples)
	if d.sinceHop < d.hopSamples {
		return nil
	}
	d.sinceHop = 0

	if len(d.window) < d.winSamples {
		return nil
	}

	score := d.scorer.Score(d.window)
	now := time.Now()

	if !d.armed {
		if score <= d.cfg.RearmRatio*d.cfg.Threshold {
			d.lowCount++
			if d.lowCount >= d.cfg.RearmLowCount {
				d.armed = true
				d.lowCount = 0
				d.wasAboveThreshold = false
			}
		} else {
			d.lowCount = 0
		}
		return nil
	}

	above := score >= d.cfg.Threshold
	edge := above && !d.wasAboveThreshold
	d.wasAboveThreshold = above

	if !edge {
		return nil
	}
	if !d.lastFire.IsZero() && now.Sub(d.lastFire).Seconds() < d.cfg.MinGapS {
		return nil
	}
	if now.Before(d.suppressUntil) {
		return nil
	}

	d.lastFire = now
	d.armed = false
	d.lowCount = 0
	return &Event{DetectedAt: now, Confidence: score}
}

// ResetAfterTTS rearms the detector immediately and suppresses fires for
// SuppressAfterTTSS following a TTS-done event (spec's resolved Open
// Question: wake fires during this window are suppressed).
func (d *Detector) ResetAfterTTS() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = true
	d.lowCount = 0
	d.wasAboveThreshold = false
	d.suppressUntil = time.Now().Add(time.Duration(d.cfg.SuppressAfterTTSS * float64(time.Second)))
}
