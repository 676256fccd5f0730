// Package endpoint implements the Speech Endpoint: majority-vote start
// detection, hangover-based end detection, a preroll buffer, and guard and
// absolute caps, ported from audio.py's SpeechEndpoint.record state machine.
package endpoint

import (
	"sync/atomic"
	"time"
)

// Reason is the EndpointReason sum type; control-flow signal, not an error.
type Reason int

const (
	SpeechEnded Reason = iota
	NoSpeech
	MaxUtterance
	Cancelled
)

func (r Reason) String() string {
	switch r {
	case SpeechEnded:
		return "SpeechEnded"
	case NoSpeech:
		return "NoSpeech"
	case MaxUtterance:
		return "MaxUtterance"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Config sizes every constant named in spec §4.9/§6.
type Config struct {
	SampleRate       int
	FrameMs          int
	StartWin         int
	StartMin         int
	StartConsecMin   int
	EndHangMs        int
	EndGuardMs       int
	PrerollMs        int
	NoSpeechTimeoutS float64
	MaxUtterS        float64
}

// FrameSource yields exactly frame_bytes of PCM16 per call, blocking.
type FrameSource interface {
	ReadBytes(n int) ([]byte, error)
}

// Detector is the narrow external VAD contract (internal/vad.Detector
// reduced to the byte-frame shape the endpoint reads).
type Detector interface {
	IsSpeechFrame(frame []byte) bool
}

// Endpoint wraps a FrameSource + Detector with the preroll/start/hangover
// state machine.
type Endpoint struct {
	src    FrameSource
	det    Detector
	cfg    Config

	frameBytes    int
	hangFrames    int
	prerollFrames int

	cancelled atomic.Bool
}

// New sizes the endpoint per spec §4.9's constructor rules.
func New(src FrameSource, det Detector, cfg Config) *Endpoint {
	frameSamples := cfg.SampleRate * cfg.FrameMs / 1000
	return &Endpoint{
		src:           src,
		det:           det,
		cfg:           cfg,
		frameBytes:    frameSamples * 2,
		hangFrames:    ceilDiv(cfg.EndHangMs, cfg.FrameMs),
		prerollFrames: cfg.PrerollMs / cfg.FrameMs,
	}
}

// Cancel requests record() to return Cancelled at the next frame boundary.
func (e *Endpoint) Cancel() {
	e.cancelled.Store(true)
}

func (e *Endpoint) resetCancel() {
	e.cancelled.Store(false)
}

// Record runs the full pre-start/post-start loop and returns the
// concatenated utterance bytes plus the reason recording stopped.
func (e *Endpoint) Record(noSpeechTimeoutS float64) ([]byte, Reason, error) {
	if noSpeechTimeoutS <= 0 {
		noSpeechTimeoutS = e.cfg.NoSpeechTimeoutS
	}

	preroll := make([][]byte, 0, e.prerollFrames)
	window := make([]int, 0, e.cfg.StartWin)
	consecSpeech := 0

	startTs := time.Now()
	var startedAt time.Time
	var out []byte
	framesSinceVoice := 0

	for {
		if e.cancelled.Load() {
			e.resetCancel()
			return out, Cancelled, nil
		}

		frame, err := e.src.ReadBytes(e.frameBytes)
		if err != nil {
			return out, Cancelled, err
		}
		isSpeech := e.det.IsSpeechFrame(frame)

		if startedAt.IsZero() {
			// Pre-start.
			preroll = append(preroll, frame)
			if len(preroll) > e.prerollFrames {
				preroll = preroll[len(preroll)-e.prerollFrames:]
			}

			bit := 0
			if isSpeech {
				bit = 1
				consecSpeech++
			} else {
				consecSpeech = 0
			}
			window = append(window, bit)
			if len(window) > e.cfg.StartWin {
				window = window[len(window)-e.cfg.StartWin:]
			}

			if len(window) == e.cfg.StartWin && sum(window) >= e.cfg.StartMin && consecSpeech >= e.cfg.StartConsecMin {
				for _, f := range preroll {
					out = append(out, f...)
				}
				startedAt = time.Now()
				framesSinceVoice = 0
				continue
			}

			if time.Since(startTs).Seconds() > noSpeechTimeoutS {
				return out, NoSpeech, nil
			}
			continue
		}

		// Post-start.
		out = append(out, frame...)
		if isSpeech {
			framesSinceVoice = 0
		} else {
			framesSinceVoice++
		}

		guardElapsed := time.Since(startedAt).Seconds()*1000 >= float64(e.cfg.EndGuardMs)
		if framesSinceVoice >= e.hangFrames && guardElapsed {
			return out, SpeechEnded, nil
		}
		if time.Since(startedAt).Seconds() > e.cfg.MaxUtterS {
			return out, MaxUtterance, nil
		}
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func sum(bits []int) int {
	s := 0
	for _, b := range bits {
		s += b
	}
	return s
}
