// Package vad defines the narrow external voice-activity-detector contract
// the Speech Endpoint is built on, and a sherpa-onnx Silero-VAD backed
// implementation standing in for the source's pluggable WebRTC aggressiveness
// levels 0-3 (no WebRTC VAD binding exists in this module's dependency
// stack; sherpa-onnx-go's VoiceActivityDetector is the equivalent pluggable
// external VAD the rest of this module already depends on).
package vad

import (
	"encoding/binary"

	"github.com/coglet/coglet-core/internal/sherpa"
)

// Detector classifies one fixed-size audio frame as speech or not.
type Detector interface {
	IsSpeech(frame []float32) bool
	Reset()
}

// Aggressiveness mirrors WebRTC VAD's 0-3 scale, mapped onto four Silero-VAD
// threshold presets.
type Aggressiveness int

const (
	Quality Aggressiveness = iota
	LowBitrate
	Aggressive
	VeryAggressive
)

func thresholdFor(a Aggressiveness) float32 {
	switch a {
	case Quality:
		return 0.3
	case LowBitrate:
		return 0.4
	case Aggressive:
		return 0.5
	case VeryAggressive:
		return 0.65
	default:
		return 0.5
	}
}

// SileroDetector wraps sherpa.VoiceActivityDetector.
type SileroDetector struct {
	vad       *sherpa.VoiceActivityDetector
	threshold float32
}

// NewSileroDetector loads a Silero VAD model at the given aggressiveness
// preset. sampleRate and frameMs must match the Speech Endpoint's framing.
func NewSileroDetector(modelPath string, sampleRate, frameMs, numThreads int, a Aggressiveness) *SileroDetector {
	threshold := thresholdFor(a)
	cfg := sherpa.VadModelConfig{}
	cfg.SileroVad.Model = modelPath
	cfg.SileroVad.Threshold = threshold
	cfg.SileroVad.MinSilenceDuration = float32(frameMs) / 1000
	cfg.SileroVad.MinSpeechDuration = float32(frameMs) / 1000
	cfg.SileroVad.WindowSize = sampleRate * frameMs / 1000
	cfg.SampleRate = sampleRate
	cfg.NumThreads = numThreads

	v := sherpa.NewVoiceActivityDetector(&cfg, float32(frameMs)/1000*4)
	return &SileroDetector{vad: v, threshold: threshold}
}

// IsSpeech feeds one frame and reports whether the model currently considers
// speech to be in progress.
func (d *SileroDetector) IsSpeech(frame []float32) bool {
	d.vad.AcceptWaveform(frame)
	return !d.vad.IsEmpty() && d.vad.IsSpeech()
}

// Reset clears internal VAD state (used when the endpoint session resets).
func (d *SileroDetector) Reset() {
	d.vad.Reset()
}

// Close releases the underlying model.
func (d *SileroDetector) Close() {
	sherpa.DeleteVoiceActivityDetector(d.vad)
}

// ByteAdapter adapts a float32-frame Detector to the byte-frame shape the
// Speech Endpoint reads from its FrameSource (internal/endpoint.Detector).
type ByteAdapter struct {
	Detector
}

// IsSpeechFrame decodes frame as PCM16 LE and delegates to IsSpeech.
func (a ByteAdapter) IsSpeechFrame(frame []byte) bool {
	samples := make([]float32, len(frame)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(frame[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return a.IsSpeech(samples)
}
