package wake

import "github.com/coglet/coglet-core/internal/sherpa"

// SherpaScorer backs Scorer with sherpa-onnx's keyword spotter, the window-
// hop ML model this module already depends on for STT/VAD/TTS (no
// OpenWakeWord binding exists in this module's dependency stack).
type SherpaScorer struct {
	spotter *sherpa.KeywordSpotter
	stream  *sherpa.OnlineStream
	keyword string
}

// NewSherpaScorer loads a keyword-spotting model bundle and arms it for
// keyword.
func NewSherpaScorer(cfg *sherpa.KeywordSpotterConfig, keyword string) *SherpaScorer {
	spotter := sherpa.NewKeywordSpotter(cfg)
	stream := sherpa.NewOnlineStream(nil)
	return &SherpaScorer{spotter: spotter, stream: stream, keyword: keyword}
}

// Score feeds the accumulated window into the spotter and returns 1.0 if the
// configured keyword was detected in this window, else 0.0. sherpa's
// KeywordSpotter is a binary detector rather than a continuous scorer, so
// Score degrades the richer [0,1] contract to a step function at the
// configured Threshold (callers should set Threshold just below 1.0).
func (s *SherpaScorer) Score(window []float32) float64 {
	s.stream.AcceptWaveform(16000, window)
	for s.spotter.IsReady(s.stream) {
		s.spotter.Decode(s.stream)
		result := s.spotter.GetResult(s.stream)
		if result.Keyword != "" {
			s.spotter.Reset(s.stream)
			return 1.0
		}
	}
	return 0.0
}

// Close releases the keyword spotter and its stream.
func (s *SherpaScorer) Close() {
	sherpa.DeleteOnlineStream(s.stream)
	sherpa.DeleteKeywordSpotter(s.spotter)
}
