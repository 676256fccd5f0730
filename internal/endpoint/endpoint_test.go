package endpoint

import (
	"errors"
	"testing"
)

// scriptedSource replays a fixed sequence of "speech"/"silence" frames, each
// frame just a single marker byte repeated to fill the requested length.
type scriptedSource struct {
	frames [][]byte
	i      int
}

func (s *scriptedSource) ReadBytes(n int) ([]byte, error) {
	if s.i >= len(s.frames) {
		// Loop silence forever once the script runs out, so timeouts fire
		// instead of the test blocking on a read error.
		return make([]byte, n), nil
	}
	f := s.frames[s.i]
	s.i++
	out := make([]byte, n)
	copy(out, f)
	return out, nil
}

func speechFrame(n int) []byte {
	f := make([]byte, n)
	f[0] = 1
	return f
}
func silenceFrame(n int) []byte {
	return make([]byte, n)
}

// markerDetector calls a frame "speech" if its first byte is nonzero.
type markerDetector struct{}

func (markerDetector) IsSpeechFrame(frame []byte) bool {
	return len(frame) > 0 && frame[0] != 0
}

func testConfig() Config {
	return Config{
		SampleRate: 16000, FrameMs: 30,
		StartWin: 5, StartMin: 3, StartConsecMin: 3,
		EndHangMs: 90, EndGuardMs: 0, PrerollMs: 60,
		NoSpeechTimeoutS: 0.05, MaxUtterS: 1,
	}
}

func TestRecordReturnsNoSpeechOnTimeout(t *testing.T) {
	cfg := testConfig()
	src := &scriptedSource{} // all silence
	ep := New(src, markerDetector{}, cfg)

	_, reason, err := ep.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if reason != NoSpeech {
		t.Errorf("reason = %v, want NoSpeech", reason)
	}
}

func TestRecordDetectsSpeechEndedAfterHangover(t *testing.T) {
	cfg := testConfig()
	n := cfg.SampleRate * cfg.FrameMs / 1000 * 2
	frames := [][]byte{}
	for i := 0; i < 5; i++ {
		frames = append(frames, speechFrame(n))
	}
	// Enough trailing silence frames to exceed EndHangMs (90ms / 30ms = 3 frames).
	for i := 0; i < 6; i++ {
		frames = append(frames, silenceFrame(n))
	}
	src := &scriptedSource{frames: frames}
	ep := New(src, markerDetector{}, cfg)

	out, reason, err := ep.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if reason != SpeechEnded {
		t.Errorf("reason = %v, want SpeechEnded", reason)
	}
	if len(out) == 0 {
		t.Error("expected non-empty utterance bytes")
	}
}

func TestRecordIncludesPrerollBeforeStart(t *testing.T) {
	cfg := testConfig()
	n := cfg.SampleRate * cfg.FrameMs / 1000 * 2
	frames := [][]byte{silenceFrame(n), silenceFrame(n)}
	for i := 0; i < 4; i++ {
		frames = append(frames, speechFrame(n))
	}
	for i := 0; i < 6; i++ {
		frames = append(frames, silenceFrame(n))
	}
	src := &scriptedSource{frames: frames}
	ep := New(src, markerDetector{}, cfg)

	out, reason, err := ep.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if reason != SpeechEnded {
		t.Fatalf("reason = %v, want SpeechEnded", reason)
	}
	// Start triggers on the third speech frame, when the 2-frame preroll ring
	// holds the second and third speech frames. The output is those 2 frames,
	// the fourth speech frame, and the 3 hangover silence frames.
	wantFrames := 2 + 1 + 3
	if len(out) != wantFrames*n {
		t.Errorf("output length = %d, want %d (%d frames incl. preroll)", len(out), wantFrames*n, wantFrames)
	}
}

// continuousSpeechSource yields an unbroken stream of speech frames, used
// to exercise the absolute MaxUtterance cap without hangover ever firing.
type continuousSpeechSource struct{ n int }

func (s continuousSpeechSource) ReadBytes(n int) ([]byte, error) {
	return speechFrame(n), nil
}

func TestRecordHitsMaxUtterance(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtterS = 0.03
	ep := New(continuousSpeechSource{}, markerDetector{}, cfg)

	_, reason, err := ep.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if reason != MaxUtterance {
		t.Errorf("reason = %v, want MaxUtterance", reason)
	}
}

func TestCancelStopsRecordingPromptly(t *testing.T) {
	cfg := testConfig()
	cfg.NoSpeechTimeoutS = 100 // would never time out on its own
	src := &scriptedSource{}
	ep := New(src, markerDetector{}, cfg)
	ep.Cancel()

	_, reason, err := ep.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if reason != Cancelled {
		t.Errorf("reason = %v, want Cancelled", reason)
	}
}

type erroringSource struct{}

func (erroringSource) ReadBytes(n int) ([]byte, error) { return nil, errors.New("device gone") }

func TestRecordPropagatesSourceError(t *testing.T) {
	ep := New(erroringSource{}, markerDetector{}, testConfig())
	_, reason, err := ep.Record(0)
	if err == nil {
		t.Fatal("expected error from a failing FrameSource")
	}
	if reason != Cancelled {
		t.Errorf("reason = %v, want Cancelled on source error", reason)
	}
}
