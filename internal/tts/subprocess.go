package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/coglet/coglet-core/internal/audio"
)

// SubprocessBackend is the last-resort TTS fallback: a one-shot external
// synthesizer command that writes a WAV file, played back through the
// shared audio.Player.
type SubprocessBackend struct {
	command []string // e.g. {"piper", "--model", "...", "--output_file", "{wav}"}
	player  *audio.Player
	events  chan Event

	mu      sync.Mutex
	current context.CancelFunc
}

// NewSubprocessBackend wires command (with "{wav}" and "{text}" placeholders
// substituted per invocation) to play back through player.
func NewSubprocessBackend(command []string, player *audio.Player) *SubprocessBackend {
	return &SubprocessBackend{command: command, player: player, events: make(chan Event, 16)}
}

// Say runs the subprocess synchronously, decodes the resulting WAV, and
// plays it back; lifecycle events are emitted as the call proceeds.
func (b *SubprocessBackend) Say(ctx context.Context, id, text string) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.current = cancel
	b.mu.Unlock()
	defer cancel()

	b.events <- Event{ID: id, Kind: Start}

	wavPath, err := os.CreateTemp("", "coglet-tts-*.wav")
	if err != nil {
		b.events <- Event{ID: id, Kind: Error, Err: err}
		return fmt.Errorf("tts: create temp wav: %w", err)
	}
	wavPath.Close()
	defer os.Remove(wavPath.Name())

	args := substitute(b.command, wavPath.Name(), text)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		b.events <- Event{ID: id, Kind: Error, Err: err}
		return fmt.Errorf("tts: subprocess synthesis failed: %w", err)
	}

	samples, sampleRate, err := readWAV(wavPath.Name())
	if err != nil {
		b.events <- Event{ID: id, Kind: Error, Err: err}
		return fmt.Errorf("tts: decode wav: %w", err)
	}

	b.events <- Event{ID: id, Kind: Speaking}
	if err := b.player.Play(audio.AudioBuffer{Samples: samples, SampleRate: sampleRate}); err != nil {
		b.events <- Event{ID: id, Kind: Error, Err: err}
		return fmt.Errorf("tts: playback failed: %w", err)
	}

	b.events <- Event{ID: id, Kind: Done}
	return nil
}

// Cancel interrupts the in-flight subprocess and playback, if any.
func (b *SubprocessBackend) Cancel(id string) error {
	b.mu.Lock()
	cancel := b.current
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.player.Interrupt()
	b.events <- Event{ID: id, Kind: Cancelled}
	return nil
}

func (b *SubprocessBackend) Events() <-chan Event { return b.events }

func (b *SubprocessBackend) Close() error { return nil }

func substitute(command []string, wavPath, text string) []string {
	out := make([]string, len(command))
	for i, a := range command {
		switch a {
		case "{wav}":
			out[i] = wavPath
		case "{text}":
			out[i] = text
		default:
			out[i] = a
		}
	}
	return out
}
