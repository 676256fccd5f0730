// Package dialogue implements the top-level conversation state machine
// gluing wake -> record -> STT -> LLM -> TTS -> follow-up, driving
// animations and the LED, ported from coglet-pi.py's main() state loop.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coglet/coglet-core/internal/anim"
	"github.com/coglet/coglet-core/internal/duplex"
	"github.com/coglet/coglet-core/internal/email"
	"github.com/coglet/coglet-core/internal/endpoint"
	"github.com/coglet/coglet-core/internal/led"
	"github.com/coglet/coglet-core/internal/llm"
	"github.com/coglet/coglet-core/internal/stt"
	"github.com/coglet/coglet-core/internal/tts"
	"github.com/coglet/coglet-core/internal/wake"
)

// State is the dialogue state machine's public state (spec §4.12).
type State int

const (
	Idle State = iota
	Waking
	Listening
	Recording
	Thinking
	Speaking
	Followup
	DeepSleep
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Waking:
		return "WAKING"
	case Listening:
		return "LISTENING"
	case Recording:
		return "RECORDING"
	case Thinking:
		return "THINKING"
	case Speaking:
		return "SPEAKING"
	case Followup:
		return "FOLLOWUP"
	case DeepSleep:
		return "DEEP_SLEEP"
	default:
		return "UNKNOWN"
	}
}

// ExternalServiceFailure wraps an STT/LLM/TTS error the controller converts
// into a local fallback utterance instead of crashing.
type ExternalServiceFailure struct {
	Stage string
	Err   error
}

func (e *ExternalServiceFailure) Error() string {
	return fmt.Sprintf("dialogue: %s failed: %v", e.Stage, e.Err)
}
func (e *ExternalServiceFailure) Unwrap() error { return e.Err }

// ErrShutdownRequested signals an orderly termination request.
var ErrShutdownRequested = errors.New("dialogue: shutdown requested")

// WakeSource is fed raw frames while idle and reports fired wake events.
type WakeSource interface {
	Feed(samples []float32) *wake.Event
	ResetAfterTTS()
}

// FrameReader reads raw float32 samples for wake inference.
type FrameReader interface {
	ReadFloat32(n int) ([]float32, error)
}

// Animations bundles the three animation loops the controller starts/stops.
type Animations struct {
	Listening *anim.Loop
	Thinking  *anim.Loop
	Talking   *anim.Loop
}

// Recorder runs the speech endpoint's preroll/start/hangover loop
// (internal/endpoint.Endpoint satisfies this).
type Recorder interface {
	Record(noSpeechTimeoutS float64) ([]byte, endpoint.Reason, error)
}

// Transcriber posts a WAV utterance to the external STT service
// (*internal/stt.Client satisfies this).
type Transcriber interface {
	Transcribe(ctx context.Context, wavBytes []byte, lang string) (stt.Result, error)
}

// ChatClient sends a message history to the external LLM service
// (*internal/llm.Client satisfies this).
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Config carries the numeric constants named in spec §6.
type Config struct {
	WakeHopSamples     int
	NoSpeechTimeoutS   float64
	FollowupEnable     bool
	FollowupArmS       float64
	FollowupMaxTurns   int // 0 = unlimited
	FollowupCooldownS  float64
	DeepSleepTimeoutS  float64
	SystemPrompt       string
	STTLanguage        string
	FallbackUtterance  string
	ConfirmationPhrase string
}

// Controller is the single-goroutine dialogue state machine.
type Controller struct {
	cfg Config

	frames     FrameReader
	wakeDet    WakeSource
	ep         Recorder
	gate       *duplex.Gate
	ttsBackend tts.Backend
	sttClient  Transcriber
	llmClient  ChatClient
	anims      Animations
	ledSetter  led.Setter
	mailer     *email.Sender
	memory     *Memory

	state        State
	turnCount    int
	pcmPending   []byte
	pendingReply string
}

// New builds a Controller in Idle state.
func New(cfg Config, frames FrameReader, wakeDet WakeSource, ep Recorder, gate *duplex.Gate,
	ttsBackend tts.Backend, sttClient Transcriber, llmClient ChatClient, anims Animations,
	ledSetter led.Setter, mailer *email.Sender, memory *Memory) *Controller {
	return &Controller{
		cfg: cfg, frames: frames, wakeDet: wakeDet, ep: ep, gate: gate,
		ttsBackend: ttsBackend, sttClient: sttClient, llmClient: llmClient,
		anims: anims, ledSetter: ledSetter, mailer: mailer, memory: memory,
		state: Idle,
	}
}

// Run drives the state machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	lastActivity := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return ErrShutdownRequested
		}

		switch c.state {
		case Idle, DeepSleep:
			if c.state == Idle && c.cfg.DeepSleepTimeoutS > 0 && time.Since(lastActivity).Seconds() > c.cfg.DeepSleepTimeoutS {
				c.state = DeepSleep
				_ = c.ledSetter.Set(led.Sleep)
				continue
			}

			ev, err := c.waitForWake(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return ErrShutdownRequested
				}
				return err
			}
			if ev == nil {
				continue
			}
			lastActivity = time.Now()
			c.memory.OnWake()
			c.turnCount = 0
			c.state = Waking

		case Waking:
			_ = c.ledSetter.Set(led.Listening)
			if err := c.speakBlocking(ctx, "wake-ack", c.cfg.ConfirmationPhrase); err != nil {
				c.handleExternalFailure("tts", err)
				c.state = Idle
				continue
			}
			c.state = Listening

		case Listening:
			c.anims.Listening.Start()
			c.state = Recording

		case Recording:
			pcm, reason, err := c.ep.Record(c.cfg.NoSpeechTimeoutS)
			c.anims.Listening.Stop()
			if err != nil {
				log.Printf("❌ endpoint error: %v", err)
				c.state = Idle
				continue
			}
			switch reason {
			case endpoint.SpeechEnded:
				c.anims.Thinking.Start()
				_ = c.ledSetter.Set(led.Thinking)
				lastActivity = time.Now()
				c.pcmPending = pcm
				c.state = Thinking
			case endpoint.NoSpeech:
				c.state = Idle
			case endpoint.MaxUtterance:
				c.anims.Thinking.Start()
				_ = c.ledSetter.Set(led.Thinking)
				c.pcmPending = pcm
				c.state = Thinking
			case endpoint.Cancelled:
				return ErrShutdownRequested
			}

		case Thinking:
			text, err := c.transcribe(ctx, c.pcmPending)
			if err != nil {
				c.anims.Thinking.Stop()
				c.handleExternalFailure("stt", err)
				c.state = Idle
				continue
			}
			if email.IsEmailRequest(text) && c.mailer != nil && c.mailer.Enabled() {
				_ = c.mailer.Send("Coglet request", text)
			}

			c.memory.Append("user", text)
			reply, err := c.chat(ctx)
			c.anims.Thinking.Stop()
			if err != nil {
				c.handleExternalFailure("llm", err)
				c.state = Idle
				continue
			}
			c.memory.Append("assistant", reply)
			c.pendingReply = reply
			c.state = Speaking

		case Speaking:
			c.anims.Talking.Start()
			_ = c.ledSetter.Set(led.Speaking)
			err := c.speakBlocking(ctx, "reply", c.pendingReply)
			c.anims.Talking.Stop()
			if err != nil {
				c.handleExternalFailure("tts", err)
				c.state = Idle
				continue
			}
			c.turnCount++
			_ = c.ledSetter.Set(led.AwaitFollowup)
			if c.cfg.FollowupEnable {
				c.state = Followup
			} else {
				c.state = Idle
			}

		case Followup:
			if c.cfg.FollowupMaxTurns > 0 && c.turnCount >= c.cfg.FollowupMaxTurns {
				c.state = Idle
				continue
			}
			time.Sleep(time.Duration(c.cfg.FollowupCooldownS * float64(time.Second)))

			pcm, reason, err := c.ep.Record(c.cfg.FollowupArmS)
			if err != nil {
				c.state = Idle
				continue
			}
			switch reason {
			case endpoint.SpeechEnded:
				c.anims.Thinking.Start()
				_ = c.ledSetter.Set(led.Thinking)
				c.pcmPending = pcm
				c.state = Thinking
			default:
				c.state = Idle
			}
		}
	}
}

func (c *Controller) waitForWake(ctx context.Context) (*wake.Event, error) {
	samples, err := c.frames.ReadFloat32(c.cfg.WakeHopSamples)
	if err != nil {
		return nil, err
	}
	return c.wakeDet.Feed(samples), nil
}

func (c *Controller) transcribe(ctx context.Context, pcm []byte) (string, error) {
	wavBytes := wrapWAV(pcm, 16000)
	result, err := c.sttClient.Transcribe(ctx, wavBytes, c.cfg.STTLanguage)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func (c *Controller) chat(ctx context.Context) (string, error) {
	messages := []llm.Message{{Role: "system", Content: c.cfg.SystemPrompt}}
	for _, t := range c.memory.Turns() {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Text})
	}
	return c.llmClient.Chat(ctx, messages)
}

// speakBlocking says text under the half-duplex gate and waits for its
// DONE/CANCELLED/ERROR lifecycle event.
func (c *Controller) speakBlocking(ctx context.Context, id, text string) error {
	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.ttsBackend.Say(ctx, id, text); err != nil {
		return err
	}

	for {
		select {
		case ev := <-c.ttsBackend.Events():
			if ev.ID != id {
				continue
			}
			switch ev.Kind {
			case tts.Done, tts.Cancelled:
				return nil
			case tts.Error:
				return ev.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) handleExternalFailure(stage string, err error) {
	failure := &ExternalServiceFailure{Stage: stage, Err: err}
	log.Printf("❌ %v", failure)
	_ = c.speakBlocking(context.Background(), "fallback", c.cfg.FallbackUtterance)
}

// wrapWAV prepends a minimal 44-byte RIFF/WAVE PCM16 mono header to raw
// little-endian PCM16 samples, for posting to the STT service.
func wrapWAV(pcm []byte, sampleRate int) []byte {
	const bitsPerSample = 16
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataLen := len(pcm)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	putUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	putUint32(header[16:20], 16)
	putUint16(header[20:22], 1) // PCM
	putUint16(header[22:24], uint16(channels))
	putUint32(header[24:28], uint32(sampleRate))
	putUint32(header[28:32], uint32(byteRate))
	putUint16(header[32:34], uint16(blockAlign))
	putUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	putUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

func putUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
