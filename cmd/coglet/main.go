// Coglet is a real-time robot control core for a voice-assisted desk
// animatronic: wake-word gated conversation over an external STT/LLM/TTS
// stack, driving a ten-channel PWM servo face through a PCA9685 expander,
// with closed-loop face tracking from a serial vision coprocessor.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coglet/coglet-core/internal/anim"
	"github.com/coglet/coglet-core/internal/audio"
	"github.com/coglet/coglet-core/internal/config"
	"github.com/coglet/coglet-core/internal/dialogue"
	"github.com/coglet/coglet-core/internal/duplex"
	"github.com/coglet/coglet-core/internal/email"
	"github.com/coglet/coglet-core/internal/endpoint"
	"github.com/coglet/coglet-core/internal/eyelid"
	"github.com/coglet/coglet-core/internal/led"
	"github.com/coglet/coglet-core/internal/llm"
	"github.com/coglet/coglet-core/internal/pwm"
	"github.com/coglet/coglet-core/internal/servo"
	"github.com/coglet/coglet-core/internal/sherpa"
	"github.com/coglet/coglet-core/internal/startup"
	"github.com/coglet/coglet-core/internal/stt"
	"github.com/coglet/coglet-core/internal/tracker"
	"github.com/coglet/coglet-core/internal/tts"
	"github.com/coglet/coglet-core/internal/vad"
	"github.com/coglet/coglet-core/internal/vision"
	"github.com/coglet/coglet-core/internal/wake"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Println("🤖 Coglet starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	bus, err := openPWMBus(cfg)
	if err != nil {
		log.Fatalf("Failed to open PWM bus: %v", err)
	}

	var calibration servo.Calibration
	if cfg.Hardware.CalibrationFile != "" {
		calibration, err = servo.LoadCalibration(cfg.Hardware.CalibrationFile)
		if err != nil {
			log.Fatalf("Failed to load servo calibration: %v", err)
		}
	}

	registry, err := servo.BuildRegistry(bus, calibration)
	if err != nil {
		log.Fatalf("Failed to build servo registry: %v", err)
	}
	log.Printf("🦾 Servo registry ready: %v", registry.All())

	go registry.RunUpdateLoop(ctx, 20*time.Millisecond)

	lidOpenAngle := registry.Get(servo.LID).NeutralDeg()
	lid := eyelid.New(eyelid.Config{
		OpenAngleDeg: lidOpenAngle,
		BlinkMinS:    2.5,
		BlinkMaxS:    6.0,
		BlinkCloseS:  0.08,
		BlinkHoldS:   0.06,
		BlinkOpenS:   0.10,
	}, registry.Get(servo.LID))
	lid.Start()

	listeningAnim := anim.NewListening(registry.Get(servo.NRL), lid, lidOpenAngle+10, 12, 60)
	thinkingAnim := anim.NewThinking(registry.Get(servo.EAL), registry.Get(servo.EAR), registry.Get(servo.NPT), 20, 6, 120)
	talkingAnim := anim.NewTalking(registry.Get(servo.MOU), 35, 0, 90)

	llmClient, err := llm.NewClient(&llm.Config{
		Host:        cfg.Services.LLMHost,
		Model:       cfg.Services.LLMModel,
		Temperature: float32(cfg.Services.Temperature),
		KeepAlive:   time.Duration(cfg.Services.KeepAliveS * float64(time.Second)),
		UseChat:     cfg.Services.UseChat,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	sttClient := stt.NewClient(stt.Config{BaseURL: cfg.Services.STTBaseURL, Timeout: 15 * time.Second})

	requiredFiles := []string{cfg.Models.VADModelPath, cfg.Models.KeywordTokensFile}
	if cfg.Hardware.CalibrationFile != "" {
		requiredFiles = append(requiredFiles, cfg.Hardware.CalibrationFile)
	}
	healthErrs := startup.Check(ctx, requiredFiles, map[string]startup.HealthChecker{
		"llm": llmClient,
		"stt": sttClient,
	})
	for _, e := range healthErrs {
		log.Printf("⚠️ %v", e)
	}

	ttsBackend, err := buildTTSBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to create TTS backend: %v", err)
	}

	recorder, err := audio.Open(audio.Config{
		SampleRate: cfg.Audio.SampleRate,
		GainDB:     cfg.Audio.GainDB,
		AGC:        cfg.Audio.AGC,
		TargetDBFS: cfg.Audio.TargetDBFS,
		MaxGainDB:  cfg.Audio.MaxGainDB,
	})
	if err != nil {
		log.Fatalf("Failed to open audio recorder: %v", err)
	}
	defer recorder.Close()

	vadDetector := vad.NewSileroDetector(cfg.Models.VADModelPath, cfg.Audio.SampleRate, cfg.Audio.FrameMs, 1, vad.Aggressiveness(cfg.Audio.VADAggressiveness))
	defer vadDetector.Close()
	byteDet := vad.ByteAdapter{Detector: vadDetector}

	ep := endpoint.New(recorder, byteDet, endpoint.Config{
		SampleRate:       cfg.Audio.SampleRate,
		FrameMs:          cfg.Audio.FrameMs,
		StartWin:         cfg.Endpoint.StartWin,
		StartMin:         cfg.Endpoint.StartMin,
		StartConsecMin:   cfg.Endpoint.StartConsecMin,
		EndHangMs:        cfg.Endpoint.EndHangMs,
		EndGuardMs:       cfg.Endpoint.EndGuardMs,
		PrerollMs:        cfg.Endpoint.PrerollMs,
		NoSpeechTimeoutS: cfg.Endpoint.NoSpeechTimeoutS,
		MaxUtterS:        cfg.Endpoint.MaxUtterS,
	})

	scorer := wake.NewSherpaScorer(buildKeywordSpotterConfig(cfg), cfg.Wake.Keyword)
	defer scorer.Close()
	wakeDetector := wake.New(wake.Config{
		SampleRate:        cfg.Audio.SampleRate,
		WinMs:             cfg.Wake.WinMs,
		HopMs:             cfg.Wake.HopMs,
		Threshold:         cfg.Wake.Threshold,
		MinGapS:           cfg.Wake.MinGapS,
		SuppressAfterTTSS: cfg.Wake.SuppressAfterTTSS,
		RearmRatio:        cfg.Wake.RearmRatio,
		RearmLowCount:     cfg.Wake.RearmLowCount,
	}, scorer)

	gate := duplex.New(recorder, wakeDetector, cfg.Dialogue.BargeIn, time.Duration(cfg.Dialogue.CooldownAfterTTSS*float64(time.Second)))

	mailer := email.NewSender(email.Config(cfg.Email))
	memory := dialogue.NewMemory(cfg.Dialogue.CtxTurns, cfg.Dialogue.ResetMemoryOnWake)
	ledSetter := led.NoopSetter{}

	if cfg.Tracker.Enabled {
		startTracker(ctx, cfg, registry)
	}

	hopSamples := cfg.Audio.SampleRate * cfg.Wake.HopMs / 1000
	controller := dialogue.New(dialogue.Config{
		WakeHopSamples:     hopSamples,
		NoSpeechTimeoutS:   cfg.Endpoint.NoSpeechTimeoutS,
		FollowupEnable:     cfg.Dialogue.FollowupEnable,
		FollowupArmS:       cfg.Dialogue.FollowupArmS,
		FollowupMaxTurns:   cfg.Dialogue.FollowupMaxTurns,
		FollowupCooldownS:  cfg.Dialogue.FollowupCooldownS,
		DeepSleepTimeoutS:  cfg.Dialogue.DeepSleepTimeoutS,
		SystemPrompt:       cfg.Services.SystemPrompt,
		STTLanguage:        cfg.Services.STTLanguage,
		FallbackUtterance:  cfg.Dialogue.FallbackUtterance,
		ConfirmationPhrase: cfg.Dialogue.ConfirmationPhrase,
	}, recorder, wakeDetector, ep, gate, ttsBackend, sttClient, llmClient,
		dialogue.Animations{Listening: listeningAnim, Thinking: thinkingAnim, Talking: talkingAnim},
		ledSetter, mailer, memory)

	done := make(chan error, 1)
	go func() {
		done <- controller.Run(ctx)
	}()

	log.Println("🎙️ Listening for wake word, Ctrl+C to quit")

	select {
	case <-sigChan:
		log.Println("🛑 Shutting down...")
	case err := <-done:
		log.Printf("🛑 Dialogue controller exited: %v", err)
	}

	cancel()
	_ = ttsBackend.Close()

	shutdownDeadline := time.Duration(cfg.Hardware.ShutdownTimeoutMs) * time.Millisecond
	lid.Shutdown()
	registry.Shutdown(calibration, shutdownDeadline)
	log.Println("✅ Shutdown complete")
}

func openPWMBus(cfg *config.Config) (*pwm.Bus, error) {
	if cfg.Hardware.Simulated {
		return pwm.NewBus(pwm.NewSimBus(), cfg.Hardware.PWMFreqHz)
	}
	transport, err := pwm.OpenI2C(cfg.Hardware.I2CDevice, uint8(cfg.Hardware.I2CAddress))
	if err != nil {
		return nil, err
	}
	return pwm.NewBus(transport, cfg.Hardware.PWMFreqHz)
}

func buildTTSBackend(cfg *config.Config) (tts.Backend, error) {
	switch cfg.Services.TTSMode {
	case "fifo":
		return tts.OpenFIFO(context.Background(), cfg.Services.TTSSayPipe, cfg.Services.TTSStatusPipe)
	case "subprocess":
		player, err := audio.NewPlayer(cfg.Audio.SampleRate, cfg.Audio.BufferMs, nil)
		if err != nil {
			return nil, err
		}
		return tts.NewSubprocessBackend(cfg.Services.TTSCommand, player), nil
	default:
		return tts.NewPubSubBackend(tts.NewInProcessBroker())
	}
}

func buildKeywordSpotterConfig(cfg *config.Config) *sherpa.KeywordSpotterConfig {
	dir := cfg.Models.KeywordModelDir
	c := &sherpa.KeywordSpotterConfig{}
	c.ModelConfig.Transducer.Encoder = dir + "/encoder.onnx"
	c.ModelConfig.Transducer.Decoder = dir + "/decoder.onnx"
	c.ModelConfig.Transducer.Joiner = dir + "/joiner.onnx"
	c.ModelConfig.Tokens = cfg.Models.KeywordTokensFile
	c.ModelConfig.NumThreads = 1
	c.ModelConfig.Provider = "cpu"
	c.FeatConfig.SampleRate = cfg.Audio.SampleRate
	c.FeatConfig.FeatureDim = 80
	c.KeywordsFile = dir + "/keywords.txt"
	c.KeywordsThreshold = float32(cfg.Wake.Threshold)
	c.MaxActivePaths = 4
	return c
}

func startTracker(ctx context.Context, cfg *config.Config, registry *servo.Registry) {
	conn, err := vision.OpenSerial(cfg.Services.VisionDevice)
	if err != nil {
		log.Printf("⚠️ face tracking disabled, could not open vision device: %v", err)
		return
	}
	visClient := vision.New(conn)

	const frameW, frameH = 320.0, 240.0
	tc := tracker.Config{
		UpdateIntervalS:      cfg.Tracker.UpdateIntervalS,
		InvokeIntervalS:      cfg.Tracker.InvokeIntervalS,
		InvokeTimeoutS:       cfg.Tracker.InvokeTimeoutS,
		NeutralTimeoutS:      cfg.Tracker.NeutralTimeoutS,
		CoordinatesAreCenter: true,
		FrameWidth:           frameW,
		FrameHeight:          frameH,

		EyeDeadzonePx:   cfg.Tracker.DeadzoneFrac * frameW / 2,
		EyeGainDegPerPx: cfg.Tracker.EyeGainDeg / (frameW / 2),
		EyeMaxDeltaDeg:  cfg.Tracker.EyeGainDeg,

		PitchDeadzonePx:   cfg.Tracker.DeadzoneFrac * frameH / 2,
		PitchGainDegPerPx: cfg.Tracker.PitchGainDeg / (frameH / 2),
		PitchMaxDeltaDeg:  cfg.Tracker.PitchGainDeg,

		YawEnabled:      cfg.Tracker.YawEnabled,
		YawDeadzonePx:   cfg.Tracker.DeadzoneFrac * frameW / 2,
		YawGainDegPerPx: cfg.Tracker.YawGainDeg / (frameW / 2),
		YawMaxDeltaDeg:  cfg.Tracker.YawGainDeg,

		WheelDeadzoneDeg:  2,
		WheelFollowDelayS: cfg.Tracker.WheelFollowDelayS,
		WheelInputMin:     0,
		WheelInputMax:     cfg.Tracker.EyeGainDeg,
		WheelPower:        cfg.Tracker.WheelFollowPower,
		WheelOutputMin:    cfg.Tracker.WheelFollowMinDeg,
		WheelOutputMax:    cfg.Tracker.WheelFollowMaxDeg,

		VisionFailStreakDegrade: 5,

		PatrolEnabled:    cfg.Tracker.PatrolEnabled,
		PatrolAfterS:     cfg.Tracker.PatrolAfterS,
		PatrolStepDeg:    cfg.Tracker.PatrolStepDeg,
		PatrolStepEveryS: cfg.Tracker.PatrolStepEveryS,
	}

	var yaw *servo.Servo
	if cfg.Tracker.YawEnabled {
		yaw = registry.Get(servo.NRL)
	}
	t := tracker.New(tc, tracker.Servos{
		EyeL:   registry.Get(servo.EYL),
		EyeR:   registry.Get(servo.EYR),
		Pitch:  registry.Get(servo.NPT),
		Yaw:    yaw,
		WheelL: registry.Get(servo.LWH),
		WheelR: registry.Get(servo.RWH),
	}, visClient)
	t.Start()

	go func() {
		<-ctx.Done()
		t.Stop()
	}()
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}
