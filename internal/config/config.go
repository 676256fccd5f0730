// Package config provides configuration and CLI argument parsing for the
// robot control core, following the flag-first/validate-before-use idiom
// the original voice assistant used for its own Config.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError wraps a startup-only configuration problem (bad flag, bad
// YAML overlay, or a failed validate() check). Callers abort with a
// nonzero exit code on this error kind, same as the other named startup
// error types (pwm.BusError, audio.DeviceError, vision.TimeoutError).
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// AudioConfig covers capture and endpointing (spec §4.8, §4.9).
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	FrameMs         int     `yaml:"frame_ms"`
	VADAggressiveness int   `yaml:"vad_aggressiveness"`
	GainDB          float64 `yaml:"gain_db"`
	AGC             bool    `yaml:"agc"`
	TargetDBFS      float64 `yaml:"target_dbfs"`
	MaxGainDB       float64 `yaml:"max_gain_db"`
	BufferMs        uint32  `yaml:"buffer_ms"`
}

// EndpointConfig covers speech endpointing (spec §4.9, §6 defaults).
type EndpointConfig struct {
	StartWin         int     `yaml:"start_win"`
	StartMin         int     `yaml:"start_min"`
	StartConsecMin   int     `yaml:"start_consec_min"`
	EndHangMs        int     `yaml:"end_hang_ms"`
	EndGuardMs       int     `yaml:"end_guard_ms"`
	PrerollMs        int     `yaml:"preroll_ms"`
	NoSpeechTimeoutS float64 `yaml:"no_speech_timeout_s"`
	MaxUtterS        float64 `yaml:"max_utter_s"`
}

// WakeConfig covers wake-word gating (spec §4.10).
type WakeConfig struct {
	Keyword           string  `yaml:"keyword"`
	WinMs             int     `yaml:"win_ms"`
	HopMs             int     `yaml:"hop_ms"`
	Threshold         float64 `yaml:"threshold"`
	MinGapS           float64 `yaml:"min_gap_s"`
	SuppressAfterTTSS float64 `yaml:"suppress_after_tts_s"`
	RearmRatio        float64 `yaml:"rearm_ratio"`
	RearmLowCount     int     `yaml:"rearm_low_count"`
}

// DialogueConfig covers the conversation state machine (spec §4.12).
type DialogueConfig struct {
	FollowupEnable     bool    `yaml:"followup_enable"`
	FollowupArmS       float64 `yaml:"followup_arm_s"`
	FollowupMaxTurns   int     `yaml:"followup_max_turns"`
	FollowupCooldownS  float64 `yaml:"followup_cooldown_s"`
	BargeIn            bool    `yaml:"barge_in"`
	CooldownAfterTTSS  float64 `yaml:"cooldown_after_tts_s"`
	DeepSleepTimeoutS  float64 `yaml:"deep_sleep_timeout_s"`
	CtxTurns           int     `yaml:"ctx_turns"`
	ResetMemoryOnWake  bool    `yaml:"reset_memory_on_wake"`
	ConfirmationPhrase string  `yaml:"confirmation_phrase"`
	FallbackUtterance  string  `yaml:"fallback_utterance"`
}

// TrackerConfig covers face tracking and patrol (spec §4.7, EXPANSION).
type TrackerConfig struct {
	Enabled           bool    `yaml:"enabled"`
	UpdateIntervalS   float64 `yaml:"update_interval_s"`
	InvokeIntervalS   float64 `yaml:"invoke_interval_s"`
	InvokeTimeoutS    float64 `yaml:"invoke_timeout_s"`
	DeadzoneFrac      float64 `yaml:"deadzone_frac"`
	EyeGainDeg        float64 `yaml:"eye_gain_deg"`
	PitchGainDeg      float64 `yaml:"pitch_gain_deg"`
	YawEnabled        bool    `yaml:"yaw_enabled"`
	YawGainDeg        float64 `yaml:"yaw_gain_deg"`
	NeutralTimeoutS   float64 `yaml:"neutral_timeout_s"`
	PatrolEnabled     bool    `yaml:"patrol_enabled"`
	PatrolAfterS      float64 `yaml:"patrol_after_s"`
	PatrolStepDeg     float64 `yaml:"patrol_step_deg"`
	PatrolStepEveryS  float64 `yaml:"patrol_step_every_s"`
	WheelFollowMinDeg float64 `yaml:"wheel_follow_min_deg"`
	WheelFollowMaxDeg float64 `yaml:"wheel_follow_max_deg"`
	WheelFollowPower  float64 `yaml:"wheel_follow_power"`
	WheelFollowDelayS float64 `yaml:"wheel_follow_delay_s"`
}

// ServicesConfig covers the external STT/LLM/TTS/vision endpoints (spec §6).
type ServicesConfig struct {
	STTBaseURL   string  `yaml:"stt_base_url"`
	STTLanguage  string  `yaml:"stt_language"`
	LLMHost      string  `yaml:"llm_host"`
	LLMModel     string  `yaml:"llm_model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	UseChat      bool    `yaml:"use_chat"`
	KeepAliveS   float64 `yaml:"keep_alive_s"`
	TTSMode      string  `yaml:"tts_mode"` // pubsub | fifo | subprocess
	TTSSayPipe   string  `yaml:"tts_say_pipe"`
	TTSStatusPipe string `yaml:"tts_status_pipe"`
	TTSCommand   []string `yaml:"tts_command"`
	VisionDevice string  `yaml:"vision_device"`
}

// ModelsConfig names the on-disk ONNX model bundles the VAD and wake-word
// detectors load (spec §4.9, §4.10).
type ModelsConfig struct {
	VADModelPath       string `yaml:"vad_model_path"`
	KeywordModelDir    string `yaml:"keyword_model_dir"`
	KeywordTokensFile  string `yaml:"keyword_tokens_file"`
}

// HardwareConfig covers the PWM bus and servo calibration (spec §4.1-4.3).
type HardwareConfig struct {
	I2CDevice       string  `yaml:"i2c_device"`
	I2CAddress      int     `yaml:"i2c_address"`
	PWMFreqHz       float64 `yaml:"pwm_freq_hz"`
	CalibrationFile string  `yaml:"calibration_file"`
	Simulated       bool    `yaml:"simulated"`
	ShutdownTimeoutMs int   `yaml:"shutdown_timeout_ms"`
}

// EmailConfig covers the optional SMTP notification side channel.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config holds all configuration for the robot control core. Populated
// from defaults, environment variables, an optional YAML overlay, then CLI
// flags (highest precedence wins).
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Wake     WakeConfig     `yaml:"wake"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Services ServicesConfig `yaml:"services"`
	Hardware HardwareConfig `yaml:"hardware"`
	Models   ModelsConfig   `yaml:"models"`
	Email    EmailConfig    `yaml:"email"`

	Verbose bool `yaml:"verbose"`
}

func defaultModelDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".coglet", "models")
}

// DefaultConfig returns a configuration with sensible defaults matching
// the numeric defaults named in spec §6.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:        16000,
			FrameMs:           30,
			VADAggressiveness: 2,
			GainDB:            0,
			AGC:               true,
			TargetDBFS:        -26,
			MaxGainDB:         24,
			BufferMs:          0,
		},
		Endpoint: EndpointConfig{
			StartWin:         5,
			StartMin:         3,
			StartConsecMin:   3,
			EndHangMs:        250,
			EndGuardMs:       1200,
			PrerollMs:        240,
			NoSpeechTimeoutS: 3.0,
			MaxUtterS:        8.0,
		},
		Wake: WakeConfig{
			Keyword:           "hey coglet",
			WinMs:             1000,
			HopMs:             80,
			Threshold:         0.3,
			MinGapS:           1.5,
			SuppressAfterTTSS: 0.8,
			RearmRatio:        0.6,
			RearmLowCount:     3,
		},
		Dialogue: DialogueConfig{
			FollowupEnable:     true,
			FollowupArmS:       3.0,
			FollowupMaxTurns:   0,
			FollowupCooldownS:  0.10,
			BargeIn:            true,
			CooldownAfterTTSS:  0.5,
			DeepSleepTimeoutS:  300.0,
			CtxTurns:           10,
			ResetMemoryOnWake:  false,
			ConfirmationPhrase: "Yes?",
			FallbackUtterance:  "Sorry, I'm having trouble right now.",
		},
		Tracker: TrackerConfig{
			Enabled:           true,
			UpdateIntervalS:   0.05,
			InvokeIntervalS:   0.2,
			InvokeTimeoutS:    0.5,
			DeadzoneFrac:      0.08,
			EyeGainDeg:        18,
			PitchGainDeg:      12,
			YawEnabled:        false,
			YawGainDeg:        10,
			NeutralTimeoutS:   2.0,
			PatrolEnabled:     true,
			PatrolAfterS:      20.0,
			PatrolStepDeg:     15,
			PatrolStepEveryS:  2.5,
			WheelFollowMinDeg: 0.15,
			WheelFollowMaxDeg: 0.6,
			WheelFollowPower:  1.6,
			WheelFollowDelayS: 0.8,
		},
		Services: ServicesConfig{
			STTBaseURL:   "http://localhost:8081",
			STTLanguage:  "en",
			LLMHost:      "http://localhost:11434",
			LLMModel:     "gemma3:1b",
			SystemPrompt: "You are Coglet, a small friendly desk robot. Keep replies to one or two short sentences, plain text only, no markdown.",
			Temperature:  0.7,
			UseChat:      true,
			KeepAliveS:   300,
			TTSMode:      "pubsub",
			VisionDevice: "/dev/ttyACM0",
		},
		Models: ModelsConfig{
			VADModelPath:      filepath.Join(defaultModelDir(), "silero_vad.onnx"),
			KeywordModelDir:   filepath.Join(defaultModelDir(), "keyword-spotter"),
			KeywordTokensFile: filepath.Join(defaultModelDir(), "keyword-spotter", "tokens.txt"),
		},
		Hardware: HardwareConfig{
			I2CDevice:         "/dev/i2c-1",
			I2CAddress:        0x40,
			PWMFreqHz:         50,
			CalibrationFile:   "",
			Simulated:         false,
			ShutdownTimeoutMs: 1500,
		},
	}
}

// Load builds a Config from defaults, environment variables, an optional
// YAML overlay file, and command-line flags, in that precedence order
// (each layer overrides the previous; flags always win), then validates it.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverlay(cfg)

	fs := flag.NewFlagSet("coglet", flag.ContinueOnError)
	yamlPath := fs.String("config", "", "Path to an optional YAML configuration overlay")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.BoolVar(&cfg.Hardware.Simulated, "sim", cfg.Hardware.Simulated, "Use an in-memory simulated PWM bus instead of I2C hardware")
	fs.StringVar(&cfg.Hardware.I2CDevice, "i2c-device", cfg.Hardware.I2CDevice, "I2C device path for the PCA9685 PWM expander")
	fs.StringVar(&cfg.Hardware.CalibrationFile, "calibration", cfg.Hardware.CalibrationFile, "Path to a per-channel servo calibration JSON file")
	fs.StringVar(&cfg.Services.STTBaseURL, "stt-url", cfg.Services.STTBaseURL, "Base URL of the speech-to-text service")
	fs.StringVar(&cfg.Services.LLMHost, "llm-host", cfg.Services.LLMHost, "Ollama-compatible LLM host URL")
	fs.StringVar(&cfg.Services.LLMModel, "llm-model", cfg.Services.LLMModel, "LLM model name")
	fs.StringVar(&cfg.Services.TTSMode, "tts-mode", cfg.Services.TTSMode, "TTS backend: pubsub, fifo, or subprocess")
	fs.StringVar(&cfg.Services.VisionDevice, "vision-device", cfg.Services.VisionDevice, "Serial device path for the vision coprocessor")
	fs.Float64Var(&cfg.Wake.Threshold, "wake-threshold", cfg.Wake.Threshold, "Wake word firing threshold (0.0-1.0)")
	fs.IntVar(&cfg.Audio.VADAggressiveness, "vad-aggressiveness", cfg.Audio.VADAggressiveness, "VAD aggressiveness level (0-3)")

	// First pass: just pull -config out so the overlay can be applied before
	// the remaining flags are re-parsed over it (flags always win).
	preArgs := make([]string, len(args))
	copy(preArgs, args)
	if err := fs.Parse(preArgs); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if *yamlPath != "" {
		if err := applyYAMLOverlay(cfg, *yamlPath); err != nil {
			return nil, &ConfigError{Err: err}
		}
		// Re-parse flags so an explicit CLI flag still overrides the overlay.
		fs2 := flag.NewFlagSet("coglet", flag.ContinueOnError)
		fs2.String("config", "", "")
		fs2.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "")
		fs2.BoolVar(&cfg.Hardware.Simulated, "sim", cfg.Hardware.Simulated, "")
		fs2.StringVar(&cfg.Hardware.I2CDevice, "i2c-device", cfg.Hardware.I2CDevice, "")
		fs2.StringVar(&cfg.Hardware.CalibrationFile, "calibration", cfg.Hardware.CalibrationFile, "")
		fs2.StringVar(&cfg.Services.STTBaseURL, "stt-url", cfg.Services.STTBaseURL, "")
		fs2.StringVar(&cfg.Services.LLMHost, "llm-host", cfg.Services.LLMHost, "")
		fs2.StringVar(&cfg.Services.LLMModel, "llm-model", cfg.Services.LLMModel, "")
		fs2.StringVar(&cfg.Services.TTSMode, "tts-mode", cfg.Services.TTSMode, "")
		fs2.StringVar(&cfg.Services.VisionDevice, "vision-device", cfg.Services.VisionDevice, "")
		fs2.Float64Var(&cfg.Wake.Threshold, "wake-threshold", cfg.Wake.Threshold, "")
		fs2.IntVar(&cfg.Audio.VADAggressiveness, "vad-aggressiveness", cfg.Audio.VADAggressiveness, "")
		if err := fs2.Parse(args); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverlay reads the same environment variables coglet-pi.py sourced
// its tunables from (STT_URL, OLLAMA_URL, ...), layered between defaults and
// the YAML overlay so a YAML file or flag can still override an env value.
func applyEnvOverlay(cfg *Config) {
	if v, ok := os.LookupEnv("STT_URL"); ok {
		cfg.Services.STTBaseURL = v
	}
	if v, ok := os.LookupEnv("OLLAMA_URL"); ok {
		cfg.Services.LLMHost = v
	}
	if v, ok := os.LookupEnv("OLLAMA_MODEL"); ok {
		cfg.Services.LLMModel = v
	}
	if v, ok := os.LookupEnv("LLM_KEEP_ALIVE_S"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Services.KeepAliveS = f
		}
	}
	if v, ok := os.LookupEnv("TTS_MODE"); ok {
		cfg.Services.TTSMode = v
	}
	if v, ok := os.LookupEnv("VISION_DEVICE"); ok {
		cfg.Services.VisionDevice = v
	}
	if v, ok := os.LookupEnv("BARGE_IN"); ok {
		cfg.Dialogue.BargeIn = parseBoolEnv(v, cfg.Dialogue.BargeIn)
	}
	if v, ok := os.LookupEnv("MODEL_CONFIRM"); ok {
		cfg.Dialogue.ConfirmationPhrase = v
	}
	if v, ok := os.LookupEnv("VAD_AGGRESSIVENESS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.VADAggressiveness = n
		}
	}
	if v, ok := os.LookupEnv("MIC_SR"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.SampleRate = n
		}
	}
	if v, ok := os.LookupEnv("WAKE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Wake.Threshold = f
		}
	}
	if v, ok := os.LookupEnv("I2C_DEVICE"); ok {
		cfg.Hardware.I2CDevice = v
	}
	if v, ok := os.LookupEnv("CALIBRATION_FILE"); ok {
		cfg.Hardware.CalibrationFile = v
	}
	if v, ok := os.LookupEnv("SIM"); ok {
		cfg.Hardware.Simulated = parseBoolEnv(v, cfg.Hardware.Simulated)
	}
	if v, ok := os.LookupEnv("VERBOSE"); ok {
		cfg.Verbose = parseBoolEnv(v, cfg.Verbose)
	}
}

func parseBoolEnv(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading overlay %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing overlay %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Audio.SampleRate <= 0 {
		return &ConfigError{Err: fmt.Errorf("audio.sample_rate must be positive")}
	}
	if c.Audio.VADAggressiveness < 0 || c.Audio.VADAggressiveness > 3 {
		return &ConfigError{Err: fmt.Errorf("audio.vad_aggressiveness must be 0-3")}
	}
	if c.Wake.Threshold < 0 || c.Wake.Threshold > 1 {
		return &ConfigError{Err: fmt.Errorf("wake.threshold must be in [0,1]")}
	}
	switch c.Services.TTSMode {
	case "pubsub", "fifo", "subprocess":
	default:
		return &ConfigError{Err: fmt.Errorf("services.tts_mode must be pubsub, fifo, or subprocess, got %q", c.Services.TTSMode)}
	}
	return nil
}
