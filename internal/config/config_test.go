package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigPassesValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.validate(); err != nil {
		t.Errorf("DefaultConfig().validate() = %v, want nil", err)
	}
}

func TestLoadWithNoArgsReturnsDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Wake.Threshold != want.Wake.Threshold {
		t.Errorf("Wake.Threshold = %v, want %v", cfg.Wake.Threshold, want.Wake.Threshold)
	}
	if cfg.Services.TTSMode != want.Services.TTSMode {
		t.Errorf("Services.TTSMode = %v, want %v", cfg.Services.TTSMode, want.Services.TTSMode)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"-wake-threshold=0.42", "-tts-mode=fifo", "-sim"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wake.Threshold != 0.42 {
		t.Errorf("Wake.Threshold = %v, want 0.42", cfg.Wake.Threshold)
	}
	if cfg.Services.TTSMode != "fifo" {
		t.Errorf("Services.TTSMode = %v, want fifo", cfg.Services.TTSMode)
	}
	if !cfg.Hardware.Simulated {
		t.Error("Hardware.Simulated = false, want true (-sim passed)")
	}
}

func TestLoadYAMLOverlayAppliesThenFlagsStillWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	yamlContent := "wake:\n  threshold: 0.77\nservices:\n  tts_mode: subprocess\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wake.Threshold != 0.77 {
		t.Errorf("Wake.Threshold = %v, want 0.77 from overlay", cfg.Wake.Threshold)
	}
	if cfg.Services.TTSMode != "subprocess" {
		t.Errorf("Services.TTSMode = %v, want subprocess from overlay", cfg.Services.TTSMode)
	}

	cfg2, err := Load([]string{"-config", path, "-wake-threshold=0.1"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg2.Wake.Threshold != 0.1 {
		t.Errorf("Wake.Threshold = %v, want 0.1 (flag overrides overlay)", cfg2.Wake.Threshold)
	}
}

func TestLoadAppliesEnvironmentBetweenDefaultsAndYAML(t *testing.T) {
	t.Setenv("STT_URL", "http://stt.example:9000")
	t.Setenv("OLLAMA_MODEL", "llama3:8b")
	t.Setenv("BARGE_IN", "0")
	t.Setenv("VAD_AGGRESSIVENESS", "3")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.STTBaseURL != "http://stt.example:9000" {
		t.Errorf("Services.STTBaseURL = %v, want env override", cfg.Services.STTBaseURL)
	}
	if cfg.Services.LLMModel != "llama3:8b" {
		t.Errorf("Services.LLMModel = %v, want env override", cfg.Services.LLMModel)
	}
	if cfg.Dialogue.BargeIn {
		t.Error("Dialogue.BargeIn = true, want false from BARGE_IN=0")
	}
	if cfg.Audio.VADAggressiveness != 3 {
		t.Errorf("Audio.VADAggressiveness = %v, want 3", cfg.Audio.VADAggressiveness)
	}
}

func TestLoadFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("TTS_MODE", "fifo")

	cfg, err := Load([]string{"-tts-mode=subprocess"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.TTSMode != "subprocess" {
		t.Errorf("Services.TTSMode = %v, want subprocess (flag must win over env)", cfg.Services.TTSMode)
	}
}

func TestLoadYAMLOverlayOverridesEnvironment(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://env-llm:11434")

	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	if err := os.WriteFile(path, []byte("services:\n  llm_host: http://overlay-llm:11434\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.LLMHost != "http://overlay-llm:11434" {
		t.Errorf("Services.LLMHost = %v, want overlay value to win over env", cfg.Services.LLMHost)
	}
}

func TestValidateReturnsConfigError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wake.Threshold = 5
	err := cfg.validate()
	if err == nil {
		t.Fatal("expected validate() to reject an out-of-range threshold")
	}
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("validate() error = %T, want *ConfigError", err)
	}
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"vad aggressiveness", func(c *Config) { c.Audio.VADAggressiveness = 9 }},
		{"wake threshold", func(c *Config) { c.Wake.Threshold = 1.5 }},
		{"tts mode", func(c *Config) { c.Services.TTSMode = "bogus" }},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.mutate(cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: expected validate() to reject invalid config", c.name)
		}
	}
}
