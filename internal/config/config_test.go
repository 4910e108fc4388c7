package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validConfigYAML = `
server:
  port: 8000
  address: "0.0.0.0"

buffering:
  interval_seconds: 10
  min_chunks: 8
  min_bytes: 60000

analysis:
  bootstrap_delay_seconds: 15
  item_cooldown_seconds: 30
  item_min_confidence: 0.8
  stage_min_confidence: 0.6
  field_min_confidence: 0.7

transcription:
  endpoint: "https://api.example.com/transcribe"
  api_key: "test-key"
  model: "whisper-large-v3"
  timeout: 30
  max_retries: 3
  max_concurrent: 4

analyzer:
  endpoint: "https://openrouter.ai/api/v1/chat/completions"
  api_key: "test-key"
  model: "anthropic/claude-3-haiku"
  timeout: 30
  max_concurrent: 8

logging:
  level: "info"
  format: "json"
  output: "stdout"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validConfigYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("server port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Buffering.MinBytes != 60000 {
		t.Errorf("min_bytes = %d, want 60000", cfg.Buffering.MinBytes)
	}
	if cfg.Analysis.ItemMinConfidence != 0.8 {
		t.Errorf("item_min_confidence = %f, want 0.8", cfg.Analysis.ItemMinConfidence)
	}
	if cfg.Transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("transcription timeout = %v, want 30s", cfg.Transcription.GetTimeoutDuration())
	}
	if cfg.Buffering.GetBufferInterval() != 10*time.Second {
		t.Errorf("buffer interval = %v, want 10s", cfg.Buffering.GetBufferInterval())
	}
}

func TestLoadAppliesAnalysisDefaults(t *testing.T) {
	minimal := `
server:
  port: 8000
  address: "127.0.0.1"

transcription:
  endpoint: "http://localhost:9000/transcribe"

analyzer:
  endpoint: "http://localhost:9000/v1/chat/completions"

logging:
  level: "debug"
  format: "text"
  output: "stderr"
`
	cfg, err := Load(writeTempConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	a := cfg.Analysis
	if a.BootstrapDelaySeconds != 15 {
		t.Errorf("bootstrap delay default = %d, want 15", a.BootstrapDelaySeconds)
	}
	if a.ItemCooldownSeconds != 30 {
		t.Errorf("cooldown default = %d, want 30", a.ItemCooldownSeconds)
	}
	if a.ItemMinConfidence != 0.8 {
		t.Errorf("item confidence default = %f, want 0.8", a.ItemMinConfidence)
	}
	if a.StageMinConfidence != 0.6 {
		t.Errorf("stage confidence default = %f, want 0.6", a.StageMinConfidence)
	}
	if a.FieldMinConfidence != 0.7 {
		t.Errorf("field confidence default = %f, want 0.7", a.FieldMinConfidence)
	}
	if a.MinEvidenceChars != 10 {
		t.Errorf("evidence floor default = %d, want 10", a.MinEvidenceChars)
	}
	if a.MaxTranscriptWords != 1000 {
		t.Errorf("transcript cap default = %d, want 1000", a.MaxTranscriptWords)
	}
	if a.GreetingItemID != "greet_client" {
		t.Errorf("greeting item default = %q, want greet_client", a.GreetingItemID)
	}
	if len(a.GreetingKeywords) == 0 {
		t.Error("greeting keywords default should not be empty")
	}
	if a.DefaultLanguage != "id" {
		t.Errorf("language default = %q, want id", a.DefaultLanguage)
	}
	if cfg.Buffering.MinChunks != 8 {
		t.Errorf("min_chunks default = %d, want 8", cfg.Buffering.MinChunks)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestServerConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid", ServerConfig{Port: 8000, Address: "0.0.0.0"}, false},
		{"port_zero", ServerConfig{Port: 0, Address: "0.0.0.0"}, true},
		{"port_too_high", ServerConfig{Port: 70000, Address: "0.0.0.0"}, true},
		{"empty_address", ServerConfig{Port: 8000, Address: ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalysisConfigValidation(t *testing.T) {
	valid := AnalysisConfig{
		BootstrapDelaySeconds: 15,
		ItemCooldownSeconds:   30,
		ItemMinConfidence:     0.8,
		StageMinConfidence:    0.6,
		FieldMinConfidence:    0.7,
		MaxTranscriptWords:    1000,
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("valid analysis config rejected: %v", err)
	}

	bad := valid
	bad.ItemMinConfidence = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for confidence above 1")
	}

	bad = valid
	bad.ItemCooldownSeconds = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative cooldown")
	}

	bad = valid
	bad.MaxTranscriptWords = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero transcript cap")
	}
}

func TestTranscriptionConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TranscriptionConfig
		wantErr bool
	}{
		{"valid", TranscriptionConfig{Endpoint: "http://x", Timeout: 30, MaxConcurrent: 4}, false},
		{"empty_endpoint", TranscriptionConfig{Timeout: 30, MaxConcurrent: 4}, true},
		{"zero_timeout", TranscriptionConfig{Endpoint: "http://x", MaxConcurrent: 4}, true},
		{"negative_retries", TranscriptionConfig{Endpoint: "http://x", Timeout: 30, MaxRetries: -1, MaxConcurrent: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr bool
	}{
		{"valid_json", LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false},
		{"valid_text", LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, false},
		{"bad_level", LoggingConfig{Level: "verbose", Format: "json"}, true},
		{"bad_format", LoggingConfig{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
