package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Buffering     BufferingConfig     `yaml:"buffering"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Analyzer      AnalyzerConfig      `yaml:"analyzer"`
	CallPlan      CallPlanConfig      `yaml:"call_plan"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// BufferingConfig contains audio window accumulation thresholds.
type BufferingConfig struct {
	IntervalSeconds float64 `yaml:"interval_seconds"`
	MinChunks       int     `yaml:"min_chunks"`
	MinBytes        int     `yaml:"min_bytes"`
}

// AnalysisConfig contains the session engine's guard thresholds.
type AnalysisConfig struct {
	BootstrapDelaySeconds    int      `yaml:"bootstrap_delay_seconds"`     // suppress first analysis until this much call time
	ItemCooldownSeconds      int      `yaml:"item_cooldown_seconds"`       // per-item re-check cooldown
	ItemMinConfidence        float64  `yaml:"item_min_confidence"`         // checklist completion floor
	StageMinConfidence       float64  `yaml:"stage_min_confidence"`        // stage transition floor
	FieldMinConfidence       float64  `yaml:"field_min_confidence"`        // client card extraction floor
	MinEvidenceChars         int      `yaml:"min_evidence_chars"`          // evidence length floor
	MinFieldValueChars       int      `yaml:"min_field_value_chars"`       // client card value length floor
	StageGraceSeconds        int      `yaml:"stage_grace_seconds"`         // slightly-late window past a stage end
	MaxTranscriptWords       int      `yaml:"max_transcript_words"`        // rolling transcript cap
	StageContextChars        int      `yaml:"stage_context_chars"`         // transcript tail for stage detection
	ChecklistContextChars    int      `yaml:"checklist_context_chars"`     // transcript tail for checklist checks
	ClientCardContextChars   int      `yaml:"client_card_context_chars"`   // transcript tail for field extraction
	TranscriptPreviewChars   int      `yaml:"transcript_preview_chars"`    // tail published in snapshots
	GreetingItemID           string   `yaml:"greeting_item_id"`            // checklist item satisfied by the keyword pre-check
	GreetingKeywords         []string `yaml:"greeting_keywords"`           // lowercase keywords that pre-check the greeting item
	DisableEvidenceValidation bool    `yaml:"disable_evidence_validation"` // skip the secondary relevance pass
	DefaultLanguage          string   `yaml:"default_language"`            // transcription language hint
}

// TranscriptionConfig contains transcription API client configuration.
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// AnalyzerConfig contains semantic classifier API client configuration.
type AnalyzerConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// CallPlanConfig optionally points at YAML files overriding the built-in call
// structure and client card schema. Empty paths mean use the defaults.
type CallPlanConfig struct {
	StructurePath  string `yaml:"structure_path"`
	ClientCardPath string `yaml:"client_card_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills unset analysis thresholds with the engine defaults so a
// minimal config file only has to name endpoints and credentials.
func (c *Config) applyDefaults() {
	a := &c.Analysis
	if a.BootstrapDelaySeconds == 0 {
		a.BootstrapDelaySeconds = 15
	}
	if a.ItemCooldownSeconds == 0 {
		a.ItemCooldownSeconds = 30
	}
	if a.ItemMinConfidence == 0 {
		a.ItemMinConfidence = 0.8
	}
	if a.StageMinConfidence == 0 {
		a.StageMinConfidence = 0.6
	}
	if a.FieldMinConfidence == 0 {
		a.FieldMinConfidence = 0.7
	}
	if a.MinEvidenceChars == 0 {
		a.MinEvidenceChars = 10
	}
	if a.MinFieldValueChars == 0 {
		a.MinFieldValueChars = 5
	}
	if a.StageGraceSeconds == 0 {
		a.StageGraceSeconds = 120
	}
	if a.MaxTranscriptWords == 0 {
		a.MaxTranscriptWords = 1000
	}
	if a.StageContextChars == 0 {
		a.StageContextChars = 2000
	}
	if a.ChecklistContextChars == 0 {
		a.ChecklistContextChars = 2500
	}
	if a.ClientCardContextChars == 0 {
		a.ClientCardContextChars = 1000
	}
	if a.TranscriptPreviewChars == 0 {
		a.TranscriptPreviewChars = 300
	}
	if a.GreetingItemID == "" {
		a.GreetingItemID = "greet_client"
	}
	if len(a.GreetingKeywords) == 0 {
		a.GreetingKeywords = []string{"hallo", "halo", "selamat", "pagi", "siang", "sore", "malam"}
	}
	if a.DefaultLanguage == "" {
		a.DefaultLanguage = "id"
	}

	if c.Buffering.IntervalSeconds == 0 {
		c.Buffering.IntervalSeconds = 10
	}
	if c.Buffering.MinChunks == 0 {
		c.Buffering.MinChunks = 8
	}
	if c.Buffering.MinBytes == 0 {
		c.Buffering.MinBytes = 60000
	}

	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 4
	}
	if c.Analyzer.Timeout == 0 {
		c.Analyzer.Timeout = 30
	}
	if c.Analyzer.MaxConcurrent == 0 {
		c.Analyzer.MaxConcurrent = 8
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Buffering.Validate(); err != nil {
		return fmt.Errorf("buffering config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates buffering thresholds.
func (b *BufferingConfig) Validate() error {
	if b.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %f", b.IntervalSeconds)
	}

	if b.MinChunks < 1 {
		return fmt.Errorf("min_chunks must be at least 1, got %d", b.MinChunks)
	}

	if b.MinBytes < 1 {
		return fmt.Errorf("min_bytes must be at least 1, got %d", b.MinBytes)
	}

	return nil
}

// Validate validates analysis thresholds.
func (a *AnalysisConfig) Validate() error {
	if a.BootstrapDelaySeconds < 0 {
		return fmt.Errorf("bootstrap_delay_seconds cannot be negative, got %d", a.BootstrapDelaySeconds)
	}

	if a.ItemCooldownSeconds < 0 {
		return fmt.Errorf("item_cooldown_seconds cannot be negative, got %d", a.ItemCooldownSeconds)
	}

	for name, v := range map[string]float64{
		"item_min_confidence":  a.ItemMinConfidence,
		"stage_min_confidence": a.StageMinConfidence,
		"field_min_confidence": a.FieldMinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
	}

	if a.MaxTranscriptWords < 1 {
		return fmt.Errorf("max_transcript_words must be at least 1, got %d", a.MaxTranscriptWords)
	}

	return nil
}

// Validate validates transcription client configuration.
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates analyzer client configuration.
func (a *AnalyzerConfig) Validate() error {
	if a.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetBufferInterval returns the buffering interval as a time.Duration.
func (b *BufferingConfig) GetBufferInterval() time.Duration {
	return time.Duration(b.IntervalSeconds * float64(time.Second))
}

// GetBootstrapDelay returns the initial-analysis delay as a time.Duration.
func (a *AnalysisConfig) GetBootstrapDelay() time.Duration {
	return time.Duration(a.BootstrapDelaySeconds) * time.Second
}

// GetItemCooldown returns the checklist re-check cooldown as a time.Duration.
func (a *AnalysisConfig) GetItemCooldown() time.Duration {
	return time.Duration(a.ItemCooldownSeconds) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration.
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the analyzer timeout as a time.Duration.
func (a *AnalyzerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}
