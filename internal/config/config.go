// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for deskpilot. It is loaded once at startup
// and passed by value or pointer to the components that need it; nothing in the
// core mutates it.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Perception PerceptionConfig `mapstructure:"perception" yaml:"perception"`
	Vision     VisionConfig     `mapstructure:"vision" yaml:"vision"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Reasoning  ReasoningConfig  `mapstructure:"reasoning" yaml:"reasoning"`
	Loop       LoopConfig       `mapstructure:"loop" yaml:"loop"`
	Input      InputConfig      `mapstructure:"input" yaml:"input"`
	Humanoid   HumanoidConfig   `mapstructure:"humanoid" yaml:"humanoid"`
	Failsafe   FailsafeConfig   `mapstructure:"failsafe" yaml:"failsafe"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// PerceptionConfig tunes how recognizer output is fused into a scene.
type PerceptionConfig struct {
	ConfidenceFloor  float64       `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	OverlapThreshold float64       `mapstructure:"overlap_threshold" yaml:"overlap_threshold"`
	CaptureTimeout   time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	OCRTimeout       time.Duration `mapstructure:"ocr_timeout" yaml:"ocr_timeout"`
	DetectionTimeout time.Duration `mapstructure:"detection_timeout" yaml:"detection_timeout"`
	// Labels of detected objects that mean the UI is still busy.
	LoadingLabels []string `mapstructure:"loading_labels" yaml:"loading_labels"`
}

// VisionConfig selects the capture and recognizer adapters.
type VisionConfig struct {
	CaptureCommand  []string `mapstructure:"capture_command" yaml:"capture_command"`
	TesseractPath   string   `mapstructure:"tesseract_path" yaml:"tesseract_path"`
	TesseractLang   string   `mapstructure:"tesseract_lang" yaml:"tesseract_lang"`
	DetectorCommand []string `mapstructure:"detector_command" yaml:"detector_command"`
	// Preprocess converts frames to high-contrast grayscale before OCR.
	Preprocess bool `mapstructure:"preprocess" yaml:"preprocess"`
}

// Supported LLM providers. Both talk to a server on the local machine.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// LLMConfig configures the local language model collaborator.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxRetryElapsed bounds transport-level retries inside one Generate call.
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// ReasoningConfig bounds prompt construction and plan validation.
type ReasoningConfig struct {
	HistoryWindow   int           `mapstructure:"history_window" yaml:"history_window"`
	MaxPlanAttempts int           `mapstructure:"max_plan_attempts" yaml:"max_plan_attempts"`
	TargetMargin    float64       `mapstructure:"target_margin" yaml:"target_margin"`
	MaxWait         time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	AllowedHotkeys  []string      `mapstructure:"allowed_hotkeys" yaml:"allowed_hotkeys"`
	UnsafeMode      bool          `mapstructure:"unsafe_mode" yaml:"unsafe_mode"`
}

// LoopConfig holds the termination policy of the control loop.
type LoopConfig struct {
	CycleCeiling     int           `mapstructure:"cycle_ceiling" yaml:"cycle_ceiling"`
	StuckWindow      int           `mapstructure:"stuck_window" yaml:"stuck_window"`
	MinCycleInterval time.Duration `mapstructure:"min_cycle_interval" yaml:"min_cycle_interval"`
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	SessionTimeout   time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`
}

// Supported input backends.
const (
	InputDryRun  = "dryrun"
	InputXdotool = "xdotool"
)

// InputConfig selects the OS input injection adapter.
type InputConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	XdotoolPath string `mapstructure:"xdotool_path" yaml:"xdotool_path"`
}

// FailsafeConfig lists the abort sources the monitor listens to.
type FailsafeConfig struct {
	Signals   []string `mapstructure:"signals" yaml:"signals"`
	AbortFile string   `mapstructure:"abort_file" yaml:"abort_file"`
}

// StoreConfig controls session persistence.
type StoreConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	SaveSnapshots bool   `mapstructure:"save_snapshots" yaml:"save_snapshots"`
	AuditLog      string `mapstructure:"audit_log" yaml:"audit_log"`
	AuditMaxSize  int    `mapstructure:"audit_max_size" yaml:"audit_max_size"`
	AuditBackups  int    `mapstructure:"audit_backups" yaml:"audit_backups"`
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "deskpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Perception --
	v.SetDefault("perception.confidence_floor", 0.6)
	v.SetDefault("perception.overlap_threshold", 0.7)
	v.SetDefault("perception.capture_timeout", "5s")
	v.SetDefault("perception.ocr_timeout", "20s")
	v.SetDefault("perception.detection_timeout", "20s")
	v.SetDefault("perception.loading_labels", []string{"spinner", "progress_bar", "loading"})

	// -- Vision adapters --
	v.SetDefault("vision.capture_command", []string{"grim", "-"})
	v.SetDefault("vision.tesseract_path", "tesseract")
	v.SetDefault("vision.tesseract_lang", "eng")
	v.SetDefault("vision.detector_command", []string{})
	v.SetDefault("vision.preprocess", true)

	// -- LLM --
	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.max_retry_elapsed", "30s")

	// -- Reasoning --
	v.SetDefault("reasoning.history_window", 8)
	v.SetDefault("reasoning.max_plan_attempts", 2)
	v.SetDefault("reasoning.target_margin", 0.01)
	v.SetDefault("reasoning.max_wait", "10s")
	v.SetDefault("reasoning.allowed_hotkeys", []string{"ctrl+a", "ctrl+c", "ctrl+v", "ctrl+x", "ctrl+z", "ctrl+s", "ctrl+f", "alt+tab"})
	v.SetDefault("reasoning.unsafe_mode", false)

	// -- Loop --
	v.SetDefault("loop.cycle_ceiling", 20)
	v.SetDefault("loop.stuck_window", 3)
	v.SetDefault("loop.min_cycle_interval", "500ms")
	v.SetDefault("loop.settle_delay", "300ms")
	v.SetDefault("loop.session_timeout", "30m")

	// -- Input --
	v.SetDefault("input.backend", InputDryRun)
	v.SetDefault("input.xdotool_path", "xdotool")

	// -- Humanoid --
	setHumanoidDefaults(v)

	// -- Failsafe --
	v.SetDefault("failsafe.signals", []string{"SIGUSR1"})
	v.SetDefault("failsafe.abort_file", "")

	// -- Store --
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "deskpilot.db")
	v.SetDefault("store.save_snapshots", true)
	v.SetDefault("store.audit_log", "")
	v.SetDefault("store.audit_max_size", 20)
	v.SetDefault("store.audit_backups", 5)
}

// NewDefaultConfig returns a configuration populated with all default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are static, so a decode failure here is a programming error.
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: failed to decode defaults: %v", err))
	}
	return &cfg
}

// NewConfigFromViper decodes and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error

	if c.Perception.ConfidenceFloor < 0 || c.Perception.ConfidenceFloor > 1 {
		errs = append(errs, errors.New("perception.confidence_floor must be between 0 and 1"))
	}
	if c.Perception.OverlapThreshold <= 0 || c.Perception.OverlapThreshold > 1 {
		errs = append(errs, errors.New("perception.overlap_threshold must be in (0, 1]"))
	}
	if c.Perception.CaptureTimeout <= 0 || c.Perception.OCRTimeout <= 0 || c.Perception.DetectionTimeout <= 0 {
		errs = append(errs, errors.New("perception timeouts must be positive"))
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported (use %s or %s)", c.LLM.Provider, ProviderOllama, ProviderOpenAI))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}

	if c.Reasoning.HistoryWindow < 0 {
		errs = append(errs, errors.New("reasoning.history_window must not be negative"))
	}
	if c.Reasoning.MaxPlanAttempts < 1 {
		errs = append(errs, errors.New("reasoning.max_plan_attempts must be at least 1"))
	}
	if c.Reasoning.MaxWait <= 0 {
		errs = append(errs, errors.New("reasoning.max_wait must be positive"))
	}

	if c.Loop.CycleCeiling < 1 {
		errs = append(errs, errors.New("loop.cycle_ceiling must be a positive integer"))
	}
	if c.Loop.StuckWindow < 1 {
		errs = append(errs, errors.New("loop.stuck_window must be a positive integer"))
	}
	if c.Loop.MinCycleInterval < 0 || c.Loop.SettleDelay < 0 {
		errs = append(errs, errors.New("loop intervals must not be negative"))
	}

	switch c.Input.Backend {
	case InputDryRun, InputXdotool:
	default:
		errs = append(errs, fmt.Errorf("input.backend %q is not supported (use %s or %s)", c.Input.Backend, InputDryRun, InputXdotool))
	}

	if c.Store.Enabled && strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required when the store is enabled"))
	}

	if err := c.Humanoid.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
