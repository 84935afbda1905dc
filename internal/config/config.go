// File: internal/config/config.go

// Package config defines the application configuration surface: typed
// sections for the logger, frame loop, browser backend, drag, tween
// defaults, snapshot storage, and the demo stage, loaded through viper
// and validated before use.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Frame() FrameConfig
	Browser() BrowserConfig
	Drag() DragConfig
	Tween() TweenConfig
	Storage() StorageConfig
	Stage() StageConfig
	Play() PlayConfig
	SetPlayConfig(pc PlayConfig)

	// Browser setters
	SetBrowserRemoteURL(string)
	SetBrowserHeadless(bool)

	// Frame setters
	SetFrameFPS(int)

	// Drag setters
	SetDragEnabled(bool)

	// Storage setters
	SetStorageURL(string)
}

// Config holds the entire application configuration. Sections are exported
// so viper can unmarshal into them; call sites should accept the Interface
// and go through the getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	FrameCfg   FrameConfig   `mapstructure:"frame" yaml:"frame"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	DragCfg    DragConfig    `mapstructure:"drag" yaml:"drag"`
	TweenCfg   TweenConfig   `mapstructure:"tween" yaml:"tween"`
	StorageCfg StorageConfig `mapstructure:"storage" yaml:"storage"`
	StageCfg   StageConfig   `mapstructure:"stage" yaml:"stage"`
	// play gets its marching orders from CLI flags, not the config file.
	play PlayConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Frame() FrameConfig     { return c.FrameCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Drag() DragConfig       { return c.DragCfg }
func (c *Config) Tween() TweenConfig     { return c.TweenCfg }
func (c *Config) Storage() StorageConfig { return c.StorageCfg }
func (c *Config) Stage() StageConfig     { return c.StageCfg }
func (c *Config) Play() PlayConfig       { return c.play }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetPlayConfig(pc PlayConfig) { c.play = pc }

// Browser setters
func (c *Config) SetBrowserRemoteURL(u string) { c.BrowserCfg.RemoteURL = u }
func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }

// Frame setters
func (c *Config) SetFrameFPS(fps int) { c.FrameCfg.FPS = fps }

// Drag setters
func (c *Config) SetDragEnabled(b bool) { c.DragCfg.Enabled = b }

// Storage setters
func (c *Config) SetStorageURL(u string) { c.StorageCfg.URL = u }

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

// FrameConfig tunes the cooperative frame loop that drives tween ticks and
// deferred style flushes.
type FrameConfig struct {
	FPS int `mapstructure:"fps" yaml:"fps"`
}

// Interval converts the configured rate into a tick interval.
func (f FrameConfig) Interval() time.Duration {
	if f.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(f.FPS)
}

// BrowserConfig holds settings for the DevTools protocol backend that
// attached elements write through.
type BrowserConfig struct {
	// RemoteURL points at an already running browser (a ws:// or http://
	// devtools endpoint). Empty means launch a local instance.
	RemoteURL       string        `mapstructure:"remote_url" yaml:"remote_url"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
}

// DragConfig tunes the pointer drag collaborator.
type DragConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	ThrottleHz    float64       `mapstructure:"throttle_hz" yaml:"throttle_hz"`
	Tween         bool          `mapstructure:"tween" yaml:"tween"`
	TweenDuration time.Duration `mapstructure:"tween_duration" yaml:"tween_duration"`
	TweenEasing   string        `mapstructure:"tween_easing" yaml:"tween_easing"`
	GlideSeconds  float64       `mapstructure:"glide_seconds" yaml:"glide_seconds"`
	MaxGlide      float64       `mapstructure:"max_glide" yaml:"max_glide"`
}

// TweenConfig supplies the animation defaults used when a caller gives no
// explicit options.
type TweenConfig struct {
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
	Easing   string        `mapstructure:"easing" yaml:"easing"`
}

// StorageConfig holds the snapshot persistence connection details.
type StorageConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// StageConfig sizes the demo scene used by the stage and render commands.
type StageConfig struct {
	ParentWidth   float64 `mapstructure:"parent_width" yaml:"parent_width"`
	ParentHeight  float64 `mapstructure:"parent_height" yaml:"parent_height"`
	ElementWidth  float64 `mapstructure:"element_width" yaml:"element_width"`
	ElementHeight float64 `mapstructure:"element_height" yaml:"element_height"`
}

// PlayConfig holds settings populated from CLI flags for a single play run.
type PlayConfig struct {
	TargetURL string
	Selector  string
	Script    string
	DryRun    bool
	Duration  time.Duration
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "repose")
	v.SetDefault("logger.log_file", "repose.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Frame --
	v.SetDefault("frame.fps", 60)

	// -- Browser --
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.selector_timeout", "10s")

	// -- Drag --
	v.SetDefault("drag.enabled", true)
	v.SetDefault("drag.throttle_hz", 120.0)
	v.SetDefault("drag.tween", true)
	v.SetDefault("drag.tween_duration", "120ms")
	v.SetDefault("drag.tween_easing", "out_quad")
	v.SetDefault("drag.glide_seconds", 0.15)
	v.SetDefault("drag.max_glide", 220.0)

	// -- Tween --
	v.SetDefault("tween.duration", "1s")
	v.SetDefault("tween.easing", "linear")

	// -- Storage --
	v.SetDefault("storage.url", "")

	// -- Stage --
	v.SetDefault("stage.parent_width", 960.0)
	v.SetDefault("stage.parent_height", 540.0)
	v.SetDefault("stage.element_width", 120.0)
	v.SetDefault("stage.element_height", 80.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("storage.url", "REPOSE_STORAGE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the DSN if Unmarshal didn't pick it up
	if cfg.StorageCfg.URL == "" {
		cfg.StorageCfg.URL = os.Getenv("REPOSE_STORAGE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// storage.url stays optional; the snapshot command checks it at use time.
func (c *Config) Validate() error {
	if c.FrameCfg.FPS <= 0 {
		return fmt.Errorf("frame.fps must be a positive integer")
	}
	if c.BrowserCfg.SelectorTimeout <= 0 {
		return fmt.Errorf("browser.selector_timeout must be a positive duration")
	}
	if err := c.DragCfg.Validate(); err != nil {
		return fmt.Errorf("drag configuration invalid: %w", err)
	}
	if err := c.TweenCfg.Validate(); err != nil {
		return fmt.Errorf("tween configuration invalid: %w", err)
	}
	if err := c.StageCfg.Validate(); err != nil {
		return fmt.Errorf("stage configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the drag collaborator settings.
func (d *DragConfig) Validate() error {
	if d.ThrottleHz <= 0 {
		return fmt.Errorf("drag.throttle_hz must be positive")
	}
	if d.Tween && d.TweenDuration <= 0 {
		return fmt.Errorf("drag.tween_duration must be a positive duration when drag.tween is enabled")
	}
	if d.GlideSeconds < 0 {
		return fmt.Errorf("drag.glide_seconds must not be negative")
	}
	if d.MaxGlide < 0 {
		return fmt.Errorf("drag.max_glide must not be negative")
	}
	return nil
}

// Validate checks the animation defaults.
func (t *TweenConfig) Validate() error {
	if t.Duration <= 0 {
		return fmt.Errorf("tween.duration must be a positive duration")
	}
	return nil
}

// Validate checks the demo scene geometry.
func (s *StageConfig) Validate() error {
	if s.ParentWidth <= 0 || s.ParentHeight <= 0 {
		return fmt.Errorf("stage.parent_width and stage.parent_height must be positive")
	}
	if s.ElementWidth <= 0 || s.ElementHeight <= 0 {
		return fmt.Errorf("stage.element_width and stage.element_height must be positive")
	}
	return nil
}
