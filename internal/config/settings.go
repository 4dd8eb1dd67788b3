// Package config loads the read-only configuration snapshot handed to the
// orchestrator at construction. Sources, in ascending precedence: built-in
// defaults, an optional config.yaml, and MANGADL_-prefixed environment
// variables. The engine itself never reads or writes settings after startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mangadl/manga-downloader/internal/platform"
)

// Default values
const (
	DefaultMaxParallel = 2
	DefaultRetryLimit  = 3
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 30 * time.Second
	DefaultAPIPort     = "8080"
)

// Settings is the configuration snapshot for one process lifetime
type Settings struct {
	// DownloadDir is the default output root for new jobs
	DownloadDir string `mapstructure:"download_dir" validate:"required"`

	// MaxParallelDownloads bounds concurrently downloading jobs
	MaxParallelDownloads int `mapstructure:"max_parallel_downloads" validate:"min=1,max=10"`

	// RetryLimit is the number of retries for transient transport failures
	RetryLimit int `mapstructure:"retry_limit" validate:"min=0,max=10"`

	// BackoffBase is the first retry delay; it doubles per attempt
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"min=1ms"`

	// BackoffMax caps the retry delay
	BackoffMax time.Duration `mapstructure:"backoff_max" validate:"min=1ms,gtefield=BackoffBase"`

	// AutoStart admits jobs to the download queue as soon as validation
	// finishes; when false, jobs wait in Ready for an explicit start
	AutoStart bool `mapstructure:"auto_start"`

	// APIPort is the listen port of the HTTP control surface
	APIPort string `mapstructure:"api_port" validate:"required"`
}

// Load reads the configuration snapshot once at startup
func Load() (*Settings, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("MANGADL")
	v.AutomaticEnv()

	_ = v.BindEnv("download_dir", "MANGADL_DOWNLOAD_DIR")
	_ = v.BindEnv("max_parallel_downloads", "MANGADL_MAX_PARALLEL_DOWNLOADS")
	_ = v.BindEnv("retry_limit", "MANGADL_RETRY_LIMIT")
	_ = v.BindEnv("backoff_base", "MANGADL_BACKOFF_BASE")
	_ = v.BindEnv("backoff_max", "MANGADL_BACKOFF_MAX")
	_ = v.BindEnv("auto_start", "MANGADL_AUTO_START")
	_ = v.BindEnv("api_port", "MANGADL_API_PORT")

	defaultDir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		defaultDir = "./downloads"
	}
	v.SetDefault("download_dir", defaultDir)
	v.SetDefault("max_parallel_downloads", DefaultMaxParallel)
	v.SetDefault("retry_limit", DefaultRetryLimit)
	v.SetDefault("backoff_base", DefaultBackoffBase)
	v.SetDefault("backoff_max", DefaultBackoffMax)
	v.SetDefault("auto_start", true)
	v.SetDefault("api_port", DefaultAPIPort)

	// config file is optional
	_ = v.ReadInConfig()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

// Default returns the built-in settings without touching files or env.
// Used by tests and as the zero-configuration fallback.
func Default() *Settings {
	dir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		dir = "./downloads"
	}
	return &Settings{
		DownloadDir:          dir,
		MaxParallelDownloads: DefaultMaxParallel,
		RetryLimit:           DefaultRetryLimit,
		BackoffBase:          DefaultBackoffBase,
		BackoffMax:           DefaultBackoffMax,
		AutoStart:            true,
		APIPort:              DefaultAPIPort,
	}
}
