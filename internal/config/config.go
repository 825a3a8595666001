// Package config provides layered configuration loading for the recipe
// box: struct defaults overlaid with RECEPTBOX_* environment variables,
// then validated. All knobs of the storage core live here so nothing in
// the library hardcodes sizes or paths.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds the merged runtime configuration.
type Config struct {
	// DataDir holds the image database and the metadata document files.
	DataDir string `koanf:"data_dir" validate:"required,safe_path"`
	// DownloadDir receives exported backup files.
	DownloadDir string `koanf:"download_dir" validate:"required,safe_path"`
	// MaxImageSide bounds both dimensions of stored upload images.
	MaxImageSide int `koanf:"max_image_side" validate:"gte=320,lte=4096"`
	// JPEGQuality is the lossy quality for non-alpha uploads.
	JPEGQuality int `koanf:"jpeg_quality" validate:"gte=1,lte=100"`
	// HugeSideThreshold triggers coarse pre-halving of very large sources.
	HugeSideThreshold int `koanf:"huge_side_threshold" validate:"gte=1000"`
	// OptimizeMaxSide is the smaller target bound of the optimizer pass.
	OptimizeMaxSide int `koanf:"optimize_max_side" validate:"gte=320,ltefield=MaxImageSide"`
	// OptimizeQuality is the optimizer's JPEG quality.
	OptimizeQuality int `koanf:"optimize_quality" validate:"gte=1,lte=100"`
	// MaxDocBytes caps the serialized metadata document; 0 disables.
	MaxDocBytes int64 `koanf:"max_doc_bytes" validate:"gte=0"`
	// AutoBackupInterval is the cadence of the auto-backup loop.
	AutoBackupInterval time.Duration `koanf:"auto_backup_interval" validate:"gt=0"`
	// LogLevel selects the slog level of the process.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// DefaultAppConfig is the baseline configuration before overrides.
var DefaultAppConfig = Config{
	DataDir:            "./data",
	DownloadDir:        "./downloads",
	MaxImageSide:       1600,
	JPEGQuality:        85,
	HugeSideThreshold:  3500,
	OptimizeMaxSide:    1280,
	OptimizeQuality:    75,
	MaxDocBytes:        5 << 20, // matches the old localStorage limit
	AutoBackupInterval: time.Hour,
	LogLevel:           "info",
}

const envPrefix = "RECEPTBOX_"

// Load merges defaults with RECEPTBOX_* environment variables and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	p := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	})
	if err := k.Load(p, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	var cfg Config
	uc := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, uc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the struct rules plus the custom path rule.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("safe_path", safePath); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// safePath rejects empty, root, and parent-traversal paths.
func safePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	switch p {
	case "", ".", "/", "//":
		return false
	}
	for _, part := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
