// Package config loads runtime tunables for the sync engine from environment
// variables, with an optional YAML file providing static defaults that env
// vars override: defaults first, then file, then environment, collecting
// every problem before returning a single error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultStoreRoot is where the persistent store keeps its append-only
	// per-device envelope tree when no override is supplied.
	DefaultStoreRoot = "./data/events"
	// DefaultPackCacheDir is where cached language-pack bundles are kept.
	DefaultPackCacheDir = "./data/packs"

	// DefaultLogLevel controls verbosity for engine logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "lingocore.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultSyncInterval controls how frequently the remote sync loop runs
	// when driven by a caller-owned ticker rather than one-shot calls.
	DefaultSyncInterval = 30 * time.Second
	// DefaultReconcileInterval controls how often the persistent store
	// re-validates its SQLite side-index against the on-disk tree.
	DefaultReconcileInterval = 10 * time.Minute
	// DefaultBroadcastAddr is the loopback address the multi-tab hub listens on.
	DefaultBroadcastAddr = "127.0.0.1:8791"
)

// Config captures all runtime tunables for the sync engine.
type Config struct {
	StoreRoot          string
	PackCacheDir       string
	SyncInterval       time.Duration
	ReconcileInterval  time.Duration
	BroadcastAddr      string
	WatchDiskForWrites bool
	Logging            LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileConfig mirrors Config for YAML decoding; it uses pointers so that an
// absent field never overrides a default or an environment override applied
// afterward.
type fileConfig struct {
	StoreRoot          *string `yaml:"store_root"`
	PackCacheDir       *string `yaml:"pack_cache_dir"`
	SyncInterval       *string `yaml:"sync_interval"`
	ReconcileInterval  *string `yaml:"reconcile_interval"`
	BroadcastAddr      *string `yaml:"broadcast_addr"`
	WatchDiskForWrites *bool   `yaml:"watch_disk_for_writes"`
	Logging            *struct {
		Level      *string `yaml:"level"`
		Path       *string `yaml:"path"`
		MaxSizeMB  *int    `yaml:"max_size_mb"`
		MaxBackups *int    `yaml:"max_backups"`
		MaxAgeDays *int    `yaml:"max_age_days"`
		Compress   *bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Load reads the engine configuration from an optional YAML file followed by
// environment variable overrides, applying sane defaults and returning a
// descriptive error listing every invalid override found.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		StoreRoot:         DefaultStoreRoot,
		PackCacheDir:      DefaultPackCacheDir,
		SyncInterval:      DefaultSyncInterval,
		ReconcileInterval: DefaultReconcileInterval,
		BroadcastAddr:     DefaultBroadcastAddr,
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if strings.TrimSpace(yamlPath) != "" {
		if err := applyYAMLFile(cfg, yamlPath); err != nil {
			problems = append(problems, err.Error())
		}
	}

	cfg.StoreRoot = getString("LINGOCORE_STORE_ROOT", cfg.StoreRoot)
	cfg.PackCacheDir = getString("LINGOCORE_PACK_CACHE_DIR", cfg.PackCacheDir)
	cfg.BroadcastAddr = getString("LINGOCORE_BROADCAST_ADDR", cfg.BroadcastAddr)
	cfg.Logging.Level = getString("LINGOCORE_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Path = getString("LINGOCORE_LOG_PATH", cfg.Logging.Path)

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_SYNC_INTERVAL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("LINGOCORE_SYNC_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.SyncInterval = d
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_RECONCILE_INTERVAL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("LINGOCORE_RECONCILE_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.ReconcileInterval = d
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_WATCH_DISK")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("LINGOCORE_WATCH_DISK must be a boolean value, got %q", raw))
		} else {
			cfg.WatchDiskForWrites = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_LOG_MAX_SIZE_MB")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			problems = append(problems, fmt.Sprintf("LINGOCORE_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_LOG_MAX_BACKUPS")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			problems = append(problems, fmt.Sprintf("LINGOCORE_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_LOG_MAX_AGE_DAYS")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			problems = append(problems, fmt.Sprintf("LINGOCORE_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LINGOCORE_LOG_COMPRESS")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("LINGOCORE_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = v
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.StoreRoot != nil {
		cfg.StoreRoot = *fc.StoreRoot
	}
	if fc.PackCacheDir != nil {
		cfg.PackCacheDir = *fc.PackCacheDir
	}
	if fc.BroadcastAddr != nil {
		cfg.BroadcastAddr = *fc.BroadcastAddr
	}
	if fc.WatchDiskForWrites != nil {
		cfg.WatchDiskForWrites = *fc.WatchDiskForWrites
	}
	if fc.SyncInterval != nil {
		if d, err := time.ParseDuration(*fc.SyncInterval); err == nil && d > 0 {
			cfg.SyncInterval = d
		}
	}
	if fc.ReconcileInterval != nil {
		if d, err := time.ParseDuration(*fc.ReconcileInterval); err == nil && d > 0 {
			cfg.ReconcileInterval = d
		}
	}
	if fc.Logging != nil {
		if fc.Logging.Level != nil {
			cfg.Logging.Level = *fc.Logging.Level
		}
		if fc.Logging.Path != nil {
			cfg.Logging.Path = *fc.Logging.Path
		}
		if fc.Logging.MaxSizeMB != nil {
			cfg.Logging.MaxSizeMB = *fc.Logging.MaxSizeMB
		}
		if fc.Logging.MaxBackups != nil {
			cfg.Logging.MaxBackups = *fc.Logging.MaxBackups
		}
		if fc.Logging.MaxAgeDays != nil {
			cfg.Logging.MaxAgeDays = *fc.Logging.MaxAgeDays
		}
		if fc.Logging.Compress != nil {
			cfg.Logging.Compress = *fc.Logging.Compress
		}
	}
	return nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
