package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LINGOCORE_STORE_ROOT",
		"LINGOCORE_PACK_CACHE_DIR",
		"LINGOCORE_BROADCAST_ADDR",
		"LINGOCORE_LOG_LEVEL",
		"LINGOCORE_LOG_PATH",
		"LINGOCORE_SYNC_INTERVAL",
		"LINGOCORE_RECONCILE_INTERVAL",
		"LINGOCORE_WATCH_DISK",
		"LINGOCORE_LOG_MAX_SIZE_MB",
		"LINGOCORE_LOG_MAX_BACKUPS",
		"LINGOCORE_LOG_MAX_AGE_DAYS",
		"LINGOCORE_LOG_COMPRESS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.StoreRoot != DefaultStoreRoot {
		t.Fatalf("expected default store root %q, got %q", DefaultStoreRoot, cfg.StoreRoot)
	}
	if cfg.PackCacheDir != DefaultPackCacheDir {
		t.Fatalf("expected default pack cache dir %q, got %q", DefaultPackCacheDir, cfg.PackCacheDir)
	}
	if cfg.BroadcastAddr != DefaultBroadcastAddr {
		t.Fatalf("expected default broadcast addr %q, got %q", DefaultBroadcastAddr, cfg.BroadcastAddr)
	}
	if cfg.SyncInterval != DefaultSyncInterval {
		t.Fatalf("expected default sync interval %v, got %v", DefaultSyncInterval, cfg.SyncInterval)
	}
	if cfg.ReconcileInterval != DefaultReconcileInterval {
		t.Fatalf("expected default reconcile interval %v, got %v", DefaultReconcileInterval, cfg.ReconcileInterval)
	}
	if cfg.WatchDiskForWrites {
		t.Fatalf("expected watch-disk-for-writes to default false")
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != DefaultLogMaxBackups {
		t.Fatalf("expected default log max backups %d, got %d", DefaultLogMaxBackups, cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != DefaultLogMaxAgeDays {
		t.Fatalf("expected default log max age %d, got %d", DefaultLogMaxAgeDays, cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %v, got %v", DefaultLogCompress, cfg.Logging.Compress)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("LINGOCORE_STORE_ROOT", "/tmp/events")
	t.Setenv("LINGOCORE_PACK_CACHE_DIR", "/tmp/packs")
	t.Setenv("LINGOCORE_BROADCAST_ADDR", "127.0.0.1:9999")
	t.Setenv("LINGOCORE_LOG_LEVEL", "debug")
	t.Setenv("LINGOCORE_LOG_PATH", "/tmp/lingocore.log")
	t.Setenv("LINGOCORE_SYNC_INTERVAL", "15s")
	t.Setenv("LINGOCORE_RECONCILE_INTERVAL", "5m")
	t.Setenv("LINGOCORE_WATCH_DISK", "true")
	t.Setenv("LINGOCORE_LOG_MAX_SIZE_MB", "50")
	t.Setenv("LINGOCORE_LOG_MAX_BACKUPS", "3")
	t.Setenv("LINGOCORE_LOG_MAX_AGE_DAYS", "2")
	t.Setenv("LINGOCORE_LOG_COMPRESS", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.StoreRoot != "/tmp/events" {
		t.Fatalf("expected overridden store root, got %q", cfg.StoreRoot)
	}
	if cfg.PackCacheDir != "/tmp/packs" {
		t.Fatalf("expected overridden pack cache dir, got %q", cfg.PackCacheDir)
	}
	if cfg.BroadcastAddr != "127.0.0.1:9999" {
		t.Fatalf("expected overridden broadcast addr, got %q", cfg.BroadcastAddr)
	}
	if cfg.SyncInterval != 15*time.Second {
		t.Fatalf("expected overridden sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Fatalf("expected overridden reconcile interval, got %v", cfg.ReconcileInterval)
	}
	if !cfg.WatchDiskForWrites {
		t.Fatalf("expected watch-disk-for-writes to be enabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB != 50 {
		t.Fatalf("expected overridden max size, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Fatalf("expected overridden max backups, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != 2 {
		t.Fatalf("expected overridden max age, got %d", cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected compress to be disabled")
	}
}

func TestLoadInvalidValuesAreAggregated(t *testing.T) {
	clearEnv(t)

	t.Setenv("LINGOCORE_SYNC_INTERVAL", "not-a-duration")
	t.Setenv("LINGOCORE_RECONCILE_INTERVAL", "-5m")
	t.Setenv("LINGOCORE_WATCH_DISK", "maybe")
	t.Setenv("LINGOCORE_LOG_MAX_SIZE_MB", "0")
	t.Setenv("LINGOCORE_LOG_MAX_BACKUPS", "-1")
	t.Setenv("LINGOCORE_LOG_MAX_AGE_DAYS", "-1")
	t.Setenv("LINGOCORE_LOG_COMPRESS", "nope")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected Load() to return an aggregated error")
	}
	msg := err.Error()
	for _, want := range []string{
		"LINGOCORE_SYNC_INTERVAL",
		"LINGOCORE_RECONCILE_INTERVAL",
		"LINGOCORE_WATCH_DISK",
		"LINGOCORE_LOG_MAX_SIZE_MB",
		"LINGOCORE_LOG_MAX_BACKUPS",
		"LINGOCORE_LOG_MAX_AGE_DAYS",
		"LINGOCORE_LOG_COMPRESS",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected aggregated error to mention %s, got: %s", want, msg)
		}
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "lingocore.yaml")
	contents := "store_root: /data/custom-events\n" +
		"broadcast_addr: 127.0.0.1:7000\n" +
		"logging:\n" +
		"  level: warn\n" +
		"  max_backups: 4\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.StoreRoot != "/data/custom-events" {
		t.Fatalf("expected store root from file, got %q", cfg.StoreRoot)
	}
	if cfg.BroadcastAddr != "127.0.0.1:7000" {
		t.Fatalf("expected broadcast addr from file, got %q", cfg.BroadcastAddr)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected log level from file, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxBackups != 4 {
		t.Fatalf("expected max backups from file, got %d", cfg.Logging.MaxBackups)
	}
	// Fields not set in the file keep their defaults.
	if cfg.PackCacheDir != DefaultPackCacheDir {
		t.Fatalf("expected default pack cache dir to survive partial file, got %q", cfg.PackCacheDir)
	}
}

func TestLoadEnvOverridesYAMLFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "lingocore.yaml")
	if err := os.WriteFile(path, []byte("store_root: /data/from-file\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}
	t.Setenv("LINGOCORE_STORE_ROOT", "/data/from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.StoreRoot != "/data/from-env" {
		t.Fatalf("expected env override to win over file, got %q", cfg.StoreRoot)
	}
}

func TestLoadMissingYAMLFileIsReportedAsProblem(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected Load() to return an error for a missing config file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected error to mention reading config file, got: %v", err)
	}
}
