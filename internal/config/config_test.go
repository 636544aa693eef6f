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
	for _, key := range []string{EnvAddr, EnvNetworkURL, EnvOptimizerURL, EnvNetworkFile, EnvDatabase, EnvAutoRecalc, EnvConfigPath} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":3000" {
		t.Errorf("Server.Addr = %s, want :3000", cfg.Server.Addr)
	}
	if cfg.View.WarmupTicks != 50 {
		t.Errorf("View.WarmupTicks = %d, want 50", cfg.View.WarmupTicks)
	}
	if cfg.View.Cooldown.Duration() != 1200*time.Millisecond {
		t.Errorf("View.Cooldown = %s, want 1.2s", cfg.View.Cooldown.Duration())
	}
	if cfg.Settings.Debounce.Duration() != 450*time.Millisecond {
		t.Errorf("Settings.Debounce = %s, want 450ms", cfg.Settings.Debounce.Duration())
	}
	if cfg.Overlay.Warning != 80 || cfg.Overlay.Critical != 100 {
		t.Errorf("Overlay thresholds = %v/%v, want 80/100", cfg.Overlay.Warning, cfg.Overlay.Critical)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestViewConfigConversions(t *testing.T) {
	v := DefaultViewConfig()

	ctrl := v.Controller()
	if ctrl.Stabilizer.FitDuration != 700*time.Millisecond {
		t.Errorf("FitDuration = %s, want 700ms", ctrl.Stabilizer.FitDuration)
	}
	if ctrl.Stabilizer.RefitDelay != 300*time.Millisecond {
		t.Errorf("RefitDelay = %s, want 300ms", ctrl.Stabilizer.RefitDelay)
	}
	if ctrl.FocusDuration != 650*time.Millisecond || ctrl.FocusZoom != 3 {
		t.Errorf("focus = %s x%v, want 650ms x3", ctrl.FocusDuration, ctrl.FocusZoom)
	}

	lc := v.Layout()
	if lc.FitPadding != 80 {
		t.Errorf("FitPadding = %v, want 80", lc.FitPadding)
	}
	if lc.Cooldown != 1200*time.Millisecond {
		t.Errorf("Cooldown = %s, want 1.2s", lc.Cooldown)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Providers.NetworkURL = "http://localhost:8000/api/network"
	cfg.Overlay.Warning = 70
	cfg.View.FocusDuration = Duration(time.Second)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if loaded.Providers.NetworkURL != cfg.Providers.NetworkURL {
		t.Errorf("NetworkURL = %s, want %s", loaded.Providers.NetworkURL, cfg.Providers.NetworkURL)
	}
	if loaded.Overlay.Warning != 70 {
		t.Errorf("Overlay.Warning = %v, want 70", loaded.Overlay.Warning)
	}
	if loaded.View.FocusDuration.Duration() != time.Second {
		t.Errorf("FocusDuration = %s, want 1s", loaded.View.FocusDuration.Duration())
	}
	if loaded.Overlay.Palette != cfg.Overlay.Palette {
		t.Errorf("Palette = %+v, want %+v", loaded.Overlay.Palette, cfg.Overlay.Palette)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "opsmap.yaml")
	data := "server:\n  addr: \":9090\"\noverlay:\n  palette:\n    critical: \"#b91c1c\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Overlay.Palette.Critical != "#b91c1c" {
		t.Errorf("Palette.Critical = %s, want #b91c1c", cfg.Overlay.Palette.Critical)
	}
	if cfg.Overlay.Palette.Warning != "#f59e0b" {
		t.Errorf("Palette.Warning = %s, want default #f59e0b", cfg.Overlay.Palette.Warning)
	}
	if cfg.View.RefitDelay.Duration() != 300*time.Millisecond {
		t.Errorf("RefitDelay = %s, want 300ms", cfg.View.RefitDelay.Duration())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "server: [\n"},
		{"bad duration", "view:\n  cooldown: soon\n"},
		{"inverted thresholds", "overlay:\n  warning: 120\n  critical: 100\n"},
		{"both network sources", "providers:\n  network_url: http://x\n  network_file: net.json\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "opsmap.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := LoadFromPath(path); err == nil {
				t.Error("LoadFromPath() should fail")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAddr, ":8181")
	t.Setenv(EnvOptimizerURL, "http://solver:5000")
	t.Setenv(EnvDatabase, "/tmp/runs.db")
	t.Setenv(EnvAutoRecalc, "true")

	path := filepath.Join(t.TempDir(), "opsmap.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Server.Addr != ":8181" {
		t.Errorf("Server.Addr = %s, want env value :8181", cfg.Server.Addr)
	}
	if cfg.Providers.OptimizerURL != "http://solver:5000" {
		t.Errorf("OptimizerURL = %s", cfg.Providers.OptimizerURL)
	}
	if cfg.Database.Path != "/tmp/runs.db" {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if !cfg.Settings.AutoRecompute {
		t.Error("AutoRecompute should be enabled from env")
	}
	if !strings.Contains(cfg.Summary(), "http://solver:5000") {
		t.Errorf("Summary() = %q, should mention the optimizer", cfg.Summary())
	}
}

func TestFindConfigPath(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", tmpDir)

	explicit := filepath.Join(tmpDir, "explicit.yaml")
	if err := DefaultConfig().Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	home := filepath.Join(tmpDir, ".config", ConfigDirName, "config.yaml")
	if err := DefaultConfig().Save(home); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Chdir(t.TempDir())

	if found := FindConfigPath(); found != home {
		t.Errorf("FindConfigPath() = %s, want %s", found, home)
	}

	t.Setenv(EnvConfigPath, explicit)
	if found := FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want explicit %s", found, explicit)
	}

	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	if found := FindConfigPath(); found != home {
		t.Errorf("FindConfigPath() should fall back when env path doesn't exist, got %s", found)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
