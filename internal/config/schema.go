package config

import (
	"time"

	"opsmap/internal/layout"
	"opsmap/internal/overlay"
	"opsmap/internal/view"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Database  DatabaseConfig  `yaml:"database"`
	View      ViewConfig      `yaml:"view"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Settings  SettingsConfig  `yaml:"settings"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"cors_origins,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig locates the network data and optimization providers.
// The network comes from NetworkURL or from NetworkFile, never both.
type ProvidersConfig struct {
	NetworkURL    string   `yaml:"network_url,omitempty"`
	OptimizerURL  string   `yaml:"optimizer_url,omitempty"`
	NetworkFile   string   `yaml:"network_file,omitempty"`
	Timeout       Duration `yaml:"timeout"`
	WatchDebounce Duration `yaml:"watch_debounce"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ViewConfig holds layout and camera timings
type ViewConfig struct {
	Width         int      `yaml:"width"`  // CLI render size
	Height        int      `yaml:"height"` // CLI render size
	WarmupTicks   int      `yaml:"warmup_ticks"`
	Cooldown      Duration `yaml:"cooldown"`
	TickInterval  Duration `yaml:"tick_interval"`
	FitDuration   Duration `yaml:"fit_duration"`
	RefitDelay    Duration `yaml:"refit_delay"`
	FocusDuration Duration `yaml:"focus_duration"`
	FocusZoom     float64  `yaml:"focus_zoom"`
	FitPadding    float64  `yaml:"fit_padding"`
}

// DefaultViewConfig returns the operations map timings
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Width:         1200,
		Height:        800,
		WarmupTicks:   50,
		Cooldown:      Duration(1200 * time.Millisecond),
		TickInterval:  Duration(16 * time.Millisecond),
		FitDuration:   Duration(700 * time.Millisecond),
		RefitDelay:    Duration(300 * time.Millisecond),
		FocusDuration: Duration(650 * time.Millisecond),
		FocusZoom:     3,
		FitPadding:    80,
	}
}

func (v *ViewConfig) applyDefaults(d ViewConfig) {
	if v.Width <= 0 {
		v.Width = d.Width
	}
	if v.Height <= 0 {
		v.Height = d.Height
	}
	if v.WarmupTicks <= 0 {
		v.WarmupTicks = d.WarmupTicks
	}
	if v.Cooldown <= 0 {
		v.Cooldown = d.Cooldown
	}
	if v.TickInterval <= 0 {
		v.TickInterval = d.TickInterval
	}
	if v.FitDuration <= 0 {
		v.FitDuration = d.FitDuration
	}
	if v.RefitDelay <= 0 {
		v.RefitDelay = d.RefitDelay
	}
	if v.FocusDuration <= 0 {
		v.FocusDuration = d.FocusDuration
	}
	if v.FocusZoom == 0 {
		v.FocusZoom = d.FocusZoom
	}
	if v.FitPadding <= 0 {
		v.FitPadding = d.FitPadding
	}
}

// Controller returns the per-view controller settings
func (v ViewConfig) Controller() view.Config {
	return view.Config{
		WarmupTicks: v.WarmupTicks,
		Stabilizer: view.StabilizerConfig{
			FitDuration: v.FitDuration.Duration(),
			RefitDelay:  v.RefitDelay.Duration(),
		},
		FocusDuration: v.FocusDuration.Duration(),
		FocusZoom:     v.FocusZoom,
	}
}

// Layout returns the force simulation settings
func (v ViewConfig) Layout() layout.Config {
	cfg := layout.DefaultConfig()
	cfg.Cooldown = v.Cooldown.Duration()
	cfg.TickInterval = v.TickInterval.Duration()
	cfg.FitPadding = v.FitPadding
	return cfg
}

// OverlayConfig holds utilization thresholds and colors
type OverlayConfig struct {
	Warning  float64         `yaml:"warning"`
	Critical float64         `yaml:"critical"`
	Palette  overlay.Palette `yaml:"palette"`
}

// DefaultOverlayConfig returns thresholds 80/100 with the default palette
func DefaultOverlayConfig() OverlayConfig {
	t := overlay.DefaultThresholds()
	return OverlayConfig{
		Warning:  t.Warning,
		Critical: t.Critical,
		Palette:  overlay.DefaultPalette(),
	}
}

func (o *OverlayConfig) applyDefaults(d OverlayConfig) {
	if o.Warning <= 0 {
		o.Warning = d.Warning
	}
	if o.Critical <= 0 {
		o.Critical = d.Critical
	}
	if o.Palette.Neutral == "" {
		o.Palette.Neutral = d.Palette.Neutral
	}
	if o.Palette.Nominal == "" {
		o.Palette.Nominal = d.Palette.Nominal
	}
	if o.Palette.Warning == "" {
		o.Palette.Warning = d.Palette.Warning
	}
	if o.Palette.Critical == "" {
		o.Palette.Critical = d.Palette.Critical
	}
}

// Options returns the overlay options for these settings
func (o OverlayConfig) Options() []overlay.Option {
	return []overlay.Option{
		overlay.WithThresholds(overlay.Thresholds{Warning: o.Warning, Critical: o.Critical}),
		overlay.WithPalette(o.Palette),
	}
}

// SettingsConfig holds the optimization settings behavior
type SettingsConfig struct {
	Debounce      Duration `yaml:"debounce"`
	AutoRecompute bool     `yaml:"auto_recompute"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
