package main

import (
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"opsmap/internal/config"
	"opsmap/internal/provider"
)

var version = "0.3.0"

// Terminal colors
var (
	brand  = color.New(color.FgHiCyan, color.Bold)
	subtle = color.New(color.FgHiBlack)
	good   = color.New(color.FgGreen)
	warn   = color.New(color.FgYellow)
	bad    = color.New(color.FgRed, color.Bold)
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "opsmap",
	Short:         "Operations map for flow networks",
	Long:          brand.Sprint("opsmap") + " shows a network as a force-directed map with link utilization overlaid",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.SetVersionTemplate("opsmap {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search standard locations)")

	rootCmd.AddCommand(
		serveCmd(),
		renderCmd(),
		summaryCmd(),
		exportCmd(),
		configCmd(),
	)
}

// loadConfig loads the config from --config or the search path
func loadConfig() (*config.Config, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Printf("Using config %s", path)
	}
	return cfg, nil
}

// buildProviders returns the network provider and optimizer for cfg.
// The optimizer is nil when no optimizer URL can be derived.
func buildProviders(cfg *config.Config) (provider.NetworkProvider, provider.Optimizer, error) {
	p := cfg.Providers
	timeout := p.Timeout.Duration()

	switch {
	case p.NetworkFile != "":
		fp, err := provider.NewFileProvider(p.NetworkFile)
		if err != nil {
			return nil, nil, err
		}
		fp.WithDebounce(p.WatchDebounce.Duration())
		if p.OptimizerURL == "" {
			return fp, nil, nil
		}
		return fp, provider.NewClient(p.OptimizerURL, p.OptimizerURL, timeout), nil
	case p.NetworkURL != "":
		c := provider.NewClient(p.NetworkURL, p.OptimizerURL, timeout)
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("no network provider: set providers.network_url or providers.network_file")
	}
}

// fetchTimeout bounds one-shot CLI fetches
func fetchTimeout(cfg *config.Config) time.Duration {
	return cfg.Providers.Timeout.Duration() + 5*time.Second
}
