package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"opsmap/internal/codec"
	"opsmap/internal/repository/sqlite"
	"opsmap/internal/service"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the network or the optimization results",
	}
	cmd.AddCommand(exportNetworkCmd(), exportResultsCmd())
	return cmd
}

func exportNetworkCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Export the network as json, yaml or xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := codec.ForFormat(format)
			if err != nil {
				return err
			}
			network, _, err := buildProviders(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout(cfg))
			defer cancel()
			n, err := network.FetchNetwork(ctx)
			if err != nil {
				return err
			}

			if out == "" {
				out = "network." + c.Format()
			}
			var buf bytes.Buffer
			if err := c.Export(n, &buf); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s (%d nodes, %d edges)\n", good.Sprint("✓"), out, len(n.Nodes), len(n.Edges))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, yaml or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default network.<format>)")
	return cmd
}

func exportResultsCmd() *cobra.Command {
	var out, dbPath string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Export both solutions as CSV",
		Long: "Runs the optimizer with the default request and writes both solutions as CSV.\n" +
			"When the providers are unreachable the latest recorded run is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			network, optimizer, err := buildProviders(cfg)
			if err != nil {
				return err
			}
			repo, err := sqlite.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer repo.Close()

			ops := service.NewOperationsService(network, optimizer, repo, nil)
			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout(cfg))
			defer cancel()
			if optimizer != nil {
				if err := ops.Load(ctx); err != nil {
					log.Printf("Live results unavailable, using latest recorded run: %v", err)
				}
			}

			var buf bytes.Buffer
			name, err := ops.ExportResults(ctx, &buf)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s\n", good.Sprint("✓"), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default simulation_results_<timestamp>.csv)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	return cmd
}
