package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"opsmap/internal/domain"
	"opsmap/internal/overlay"
)

func summaryCmd() *cobra.Command {
	var (
		mode  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the topology and prediction summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := domain.ParseMode(mode)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout(cfg))
			defer cancel()
			network, sol, err := fetchForMode(ctx, cfg, m)
			if err != nil {
				return err
			}

			printTopology(network.Summary())
			ov := overlay.New(sol, cfg.Overlay.Options()...)
			sum, ok := ov.Describe()
			if !ok {
				fmt.Println(subtle.Sprint("  no optimization results"))
				return nil
			}
			printPrediction(m, sum)
			printLinks(ov.Ranked(), limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeDelay), "Solution to summarize: delay or congestion")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Links to list, busiest first (0 for all)")
	return cmd
}

func printTopology(s domain.TopologySummary) {
	fmt.Println(brand.Sprint("Topology"))
	fmt.Printf("  %-12s %d\n", "lines", s.TotalLines)
	fmt.Printf("  %-12s %d\n", "nodes", s.TotalNodes)
	fmt.Printf("  %-12s %d\n", "sources", s.Sources)
	fmt.Printf("  %-12s %d\n", "sinks", s.Sinks)
	fmt.Printf("  %-12s %.1f\n\n", "peak load", s.PeakLoad)
}

func printPrediction(mode domain.Mode, s overlay.SolutionSummary) {
	fmt.Println(brand.Sprintf("Prediction (%s optimal)", mode))
	fmt.Printf("  %-16s %s\n", "max utilization", levelColor(s.MaxLevel).Sprintf("%.1f%%", s.MaxUtilization))
	fmt.Printf("  %-16s %.2f\n", "total flow", s.TotalFlow)
	fmt.Printf("  %-16s %.2f\n", "total delay", s.TotalDelay)
	fmt.Printf("  %-16s %.2f\n", "total congestion", s.TotalCongestion)
	fmt.Printf("  %-16s x%.2f\n", "capacity scale", s.CapacityScale)
	fmt.Printf("  %-16s %.4f\n\n", "objective", s.Objective)
}

func printLinks(rows []overlay.EdgeRow, limit int) {
	if len(rows) == 0 {
		return
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	width := len("link")
	for _, r := range rows {
		if n := len(r.Source) + len(r.Target) + 4; n > width {
			width = n
		}
	}

	fmt.Println(brand.Sprint("Links"))
	subtle.Printf("  %-*s  %10s  %10s  %8s\n", width, "link", "flow", "capacity", "util")
	subtle.Printf("  %s\n", strings.Repeat("─", width+34))
	for _, r := range rows {
		link := r.Source + " -> " + r.Target
		util := levelColor(r.Level).Sprintf("%7.1f%%", r.Utilization)
		fmt.Printf("  %-*s  %10.1f  %10.1f  %s\n", width, link, r.Flow, r.Capacity, util)
	}
}

func levelColor(l overlay.Level) *color.Color {
	switch l {
	case overlay.LevelCritical:
		return bad
	case overlay.LevelWarning:
		return warn
	case overlay.LevelNominal:
		return good
	default:
		return subtle
	}
}
