package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"opsmap/internal/config"
	"opsmap/internal/domain"
	"opsmap/internal/layout"
	"opsmap/internal/overlay"
	"opsmap/internal/render"
	"opsmap/internal/view"
)

// maxRenderTicks bounds the simulation when the cooldown is long
const maxRenderTicks = 2000

func renderCmd() *cobra.Command {
	var (
		out    string
		width  int
		height int
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the operations map to a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := domain.ParseMode(mode)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = cfg.View.Width
			}
			if height <= 0 {
				height = cfg.View.Height
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout(cfg))
			defer cancel()
			network, sol, err := fetchForMode(ctx, cfg, m)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := renderNetwork(cfg, network, sol, width, height, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s (%dx%d, %d nodes, %d links)\n",
				good.Sprint("✓"), out, width, height, len(network.Nodes), len(network.Edges))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "opsmap.png", "Output file")
	cmd.Flags().IntVar(&width, "width", 0, "Image width (default from config)")
	cmd.Flags().IntVar(&height, "height", 0, "Image height (default from config)")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeDelay), "Solution to overlay: delay or congestion")
	return cmd
}

// fetchForMode loads the network and, when an optimizer is configured, the
// solution for mode. Without an optimizer the solution is nil.
func fetchForMode(ctx context.Context, cfg *config.Config, mode domain.Mode) (*domain.Network, *domain.Solution, error) {
	network, optimizer, err := buildProviders(cfg)
	if err != nil {
		return nil, nil, err
	}
	n, err := network.FetchNetwork(ctx)
	if err != nil {
		return nil, nil, err
	}
	if optimizer == nil {
		log.Println("No optimizer configured, links use the neutral color")
		return n, nil, nil
	}
	pareto, err := optimizer.Pareto(ctx, domain.DefaultOptimizeRequest())
	if err != nil {
		log.Printf("Optimizer unavailable, links use the neutral color: %v", err)
		return n, nil, nil
	}
	return n, pareto.Solution(mode), nil
}

// renderNetwork lays the network out to rest, fits it and writes one frame
func renderNetwork(cfg *config.Config, network *domain.Network, sol *domain.Solution, width, height int, w io.Writer) error {
	ov := overlay.New(sol, cfg.Overlay.Options()...)
	engine := layout.New(cfg.View.Layout())
	ctrl := view.NewController(engine, cfg.View.Controller(),
		view.WithNodeColor(render.TypeColor),
		view.WithLinkColor(ov.ColorFor),
	)
	defer ctrl.Close()

	ctrl.Resize(float64(width), float64(height))
	ctrl.SetGraph(domain.NormalizeNetwork(network))
	for i := 0; i < maxRenderTicks && engine.Tick(); i++ {
	}
	if err := engine.CenterAndFit(0); err != nil && len(network.Nodes) > 0 {
		log.Printf("Fit skipped: %v", err)
	}
	return ctrl.RenderPNG(w)
}
