package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/gnos"
)

func main() {
	// start mock modeler (see mock_modeler.go)
	go StartMockModeler(":9999")
	time.Sleep(100 * time.Millisecond)

	var modelers []gnos.Modeler
	for _, site := range []string{"north", "south"} {
		m, err := gnos.NewModeler("mock "+site, "http://localhost:9999/report?site="+site,
			gnos.WithHeaders("X-Site", site),
		)
		if err != nil {
			slog.Error("failed to create modeler", "error", err)
			os.Exit(1)
		}
		modelers = append(modelers, m)
	}

	g, err := gnos.New(
		gnos.WithTitle("gnos demo"),
		gnos.WithModelers(modelers...),
		gnos.WithPollingInterval(5*time.Second),
		gnos.WithRefreshInterval(10*time.Second),
		gnos.WithPort(8080),
		gnos.WithPollCallback(func(r gnos.PollResult) {
			if !r.OK() {
				slog.Warn("poll failed", "modeler", r.Modeler, "error", r.Err)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create gnos", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  gnos demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Modelers: 2 mock sites, 2 devices each, alerts flip every 20-60s")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := g.Start(ctx); err != nil {
		slog.Error("gnos error", "error", err)
		os.Exit(1)
	}
}
