// Command overlaypage hosts one overlay page. It registers with overlayd,
// renders the overlay into an offscreen canvas while it holds the surface,
// and reports itself visible on start and on SIGUSR1.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/wgpu/hal/noop"
	"github.com/google/uuid"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/config"
	"github.com/gogpu/overlay/internal/cli"
	"github.com/gogpu/overlay/page"
	"github.com/gogpu/overlay/rpc"
	"github.com/gogpu/overlay/surface"
)

func main() {
	var (
		configPath = cli.ConfigFlag(flag.CommandLine)
		socket     = flag.String("socket", "", "daemon socket (overrides config)")
		id         = flag.String("id", "", "page id (default: random uuid)")
		width      = flag.Uint("width", surface.DefaultWidth, "canvas width")
		height     = flag.Uint("height", surface.DefaultHeight, "canvas height")
		hidden     = flag.Bool("hidden", false, "do not report visible on start")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if err := cli.SetupLogging(cfg.Log); err != nil {
		log.Fatal(err)
	}
	if *id == "" {
		*id = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := surface.NewManager(
		surface.WithBackend(backend(cfg.Render.Backend)),
		surface.WithScheduler(surface.NewTickerScheduler(cfg.Render.Refresh)),
		surface.WithMaxFPS(cfg.Render.MaxFPS),
		surface.WithResizeDebounce(cfg.Render.ResizeDebounce),
		surface.WithSize(uint32(*width), uint32(*height)),
	)
	p := page.New(*id, m)
	defer p.Close()

	if err := run(ctx, cfg.Socket, p, !*hidden); err != nil {
		log.Fatal(err)
	}
	st := m.Stats()
	overlay.Logger().Info("overlaypage: exiting", "page", *id, "frames", st.Frames, "dropped", st.Dropped)
}

func backend(name string) surface.Backend {
	if name == config.BackendNoop {
		return &noop.API{}
	}
	return surface.DefaultBackend()
}

func run(ctx context.Context, socket string, p *page.Page, visible bool) error {
	c, err := rpc.Dial(ctx, "unix", socket)
	if err != nil {
		return err
	}
	defer c.Close()

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	st, err := c.Register(rctx, p)
	cancel()
	if err != nil {
		return err
	}
	overlay.Logger().Info("overlaypage: registered", "page", p.ID(), "enabled", st.Enabled, "effect", st.EffectID)

	focus := make(chan os.Signal, 1)
	signal.Notify(focus, syscall.SIGUSR1)
	defer signal.Stop(focus)
	if visible {
		focus <- syscall.SIGUSR1
	}

	for {
		select {
		case <-focus:
			if err := c.Visible(ctx); err != nil {
				return err
			}
		case <-c.Done():
			overlay.Logger().Warn("overlaypage: daemon connection lost", "page", p.ID())
			return nil
		case <-ctx.Done():
			cctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return c.Closed(cctx)
		}
	}
}
