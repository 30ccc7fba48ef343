// Command overlayctl controls a running overlayd.
//
// Usage:
//
//	overlayctl [-config path] [-socket path] <command> [args]
//
// Commands:
//
//	status         print the current state
//	on, off        enable or disable the overlay
//	toggle         flip the enabled flag
//	effect <id>    select an effect
//	effects        list available effects
//	source <id>    print an effect's WGSL source
//	watch          print every state change
//	panel          interactive control panel
//
// With no command, overlayctl opens the panel when stdout is a terminal and
// prints the status otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/gdamore/tcell/v2"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/config"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/internal/cli"
	"github.com/gogpu/overlay/internal/panel"
	"github.com/gogpu/overlay/rpc"
)

const requestTimeout = 5 * time.Second

var errUsage = errors.New("usage: overlayctl [status|on|off|toggle|effect <id>|effects|source <id>|watch|panel]")

func main() {
	var (
		configPath = cli.ConfigFlag(flag.CommandLine)
		socket     = flag.String("socket", "", "daemon socket (overrides config)")
	)
	flag.Parse()
	log.SetFlags(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *socket != "" {
		cfg.Socket = *socket
	}

	args := flag.Args()
	if len(args) == 0 {
		if cli.IsTerminal(os.Stdout) {
			args = []string{"panel"}
		} else {
			args = []string{"status"}
		}
	}

	// source needs no daemon.
	if args[0] == "source" {
		if len(args) != 2 {
			log.Fatal(errUsage)
		}
		if err := printSource(os.Stdout, args[1], cli.Color(os.Stdout)); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := rpc.Dial(ctx, "unix", cfg.Socket)
	if err != nil {
		log.Fatalf("overlayctl: cannot reach overlayd at %s: %v", cfg.Socket, err)
	}
	defer c.Close()

	if err := run(ctx, c, args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *rpc.Client, args []string) error {
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		st  overlay.State
		err error
	)
	switch args[0] {
	case "status":
		st, err = c.GetState(rctx)
	case "on":
		st, err = c.SetState(rctx, true)
	case "off":
		st, err = c.SetState(rctx, false)
	case "toggle":
		st, err = c.Toggle(rctx)
	case "effect":
		if len(args) != 2 {
			return errUsage
		}
		st, err = c.ChangeShader(rctx, args[1])
	case "effects":
		return listEffects(rctx, c, os.Stdout)
	case "watch":
		return watch(ctx, c, os.Stdout)
	case "panel":
		return runPanel(ctx, c)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	printState(os.Stdout, st)
	return nil
}

func printState(w io.Writer, st overlay.State) {
	enabled := "off"
	if st.Enabled {
		enabled = "on"
	}
	fmt.Fprintf(w, "%s\t%s\n", enabled, st.EffectID)
}

func listEffects(ctx context.Context, c *rpc.Client, w io.Writer) error {
	infos, err := c.Effects(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%-10s %s\n", info.ID, info.Name)
	}
	return nil
}

func watch(ctx context.Context, c *rpc.Client, w io.Writer) error {
	ch, err := c.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return errors.New("overlayctl: daemon went away")
			}
			printState(w, st)
		case <-ctx.Done():
			return nil
		}
	}
}

func runPanel(ctx context.Context, c *rpc.Client) error {
	st, err := c.GetState(ctx)
	if err != nil {
		return err
	}
	infos, err := c.Effects(ctx)
	if err != nil {
		return err
	}
	updates, err := c.Watch(ctx)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()

	err = panel.New(screen, c, infos, st).Run(ctx, updates)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// wgslFallback is used when chroma has no WGSL lexer; its syntax is close
// enough for attributes, keywords and comments.
const wgslFallback = "rust"

func printSource(w io.Writer, id string, color bool) error {
	e, ok := effect.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", overlay.ErrUnknownEffect, id)
	}
	src := e.Fragment
	if !color {
		_, err := io.WriteString(w, src)
		return err
	}
	lexer := "wgsl"
	if lexers.Get(lexer) == nil {
		lexer = wgslFallback
	}
	return quick.Highlight(w, src, lexer, "terminal256", "monokai")
}
