// Command overlayd is the overlay daemon. It owns the persisted state and
// the single-holder coordinator, and serves control clients and page hosts
// on a unix socket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/config"
	"github.com/gogpu/overlay/effect"
	"github.com/gogpu/overlay/internal/cli"
	"github.com/gogpu/overlay/rpc"
	"github.com/gogpu/overlay/store"
)

func main() {
	var (
		configPath = cli.ConfigFlag(flag.CommandLine)
		socket     = flag.String("socket", "", "listen socket (overrides config)")
		memory     = flag.Bool("memory", false, "keep state in memory only")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if *memory {
		cfg.Store.Driver = store.DriverMemory
	}
	if err := cli.SetupLogging(cfg.Log); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	l, err := listen(cfg.Socket)
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Socket)

	srv := rpc.NewServer(st, effect.Default())
	overlay.Logger().Info("overlayd: serving", "socket", cfg.Socket, "store", cfg.Store.Driver,
		"enabled", srv.Coordinator().GetState(ctx).Enabled)
	return srv.Serve(ctx, l)
}

// listen binds the unix socket, replacing a stale socket file left by a
// previous run. A live daemon on the same path is an error.
func listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if c, err := net.Dial("unix", path); err == nil {
		c.Close()
		return nil, fmt.Errorf("overlayd: already running on %s", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}
