// Command uzenet-vfsd serves the sandboxed per-user virtual filesystem
// described in spec.md §4.4, reached by the room server over a Unix
// domain socket tunnel.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"uzenet/internal/config"
	"uzenet/internal/logging"
	"uzenet/internal/vfs"
)

// Config is uzenet-vfsd's on-disk JSON configuration.
type Config struct {
	SocketPath string         `json:"socket_path"`
	RootDir    string         `json:"root_dir"`
	Log        logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath: "/var/run/uzenet/vfs.sock",
		RootDir:    "/var/lib/uzenet/vfs",
		Log:        logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/vfsd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_VFSD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-vfsd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("vfsd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-vfsd: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		log.Fatal("create root dir", zap.Error(err))
	}

	os.Remove(cfg.SocketPath)
	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		log.Fatal("listen", zap.String("socket", cfg.SocketPath), zap.Error(err))
	}
	defer os.Remove(cfg.SocketPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	srv := vfs.NewServer(cfg.RootDir, log)
	log.Info("vfs service listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
