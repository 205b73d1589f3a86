// Command uzenet-zipd lists and streams entries from sandboxed ZIP
// archives over a room tunnel, as described in spec.md §4.6/§5.6.
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
	"uzenet/internal/zipstream"
)

// Config is uzenet-zipd's on-disk JSON configuration.
type Config struct {
	SocketPath string         `json:"socket_path"`
	RootDir    string         `json:"root_dir"`
	Log        logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath: "/var/run/uzenet/zip.sock",
		RootDir:    "/var/lib/uzenet/archives",
		Log:        logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/zipd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_ZIPD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-zipd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("zipd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-zipd: logging: %v\n", err)
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

	srv := zipstream.NewServer(cfg.RootDir, log)
	log.Info("zip service listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
