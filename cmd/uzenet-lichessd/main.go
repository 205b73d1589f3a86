// Command uzenet-lichessd bridges a room tunnel client to a Lichess open
// challenge game, as described in spec.md §4.5.
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
	"uzenet/internal/lichess"
	"uzenet/internal/logging"
)

// Config is uzenet-lichessd's on-disk JSON configuration.
type Config struct {
	SocketPath   string         `json:"socket_path"`
	LichessBase  string         `json:"lichess_base_url"`
	LichessToken string         `json:"lichess_token"`
	Mock         bool           `json:"mock"`
	Log          logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath:  "/var/run/uzenet/lichess.sock",
		LichessBase: "https://lichess.org",
		Log:         logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/lichessd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_LICHESSD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-lichessd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("lichessd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-lichessd: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var client lichess.ChallengeClient
	if cfg.Mock {
		client = lichess.NewMockChallenge()
		log.Warn("running with the mock Lichess challenge client, no real games will be played")
	} else {
		client = lichess.NewStdHTTP(cfg.LichessBase, cfg.LichessToken)
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

	srv := lichess.NewServer(client, log)
	log.Info("lichess service listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
