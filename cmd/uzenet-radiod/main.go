// Command uzenet-radiod relays decoded station audio to a room tunnel
// client, as described in spec.md §4.6/§5.6. Real station decoding (an
// FFmpeg subprocess) is out of scope; this binary runs the SineDecoder
// test double so the tunnel contract can be exercised end to end.
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
	"uzenet/internal/radio"
)

// Config is uzenet-radiod's on-disk JSON configuration.
type Config struct {
	SocketPath string         `json:"socket_path"`
	Log        logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath: "/var/run/uzenet/radio.sock",
		Log:        logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/radiod.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_RADIOD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-radiod: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("radiod", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-radiod: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

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

	srv := radio.NewServer(radio.SineDecoder{}, log)
	log.Info("radio service listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
