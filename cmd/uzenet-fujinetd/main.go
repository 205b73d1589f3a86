// Command uzenet-fujinetd is the virtual network-peripheral emulator
// tunnel stand-in described in spec.md §4.6/§5.6: the login/echo contract
// plus one DEVICE_STATUS opcode. Real SIO/peripheral emulation is out of
// scope.
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
	"uzenet/internal/fujinet"
	"uzenet/internal/logging"
)

// Config is uzenet-fujinetd's on-disk JSON configuration.
type Config struct {
	SocketPath string         `json:"socket_path"`
	Log        logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath: "/var/run/uzenet/fujinet.sock",
		Log:        logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/fujinetd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_FUJINETD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-fujinetd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("fujinetd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-fujinetd: logging: %v\n", err)
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

	srv := fujinet.NewServer(log)
	log.Info("fujinet service listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
