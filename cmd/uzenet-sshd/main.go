// Command uzenet-sshd bridges a room tunnel client to a terminal session,
// as described in spec.md §4.6/§5.6. The production bridge targets an SSH
// server running Lynx; that subprocess lifetime is out of scope, so this
// binary runs a local shell stand-in instead.
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
	"uzenet/internal/sshbridge"
)

// Config is uzenet-sshd's on-disk JSON configuration.
type Config struct {
	SocketPath string         `json:"socket_path"`
	ShellPath  string         `json:"shell_path"`
	Log        logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath: "/var/run/uzenet/ssh.sock",
		Log:        logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/sshd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_SSHD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-sshd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("sshd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-sshd: logging: %v\n", err)
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

	srv := sshbridge.NewServer(cfg.ShellPath, log)
	log.Info("ssh bridge listening", zap.String("socket", cfg.SocketPath))
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
