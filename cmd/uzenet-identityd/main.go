// Command uzenet-identityd serves the stateless identity lookup oracle
// described in spec.md §4.2: a hot-reloadable CSV user table behind a Unix
// domain socket, one query per connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"uzenet/internal/config"
	"uzenet/internal/identity"
	"uzenet/internal/logging"
)

// Config is uzenet-identityd's on-disk JSON configuration.
type Config struct {
	SocketPath   string         `json:"socket_path"`
	UsersCSVPath string         `json:"users_csv_path"`
	ReloadPeriod string         `json:"reload_period"`
	Log          logging.Config `json:"log"`
}

func defaultConfig() Config {
	return Config{
		SocketPath:   "/var/run/uzenet/identity.sock",
		UsersCSVPath: "/etc/uzenet/users.csv",
		ReloadPeriod: "5s",
		Log:          logging.Config{Level: "info"},
	}
}

func main() {
	cfgPath := flag.String("config", "/etc/uzenet/identityd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_IDENTITYD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-identityd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("identityd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-identityd: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reloadPeriod, err := time.ParseDuration(cfg.ReloadPeriod)
	if err != nil {
		reloadPeriod = 5 * time.Second
	}

	table, err := identity.NewTable(cfg.UsersCSVPath)
	if err != nil {
		log.Fatal("load user table", zap.Error(err))
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

	log.Info("identity daemon listening", zap.String("socket", cfg.SocketPath))
	daemon := identity.NewDaemon(table, log, reloadPeriod)
	if err := daemon.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
