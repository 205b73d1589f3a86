// Command uzenet-roomd is the room server: it accepts client connections,
// scans its own in-process user table for the 8-byte login key (spec.md
// §4.3.1), and runs the Player/Room/Match command interpreter described in
// spec.md §4.3. Grounded on rustyguts-bken/server/main.go's flag-parsing,
// store-opening, and graceful-shutdown shape, and cli.go's subcommand
// dispatch pattern.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"uzenet/internal/config"
	"uzenet/internal/identity"
	"uzenet/internal/logging"
	"uzenet/internal/room"
	"uzenet/internal/store"
)

// Config is uzenet-roomd's on-disk JSON configuration.
type Config struct {
	ListenAddr   string            `json:"listen_addr"`
	TelnetAddr   string            `json:"telnet_addr"`
	UsersCSVPath string            `json:"users_csv_path"`
	DBPath       string            `json:"db_path"`
	Services     map[string]string `json:"services"`
	TLSCert      string            `json:"tls_cert"`
	TLSKey       string            `json:"tls_key"`
	Log          logging.Config    `json:"log"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:   ":5700",
		TelnetAddr:   ":23",
		UsersCSVPath: "/etc/uzenet/users.csv",
		DBPath:       "uzenet-room.db",
		Services: map[string]string{
			"vfs":     "/var/run/uzenet/vfs.sock",
			"lichess": "/var/run/uzenet/lichess.sock",
			"radio":   "/var/run/uzenet/radio.sock",
			"zip":     "/var/run/uzenet/zip.sock",
			"ssh":     "/var/run/uzenet/ssh.sock",
			"fujinet": "/var/run/uzenet/fujinet.sock",
		},
		Log: logging.Config{Level: "info"},
	}
}

func main() {
	if len(os.Args) > 1 {
		if runCLI(os.Args[1:]) {
			return
		}
	}

	cfgPath := flag.String("config", "/etc/uzenet/roomd.json", "path to JSON config file")
	flag.Parse()

	cfg := defaultConfig()
	resolved, err := config.Load("UZENET_ROOMD_CONFIG", *cfgPath, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-roomd: config %s: %v\n", resolved, err)
		os.Exit(1)
	}

	log, err := logging.New("roomd", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uzenet-roomd: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	reg := room.NewRegistry(st, log)
	users, err := identity.NewTable(cfg.UsersCSVPath)
	if err != nil {
		log.Fatal("load user table", zap.Error(err))
	}

	var tlsConfig *tls.Config
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			log.Fatal("load tls cert", zap.Error(err))
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	srv := room.NewServer(reg, log, users, cfg.Services, tlsConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("listen", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}
	log.Info("room server listening", zap.String("addr", cfg.ListenAddr))

	if cfg.TelnetAddr != "" {
		telnetLn, err := net.Listen("tcp", cfg.TelnetAddr)
		if err != nil {
			log.Warn("telnet listen failed, continuing without it", zap.Error(err))
		} else {
			log.Info("telnet diagnostic port listening", zap.String("addr", cfg.TelnetAddr))
			go srv.ServeTelnet(ctx, telnetLn)
		}
	}

	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
