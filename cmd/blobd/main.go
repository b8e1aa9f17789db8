// Command blobd serves an in-memory emulation of a cloud blob storage service over HTTP.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mockcloud/blobmock/config"
	"github.com/mockcloud/blobmock/objstore/objmem"
	"github.com/mockcloud/blobmock/rest"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file, defaults apply when omitted")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)

	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath); err != nil {
		slog.Error("Failed to run blobd", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.DefaultConfig()

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	var store objmem.Store = objmem.NewBackend(objmem.Options{
		DisableContainerAutoCreate: cfg.DisableContainerAutoCreate,
		SpoolThreshold:             cfg.SpoolThreshold,
	})

	if limiter := cfg.Upload.Limiter(); limiter != nil {
		store = objmem.NewRateLimitedStore(store, limiter)
	}

	responder := rest.NewResponder(rest.ResponderOptions{
		Store:           store,
		ServiceDomain:   cfg.ServiceDomain,
		DownloadLimiter: cfg.Download.Limiter(),
	})

	// Validated on load, parsing can not fail here
	ipv4, _ := config.ParseListenerMode(cfg.IPv4)
	ipv6, _ := config.ParseListenerMode(cfg.IPv6)

	server := rest.NewServer(rest.ServerOptions{
		Handler:   responder,
		Port:      cfg.Port,
		IPv4Mode:  ipv4,
		IPv6Mode:  ipv6,
		LocalOnly: cfg.LocalOnly,
		LogPrefix: "(blobd)",
	})

	if err := server.Start(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	sig := <-signals

	slog.Info("Received signal, shutting down", "signal", sig)

	return server.Close()
}
