package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ephesafe/ephesafed/internal/config"
	httpservice "github.com/ephesafe/ephesafed/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// overridden at build time
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "ephesafed",
		Usage:   "time-locked safe registry daemon",
		Version: version,
		Flags:   config.Flags,
		Action:  runDaemon,
		Commands: []*cli.Command{
			infoCmd,
			pauseCmd,
			unpauseCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDaemon(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}
	log.Debugf("config: %s", cfg)

	appSvc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create app service: %s", err)
	}

	svc, err := httpservice.NewService(
		httpservice.Config{Port: cfg.Port, WithFaucet: cfg.WithFaucet},
		appSvc, cfg.AdminService(), cfg.CustodyService(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %s", err)
	}

	log.Info("starting service...")
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}
	log.Infof("ephesafed listens on: %d", cfg.Port)

	log.RegisterExitHandler(func() {
		svc.Stop()
		appSvc.Stop()
		cfg.RepoManager().Close()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
