package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkade-os/swapd/internal/config"
	httpservice "github.com/arkade-os/swapd/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

const timeout = 15 * time.Second

func mainAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	svcConfig := httpservice.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerMinute:  cfg.RatePerMinute,
		RequestTimeout: cfg.RequestTimeout,
		EnablePprof:    cfg.EnablePprof,
	}

	svc, err := httpservice.NewService(Version, svcConfig, cfg)
	if err != nil {
		return err
	}

	log.Infof("swapd config: %s", cfg)

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "swapd"
	app.Usage = "run or manage the swap settlement ledger"
	app.UsageText = "Run the swapd daemon with its flags, or use one of its commands to call a running daemon"
	app.Commands = append(app.Commands,
		keygenCmd,
		infoCmd,
		adminCmd,
		feesCmd,
		requestsCmd,
		destinationsCmd,
		memosCmd,
		tokensCmd,
	)
	app.Flags = config.Flags
	app.Action = mainAction

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
