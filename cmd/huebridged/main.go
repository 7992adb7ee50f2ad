// Command huebridged runs an emulated Philips Hue Bridge v2 in front of
// an external home-automation backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridged/internal/app"
	"github.com/dokzlo13/huebridged/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "huebridged:", err)
		os.Exit(2)
	}

	setupLogging(cfg.Verbose, cfg.LogJSON)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble bridge")
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start bridge")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	application.Stop(stopCtx)
}

func setupLogging(verbose, useJSON bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if useJSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
