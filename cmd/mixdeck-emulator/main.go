// Command mixdeck-emulator runs the deck layout in a window that mimics a
// Stream Deck Plus, for working on tiles without hardware.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phinze/mixdeck/internal/app"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/coordinator"
	"github.com/phinze/mixdeck/internal/device/emulator"
	"github.com/phinze/mixdeck/internal/logger"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default is $XDG_CONFIG_HOME/mixdeck/config.yaml)")
	level := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.LoadFile(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Init("info", true)
		logger.Get().Warn().Err(err).Msg("config load failed, using defaults")
		cfg = config.Default()
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	logger.Init(cfg.Log.Level, true)
	log := logger.WithComponent("emulator")
	log.Info().Msg("close the window or press Ctrl+C to exit")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emu := emulator.New()
	if err := emu.Open(); err != nil {
		log.Fatal().Err(err).Msg("failed to open emulator")
	}

	a := app.New(cfg)
	defer a.Close()

	coord := coordinator.New(emu, a.Registry, cfg.Deck)
	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Start(ctx)
	}()
	go func() {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("coordinator stopped")
			}
		}
		emu.Close()
	}()

	// The window loop owns the main goroutine.
	if err := emu.RunGUI(); err != nil {
		log.Error().Err(err).Msg("emulator GUI error")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		coord.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn().Msg("teardown timed out")
	}
}
