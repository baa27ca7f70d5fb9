// Command mixdeck is a Stream Deck plugin with volume, per-app volume and
// GIF tiles. Started by the Stream Deck application it speaks the plugin
// protocol; "mixdeck deck" drives an attached device on its own.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phinze/mixdeck/internal/app"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/plugin"
)

var (
	cfgFile  string
	logLevel string

	hostOpts plugin.Options
)

var rootCmd = &cobra.Command{
	Use:   "mixdeck",
	Short: "Volume, app volume and GIF tiles for Stream Deck",
	Long: `mixdeck is a Stream Deck plugin. The Stream Deck application starts it
with -port, -pluginUUID, -registerEvent and -info; it then serves every
mixdeck tile the user places.

Use "mixdeck deck" to run the same tiles on a directly attached device.`,
	SilenceUsage: true,
	RunE:         runPlugin,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mixdeck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.IntVar(&hostOpts.Port, "port", 0, "host WebSocket port")
	f.StringVar(&hostOpts.UUID, "pluginUUID", "", "plugin instance UUID")
	f.StringVar(&hostOpts.RegisterEvent, "registerEvent", "registerPlugin", "registration event name")
	f.StringVar(&hostOpts.Info, "info", "", "host and device description (JSON)")

	rootCmd.AddCommand(deckCmd, setupCmd, statusCmd)
}

func main() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// normalizeArgs rewrites the host's single-dash long flags (-port 1234) to
// the double-dash form cobra parses.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) > 2 && a[0] == '-' && a[1] != '-' {
			a = "-" + a
		}
		out[i] = a
	}
	return out
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// initLogging sets up the global logger. In plugin mode the host swallows
// stderr, so logs also go to a file.
func initLogging(cfg *config.Config, toFile bool) (closeFn func()) {
	pretty := cfg.Log.Pretty || logger.IsTerminal()
	if !toFile {
		logger.Init(cfg.Log.Level, pretty)
		return func() {}
	}

	path, err := config.LogFile()
	if err == nil {
		var f *os.File
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			logger.Init(cfg.Log.Level, pretty, f)
			return func() { f.Close() }
		}
	}
	logger.Init(cfg.Log.Level, pretty)
	logger.Get().Warn().Err(err).Msg("plugin log file unavailable")
	return func() {}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPlugin(cmd *cobra.Command, args []string) error {
	if hostOpts.Port == 0 || hostOpts.UUID == "" {
		return errors.New("missing -port or -pluginUUID; mixdeck is started by the Stream Deck application (see \"mixdeck deck\" for standalone use)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog := initLogging(cfg, true)
	defer closeLog()
	log := logger.WithComponent("main")

	ctx, cancel := signalContext()
	defer cancel()

	a := app.New(cfg)
	defer a.Close()

	log.Info().
		Int("port", hostOpts.Port).
		Str("actions", strings.Join(a.Registry.Names(), ",")).
		Str("gif_folder", cfg.GIF.Folder).
		Msg("starting plugin")

	p, err := plugin.Dial(ctx, hostOpts, a.Registry)
	if err != nil {
		return err
	}
	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("plugin stopped")
		return err
	}
	log.Info().Msg("plugin stopped")
	return nil
}
