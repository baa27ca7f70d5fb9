package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phinze/mixdeck/internal/app"
	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/config"
	"github.com/phinze/mixdeck/internal/device"
	"github.com/phinze/mixdeck/internal/media"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check config, mixer, GIF folder and device health",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mixdeck status ===")
	fmt.Println()

	path := config.DefaultConfigPath()
	if cfgFile != "" {
		path = cfgFile
	}
	cfg, cfgErr := loadConfig()

	ok := reportConfig(os.Stdout, path, cfgErr)
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok = reportMixer(ctx, os.Stdout, app.NewMixer(cfg.Audio), cfg.Audio.Backend) && ok
	ok = reportGIFs(os.Stdout, media.NewLibrary(cfg.GIF.Folder)) && ok

	fmt.Println("Stream Deck:")
	if dev, err := device.Find("", 2*time.Second); err == nil {
		fmt.Printf("  Device: %s\n", dev.ModelName())
		dev.Close()
	} else {
		fmt.Println("  Device: not detected (only needed for \"mixdeck deck\")")
	}
	fmt.Println()

	if logPath, err := config.LogFile(); err == nil {
		fmt.Printf("Plugin log: %s\n\n", logPath)
	}

	if ok {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed. Run 'mixdeck setup' to configure.")
	}
	return nil
}

func reportConfig(w io.Writer, path string, loadErr error) bool {
	ok := true
	fmt.Fprintf(w, "Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintln(w, "  Status: found")
	} else {
		fmt.Fprintln(w, "  Status: not found, using defaults")
	}
	if loadErr != nil {
		fmt.Fprintf(w, "  Load error: %v\n", loadErr)
		ok = false
	}
	fmt.Fprintln(w)
	return ok
}

func reportMixer(ctx context.Context, w io.Writer, mixer audio.Mixer, backend string) bool {
	ok := true
	fmt.Fprintf(w, "Mixer (%s):\n", backend)
	if out, err := mixer.DefaultOutput(ctx); err != nil {
		fmt.Fprintf(w, "  Default output: %s (%v)\n", audio.Classify(err), err)
		ok = false
	} else if level, err := out.Volume(ctx); err == nil {
		fmt.Fprintf(w, "  Default output: %d%%\n", int(level*100+0.5))
	}

	sessions, err := mixer.Sessions(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "  Sessions: %v\n", err)
		ok = false
	case len(sessions) == 0:
		fmt.Fprintln(w, "  Sessions: none playing")
	default:
		for _, c := range audio.AppList(sessions) {
			fmt.Fprintf(w, "  Session: %s\n", c.Label)
		}
	}
	fmt.Fprintln(w)
	return ok
}

func reportGIFs(w io.Writer, lib *media.Library) bool {
	fmt.Fprintf(w, "GIF folder: %s\n", lib.Dir)
	names, err := lib.List()
	fmt.Fprintln(w, gifSummary(names, err))
	fmt.Fprintln(w)
	return err == nil
}

func gifSummary(names []string, err error) string {
	switch {
	case errors.Is(err, media.ErrNotFound):
		return "  Status: no GIFs found"
	case err != nil:
		return fmt.Sprintf("  Status: %v", err)
	case len(names) == 1:
		return "  Status: 1 GIF"
	default:
		return fmt.Sprintf("  Status: %d GIFs", len(names))
	}
}
