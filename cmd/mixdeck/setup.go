package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phinze/mixdeck/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup: write the config file",
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println("=== mixdeck setup ===")
	fmt.Println()

	existing, err := loadConfig()
	if err != nil {
		fmt.Printf("Existing config ignored: %v\n\n", err)
		existing = config.Default()
	}

	cfg, err := promptConfig(bufio.NewReader(os.Stdin), os.Stdout, existing)
	if err != nil {
		return err
	}

	path := config.DefaultConfigPath()
	if cfgFile != "" {
		path = cfgFile
	}
	if err := config.WriteFile(path, cfg); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	fmt.Printf("\nConfig written to %s\n", path)
	fmt.Println("Setup complete!")
	return nil
}

// promptConfig asks for each setting, offering the current value as the
// default, and returns the validated result.
func promptConfig(r *bufio.Reader, w io.Writer, existing *config.Config) (*config.Config, error) {
	cfg := *existing

	fmt.Fprintln(w, "-- Audio --")
	cfg.Audio.Backend = prompt(r, w, "Mixer backend (pulse, memory)", cfg.Audio.Backend)
	cfg.Volume.Step = promptInt(r, w, "Dial step for output volume (%)", cfg.Volume.Step)
	cfg.AppVolume.Step = promptInt(r, w, "Dial step for app volume (%)", cfg.AppVolume.Step)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "-- GIF --")
	cfg.GIF.Folder = prompt(r, w, "GIF folder", cfg.GIF.Folder)
	cfg.GIF.SwitchInterval = promptDuration(r, w, "Switch every", cfg.GIF.SwitchInterval)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "-- Deck mode --")
	cfg.Deck.Brightness = promptInt(r, w, "Brightness (%)", cfg.Deck.Brightness)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// prompt asks for a value with an optional default.
func prompt(r *bufio.Reader, w io.Writer, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w, "  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(w, "  %s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal
	}
	return line
}

func promptInt(r *bufio.Reader, w io.Writer, label string, defaultVal int) int {
	for {
		s := prompt(r, w, label, strconv.Itoa(defaultVal))
		n, err := strconv.Atoi(s)
		if err == nil {
			return n
		}
		fmt.Fprintf(w, "  not a number: %q\n", s)
		if _, err := r.Peek(1); err != nil {
			return defaultVal
		}
	}
}

func promptDuration(r *bufio.Reader, w io.Writer, label string, defaultVal time.Duration) time.Duration {
	for {
		s := prompt(r, w, label, defaultVal.String())
		d, err := time.ParseDuration(s)
		if err == nil {
			return d
		}
		fmt.Fprintf(w, "  not a duration (try 30s or 2m): %q\n", s)
		if _, err := r.Peek(1); err != nil {
			return defaultVal
		}
	}
}
