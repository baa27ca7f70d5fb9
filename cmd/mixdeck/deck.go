package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phinze/mixdeck/internal/app"
	"github.com/phinze/mixdeck/internal/coordinator"
	"github.com/phinze/mixdeck/internal/device"
	"github.com/phinze/mixdeck/internal/logger"
	"github.com/phinze/mixdeck/internal/usbwatch"
)

var deckSerial string

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Run the tiles on a directly attached Stream Deck",
	Long: `Run the tiles on a Stream Deck attached over USB, without the Stream Deck
application. Keys and dials are laid out by deck.keys and deck.dials in the
config file. The device is re-acquired after unplugging and after sleep.`,
	RunE: runDeck,
}

func init() {
	deckCmd.Flags().StringVar(&deckSerial, "serial", "", "device serial number (default is the first device found)")
}

const (
	deviceTimeout = 5 * time.Second
	pollInterval  = 2 * time.Second
)

func runDeck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog := initLogging(cfg, false)
	defer closeLog()
	log := logger.WithComponent("deck")

	ctx, cancel := signalContext()
	defer cancel()

	a := app.New(cfg)
	defer a.Close()

	wake := wakeEvents(ctx)
	plugged := usbwatch.Watch(ctx, usbwatch.ElgatoVendorID)

	for {
		dev := waitForDevice(ctx, log, wake, plugged)
		if dev == nil {
			return nil
		}

		// A wake that arrived while probing is already handled.
	drain:
		for {
			select {
			case <-wake:
			default:
				break drain
			}
		}

		// USB enumeration may not be complete even after the device opens.
		time.Sleep(500 * time.Millisecond)

		runWithDevice(ctx, log, a, dev, wake)

		if ctx.Err() != nil {
			log.Info().Msg("exiting")
			return nil
		}
		log.Info().Msg("waiting for device reconnect")
	}
}

// waitForDevice polls until a device opens. A wake signal triggers a burst of
// quick retries since USB devices take a moment to reappear, and a USB
// arrival triggers an immediate attempt. It returns nil when ctx is done.
func waitForDevice(ctx context.Context, log *zerolog.Logger, wake, plugged <-chan struct{}) device.Device {
	if dev, err := device.Find(deckSerial, deviceTimeout); err == nil {
		return dev
	}
	log.Info().Msg("waiting for device")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			log.Info().Msg("wake detected, probing for device")
			for range 10 {
				if dev, err := device.Find(deckSerial, deviceTimeout); err == nil {
					return dev
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(500 * time.Millisecond):
				}
			}
		case <-plugged:
			log.Info().Msg("USB device arrived")
			time.Sleep(500 * time.Millisecond)
		case <-time.After(pollInterval):
		}

		dev, err := device.Find(deckSerial, deviceTimeout)
		if err == nil {
			return dev
		}
		log.Debug().Err(err).Msg("device not found")
	}
}

// runWithDevice runs the tiles on dev until ctx is done, the device goes
// away, or the system wakes.
func runWithDevice(ctx context.Context, log *zerolog.Logger, a *app.App, dev device.Device, wake <-chan struct{}) {
	log.Info().Str("model", dev.ModelName()).Msg("device connected")

	coord := coordinator.New(dev, a.Registry, a.Config.Deck)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Start(runCtx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Warn().Err(err).Msg("device disconnected")
		}
	case <-wake:
		log.Info().Msg("reconnecting device after wake")
	}

	runCancel()
	stopped := make(chan struct{})
	go func() {
		coord.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		log.Warn().Msg("teardown timed out")
	}

	// Pending USB callbacks can fire briefly after the last write.
	time.Sleep(200 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		dev.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		log.Warn().Msg("device close timed out")
	}
}
