package main

import (
	"context"

	"github.com/prashantgupta24/mac-sleep-notifier/notifier"

	"github.com/phinze/mixdeck/internal/logger"
)

// wakeEvents signals every system wake. Signals coalesce when nobody is
// listening.
func wakeEvents(ctx context.Context) <-chan struct{} {
	sleepCh := notifier.GetInstance().Start()
	wake := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case activity, ok := <-sleepCh:
				if !ok {
					return
				}
				if activity.Type != notifier.Awake {
					continue
				}
				logger.WithComponent("wake").Info().Msg("system wake detected")
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return wake
}
