//go:build !darwin

package main

import "context"

// wakeEvents never fires off macOS; a device lost across sleep is found
// again by polling.
func wakeEvents(context.Context) <-chan struct{} {
	return nil
}
