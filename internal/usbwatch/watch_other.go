//go:build !darwin

package usbwatch

import "context"

// Watch returns nil off macOS; callers fall back to polling.
func Watch(context.Context, uint16) <-chan struct{} {
	return nil
}
