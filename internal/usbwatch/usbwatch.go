// Package usbwatch reports USB HID device arrivals so a waiting caller can
// retry opening a device right away instead of on its next poll.
package usbwatch

// ElgatoVendorID is the USB vendor ID of Stream Deck devices.
const ElgatoVendorID uint16 = 0x0fd9
