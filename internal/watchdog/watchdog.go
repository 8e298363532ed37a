// Package watchdog feeds a hardware watchdog so that a hung process gets the
// device rebooted.
package watchdog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Watchdog is fed once per scheduler tick. Feed must not block.
type Watchdog interface {
	Feed()
}

// Noop is used on desktops without a watchdog device.
type Noop struct {
	feeds atomic.Int64
}

// Feed counts the feed and does nothing else.
func (n *Noop) Feed() { n.feeds.Add(1) }

// Feeds returns how many times Feed was called.
func (n *Noop) Feeds() int64 { return n.feeds.Load() }

// Close does nothing.
func (n *Noop) Close() error { return nil }

// magicClose disarms the Linux watchdog driver when written before close
// (only honored by drivers built without nowayout).
const magicClose = 'V'

// Device feeds a Linux watchdog character device such as /dev/watchdog.
// Opening the device arms the timer; each write resets it.
type Device struct {
	path   string
	logger *log.Logger

	mu     sync.Mutex
	file   *os.File
	failed bool
}

// Open arms the watchdog at path.
func Open(path string, logger *log.Logger) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}
	return &Device{path: path, logger: logger, file: f}, nil
}

// Feed resets the hardware timer. Write failures are logged once per
// failure streak; the device stays open so a later feed can succeed.
func (d *Device) Feed() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return
	}
	if _, err := d.file.Write([]byte{0}); err != nil {
		if !d.failed && d.logger != nil {
			d.logger.Error("watchdog feed failed", "device", d.path, "err", err)
		}
		d.failed = true
		return
	}
	if d.failed && d.logger != nil {
		d.logger.Info("watchdog feed recovered", "device", d.path)
	}
	d.failed = false
}

// Close disarms the watchdog with the magic character and closes the device.
// After Close, Feed is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	_, werr := d.file.Write([]byte{magicClose})
	cerr := d.file.Close()
	d.file = nil
	if werr != nil {
		return fmt.Errorf("disarm watchdog %s: %w", d.path, werr)
	}
	return cerr
}
