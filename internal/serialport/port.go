// Package serialport opens the console's USB serial link.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
)

const pollInterval = 250 * time.Millisecond

// Config describes the serial device.
type Config struct {
	Device string
	Baud   int
	// ReadTimeout bounds each Read; a silent console then yields (0, nil),
	// which is where cancellation is noticed.
	ReadTimeout time.Duration
	// AppearTimeout is how long Open waits for a missing device node.
	// Zero fails immediately.
	AppearTimeout time.Duration
	LockDir       string
}

// Port is an open, exclusively locked serial device.
type Port struct {
	port   serial.Port
	lock   *flock.Flock
	device string
	logger *slog.Logger
}

// Open waits for the device, locks it and opens it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Port, error) {
	logger = logging.NewComponentLogger(logger, "serial")
	logger = logger.With(slog.String(logging.FieldDevice, cfg.Device))

	if err := waitForDevice(ctx, cfg.Device, cfg.AppearTimeout, logger); err != nil {
		return nil, err
	}

	lock, err := acquireLock(cfg.LockDir, cfg.Device)
	if err != nil {
		return nil, err
	}

	p, err := serial.Open(cfg.Device, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		_ = lock.Unlock()
		return nil, faults.Wrap(faults.ErrDevice, "serial", "open",
			fmt.Sprintf("cannot open %s at %d baud", cfg.Device, cfg.Baud), err)
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = p.Close()
			_ = lock.Unlock()
			return nil, faults.Wrap(faults.ErrDevice, "serial", "open", "cannot set read timeout", err)
		}
	}
	logger.Info("serial port opened",
		slog.Int("baud", cfg.Baud),
		slog.String("lock", lock.Path()),
	)
	return &Port{port: p, lock: lock, device: cfg.Device, logger: logger}, nil
}

func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// ResetInputBuffer discards bytes the console sent that have not been read.
func (p *Port) ResetInputBuffer() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return faults.Wrap(faults.ErrDevice, "serial", "flush", "cannot reset input buffer", err)
	}
	p.logger.Debug("serial input flushed")
	return nil
}

// Close closes the device and releases the lock.
func (p *Port) Close() error {
	p.logger.Info("closing serial port")
	err := p.port.Close()
	if uerr := p.lock.Unlock(); uerr != nil {
		p.logger.Warn("failed to release serial lock", logging.Error(uerr))
	}
	return err
}

// LockPath is the lock file guarding device, in the UUCP LCK..name style.
func LockPath(dir, device string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "LCK.."+filepath.Base(device))
}

func acquireLock(dir, device string) (*flock.Flock, error) {
	lock := flock.New(LockPath(dir, device))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrDevice, "serial", "lock", "acquire lock", err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrDevice, "serial", "lock",
			fmt.Sprintf("%s is in use by another process", device), nil)
	}
	return lock, nil
}

// PortInfo describes a serial port for listing.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListPorts returns the serial ports present on the system. It falls back to
// bare names when USB details are unavailable.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:    d.Name,
				USB:     d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
		return ports, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(names))
	for _, n := range names {
		ports = append(ports, PortInfo{Name: n})
	}
	return ports, nil
}

var errNotAppeared = errors.New("device did not appear")

func deviceMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}
