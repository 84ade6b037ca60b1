package serialport

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"github.com/antonijn/controlpanel/internal/faults"
	"github.com/antonijn/controlpanel/internal/logging"
)

// waitForDevice returns once path exists. It listens for tty add events so a
// console plugged in after startup is picked up at once, and re-checks the
// path on a short interval for nodes udev does not announce (symlinks under
// /dev/serial/by-id, or no netlink access).
func waitForDevice(ctx context.Context, path string, timeout time.Duration, logger *slog.Logger) error {
	if !deviceMissing(path) {
		return nil
	}
	if timeout <= 0 {
		return faults.Wrap(faults.ErrDevice, "serial", "wait", path+" does not exist", errNotAppeared)
	}

	logger.Info("waiting for serial device", slog.Duration("timeout", timeout))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logger.Debug("netlink unavailable; polling for device", logging.Error(err))
	} else {
		defer conn.Close()
		quit := conn.Monitor(queue, errs, ttyAddMatcher())
		defer close(quit)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return faults.Wrap(faults.ErrDevice, "serial", "wait",
					path+" did not appear within "+timeout.String(), errNotAppeared)
			}
			return ctx.Err()
		case ev := <-queue:
			name := deviceName(ev)
			logger.Debug("tty added", slog.String("devname", name))
			if !deviceMissing(path) {
				logger.Info("serial device appeared", slog.String("devname", name))
				return nil
			}
		case err := <-errs:
			logger.Debug("netlink monitor error", logging.Error(err))
		case <-ticker.C:
			if !deviceMissing(path) {
				logger.Info("serial device appeared")
				return nil
			}
		}
	}
}

// ttyAddMatcher matches SUBSYSTEM=tty, ACTION=add.
func ttyAddMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

// deviceName is the /dev path a uevent refers to.
func deviceName(ev netlink.UEvent) string {
	if name := ev.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/") {
			name = "/dev/" + name
		}
		return name
	}
	if devpath := ev.Env["DEVPATH"]; devpath != "" {
		return "/dev/" + filepath.Base(devpath)
	}
	return ""
}
