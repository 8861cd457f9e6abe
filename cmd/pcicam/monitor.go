package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"pcicam/internal/config"
	"pcicam/pkg"
)

const defaultPoll = 2 * time.Second

// busMonitor triggers a rescan when the bus may have changed. With the
// fixture backend it watches the fixture file. sysfs does not raise inotify
// events for functions the kernel adds or removes, so the port and sysfs
// backends poll every poll interval instead.
type busMonitor struct {
	watcher  *fsnotify.Watcher
	dir      string
	file     string
	rescan   func()
	debounce time.Duration
	poll     time.Duration
	logger   *logrus.Entry
}

// newBusMonitor creates a monitor for the configured backend
func newBusMonitor(c *config.Config, debounce, poll time.Duration, rescan func()) (*busMonitor, error) {
	if poll <= 0 {
		poll = defaultPoll
	}
	m := &busMonitor{
		rescan:   rescan,
		debounce: debounce,
		poll:     poll,
		logger:   pkg.WithComponent("monitor"),
	}
	if c.Access.Backend != config.BackendFixture {
		return m, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m.watcher = watcher
	// editors replace files, so watch the directory and match the name
	m.file = filepath.Clean(c.Access.Fixture)
	m.dir = filepath.Dir(m.file)
	return m, nil
}

// run processes events until ctx is done
func (m *busMonitor) run(ctx context.Context) error {
	if m.watcher == nil {
		m.pollLoop(ctx)
		return nil
	}
	defer m.watcher.Close()

	if err := m.watcher.Add(m.dir); err != nil {
		return err
	}
	m.logger.WithField("path", m.dir).Info("watching for bus changes")

	timer := time.NewTimer(m.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if m.isBusEvent(event) {
				m.logger.WithField("event", event.String()).Debug("fixture change detected")
				// Debounce rescans to avoid multiple rapid passes
				timer.Reset(m.debounce)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.WithError(err).Error("file system monitor error")
		case <-timer.C:
			m.logger.Info("performing rescan")
			m.rescan()
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *busMonitor) pollLoop(ctx context.Context) {
	m.logger.WithField("interval", m.poll.String()).Info("polling for bus changes")

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.rescan()
		case <-ctx.Done():
			return
		}
	}
}

// isBusEvent reports whether event rewrote the fixture file
func (m *busMonitor) isBusEvent(event fsnotify.Event) bool {
	return filepath.Clean(event.Name) == m.file &&
		event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
