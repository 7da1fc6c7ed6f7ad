// Package emergency watches for a graceful-interrupt condition — SIGINT,
// SIGTERM, or a stop file — and turns it into a cancellable context plus a
// terminal errs.RuntimeInterrupt, so the orchestrator can flush a full
// artifact bundle (spec.md §4.9/§7) instead of dying mid-run.
package emergency

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labops-dev/labops/pkg/errs"
)

const defaultStopFile = "/tmp/labops-emergency-stop"
const defaultPollInterval = time.Second

// Controller tracks whether a triage run has been asked to stop early,
// either by an OS signal or by the presence of a stop file.
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	reason         string
	mutex          sync.RWMutex
	pollInterval   time.Duration
	signalHandlers bool
}

// Config configures a Controller. An empty Config is valid: it watches only
// the default stop file at the default poll interval, with no signal
// handling.
type Config struct {
	StopFile             string
	PollInterval         time.Duration
	EnableSignalHandlers bool
}

// New builds a Controller in the not-stopped state.
func New(config Config) *Controller {
	if config.StopFile == "" {
		config.StopFile = defaultStopFile
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaultPollInterval
	}

	return &Controller{
		stopFile:       config.StopFile,
		stopCh:         make(chan struct{}),
		pollInterval:   config.PollInterval,
		signalHandlers: config.EnableSignalHandlers,
	}
}

// Start launches the background watchers. It returns immediately; the
// watchers exit once ctx is done or a stop condition fires.
func (c *Controller) Start(ctx context.Context) {
	go c.watchStopFile(ctx)
	if c.signalHandlers {
		go c.watchSignals(ctx)
	}
}

// WatchContext derives a child of parent that is canceled the moment this
// controller stops, independent of whatever else parent is waiting on. The
// returned CancelFunc must be called once the caller is done to release the
// internal watcher goroutine.
func (c *Controller) WatchContext(parent context.Context) (context.Context, context.CancelFunc) {
	child, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-child.Done():
		}
	}()
	return child, cancel
}

func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.checkStopFile() {
				c.triggerStop("stop file detected at " + c.stopFile)
				return
			}
		}
	}
}

func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.triggerStop("signal: " + sig.String())
	}
}

func (c *Controller) checkStopFile() bool {
	_, err := os.Stat(c.stopFile)
	return err == nil
}

func (c *Controller) triggerStop(reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	c.reason = reason
	close(c.stopCh)

	log.Warn().Str("reason", reason).Msg("emergency stop triggered")
}

// Stop manually triggers the stop condition, e.g. from a CLI signal handler
// wired up ahead of Start.
func (c *Controller) Stop(reason string) {
	c.triggerStop(reason)
}

// IsStopped reports whether the stop condition has fired.
func (c *Controller) IsStopped() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// Reason returns the human-readable trigger description, empty until
// IsStopped is true.
func (c *Controller) Reason() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reason
}

// StopChannel returns a channel that closes when the stop condition fires.
func (c *Controller) StopChannel() <-chan struct{} {
	return c.stopCh
}

// InterruptError returns an errs.RuntimeInterrupt error describing why this
// controller stopped, or nil if it hasn't.
func (c *Controller) InterruptError() error {
	if !c.IsStopped() {
		return nil
	}
	return errs.New(errs.RuntimeInterrupt, "triage run interrupted: "+c.Reason())
}

// CreateStopFile writes the stop file, letting an operator trigger a
// graceful stop from outside the process.
func (c *Controller) CreateStopFile() error {
	f, err := os.Create(c.stopFile)
	if err != nil {
		return errs.Wrap(errs.IOFailure, "failed to create emergency stop file", err)
	}
	defer f.Close()

	if _, err := f.WriteString("emergency stop requested at " + time.Now().UTC().Format(time.RFC3339) + "\n"); err != nil {
		return errs.Wrap(errs.IOFailure, "failed to write emergency stop file", err)
	}
	return nil
}

// RemoveStopFile removes the stop file if present.
func (c *Controller) RemoveStopFile() error {
	if err := os.Remove(c.stopFile); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IOFailure, "failed to remove emergency stop file", err)
	}
	return nil
}

// GetStopFilePath returns the path this controller polls.
func (c *Controller) GetStopFilePath() string {
	return c.stopFile
}
