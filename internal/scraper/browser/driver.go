package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/srikarv/eduinsights/pkg/logger"
)

// Session is one headless browser owned by a single extraction job.
// Sessions are never shared: the coordinator that initializes one is
// the only writer until Quit.
type Session struct {
	Browser  *rod.Browser
	launcher *launcher.Launcher
}

// Driver creates and recycles browser sessions.
type Driver struct {
	binPath string
	logger  *logger.Logger
}

// NewDriver creates a browser driver. binPath may be empty, in which
// case the launcher auto-detects (and if needed downloads) a browser.
func NewDriver(binPath string, log *logger.Logger) *Driver {
	return &Driver{
		binPath: binPath,
		logger:  log.WithComponent("browser-driver"),
	}
}

// Initialize launches a fresh headless session.
func (d *Driver) Initialize() (*Session, error) {
	l := launcher.New().
		Headless(true).
		Leakless(true).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu")

	if d.binPath != "" {
		l = l.Bin(d.binPath)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.logger.Debugf("Browser session launched at %s", url)
	return &Session{Browser: b, launcher: l}, nil
}

// Reset tears the session down and launches a replacement. It is the
// only recovery action the driver exposes.
func (d *Driver) Reset(s *Session) (*Session, error) {
	d.logger.Debug("Resetting browser session")
	d.Quit(s)
	return d.Initialize()
}

// Quit closes the session's browser and cleans up the launcher.
func (d *Driver) Quit(s *Session) {
	if s == nil {
		return
	}
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			d.logger.WithError(err).Warn("Failed to close browser")
		}
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}
