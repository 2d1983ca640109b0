// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// Manager owns the single Chrome process of a run. Sessions are tabs of it.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process. All session contexts derive from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// NewManager launches Chrome and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// runActions executes chromedp actions; tests replace it to observe the launch
// sequence without a Chrome binary.
var runActions = chromedp.Run

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...", zap.Bool("headless", m.cfg.Headless))

	// The process outlives cancellation of ctx and ends in Shutdown, so the
	// record in flight can still log out.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(m.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	m.allocatorCtx, m.allocatorCancel = allocCtx, allocCancel
	m.browserCtx, m.browserCancel = browserCtx, browserCancel

	launchTimeout := m.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}
	fail := func(err error) error {
		browserCancel()
		allocCancel()
		return err
	}

	// The first Run starts the process and ties it to the context it is
	// given, so it runs on browserCtx itself and the deadline is enforced here.
	started := make(chan error, 1)
	go func() { started <- runActions(browserCtx) }()
	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			return fail(fmt.Errorf("browser failed to start: %w", err))
		}
	case <-timer.C:
		return fail(fmt.Errorf("browser did not start within %s", launchTimeout))
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	checkCtx, cancelCheck := context.WithTimeout(browserCtx, launchTimeout)
	defer cancelCheck()
	if err := runActions(checkCtx, chromedp.Navigate("about:blank")); err != nil {
		return fail(fmt.Errorf("browser failed to respond: %w", err))
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// Flag is one Chrome command line switch. A false bool removes the switch.
type Flag struct {
	Name  string
	Value interface{}
}

// Flags lists the switches layered on top of chromedp's defaults. The
// automation switch is dropped and the password manager is silenced so that
// no prompt covers the form.
func Flags(cfg config.BrowserConfig) []Flag {
	flags := []Flag{
		{"enable-automation", false},
		{"headless", cfg.Headless},
		{"disable-blink-features", "AutomationControlled"},
		{"disable-save-password-bubble", true},
		{"password-store", "basic"},
		{"disable-features", "PasswordLeakDetection,PasswordManagerOnboarding"},
		{"disable-extensions", true},
	}
	if cfg.StartMaximized {
		flags = append(flags, Flag{"start-maximized", true})
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags = append(flags, Flag{name, parts[1]})
		} else {
			flags = append(flags, Flag{name, true})
		}
	}

	if runtime.GOOS == "linux" {
		flags = append(flags,
			Flag{"no-sandbox", true},
			Flag{"disable-dev-shm-usage", true},
		)
	}
	return flags
}

// AllocatorOptions converts the run's browser settings into allocator options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range Flags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// NewSession opens a tab bound to the run's browser.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	// Attach the tab before handing it out.
	if err := runActions(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	m.logger.Debug("Browser session opened.")
	return newSession(tabCtx, cancel, m.cfg, m.logger), nil
}

// Shutdown closes the browser gracefully, falling back to killing the
// process when ctx expires first.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.allocatorCancel == nil {
		return nil
	}
	m.logger.Info("Shutting down browser process...")

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(m.browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}
	m.browserCancel()
	m.allocatorCancel()
	<-m.allocatorCtx.Done()
	return err
}
