// internal/browser/manager_test.go
package browser

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// flagValue returns the last value set for name, mirroring how the allocator
// resolves repeated switches.
func flagValue(flags []Flag, name string) (interface{}, bool) {
	var (
		v     interface{}
		found bool
	)
	for _, f := range flags {
		if f.Name == name {
			v, found = f.Value, true
		}
	}
	return v, found
}

func TestFlags(t *testing.T) {
	t.Run("AutomationSwitchRemoved", func(t *testing.T) {
		v, ok := flagValue(Flags(config.BrowserConfig{}), "enable-automation")
		assert.True(t, ok)
		assert.Equal(t, false, v)
	})

	t.Run("PasswordPromptsDisabled", func(t *testing.T) {
		flags := Flags(config.BrowserConfig{})
		v, _ := flagValue(flags, "disable-save-password-bubble")
		assert.Equal(t, true, v)
		v, _ = flagValue(flags, "password-store")
		assert.Equal(t, "basic", v)
	})

	t.Run("Headless", func(t *testing.T) {
		v, _ := flagValue(Flags(config.BrowserConfig{Headless: true}), "headless")
		assert.Equal(t, true, v)
		v, _ = flagValue(Flags(config.BrowserConfig{Headless: false}), "headless")
		assert.Equal(t, false, v)
	})

	t.Run("StartMaximized", func(t *testing.T) {
		_, ok := flagValue(Flags(config.BrowserConfig{}), "start-maximized")
		assert.False(t, ok)
		v, ok := flagValue(Flags(config.BrowserConfig{StartMaximized: true}), "start-maximized")
		assert.True(t, ok)
		assert.Equal(t, true, v)
	})

	t.Run("WithCustomArgs", func(t *testing.T) {
		flags := Flags(config.BrowserConfig{Args: []string{"--custom-arg1", "--lang=en-US"}})
		v, _ := flagValue(flags, "custom-arg1")
		assert.Equal(t, true, v)
		v, _ = flagValue(flags, "lang")
		assert.Equal(t, "en-US", v)
	})

	t.Run("LinuxSandbox", func(t *testing.T) {
		_, ok := flagValue(Flags(config.BrowserConfig{}), "no-sandbox")
		assert.Equal(t, runtime.GOOS == "linux", ok)
	})
}

func TestAllocatorOptions(t *testing.T) {
	base := len(AllocatorOptions(config.BrowserConfig{}))
	withPath := len(AllocatorOptions(config.BrowserConfig{ExecPath: "/usr/bin/chromium"}))
	assert.Equal(t, base+1, withPath)
}

func TestQuery(t *testing.T) {
	q, _ := query(automation.ID("user_email"))
	assert.Equal(t, `[id="user_email"]`, q)

	q, _ = query(automation.Name("password"))
	assert.Equal(t, `[name="password"]`, q)

	q, _ = query(automation.XPath("//button[text()='Next']"))
	assert.Equal(t, "//button[text()='Next']", q)

	q, _ = query(automation.CSS("button.next"))
	assert.Equal(t, "button.next", q)
}

func stubRunActions(t *testing.T, fn func(ctx context.Context, actions ...chromedp.Action) error) {
	t.Helper()
	orig := runActions
	runActions = fn
	t.Cleanup(func() { runActions = orig })
}

func TestNewManagerLaunchContexts(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []context.Context
	)
	stubRunActions(t, func(ctx context.Context, _ ...chromedp.Action) error {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, ctx)
		return nil
	})

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	m, err := NewManager(parent, config.BrowserConfig{LaunchTimeout: time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)

	_, hasDeadline := calls[0].Deadline()
	assert.False(t, hasDeadline, "the run that starts the process must not carry a deadline")
	_, hasDeadline = calls[1].Deadline()
	assert.True(t, hasDeadline, "the liveness check is bounded by the launch timeout")
	assert.NoError(t, calls[0].Err(), "the browser context outlives NewManager")

	cancelParent()
	assert.NoError(t, calls[0].Err(), "cancelling the caller leaves the browser to Shutdown")

	m.browserCancel()
	m.allocatorCancel()
	assert.Error(t, calls[0].Err())
}

func TestNewManagerLaunchTimeout(t *testing.T) {
	stubRunActions(t, func(ctx context.Context, _ ...chromedp.Action) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := NewManager(context.Background(), config.BrowserConfig{LaunchTimeout: 20 * time.Millisecond}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not start within")
}
