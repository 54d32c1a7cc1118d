// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
	"github.com/xkilldash9x/session-keeper/internal/config"
	"github.com/xkilldash9x/session-keeper/internal/observability"
)

// -- Test Helper Functions --

// stubBrowser accepts every action; clicking lands on /dashboard.
type stubBrowser struct {
	url   string
	quits int
}

func (b *stubBrowser) Navigate(_ context.Context, url string) error { b.url = url; return nil }
func (b *stubBrowser) CurrentURL(context.Context) (string, error)  { return b.url, nil }
func (b *stubBrowser) FindElement(context.Context, browser.Locator) (browser.Element, error) {
	return stubElement{b}, nil
}
func (b *stubBrowser) WaitForElement(context.Context, browser.Locator, time.Duration) (browser.Element, error) {
	return stubElement{b}, nil
}
func (b *stubBrowser) Refresh(context.Context) error { return nil }
func (b *stubBrowser) Quit() error                   { b.quits++; return nil }

type stubElement struct{ b *stubBrowser }

func (stubElement) Clear(context.Context) error        { return nil }
func (stubElement) Type(context.Context, string) error { return nil }
func (e stubElement) Click(context.Context) error {
	e.b.url = "https://portal.example.test/dashboard"
	return nil
}

// setupWorkspace moves into a scratch directory holding a valid config.json
// and resets global logging. It returns the config path.
func setupWorkspace(t *testing.T, mutate func(doc map[string]interface{})) string {
	t.Helper()
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	doc := map[string]interface{}{
		"login_url":   "https://portal.example.test/login",
		"session_url": "https://portal.example.test/my/",
		"credentials": map[string]interface{}{"username": "alice", "password": "s3cret"},
		"form_fields": map[string]interface{}{
			"username_field": "username",
			"password_field": "password",
			"submit_button":  "",
		},
		"session_settings": map[string]interface{}{
			"headless":          true,
			"timeout":           5,
			"refresh_interval":  60,
			"max_retries":       3,
			"login_settle":      0,
			"navigation_settle": 0,
		},
		"logger": map[string]interface{}{
			"level":    "info",
			"log_file": filepath.Join(dir, "session_keeper.log"),
		},
	}
	if mutate != nil {
		mutate(doc)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return path
}

// useFactory swaps the browser factory and records the options it was built with.
func useFactory(t *testing.T, b browser.Browser, err error) *config.BrowserConfig {
	t.Helper()
	var seen config.BrowserConfig
	original := newBrowserFactory
	newBrowserFactory = func(cfg config.BrowserConfig, _ time.Duration, _ *zap.Logger) browser.Factory {
		seen = cfg
		return func(context.Context) (browser.Browser, error) {
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	}
	t.Cleanup(func() { newBrowserFactory = original })
	return &seen
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// -- Test Cases --

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, context.Background(), "--version")
	require.NoError(t, err)
	assert.Equal(t, "session-keeper version "+Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "session-keeper version "+Version)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	_, err := execute(t, context.Background(), "https://example.test")
	assert.Error(t, err)
}

func TestRun_InterruptedExitsCleanly(t *testing.T) {
	path := setupWorkspace(t, nil)
	stub := &stubBrowser{}
	seen := useFactory(t, stub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.quits)
	assert.Equal(t, "https://portal.example.test/my/", stub.url)
	assert.True(t, seen.Headless)
	assert.Equal(t, config.DriverChromedp, seen.Driver)

	observability.Sync()
	logged, err := os.ReadFile(filepath.Join(filepath.Dir(path), "session_keeper.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "=== Session Keeper started ===")
	assert.Contains(t, string(logged), "Login successful.")
	assert.Contains(t, string(logged), "=== Session Keeper finished ===")
	assert.NotContains(t, string(logged), "s3cret")
}

func TestRun_FlagsOverrideFile(t *testing.T) {
	path := setupWorkspace(t, nil)
	seen := useFactory(t, nil, browser.ErrDriverSetup)

	_, err := execute(t, context.Background(), "--config", path, "--driver", "playwright", "--headless=false")
	require.ErrorIs(t, err, browser.ErrDriverSetup)
	assert.Equal(t, config.DriverPlaywright, seen.Driver)
	assert.False(t, seen.Headless)
}

func TestRun_InvalidFlagValueIsMalformed(t *testing.T) {
	path := setupWorkspace(t, nil)
	useFactory(t, &stubBrowser{}, nil)

	_, err := execute(t, context.Background(), "--config", path, "--refresh-interval=-5")
	assert.ErrorIs(t, err, config.ErrConfigMalformed)
}

func TestRun_ConfigFailuresNeverLaunchBrowser(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		setupWorkspace(t, nil)
		launched := false
		original := newBrowserFactory
		newBrowserFactory = func(config.BrowserConfig, time.Duration, *zap.Logger) browser.Factory {
			launched = true
			return nil
		}
		t.Cleanup(func() { newBrowserFactory = original })

		_, err := execute(t, context.Background(), "--config", "does-not-exist.json")
		assert.ErrorIs(t, err, config.ErrConfigNotFound)
		assert.False(t, launched)
	})

	t.Run("missing required key", func(t *testing.T) {
		path := setupWorkspace(t, func(doc map[string]interface{}) { delete(doc, "session_url") })
		stub := &stubBrowser{}
		useFactory(t, stub, nil)

		_, err := execute(t, context.Background(), "--config", path)
		assert.ErrorIs(t, err, config.ErrConfigMalformed)
		assert.Contains(t, err.Error(), "session_url")
		assert.Zero(t, stub.quits)
	})
}

func TestRun_DotEnvSuppliesCredentials(t *testing.T) {
	const key = "KEEPER_CREDENTIALS_PASSWORD"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := setupWorkspace(t, func(doc map[string]interface{}) {
		doc["credentials"] = map[string]interface{}{"username": "alice"}
	})
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(key+"=from-dotenv\n"), 0o600))

	out, err := execute(t, context.Background(), "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "alice (password: ********)")
	assert.NotContains(t, out, "from-dotenv")
}

func TestValidateCmd(t *testing.T) {
	t.Run("prints a redacted summary", func(t *testing.T) {
		path := setupWorkspace(t, nil)

		out, err := execute(t, context.Background(), "validate", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration OK: "+path)
		assert.Contains(t, out, "submit=(fallback chain)")
		assert.Contains(t, out, "refresh_interval=1m0s")
		assert.Contains(t, out, "page_load_timeout=1m0s")
		assert.Contains(t, out, "driver=chromedp")
		assert.NotContains(t, out, "s3cret")
	})

	t.Run("reports invalid configuration", func(t *testing.T) {
		path := setupWorkspace(t, func(doc map[string]interface{}) {
			doc["session_settings"].(map[string]interface{})["timeout"] = 0
		})

		_, err := execute(t, context.Background(), "validate", "--config", path)
		require.ErrorIs(t, err, config.ErrConfigMalformed)
		assert.Contains(t, err.Error(), "timeout must be greater than 0")
	})
}

func TestLogsCmd(t *testing.T) {
	t.Run("prints the configured log file", func(t *testing.T) {
		path := setupWorkspace(t, nil)
		logFile := filepath.Join(filepath.Dir(path), "session_keeper.log")
		require.NoError(t, os.WriteFile(logFile, []byte("first line\nsecond line\n"), 0o600))

		out, err := execute(t, context.Background(), "logs", "--config", path)
		require.NoError(t, err)
		assert.Equal(t, "first line\nsecond line\n", out)
	})

	t.Run("file flag skips the configuration", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "other.log")
		require.NoError(t, os.WriteFile(logFile, []byte("only line\n"), 0o600))

		out, err := execute(t, context.Background(), "logs", "--config", "missing.json", "--file", logFile)
		require.NoError(t, err)
		assert.Equal(t, "only line\n", out)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := execute(t, context.Background(), "logs", "--file", filepath.Join(t.TempDir(), "nope.log"))
		assert.Error(t, err)
	})

	t.Run("follow stops when the context ends", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "live.log")
		require.NoError(t, os.WriteFile(logFile, []byte("boot\n"), 0o600))

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		var out bytes.Buffer
		err := streamLog(ctx, &out, logFile, true)
		require.NoError(t, err)
		assert.Equal(t, "boot\n", out.String())
	})
}
