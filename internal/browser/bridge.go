// Package browser drives a visible Chrome window for interactive Google
// login. The program never automates credentials; it opens the sign-in page
// against the real profile so the resulting cookies land in the on-disk store
// the session reader consumes.
package browser

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	loginURL   = "https://accounts.google.com/ServiceLogin?continue=https%3A%2F%2Fsearch.google.com%2Fsearch-console"
	consoleURL = "https://search.google.com/search-console"
)

// Bridge launches and observes the login browser.
type Bridge struct {
	execPath string // empty lets chromedp find a browser
	dataDir  string // Chrome user data dir; empty uses the default profile
	logger   *slog.Logger
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	ExecPath string
	DataDir  string
	Logger   *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{execPath: cfg.ExecPath, dataDir: cfg.DataDir, logger: cfg.Logger}
}

// Login opens the Google sign-in page in a visible window and blocks until
// the user reaches the search console (login complete) or ctx expires. The
// browser must not already be running against the same profile, or the new
// instance will not own the cookie store.
func (b *Bridge) Login(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	if b.dataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.dataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	b.logger.Info("opening browser for Google login")
	if err := chromedp.Run(tabCtx, chromedp.Navigate(loginURL)); err != nil {
		return err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var location string
			if err := chromedp.Run(tabCtx, chromedp.Location(&location)); err != nil {
				return err
			}
			if strings.HasPrefix(location, consoleURL) {
				b.logger.Info("login complete", "location", location)
				return nil
			}
			b.logger.Debug("waiting for login", "location", location)
		}
	}
}
