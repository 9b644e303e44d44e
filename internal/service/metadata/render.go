package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Renderer loads a page in a real browser. It is consulted only when the
// plain fetch was refused (401, 403, 429).
type Renderer interface {
	Render(ctx context.Context, target *url.URL) (*Page, error)
}

// RodRenderer renders pages with a headless Chrome driven by rod.
// The browser is launched on first use and shared by later renders.
type RodRenderer struct {
	logger *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodRenderer creates a renderer; no browser is started yet
func NewRodRenderer(logger *slog.Logger) *RodRenderer {
	return &RodRenderer{logger: logger}
}

func (r *RodRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.logger.Info("Headless browser started", "control_url", controlURL)
	r.launcher = l
	r.browser = browser
	return browser, nil
}

// Render navigates a stealth tab to target and returns the rendered HTML
func (r *RodRenderer) Render(ctx context.Context, target *url.URL) (*Page, error) {
	browser, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.Navigate(target.String()); err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("failed to navigate: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("failed to wait for load: %w", err))
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered HTML: %w", err)
	}

	final := target
	if info, err := page.Info(); err == nil {
		if u, err := url.Parse(info.URL); err == nil && u.Host != "" {
			final = u
		}
	}

	return &Page{URL: final, ContentType: "text/html; charset=utf-8", Body: []byte(html)}, nil
}

// Close shuts the browser down if it was started
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	return err
}
