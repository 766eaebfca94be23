package renderer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Headless renders pages in a headless Chromium via rod, for sellers whose
// prices only exist after script execution.
type Headless struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewHeadless constructs a rod-based renderer. The browser launches lazily on
// the first render and is shared across calls.
func NewHeadless(opts Options, logger zerolog.Logger) *Headless {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Headless{
		timeout: timeout,
		logger:  logger.With().Str("component", "renderer_headless").Logger(),
	}
}

// Render loads the page, waits for it to stabilise, and dumps the body's
// inner text.
func (h *Headless) Render(ctx context.Context, url string) (string, error) {
	browser, err := h.getBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open page %s: %w", url, err)
	}
	defer page.Close()

	timed := page.Context(ctx).Timeout(h.timeout)
	if err := timed.WaitStable(time.Second); err == nil {
		_ = timed.WaitDOMStable(2*time.Second, 0.1)
	}

	obj, err := timed.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", fmt.Errorf("dump page text %s: %w", url, err)
	}

	text := obj.Value.Str()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("render %s: %w", url, ErrEmptyPage)
	}

	h.logger.Debug().Str("url", url).Int("bytes", len(text)).Msg("page rendered")
	return text, nil
}

// Close shuts down the shared browser, if one was launched.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.browser = nil
	return err
}

func (h *Headless) getBrowser() (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		return h.browser, nil
	}

	controlURL, err := launcher.New().Headless(true).NoSandbox(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	h.browser = browser
	return browser, nil
}

var _ Renderer = (*Headless)(nil)
