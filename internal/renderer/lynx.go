package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Lynx renders pages by shelling out to the lynx text browser.
type Lynx struct {
	path    string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewLynx constructs a lynx-based renderer.
func NewLynx(opts Options, logger zerolog.Logger) *Lynx {
	path := opts.LynxPath
	if path == "" {
		path = "lynx"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Lynx{
		path:    path,
		timeout: timeout,
		logger:  logger.With().Str("component", "renderer_lynx").Logger(),
	}
}

// Render dumps the page as plain text, accepting cookies automatically.
// A non-zero exit or empty dump is a render failure.
func (l *Lynx) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.path, "-dump", "-accept_all_cookies", url)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("lynx dump %s: %w: %s", url, err, detail)
		}
		return "", fmt.Errorf("lynx dump %s: %w", url, err)
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("lynx dump %s: %w", url, ErrEmptyPage)
	}

	l.logger.Debug().Str("url", url).Int("bytes", stdout.Len()).Msg("page rendered")
	return text, nil
}

var _ Renderer = (*Lynx)(nil)
