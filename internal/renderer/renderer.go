// Package renderer turns a URL into the plain-text rendering of the page.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrEmptyPage indicates the renderer produced no visible text; callers must
// treat it as "no price derivable".
var ErrEmptyPage = errors.New("renderer: empty page text")

// Renderer fetches a URL and returns its visible text, one line per block of
// content. Implementations bound the fetch with the configured timeout.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Options parameterise renderer construction.
type Options struct {
	LynxPath  string
	Timeout   time.Duration
	UserAgent string
}

// New selects a renderer implementation by kind.
func New(kind string, opts Options, logger zerolog.Logger) (Renderer, error) {
	switch strings.ToLower(kind) {
	case "", "lynx":
		return NewLynx(opts, logger), nil
	case "http":
		return NewHTTPText(opts, logger)
	case "headless":
		return NewHeadless(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown renderer kind %q", kind)
	}
}
