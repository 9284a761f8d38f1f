// Package window opens the external payment page and watches for the user
// to close it.
package window

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
)

// Window is an opened payment page.
type Window interface {
	Closed() bool
	Close() error
}

// Opener opens url in a new window. A nil Window with a nil error means the
// window was blocked.
type Opener interface {
	Open(ctx context.Context, url string) (Window, error)
}

type Controller struct {
	opener       Opener
	pollInterval time.Duration
	maxOpen      time.Duration
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

func WithMaxOpen(d time.Duration) Option {
	return func(c *Controller) { c.maxOpen = d }
}

func NewController(opener Opener, opts ...Option) *Controller {
	c := &Controller{
		opener:       opener,
		pollInterval: config.WindowPollInterval,
		maxOpen:      config.WindowMaxOpen,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Await opens url and blocks until the user closes the window (true), the
// window could not be opened, stayed open past the ceiling or ctx ended (false).
// The result is a hint only; the invoice status is authoritative.
func (c *Controller) Await(ctx context.Context, url string) bool {
	w, err := c.opener.Open(ctx, url)
	if err != nil || w == nil {
		slog.Warn("payment window could not be opened", "error", errors.Join(domain.ErrPaymentWindow, err))
		return false
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	ceiling := time.NewTimer(c.maxOpen)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			closeWindow(w)
			return false
		case <-ceiling.C:
			slog.Warn("payment window left open too long, closing it", "max_open", c.maxOpen)
			closeWindow(w)
			return false
		case <-ticker.C:
			if w.Closed() {
				return true
			}
		}
	}
}

func closeWindow(w Window) {
	if err := w.Close(); err != nil {
		slog.Warn("failed to close payment window", "error", err)
	}
}
