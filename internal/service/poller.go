package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
)

var errStillPending = errors.New("invoice still pending")

// StatusChecker fetches a fresh status for an invoice.
type StatusChecker interface {
	CheckStatus(ctx context.Context, invoiceID string) (*domain.InvoiceStatusReport, error)
}

// StatusPoller waits for an invoice to reach a terminal status. Checks are
// strictly sequential at a fixed interval.
type StatusPoller struct {
	checker     StatusChecker
	interval    time.Duration
	maxAttempts int
	newTimer    func() backoff.Timer
}

type PollerOption func(*StatusPoller)

func WithPollInterval(d time.Duration) PollerOption {
	return func(p *StatusPoller) { p.interval = d }
}

func WithMaxAttempts(n int) PollerOption {
	return func(p *StatusPoller) { p.maxAttempts = n }
}

// WithTimer replaces the wall-clock timer used between checks.
func WithTimer(newTimer func() backoff.Timer) PollerOption {
	return func(p *StatusPoller) { p.newTimer = newTimer }
}

func NewStatusPoller(checker StatusChecker, opts ...PollerOption) *StatusPoller {
	p := &StatusPoller{
		checker:     checker,
		interval:    config.StatusPollInterval,
		maxAttempts: config.StatusPollMaxAttempts,
		newTimer:    func() backoff.Timer { return &wallTimer{} },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p
}

// Poll returns nil once the invoice is PAID. It reports how many status
// checks were issued.
func (p *StatusPoller) Poll(ctx context.Context, invoiceID string) (int, error) {
	timer := p.newTimer()
	defer timer.Stop()

	timer.Start(p.interval)
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C():
	}

	attempts := 0
	check := func() error {
		attempts++
		report, err := p.checker.CheckStatus(ctx, invoiceID)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Debug("status check failed, will retry",
				"invoice_id", invoiceID,
				"attempt", attempts,
				"error", err,
			)
			return err
		}

		st := domain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(string(report.Status))))
		if !st.IsTerminal() {
			if st != domain.InvoiceStatusPending {
				slog.Warn("unknown invoice status, treating as pending",
					"invoice_id", invoiceID,
					"status", report.Status,
					"attempt", attempts,
				)
			}
			return errStillPending
		}
		if st == domain.InvoiceStatusPaid {
			return nil
		}
		return backoff.Permanent(&domain.PaymentError{
			Kind:    domain.ErrPaymentTerminal,
			Status:  st,
			Message: fmt.Sprintf("Payment %s", strings.ToLower(string(st))),
		})
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(check, policy, nil, timer)
	if err == nil {
		slog.Info("invoice paid", "invoice_id", invoiceID, "attempts", attempts)
		return attempts, nil
	}

	var pe *domain.PaymentError
	if errors.As(err, &pe) {
		slog.Info("invoice reached terminal status", "invoice_id", invoiceID, "status", pe.Status, "attempts", attempts)
		return attempts, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}

	slog.Warn("invoice status polling exhausted", "invoice_id", invoiceID, "attempts", attempts, "last_error", err)
	return attempts, &domain.PaymentError{
		Kind:    domain.ErrPaymentTimeout,
		Status:  domain.InvoiceStatusPending,
		Message: config.MsgTimeout,
	}
}

// wallTimer is a backoff.Timer backed by time.Timer.
type wallTimer struct {
	timer *time.Timer
}

func (t *wallTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *wallTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *wallTimer) C() <-chan time.Time {
	return t.timer.C
}
