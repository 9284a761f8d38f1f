package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
	"github.com/google/uuid"
)

// PaymentAPI is the subset of the backend the purchase flow drives.
type PaymentAPI interface {
	StatusChecker
	CreateInvoice(ctx context.Context, packageID string) (*domain.Invoice, error)
	ProcessPayment(ctx context.Context, invoiceID, packageID string) (*domain.PurchaseResult, error)
}

// WindowController opens the invoice page and reports whether the user closed it.
type WindowController interface {
	Await(ctx context.Context, url string) bool
}

// Journal records purchase attempts and their transitions.
type Journal interface {
	Start(ctx context.Context, attempt domain.PurchaseAttempt) error
	Transition(ctx context.Context, attempt domain.PurchaseAttempt, tr domain.Transition) error
}

// Notifier is told about every attempt that reaches a terminal state.
type Notifier interface {
	PurchaseSucceeded(attempt domain.PurchaseAttempt)
	PurchaseFailed(attempt domain.PurchaseAttempt, err error)
}

type PurchaseFlow struct {
	payments PaymentAPI
	window   WindowController
	poller   *StatusPoller
	journal  Journal
	notifier Notifier
}

// FlowDeps contains all dependencies required to construct a PurchaseFlow.
// Journal and Notifier are optional.
type FlowDeps struct {
	Payments PaymentAPI
	Window   WindowController
	Poller   *StatusPoller
	Journal  Journal
	Notifier Notifier
}

func NewPurchaseFlow(deps FlowDeps) *PurchaseFlow {
	f := &PurchaseFlow{
		payments: deps.Payments,
		window:   deps.Window,
		poller:   deps.Poller,
		journal:  deps.Journal,
		notifier: deps.Notifier,
	}
	if f.poller == nil {
		f.poller = NewStatusPoller(deps.Payments)
	}
	if f.journal == nil {
		f.journal = nopJournal{}
	}
	if f.notifier == nil {
		f.notifier = nopNotifier{}
	}
	return f
}

// CompletePurchase buys packageID: it creates one invoice, opens the payment
// window, polls until the invoice is paid and finalizes the purchase.
// onStatus may be nil. Cancelling ctx moves the attempt to CANCELLED.
func (f *PurchaseFlow) CompletePurchase(ctx context.Context, packageID string, onStatus func(string)) (*domain.PurchaseResult, error) {
	run := f.begin(ctx, packageID, onStatus)

	run.report(config.StatusCreatingPayment)
	invoice, err := f.payments.CreateInvoice(ctx, packageID)
	if err != nil {
		return nil, run.fail(ctx, err)
	}
	run.attempt.InvoiceID = invoice.ID

	if err := run.advance(ctx, domain.FlowStateAwaitingWindow); err != nil {
		return nil, err
	}
	run.report(config.StatusOpeningWindow)
	if closed := f.window.Await(ctx, invoice.URL); !closed {
		slog.Warn("payment window not closed by user, checking status anyway",
			"attempt_id", run.attempt.ID,
			"invoice_id", invoice.ID,
		)
	}

	if err := run.advance(ctx, domain.FlowStatePolling); err != nil {
		return nil, err
	}
	run.report(config.StatusCheckingPayment)
	if _, err := f.poller.Poll(ctx, invoice.ID); err != nil {
		return nil, run.fail(ctx, err)
	}

	if err := run.advance(ctx, domain.FlowStateFinalizing); err != nil {
		return nil, err
	}
	run.report(config.StatusProcessingPayment)
	result, err := f.payments.ProcessPayment(ctx, invoice.ID, packageID)
	if err != nil {
		return nil, run.fail(ctx, err)
	}

	run.attempt.Result = result
	run.transition(ctx, domain.FlowStateSucceeded, "")
	f.notifier.PurchaseSucceeded(run.attempt)
	slog.Info("purchase completed",
		"attempt_id", run.attempt.ID,
		"package_id", packageID,
		"invoice_id", invoice.ID,
		"crypts", result.Crypts.String(),
		"new_balance", result.NewBalance.String(),
	)
	return result, nil
}

// flowRun is the state of one CompletePurchase call.
type flowRun struct {
	flow     *PurchaseFlow
	attempt  domain.PurchaseAttempt
	onStatus func(string)
}

func (f *PurchaseFlow) begin(ctx context.Context, packageID string, onStatus func(string)) *flowRun {
	now := time.Now()
	run := &flowRun{
		flow:     f,
		onStatus: onStatus,
		attempt: domain.PurchaseAttempt{
			ID:        uuid.New(),
			PackageID: packageID,
			State:     domain.FlowStateCreating,
			StartedAt: now,
			UpdatedAt: now,
		},
	}
	if err := f.journal.Start(context.WithoutCancel(ctx), run.attempt); err != nil {
		slog.Error("failed to journal purchase attempt", "attempt_id", run.attempt.ID, "error", err)
	}
	return run
}

func (r *flowRun) report(status string) {
	if r.onStatus != nil {
		r.onStatus(status)
	}
}

// advance moves to a working state unless the caller has gone away.
func (r *flowRun) advance(ctx context.Context, to domain.FlowState) error {
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}
	r.transition(ctx, to, "")
	return nil
}

func (r *flowRun) transition(ctx context.Context, to domain.FlowState, message string) {
	from := r.attempt.State
	r.attempt.State = to
	r.attempt.Message = message
	r.attempt.UpdatedAt = time.Now()

	tr := domain.Transition{
		AttemptID: r.attempt.ID,
		From:      from,
		To:        to,
		InvoiceID: r.attempt.InvoiceID,
		Message:   message,
		CreatedAt: r.attempt.UpdatedAt,
	}
	if err := r.flow.journal.Transition(context.WithoutCancel(ctx), r.attempt, tr); err != nil {
		slog.Error("failed to journal transition", "attempt_id", r.attempt.ID, "to", to, "error", err)
	}
	slog.Debug("purchase transition", "attempt_id", r.attempt.ID, "from", from, "to", to)
}

// fail moves the attempt to FAILED, or CANCELLED when ctx is done, and
// returns the error for the caller.
func (r *flowRun) fail(ctx context.Context, err error) error {
	to := domain.FlowStateFailed
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
		to = domain.FlowStateCancelled
		if ctxErr == nil {
			ctxErr = err
		}
		err = &domain.PaymentError{
			Kind:    domain.ErrPurchaseCancelled,
			Message: config.MsgCancelled,
			Err:     ctxErr,
		}
	}

	message := domain.DisplayMessage(err)
	r.transition(ctx, to, message)
	r.flow.notifier.PurchaseFailed(r.attempt, err)

	slog.Warn("purchase did not complete",
		"attempt_id", r.attempt.ID,
		"package_id", r.attempt.PackageID,
		"invoice_id", r.attempt.InvoiceID,
		"state", to,
		"error", err,
	)
	return err
}

type nopJournal struct{}

func (nopJournal) Start(context.Context, domain.PurchaseAttempt) error { return nil }

func (nopJournal) Transition(context.Context, domain.PurchaseAttempt, domain.Transition) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) PurchaseSucceeded(domain.PurchaseAttempt) {}
func (nopNotifier) PurchaseFailed(domain.PurchaseAttempt, error) {}
