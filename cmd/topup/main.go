package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	duelclient "github.com/darknetduel/client"
	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
	"github.com/darknetduel/client/internal/middleware"
	"github.com/darknetduel/client/internal/repository"
	"github.com/darknetduel/client/internal/service"
	"github.com/darknetduel/client/internal/session"
	"github.com/darknetduel/client/internal/telegram"
	"github.com/darknetduel/client/internal/window"
	"github.com/go-telegram/bot"
	"github.com/google/uuid"
)

type options struct {
	packageID string
	list      bool
	history   bool
	attempt   *uuid.UUID
	token     string
	logout    bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flags := flag.NewFlagSet("topup", flag.ContinueOnError)
	flags.StringVar(&opts.packageID, "package", "", "id of the crypts package to buy")
	flags.BoolVar(&opts.list, "list", false, "list purchasable packages")
	flags.BoolVar(&opts.history, "history", false, "show recent purchase attempts (needs DATABASE_URL)")
	flags.Func("attempt", "show the state changes of one purchase attempt (needs DATABASE_URL)", func(v string) error {
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid attempt id: %w", err)
		}
		opts.attempt = &id
		return nil
	})
	flags.StringVar(&opts.token, "token", "", "save a session token and exit")
	flags.BoolVar(&opts.logout, "logout", false, "forget the saved session token and exit")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if !opts.list && !opts.history && opts.attempt == nil && !opts.logout && opts.token == "" && opts.packageID == "" {
		return nil, errors.New("one of -package, -list, -history, -attempt, -token or -logout is required")
	}
	return opts, nil
}

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, os.Stdin); err != nil {
		var pe *domain.PaymentError
		if errors.As(err, &pe) {
			fmt.Fprintln(os.Stderr, pe.Message)
		} else {
			fmt.Fprintln(os.Stderr, "topup:", err)
		}
		slog.Error("topup failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts *options, out io.Writer, in io.Reader) error {
	// Session
	store := session.NewStore(session.NewFilePersister(cfg.AuthTokenFile))
	if err := store.Restore(); err != nil {
		return err
	}
	switch {
	case opts.logout:
		store.Clear()
		fmt.Fprintln(out, "Signed out.")
		return nil
	case opts.token != "":
		if err := store.SetToken(opts.token); err != nil {
			return err
		}
		fmt.Fprintln(out, "Session saved.")
		return nil
	case cfg.AuthToken != "":
		if err := store.SetToken(cfg.AuthToken); err != nil {
			return err
		}
	}
	unsubscribe := store.Subscribe(func(ev session.Event) {
		if ev.Cleared {
			fmt.Fprintln(out, "Your session has expired. Please sign in again.")
		}
	})
	defer unsubscribe()

	// Backend client
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.Recover(),
			middleware.RequestID(),
			middleware.Logging(),
			middleware.Auth(store),
		),
	}
	payments := service.NewPaymentService(service.NewBackendClient(cfg.APIBaseURL, httpClient))

	// Purchase journal
	var journal *repository.PurchaseJournal
	if cfg.JournalEnabled() {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		migrationsFS, err := fs.Sub(duelclient.MigrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("load embedded migrations: %w", err)
		}
		if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
			return err
		}
		journal = repository.NewPurchaseJournal(pool)
	}

	switch {
	case opts.list:
		return printPackages(ctx, payments, out)
	case opts.history, opts.attempt != nil:
		if journal == nil {
			return errors.New("purchase history needs DATABASE_URL")
		}
		if opts.attempt != nil {
			return printAttempt(ctx, journal, *opts.attempt, out)
		}
		return printHistory(ctx, journal, out)
	}

	if !store.SignedIn() {
		return domain.ErrNotSignedIn
	}

	if pkg, err := payments.FindPackage(ctx, opts.packageID); err != nil {
		if errors.Is(err, domain.ErrPackageNotFound) {
			return fmt.Errorf("%w: %s", err, opts.packageID)
		}
		slog.Warn("could not verify package, continuing", "package_id", opts.packageID, "error", err)
	} else {
		fmt.Fprintf(out, "Buying %s: %s crypts for %s %s\n", pkg.Name, pkg.Crypts, pkg.Price.StringFixed(2), pkg.Currency)
	}

	deps := service.FlowDeps{
		Payments: payments,
		Window:   window.NewController(window.NewTerminalOpener(out, in, cfg.BrowserCommand)),
	}
	if journal != nil {
		deps.Journal = journal
	}
	if cfg.TelegramEnabled() {
		b, err := bot.New(cfg.TelegramBotToken, bot.WithSkipGetMe())
		if err != nil {
			slog.Error("failed to create telegram bot, notifications disabled", "error", err)
		} else {
			deps.Notifier = telegram.NewNotifier(b, cfg)
		}
	}

	result, err := service.NewPurchaseFlow(deps).CompletePurchase(ctx, opts.packageID, func(status string) {
		fmt.Fprintln(out, status)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Purchased %s crypts. New balance: %s\n", result.Crypts, result.NewBalance)
	return nil
}

func printPackages(ctx context.Context, payments *service.PaymentService, out io.Writer) error {
	packages, err := payments.ListPackages(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCRYPTS\tPRICE")
	for _, p := range packages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n", p.ID, p.Name, p.Crypts, p.Price.StringFixed(2), p.Currency)
	}
	return tw.Flush()
}

// purchaseHistory is the read side of the purchase journal.
type purchaseHistory interface {
	Recent(ctx context.Context, limit int) ([]domain.PurchaseAttempt, error)
	Transitions(ctx context.Context, attemptID uuid.UUID) ([]domain.Transition, error)
}

func printHistory(ctx context.Context, journal purchaseHistory, out io.Writer) error {
	attempts, err := journal.Recent(ctx, config.HistoryLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPACKAGE\tINVOICE\tSTATE\tCRYPTS\tMESSAGE")
	for _, a := range attempts {
		crypts := "-"
		if a.Result != nil {
			crypts = a.Result.Crypts.String()
		}
		msg := a.Message
		if !a.State.IsTerminal() {
			// The process stopped mid-flow; the invoice may still have been paid.
			msg = "unfinished, check your balance"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.StartedAt.Local().Format("2006-01-02 15:04"), a.PackageID, a.InvoiceID, a.State, crypts, msg)
	}
	return tw.Flush()
}

func printAttempt(ctx context.Context, journal purchaseHistory, attemptID uuid.UUID, out io.Writer) error {
	transitions, err := journal.Transitions(ctx, attemptID)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		return fmt.Errorf("no purchase attempt %s", attemptID)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFROM\tTO\tINVOICE\tMESSAGE")
	for _, tr := range transitions {
		from := string(tr.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tr.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, tr.To, tr.InvoiceID, tr.Message)
	}
	return tw.Flush()
}
