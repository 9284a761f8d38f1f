package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	errInvoiceIncomplete = errors.New("incomplete invoice in response")
	errResultIncomplete  = errors.New("incomplete purchase result in response")
)

type PaymentService struct {
	backend *BackendClient
	cache   *PackagesCache
}

func NewPaymentService(backend *BackendClient) *PaymentService {
	return &PaymentService{
		backend: backend,
		cache:   NewPackagesCache(config.PackagesCacheDuration),
	}
}

func (s *PaymentService) ListPackages(ctx context.Context) ([]domain.Package, error) {
	if cached := s.cache.Get(); cached != nil {
		return cached, nil
	}

	var packages []domain.Package
	if err := s.backend.get(ctx, "/payment/packages", &packages); err != nil {
		if msg := backendMessage(err); msg != "" {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		return nil, fmt.Errorf("%s: %w", config.MsgPackagesFailed, err)
	}
	if packages == nil {
		packages = []domain.Package{}
	}

	s.cache.Set(packages)
	return packages, nil
}

// FindPackage returns the package with the given id.
func (s *PaymentService) FindPackage(ctx context.Context, packageID string) (*domain.Package, error) {
	packages, err := s.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range packages {
		if p.ID == packageID {
			return &p, nil
		}
	}
	return nil, domain.ErrPackageNotFound
}

// CreateInvoice mints the single invoice of a purchase attempt. It never retries.
func (s *PaymentService) CreateInvoice(ctx context.Context, packageID string) (*domain.Invoice, error) {
	if strings.TrimSpace(packageID) == "" {
		return nil, domain.NewPaymentError(domain.ErrPaymentCreation, "", config.MsgCreateFailed, domain.ErrInvalidPackage)
	}

	payload := map[string]string{
		"packageId": packageID,
	}

	var inv domain.Invoice
	if err := s.backend.post(ctx, "/payment/create", payload, &inv); err != nil {
		return nil, domain.NewPaymentError(domain.ErrPaymentCreation, backendMessage(err), config.MsgCreateFailed, err)
	}
	if inv.ID == "" || inv.URL == "" {
		return nil, domain.NewPaymentError(domain.ErrPaymentCreation, "", config.MsgCreateFailed, errInvoiceIncomplete)
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceStatusPending
	}

	return &inv, nil
}

func (s *PaymentService) CheckStatus(ctx context.Context, invoiceID string) (*domain.InvoiceStatusReport, error) {
	var report domain.InvoiceStatusReport
	if err := s.backend.get(ctx, "/payment/status/"+url.PathEscape(invoiceID), &report); err != nil {
		return nil, fmt.Errorf("check status: %w", err)
	}
	if report.InvoiceID == "" {
		report.InvoiceID = invoiceID
	}
	return &report, nil
}

// ProcessPayment asks the backend to credit a paid invoice to the account.
// The returned amounts are passed through unmodified.
func (s *PaymentService) ProcessPayment(ctx context.Context, invoiceID, packageID string) (*domain.PurchaseResult, error) {
	payload := map[string]string{
		"invoiceId": invoiceID,
		"packageId": packageID,
	}

	var resp struct {
		Crypts     *decimal.Decimal `json:"crypts"`
		NewBalance *decimal.Decimal `json:"newBalance"`
	}
	if err := s.backend.post(ctx, "/payment/process", payload, &resp); err != nil {
		return nil, domain.NewPaymentError(domain.ErrPaymentFinalization, backendMessage(err), config.MsgProcessFailed, err)
	}
	if resp.Crypts == nil || resp.NewBalance == nil {
		slog.Error("finalize response missing amounts", "invoice_id", invoiceID, "package_id", packageID)
		return nil, domain.NewPaymentError(domain.ErrPaymentFinalization, "", config.MsgProcessFailed, errResultIncomplete)
	}

	return &domain.PurchaseResult{Crypts: *resp.Crypts, NewBalance: *resp.NewBalance}, nil
}
