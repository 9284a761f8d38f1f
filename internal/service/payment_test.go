package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice(t *testing.T) {
	b := &fakeBackend{invoice: domain.Invoice{ID: "inv_1", URL: "https://pay.example/inv_1", Status: domain.InvoiceStatusPending}}
	svc := newTestPaymentService(t, b)

	inv, err := svc.CreateInvoice(context.Background(), "small")
	require.NoError(t, err)

	assert.Equal(t, "inv_1", inv.ID)
	assert.Equal(t, "https://pay.example/inv_1", inv.URL)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	assert.Equal(t, map[string]string{"packageId": "small"}, b.createBody)
}

func TestCreateInvoiceBackendMessage(t *testing.T) {
	b := &fakeBackend{createFail: "Package is not available"}
	svc := newTestPaymentService(t, b)

	_, err := svc.CreateInvoice(context.Background(), "small")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentCreation))
	assert.Equal(t, "Package is not available", domain.DisplayMessage(err))
}

func TestCreateInvoiceNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	svc := NewPaymentService(NewBackendClient(srv.URL, nil))

	_, err := svc.CreateInvoice(context.Background(), "small")

	assert.True(t, errors.Is(err, domain.ErrPaymentCreation))
	assert.Equal(t, config.MsgCreateFailed, domain.DisplayMessage(err))
}

func TestCreateInvoiceRejectsEmptyPackage(t *testing.T) {
	b := &fakeBackend{}
	svc := newTestPaymentService(t, b)

	_, err := svc.CreateInvoice(context.Background(), "  ")

	assert.True(t, errors.Is(err, domain.ErrInvalidPackage))
	assert.True(t, errors.Is(err, domain.ErrPaymentCreation))
	create, _, _ := b.counts()
	assert.Equal(t, 0, create)
}

func TestCreateInvoiceIncompleteResponse(t *testing.T) {
	b := &fakeBackend{invoice: domain.Invoice{ID: "inv_1"}}
	svc := newTestPaymentService(t, b)

	_, err := svc.CreateInvoice(context.Background(), "small")

	assert.True(t, errors.Is(err, domain.ErrPaymentCreation))
}

func TestCheckStatus(t *testing.T) {
	b := &fakeBackend{statuses: []string{"PAID"}}
	svc := newTestPaymentService(t, b)

	report, err := svc.CheckStatus(context.Background(), "inv 1")
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPaid, report.Status)
	assert.Equal(t, "inv 1", report.InvoiceID)
}

func TestCheckStatusError(t *testing.T) {
	b := &fakeBackend{statuses: []string{"ERROR"}}
	svc := newTestPaymentService(t, b)

	_, err := svc.CheckStatus(context.Background(), "inv_1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestProcessPaymentPassesAmountsThrough(t *testing.T) {
	b := &fakeBackend{result: map[string]any{"crypts": 50, "newBalance": 150.25}}
	svc := newTestPaymentService(t, b)

	result, err := svc.ProcessPayment(context.Background(), "inv_1", "small")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(50).Equal(result.Crypts))
	assert.True(t, decimal.RequireFromString("150.25").Equal(result.NewBalance))
	assert.Equal(t, map[string]string{"invoiceId": "inv_1", "packageId": "small"}, b.processBody)
}

func TestProcessPaymentRejected(t *testing.T) {
	b := &fakeBackend{processFail: "Invoice already processed"}
	svc := newTestPaymentService(t, b)

	_, err := svc.ProcessPayment(context.Background(), "inv_1", "small")

	assert.True(t, errors.Is(err, domain.ErrPaymentFinalization))
	assert.Equal(t, "Invoice already processed", domain.DisplayMessage(err))
}

func TestProcessPaymentMissingData(t *testing.T) {
	for name, result := range map[string]map[string]any{
		"no data":         nil,
		"empty data":      {},
		"missing balance": {"crypts": 50},
		"null crypts":     {"crypts": nil, "newBalance": 150},
	} {
		t.Run(name, func(t *testing.T) {
			b := &fakeBackend{result: result}
			svc := newTestPaymentService(t, b)

			res, err := svc.ProcessPayment(context.Background(), "inv_1", "small")

			assert.Nil(t, res)
			assert.True(t, errors.Is(err, domain.ErrPaymentFinalization))
			assert.Equal(t, config.MsgProcessFailed, domain.DisplayMessage(err))
		})
	}
}

func TestListPackages(t *testing.T) {
	b := &fakeBackend{packages: []map[string]any{
		{"id": "small", "name": "Small Cache", "crypts": 50, "price": "4.99", "currency": "USD"},
		{"id": "large", "name": "Large Cache", "crypts": 500, "price": "39.99", "currency": "USD"},
	}}
	svc := newTestPaymentService(t, b)

	packages, err := svc.ListPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "Small Cache", packages[0].Name)
	assert.True(t, decimal.RequireFromString("4.99").Equal(packages[0].Price))

	p, err := svc.FindPackage(context.Background(), "large")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(p.Crypts))

	_, err = svc.FindPackage(context.Background(), "huge")
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)
}

func TestBackendHTMLErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><head><title>502   Bad\n Gateway</title></head><body><h1>nginx</h1></body></html>"))
	}))
	defer srv.Close()
	svc := NewPaymentService(NewBackendClient(srv.URL, srv.Client()))

	_, err := svc.CreateInvoice(context.Background(), "small")

	assert.True(t, errors.Is(err, domain.ErrPaymentCreation))
	assert.Equal(t, "502 Bad Gateway", domain.DisplayMessage(err))
}

func TestBackendUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, false, nil, "Token expired")
	}))
	defer srv.Close()
	svc := NewPaymentService(NewBackendClient(srv.URL, srv.Client()))

	_, err := svc.CheckStatus(context.Background(), "inv_1")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMessageFromBody(t *testing.T) {
	assert.Equal(t, "plain failure", messageFromBody("text/plain", []byte("  plain failure \n")))
	assert.Equal(t, "Oops", messageFromBody("text/html", []byte("<h1> Oops </h1>")))
	assert.Equal(t, "", messageFromBody("text/html", []byte("")))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, messageFromBody("", long), maxErrorMessageLen)
}

func TestListPackagesCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusOK, true, []map[string]any{{"id": "small", "crypts": 50, "price": "4.99"}}, "")
	}))
	defer srv.Close()
	svc := NewPaymentService(NewBackendClient(srv.URL, srv.Client()))

	_, err := svc.ListPackages(context.Background())
	require.NoError(t, err)
	_, err = svc.FindPackage(context.Background(), "small")
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
}

func TestPackagesCacheExpiry(t *testing.T) {
	c := NewPackagesCache(time.Millisecond)
	assert.Nil(t, c.Get())

	c.Set([]domain.Package{{ID: "small"}})
	assert.Len(t, c.Get(), 1)

	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, c.Get())
}
