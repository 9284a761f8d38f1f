package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/darknetduel/client/internal/domain"
)

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
	hang  bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	if !t.hang {
		t.c <- time.Now()
	}
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

func (t *fakeTimer) factory() func() backoff.Timer {
	return func() backoff.Timer { return t }
}

// fakeBackend serves the three payment endpoints and counts calls.
type fakeBackend struct {
	mu sync.Mutex

	invoice      domain.Invoice
	createFail   string
	statuses     []string // "ERROR" answers with a 500
	result       map[string]any
	processFail  string
	packages     []map[string]any
	lastStatus   string
	createCalls  int
	statusCalls  int
	processCalls int
	processBody  map[string]string
	createBody   map[string]string
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payment/create", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.createCalls++
		json.NewDecoder(r.Body).Decode(&b.createBody)
		if b.createFail != "" {
			writeEnvelope(w, http.StatusBadRequest, false, nil, b.createFail)
			return
		}
		writeEnvelope(w, http.StatusOK, true, b.invoice, "")
	})
	mux.HandleFunc("GET /payment/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.statusCalls++
		status := b.lastStatus
		if len(b.statuses) > 0 {
			status = b.statuses[0]
			b.statuses = b.statuses[1:]
		}
		if status == "ERROR" {
			writeEnvelope(w, http.StatusInternalServerError, false, nil, "upstream unavailable")
			return
		}
		writeEnvelope(w, http.StatusOK, true, map[string]string{"status": status, "invoiceId": r.PathValue("id")}, "")
	})
	mux.HandleFunc("POST /payment/process", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.processCalls++
		json.NewDecoder(r.Body).Decode(&b.processBody)
		if b.processFail != "" {
			writeEnvelope(w, http.StatusConflict, false, nil, b.processFail)
			return
		}
		writeEnvelope(w, http.StatusOK, true, b.result, "")
	})
	mux.HandleFunc("GET /payment/packages", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, b.packages, "")
	})
	return mux
}

func (b *fakeBackend) counts() (create, status, process int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls, b.statusCalls, b.processCalls
}

func writeEnvelope(w http.ResponseWriter, code int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"data":    data,
		"message": message,
	})
}

func newTestPaymentService(t *testing.T, b *fakeBackend) *PaymentService {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return NewPaymentService(NewBackendClient(srv.URL+"/", srv.Client()))
}

// fakeWindow resolves immediately with a fixed answer.
type fakeWindow struct {
	closed bool
	urls   []string
}

func (w *fakeWindow) Await(_ context.Context, url string) bool {
	w.urls = append(w.urls, url)
	return w.closed
}

type recordingJournal struct {
	mu          sync.Mutex
	started     []domain.PurchaseAttempt
	transitions []domain.Transition
}

func (j *recordingJournal) Start(_ context.Context, attempt domain.PurchaseAttempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, attempt)
	return nil
}

func (j *recordingJournal) Transition(_ context.Context, _ domain.PurchaseAttempt, tr domain.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, tr)
	return nil
}

func (j *recordingJournal) states() []domain.FlowState {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.FlowState
	for _, tr := range j.transitions {
		out = append(out, tr.To)
	}
	return out
}

type recordingNotifier struct {
	succeeded []domain.PurchaseAttempt
	failed    []domain.PurchaseAttempt
	errs      []error
}

func (n *recordingNotifier) PurchaseSucceeded(a domain.PurchaseAttempt) {
	n.succeeded = append(n.succeeded, a)
}

func (n *recordingNotifier) PurchaseFailed(a domain.PurchaseAttempt, err error) {
	n.failed = append(n.failed, a)
	n.errs = append(n.errs, err)
}
