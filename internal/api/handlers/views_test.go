package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carelogic/go-hde/internal/derive/metrics"
	"github.com/carelogic/go-hde/internal/derive/orders"
	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/snapshot"
	"github.com/carelogic/go-hde/internal/store"
	"github.com/carelogic/go-hde/internal/views"
)

func TestBillingHandlerLookup(t *testing.T) {
	view := views.NewBillingView(nil)
	view.Refresh([]record.BillingRecord{
		{PatientID: "T1", PatientName: "Asha", DueAmount: 500},
	})
	h := NewBillingHandler(view, nil)

	req := httptest.NewRequest(http.MethodGet, "/records?query=T1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got record.BillingRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.PatientID != "T1" || got.DueAmount != 500 {
		t.Errorf("unexpected record: %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/records?query=nobody", nil)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unmatched query, got %d", rec.Code)
	}
}

func TestBillingHandlerSettle(t *testing.T) {
	view := views.NewBillingView(nil)
	view.Refresh([]record.BillingRecord{
		{PatientID: "T1", DueAmount: 750},
	})
	h := NewBillingHandler(view, nil)

	req := httptest.NewRequest(http.MethodPost, "/records/T1/settle", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack views.SettleAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ack.Amount != 750 {
		t.Errorf("expected settled amount 750, got %v", ack.Amount)
	}

	req = httptest.NewRequest(http.MethodPost, "/records/unknown/settle", nil)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown patient, got %d", rec.Code)
	}
}

func newPharmacyFixture(t *testing.T) (*PharmacyHandler, *store.Memory, *int) {
	t.Helper()
	mem := store.NewMemory()
	history := []record.PharmacyOrder{
		{ID: "o1", VisitID: "T1", Status: record.OrderPending},
	}
	if err := mem.Write(context.Background(), record.CollectionOrders, record.EncodeAll(history)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	view := views.NewPharmacyQueueView(snapshot.NewReader(mem, nil), orders.NewMaterializer(mem, nil))
	completions := 0
	h := NewPharmacyHandler(view, nil, func() { completions++ })
	return h, mem, &completions
}

func TestPharmacyHandlerPendingAndMetrics(t *testing.T) {
	h, _, _ := newPharmacyFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Orders []record.PharmacyOrder `json:"orders"`
		Count  int                    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Count != 1 || len(body.Orders) != 1 {
		t.Errorf("unexpected queue: %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var m orders.Metrics
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if m.PendingOrders != 1 {
		t.Errorf("expected 1 pending, got %d", m.PendingOrders)
	}
}

func TestPharmacyHandlerComplete(t *testing.T) {
	h, _, completions := newPharmacyFixture(t)

	do := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders/"+id+"/complete", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		return rec
	}

	if rec := do("o1", `{"paid_amount":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative amount should be 400, got %d", rec.Code)
	}
	if rec := do("o1", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body should be 400, got %d", rec.Code)
	}
	if rec := do("missing", `{"paid_amount":10}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown order should be 404, got %d", rec.Code)
	}

	rec := do("o1", `{"paid_amount":150.50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var done record.PharmacyOrder
	if err := json.NewDecoder(rec.Body).Decode(&done); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if done.Status != record.OrderCompleted || done.PaidAmount != 150.50 {
		t.Errorf("unexpected order: %+v", done)
	}
	if *completions != 1 {
		t.Errorf("completion hook should fire once, got %d", *completions)
	}

	if rec := do("o1", `{"paid_amount":150.50}`); rec.Code != http.StatusConflict {
		t.Errorf("repeat completion should be 409, got %d", rec.Code)
	}
	if *completions != 1 {
		t.Errorf("failed completion must not fire the hook, got %d", *completions)
	}
}

func TestAdminHandlerMetrics(t *testing.T) {
	mem := store.NewMemory()
	view := views.NewAdminDashboardView(snapshot.NewReader(mem, nil), metrics.NewEngine(nil))
	h := NewAdminHandler(view, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics?date=2025-06-10", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var am record.AdminMetrics
	if err := json.NewDecoder(rec.Body).Decode(&am); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if am.Date != "2025-06-10" {
		t.Errorf("unexpected date: %q", am.Date)
	}
	if am.ChaosScore != metrics.BaseScore {
		t.Errorf("empty hospital should score %d, got %d", metrics.BaseScore, am.ChaosScore)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics?date=10-06-2025", nil)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed date should be 400, got %d", rec.Code)
	}
}
