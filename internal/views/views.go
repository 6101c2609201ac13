// Package views exposes the published derivation results to UI
// collaborators: the billing desk, the pharmacy queue and the admin
// dashboard.
package views

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/derive/billing"
	"github.com/carelogic/go-hde/internal/derive/metrics"
	"github.com/carelogic/go-hde/internal/derive/orders"
	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/snapshot"
)

// BillingView serves ledger lookups against the most recent billing tick.
type BillingView struct {
	logger *zap.Logger

	mu      sync.RWMutex
	current []record.BillingRecord
}

// NewBillingView creates an empty billing view; Refresh installs results.
func NewBillingView(logger *zap.Logger) *BillingView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingView{logger: logger}
}

// Refresh replaces the served ledgers with a fresh tick result.
func (v *BillingView) Refresh(records []record.BillingRecord) {
	v.mu.Lock()
	v.current = records
	v.mu.Unlock()
}

// Lookup finds at most one ledger by exact id, name substring or mobile
// substring. An empty query returns no match.
func (v *BillingView) Lookup(query string) *record.BillingRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if match := billing.Lookup(v.current, query); match != nil {
		cp := *match
		return &cp
	}
	return nil
}

// SettleAck acknowledges a settlement request. Persisting a payment
// transaction ledger is delegated to the billing collaborator.
type SettleAck struct {
	PatientID string    `json:"patientId"`
	Amount    float64   `json:"amount"`
	SettledAt time.Time `json:"settledAt"`
}

// Settle acknowledges settlement of a patient's due amount. Returns false
// when no ledger exists for the id.
func (v *BillingView) Settle(patientID string) (SettleAck, bool) {
	match := v.Lookup(patientID)
	if match == nil {
		return SettleAck{}, false
	}
	v.logger.Info("bill settled",
		zap.String("patient_id", match.PatientID),
		zap.Float64("amount", match.DueAmount))
	return SettleAck{
		PatientID: match.PatientID,
		Amount:    match.DueAmount,
		SettledAt: time.Now().UTC(),
	}, true
}

// PharmacyQueueView serves the active order queue. Reads go to the store
// on demand so the queue reflects the materializer's latest write.
type PharmacyQueueView struct {
	reader *snapshot.Reader
	mat    *orders.Materializer
}

// NewPharmacyQueueView creates a pharmacy queue view.
func NewPharmacyQueueView(reader *snapshot.Reader, mat *orders.Materializer) *PharmacyQueueView {
	return &PharmacyQueueView{reader: reader, mat: mat}
}

// Pending returns PENDING orders in history order.
func (v *PharmacyQueueView) Pending(ctx context.Context) []record.PharmacyOrder {
	snap := v.reader.Take(ctx)
	return orders.PendingQueue(snap.Orders)
}

// Metrics returns queue counters and revenue over the full history.
func (v *PharmacyQueueView) Metrics(ctx context.Context) orders.Metrics {
	snap := v.reader.Take(ctx)
	return orders.Summarize(snap.Orders)
}

// Complete transitions an order PENDING to COMPLETED with the amount
// collected at checkout.
func (v *PharmacyQueueView) Complete(ctx context.Context, orderID string, paidAmount float64) (*record.PharmacyOrder, error) {
	return v.mat.ProcessOrder(ctx, orderID, paidAmount)
}

// AdminDashboardView computes metrics on demand for a caller-supplied
// reference date.
type AdminDashboardView struct {
	reader *snapshot.Reader
	engine *metrics.Engine
}

// NewAdminDashboardView creates an admin dashboard view.
func NewAdminDashboardView(reader *snapshot.Reader, engine *metrics.Engine) *AdminDashboardView {
	return &AdminDashboardView{reader: reader, engine: engine}
}

// Metrics re-evaluates the dashboard for the given reference day.
func (v *AdminDashboardView) Metrics(ctx context.Context, refDay time.Time) record.AdminMetrics {
	snap := v.reader.Take(ctx)
	return v.engine.Compute(snap, refDay)
}
