// Package orders converts completed clinical visits into pharmacy orders
// exactly once. The check-before-create pass over the persisted order
// history is the idempotency mechanism: the updated history is written
// back to the store before results are returned, so any subsequent read
// observes a visit as already materialized.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/store"
)

// One-time pricing band for materialized order lines. Prices are sampled
// once and persisted; they are never regenerated for an existing order.
const (
	priceBandLow  = 40.0
	priceBandHigh = 200.0
)

// ErrOrderNotFound indicates the order id has no entry in history.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderNotPending indicates a completion was attempted on a
// non-PENDING order.
var ErrOrderNotPending = errors.New("order is not pending")

// Result summarizes one materialization tick.
type Result struct {
	History []record.PharmacyOrder
	Created []record.PharmacyOrder
}

// Materializer derives pharmacy orders from the visit snapshot.
type Materializer struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
	price  func() float64
}

// NewMaterializer creates a materializer backed by s.
func NewMaterializer(s store.Store, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		store:  s,
		logger: logger,
		now:    time.Now,
		price:  samplePrice,
	}
}

func samplePrice() float64 {
	p := priceBandLow + rand.Float64()*(priceBandHigh-priceBandLow)
	return math.Round(p*100) / 100
}

// qualifies reports whether a visit meets the creation predicate: the
// consultation is finished and at least one drug was prescribed.
func qualifies(v record.Visit) bool {
	if v.Status != record.VisitCompleted && v.Status != record.VisitSentToIPD {
		return false
	}
	return len(v.Prescriptions) > 0
}

// Materialize runs one derivation tick. Existing orders pass through
// unchanged; each qualifying visit not yet represented in history by
// visit id gets exactly one new PENDING order. The updated history is
// persisted before returning. Running twice on unchanged input creates
// nothing new.
func (m *Materializer) Materialize(ctx context.Context, visits []record.Visit, history []record.PharmacyOrder) (*Result, error) {
	seen := make(map[string]struct{}, len(history))
	for _, o := range history {
		seen[o.VisitID] = struct{}{}
	}

	var created []record.PharmacyOrder
	for _, v := range visits {
		if !qualifies(v) {
			continue
		}
		if _, ok := seen[v.Token]; ok {
			continue
		}
		order := m.newOrder(v)
		seen[v.Token] = struct{}{}
		history = append(history, order)
		created = append(created, order)
	}

	if len(created) > 0 {
		if err := m.store.Write(ctx, record.CollectionOrders, record.EncodeAll(history)); err != nil {
			// Nothing was persisted; the next tick repeats the same
			// check-before-create pass on the old history.
			return nil, fmt.Errorf("persist order history: %w", err)
		}
		m.logger.Info("orders materialized", zap.Int("created", len(created)))
	}

	return &Result{History: history, Created: created}, nil
}

func (m *Materializer) newOrder(v record.Visit) record.PharmacyOrder {
	items := make([]record.OrderItem, 0, len(v.Prescriptions))
	for _, p := range v.Prescriptions {
		items = append(items, record.OrderItem{
			Drug:      p.Drug,
			Dosage:    p.Dosage,
			Duration:  p.Duration,
			UnitPrice: m.price(),
			Selected:  true,
		})
	}

	age := v.Age
	if age < 0 {
		age = 0
	}
	gender := v.Gender
	if gender == "" {
		gender = record.GenderOther
	}

	return record.PharmacyOrder{
		ID:          uuid.New().String(),
		VisitID:     v.Token,
		PatientName: v.PatientName,
		Age:         age,
		Gender:      gender,
		DoctorName:  v.DoctorName,
		CreatedAt:   m.now().UTC(),
		Items:       items,
		Status:      record.OrderPending,
		TotalAmount: 0,
		PaidAmount:  0,
	}
}

// ProcessOrder is the external checkout action: PENDING to COMPLETED. It
// stamps the paid amount and completion time and replaces the stored
// entry by order id rather than appending a duplicate.
func (m *Materializer) ProcessOrder(ctx context.Context, orderID string, paidAmount float64) (*record.PharmacyOrder, error) {
	raw, err := m.store.Read(ctx, record.CollectionOrders)
	if err != nil {
		return nil, fmt.Errorf("read order history: %w", err)
	}
	history := record.DecodeOrders(raw)

	idx := -1
	for i, o := range history {
		if o.ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrOrderNotFound
	}
	if history[idx].Status != record.OrderPending {
		return nil, ErrOrderNotPending
	}

	completedAt := m.now().UTC()
	history[idx].Status = record.OrderCompleted
	history[idx].PaidAmount = paidAmount
	history[idx].TotalAmount = paidAmount
	history[idx].CompletedAt = &completedAt

	if err := m.store.Write(ctx, record.CollectionOrders, record.EncodeAll(history)); err != nil {
		return nil, fmt.Errorf("persist order history: %w", err)
	}

	order := history[idx]
	m.logger.Info("order completed",
		zap.String("order_id", order.ID),
		zap.String("visit_id", order.VisitID),
		zap.Float64("paid", paidAmount))
	return &order, nil
}

// PendingQueue returns the active queue: PENDING orders in history order.
// COMPLETED orders are excluded here but retained for metrics.
func PendingQueue(history []record.PharmacyOrder) []record.PharmacyOrder {
	var pending []record.PharmacyOrder
	for _, o := range history {
		if o.Status == record.OrderPending {
			pending = append(pending, o)
		}
	}
	return pending
}

// Metrics summarizes the order history for the pharmacy queue view.
type Metrics struct {
	PendingOrders   int     `json:"pendingOrders"`
	CompletedOrders int     `json:"completedOrders"`
	Revenue         float64 `json:"revenue"`
}

// Summarize computes pharmacy queue metrics over the full history.
// Revenue counts COMPLETED orders only.
func Summarize(history []record.PharmacyOrder) Metrics {
	var m Metrics
	for _, o := range history {
		switch o.Status {
		case record.OrderPending:
			m.PendingOrders++
		case record.OrderCompleted:
			m.CompletedOrders++
			m.Revenue += o.PaidAmount
		}
	}
	return m
}
