package redpanda

import (
	"encoding/json"
	"time"
)

// OrderMaterializedEvent announces a newly materialized pharmacy order.
type OrderMaterializedEvent struct {
	OrderID     string    `json:"order_id"`
	VisitID     string    `json:"visit_id"`
	PatientName string    `json:"patient_name"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// BillingRecomputedEvent announces a completed billing tick.
type BillingRecomputedEvent struct {
	LedgerCount int       `json:"ledger_count"`
	TotalDue    float64   `json:"total_due"`
	ComputedAt  time.Time `json:"computed_at"`
}

// AlertRaisedEvent announces the alert set of a metrics tick.
type AlertRaisedEvent struct {
	ChaosScore int       `json:"chaos_score"`
	Alerts     []string  `json:"alerts"`
	RaisedAt   time.Time `json:"raised_at"`
}

// RecordUpdateEvent carries a collection replacement produced by an
// external domain writer, consumed by the record relay.
type RecordUpdateEvent struct {
	Collection string            `json:"collection"`
	Records    []json.RawMessage `json:"records"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
