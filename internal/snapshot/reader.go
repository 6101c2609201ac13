// Package snapshot reads all domain collections needed by a derivation in
// one pass per tick. The store guarantees no cross-collection
// transactionality; derivations tolerate read skew but a malformed or
// absent collection must never fail a tick.
package snapshot

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/store"
)

// Snapshot is the point-in-time input to a derivation tick.
type Snapshot struct {
	Visits     []record.Visit
	Doctors    []record.Doctor
	Beds       []record.Bed
	Wards      []record.Ward
	Admissions []record.AdmissionRequest
	Orders     []record.PharmacyOrder
}

// Reader takes snapshots from the collection store.
type Reader struct {
	store  store.Store
	logger *zap.Logger
}

// NewReader creates a snapshot reader.
func NewReader(s store.Store, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{store: s, logger: logger}
}

// Take reads all six collections. A collection that cannot be read or
// decoded becomes empty rather than failing the snapshot.
func (r *Reader) Take(ctx context.Context) *Snapshot {
	return &Snapshot{
		Visits:     record.DecodeVisits(r.read(ctx, record.CollectionVisits)),
		Doctors:    record.DecodeDoctors(r.read(ctx, record.CollectionDoctors)),
		Beds:       record.DecodeBeds(r.read(ctx, record.CollectionBeds)),
		Wards:      record.DecodeWards(r.read(ctx, record.CollectionWards)),
		Admissions: record.DecodeAdmissions(r.read(ctx, record.CollectionAdmissions)),
		Orders:     record.DecodeOrders(r.read(ctx, record.CollectionOrders)),
	}
}

func (r *Reader) read(ctx context.Context, collection string) []json.RawMessage {
	records, err := r.store.Read(ctx, collection)
	if err != nil {
		r.logger.Warn("collection read failed, treating as empty",
			zap.String("collection", collection),
			zap.Error(err))
		return nil
	}
	return records
}

// VisitIndex maps visit tokens to their visit for join passes.
func (s *Snapshot) VisitIndex() map[string]record.Visit {
	idx := make(map[string]record.Visit, len(s.Visits))
	for _, v := range s.Visits {
		idx[v.Token] = v
	}
	return idx
}

// WardIndex maps ward ids to wards.
func (s *Snapshot) WardIndex() map[string]record.Ward {
	idx := make(map[string]record.Ward, len(s.Wards))
	for _, w := range s.Wards {
		idx[w.ID] = w
	}
	return idx
}

// AdmissionIndex maps admission request ids to requests.
func (s *Snapshot) AdmissionIndex() map[string]record.AdmissionRequest {
	idx := make(map[string]record.AdmissionRequest, len(s.Admissions))
	for _, a := range s.Admissions {
		idx[a.ID] = a
	}
	return idx
}
