// Package identity maps heterogeneous per-domain identifiers onto a single
// patient key for joins. Resolution is a pure function of its inputs and
// never fuzzy-matches by name: two distinct keys resolve to the same
// ledger only when the underlying ids are equal.
package identity

import "github.com/carelogic/go-hde/internal/domain/record"

// BedFallbackPrefix prefixes the deterministic key synthesized for an
// occupied bed that carries no patient id. The fallback guarantees the
// patient still receives exactly one ledger.
const BedFallbackPrefix = "bed-"

// FromVisit returns the patient key for an OPD visit: its visit token.
func FromVisit(v record.Visit) string {
	return v.Token
}

// FromBed returns the patient key for a bed. Beds normally carry the
// patient id assigned at admission; when that id is missing the key is
// synthesized from the bed number.
func FromBed(b record.Bed) string {
	if b.PatientID != "" {
		return b.PatientID
	}
	return BedFallbackPrefix + b.Number
}

// IsBedFallback reports whether key was synthesized by FromBed.
func IsBedFallback(key string) bool {
	return len(key) > len(BedFallbackPrefix) && key[:len(BedFallbackPrefix)] == BedFallbackPrefix
}
