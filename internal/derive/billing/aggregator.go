// Package billing joins visit, pharmacy-order and bed/ward/admission
// records into one consolidated ledger per patient. Ledgers are derived
// views: recomputed on every tick, never persisted.
package billing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/identity"
	"github.com/carelogic/go-hde/internal/snapshot"
)

// Aggregator computes per-patient ledgers from a snapshot.
type Aggregator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates a billing aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, now: time.Now}
}

// Compute runs the three join passes (OPD, pharmacy, IPD) over one ledger
// map and recomputes totals. The result is ordered by patient id so a
// tick is deterministic for identical input.
func (a *Aggregator) Compute(snap *snapshot.Snapshot) []record.BillingRecord {
	ledgers := make(map[string]*record.BillingRecord)

	a.opdPass(snap, ledgers)
	a.pharmacyPass(snap, ledgers)
	a.ipdPass(snap, ledgers)

	out := make([]record.BillingRecord, 0, len(ledgers))
	for _, l := range ledgers {
		recomputeTotals(l)
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

// opdPass appends one Pending OPD item per visit with a non-zero fee.
// Payment for consultations is recorded elsewhere.
func (a *Aggregator) opdPass(snap *snapshot.Snapshot, ledgers map[string]*record.BillingRecord) {
	for _, v := range snap.Visits {
		if v.Fee == 0 {
			continue
		}
		key := identity.FromVisit(v)
		l := ensureLedger(ledgers, key, v.PatientName, v.Age, v.Gender, v.Mobile)
		l.Items = append(l.Items, record.BillItem{
			ID:          "opd-" + v.Token,
			Date:        v.CheckInTime,
			Description: "Consultation - " + v.DoctorName,
			Domain:      record.DomainOPD,
			Amount:      v.Fee,
			Status:      record.BillItemPending,
		})
	}
}

// pharmacyPass appends a Paid PHARMACY item for each order whose visit
// already has a ledger entry. Orders for patients with no entry are
// dropped from billing: a pharmacy-only customer with no OPD visit in the
// join set is out of scope for this pass.
func (a *Aggregator) pharmacyPass(snap *snapshot.Snapshot, ledgers map[string]*record.BillingRecord) {
	for _, o := range snap.Orders {
		l, ok := ledgers[o.VisitID]
		if !ok {
			continue
		}
		l.Items = append(l.Items, record.BillItem{
			ID:          "rx-" + o.ID,
			Date:        o.CreatedAt,
			Description: fmt.Sprintf("Pharmacy order (%d items)", len(o.Items)),
			Domain:      record.DomainPharmacy,
			Amount:      o.PaidAmount,
			Status:      record.BillItemPaid,
		})
	}
}

// ipdPass appends room rent for every occupied bed with an admission
// reference. Failed ward/category resolution skips the bed with no
// charge rather than guessing a rate. An IPD-only patient with no
// same-day OPD visit still gets a ledger.
func (a *Aggregator) ipdPass(snap *snapshot.Snapshot, ledgers map[string]*record.BillingRecord) {
	wards := snap.WardIndex()
	admissions := snap.AdmissionIndex()

	for _, b := range snap.Beds {
		if b.Status != record.BedOccupied || b.AdmissionID == "" {
			continue
		}
		adm, ok := admissions[b.AdmissionID]
		if !ok {
			a.logger.Debug("admission not found for occupied bed, skipping charge",
				zap.String("bed", b.Number),
				zap.String("admission_id", b.AdmissionID))
			continue
		}
		ward, ok := wards[b.WardID]
		if !ok {
			a.logger.Debug("ward not found for occupied bed, skipping charge",
				zap.String("bed", b.Number),
				zap.String("ward_id", b.WardID))
			continue
		}
		cat, ok := record.CategoryByName(ward.CategoryType)
		if !ok {
			a.logger.Debug("bed category not found, skipping charge",
				zap.String("ward", ward.Name),
				zap.String("category", ward.CategoryType))
			continue
		}

		days := stayDays(adm.CreatedAt, a.now())
		dailyRate := cat.BaseCharge + cat.NursingCharge
		rent := float64(days) * dailyRate

		key := identity.FromBed(b)
		l := ensureLedger(ledgers, key, b.PatientName, 0, record.GenderOther, "")
		l.Items = append(l.Items, record.BillItem{
			ID:          "ipd-" + b.ID,
			Date:        adm.CreatedAt,
			Description: fmt.Sprintf("Room rent - %s, %d day(s) @ %.0f", ward.Name, days, dailyRate),
			Domain:      record.DomainIPD,
			Amount:      rent,
			Status:      record.BillItemPending,
		})
		l.IPDActive = true
		l.BedDescription = fmt.Sprintf("Bed %s, %s", b.Number, ward.Name)
	}
}

// stayDays is the elapsed full days since admission, rounded up,
// minimum one day.
func stayDays(admittedAt, now time.Time) int {
	elapsed := now.Sub(admittedAt)
	if elapsed <= 0 {
		return 1
	}
	days := int(math.Ceil(elapsed.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func ensureLedger(ledgers map[string]*record.BillingRecord, key, name string, age int, gender, mobile string) *record.BillingRecord {
	if l, ok := ledgers[key]; ok {
		return l
	}
	if gender == "" {
		gender = record.GenderOther
	}
	l := &record.BillingRecord{
		PatientID:   key,
		PatientName: name,
		Age:         age,
		Gender:      gender,
		Mobile:      mobile,
	}
	ledgers[key] = l
	return l
}

// recomputeTotals enforces the ledger invariants: subtotal is the sum of
// all item amounts regardless of status, due = subtotal - paid.
func recomputeTotals(l *record.BillingRecord) {
	var subtotal, paid float64
	for _, item := range l.Items {
		subtotal += item.Amount
		if item.Status == record.BillItemPaid {
			paid += item.Amount
		}
	}
	l.Subtotal = subtotal
	l.Total = subtotal + l.Tax - l.Discount
	l.PaidAmount = paid
	l.DueAmount = subtotal - paid
}

// Lookup finds at most one ledger: exact patient id match first
// (case-insensitive), then substring of patient name, then substring of
// mobile number. An empty query matches nothing.
func Lookup(records []record.BillingRecord, query string) *record.BillingRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	for i := range records {
		if strings.ToLower(records[i].PatientID) == q {
			return &records[i]
		}
	}
	for i := range records {
		if strings.Contains(strings.ToLower(records[i].PatientName), q) {
			return &records[i]
		}
	}
	for i := range records {
		if records[i].Mobile != "" && strings.Contains(records[i].Mobile, q) {
			return &records[i]
		}
	}
	return nil
}
