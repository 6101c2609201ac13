// Package record defines the store-resident hospital records and the
// derived views computed from them. Each collection is owned by its
// producing domain; the derivation engines only read and, for pharmacy
// orders, append.
package record

import (
	"encoding/json"
	"time"
)

// Collection keys in the shared store.
const (
	CollectionVisits     = "opd.visit_queue"
	CollectionDoctors    = "opd.doctor_roster"
	CollectionBeds       = "ipd.bed_roster"
	CollectionWards      = "ipd.ward_roster"
	CollectionAdmissions = "ipd.admission_requests"
	CollectionOrders     = "pharmacy.order_history"
)

// VisitStatus represents the lifecycle state of an OPD visit.
type VisitStatus string

const (
	VisitWaiting    VisitStatus = "waiting"
	VisitInProgress VisitStatus = "in-progress"
	VisitCompleted  VisitStatus = "completed"
	VisitSentToIPD  VisitStatus = "sent-to-ipd"
)

// DoctorStatus represents doctor availability.
type DoctorStatus string

const (
	DoctorAvailable   DoctorStatus = "AVAILABLE"
	DoctorBusy        DoctorStatus = "BUSY"
	DoctorUnavailable DoctorStatus = "UNAVAILABLE"
)

// BedStatus represents bed occupancy state.
type BedStatus string

const (
	BedFree     BedStatus = "FREE"
	BedOccupied BedStatus = "OCCUPIED"
	BedCleaning BedStatus = "CLEANING"
)

// Urgency classifies an admission request.
type Urgency string

const (
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// AdmissionStatus represents the state of an admission request.
type AdmissionStatus string

const (
	AdmissionPending         AdmissionStatus = "PENDING"
	AdmissionPatientSelected AdmissionStatus = "PATIENT_SELECTED"
)

// OrderStatus represents the state of a pharmacy order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
)

// BillDomain tags a bill line item with its originating domain.
type BillDomain string

const (
	DomainOPD      BillDomain = "OPD"
	DomainIPD      BillDomain = "IPD"
	DomainPharmacy BillDomain = "PHARMACY"
	DomainLab      BillDomain = "LAB"
)

// BillItemStatus is the payment state of a single bill line.
type BillItemStatus string

const (
	BillItemPending BillItemStatus = "Pending"
	BillItemPaid    BillItemStatus = "Paid"
)

// GenderOther is the sentinel used when a record carries no gender.
const GenderOther = "other"

// Prescription is a single drug entry on a visit.
type Prescription struct {
	Drug     string `json:"drug"`
	Dosage   string `json:"dosage,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Visit is an OPD visit record. Created at registration, mutated through
// status transitions, never deleted within a day's window.
type Visit struct {
	Token         string         `json:"token"`
	PatientName   string         `json:"patientName"`
	Age           int            `json:"age"`
	Gender        string         `json:"gender"`
	Mobile        string         `json:"mobile"`
	DoctorName    string         `json:"doctorName"`
	CheckInTime   time.Time      `json:"checkInTime"`
	Status        VisitStatus    `json:"status"`
	WaitTime      int            `json:"waitTime"`
	Fee           float64        `json:"fee"`
	Prescriptions []Prescription `json:"prescriptions,omitempty"`
	IsEmergency   bool           `json:"isEmergency"`
}

// Doctor is a roster entry mutated by scheduling outside this engine.
type Doctor struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Status     DoctorStatus `json:"status"`
	QueueCount int          `json:"queueCount"`
}

// Bed is a ward bed whose occupancy is mutated by the admission workflow.
type Bed struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	WardID      string    `json:"wardId"`
	Status      BedStatus `json:"status"`
	PatientID   string    `json:"patientId,omitempty"`
	AdmissionID string    `json:"admissionId,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
}

// Ward groups beds under a category type.
type Ward struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryType string `json:"categoryType"`
}

// BedCategory carries the daily charges applied to IPD room rent.
type BedCategory struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BaseCharge    float64  `json:"baseCharge"`
	NursingCharge float64  `json:"nursingCharge"`
	Features      []string `json:"features,omitempty"`
}

// AdmissionRequest is created by the recommending workflow and consumed
// by admission.
type AdmissionRequest struct {
	ID                  string          `json:"id"`
	DoctorName          string          `json:"doctorName"`
	Reason              string          `json:"reason"`
	Urgency             Urgency         `json:"urgency"`
	RecommendedCategory string          `json:"recommendedCategory"`
	Status              AdmissionStatus `json:"status"`
	SelectedPatient     string          `json:"selectedPatient,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// OrderItem is a pharmacy order line. UnitPrice is assigned once at
// materialization and never regenerated.
type OrderItem struct {
	Drug      string  `json:"drug"`
	Dosage    string  `json:"dosage,omitempty"`
	Duration  string  `json:"duration,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Selected  bool    `json:"selected"`
}

// PharmacyOrder is materialized exactly once per qualifying visit. At most
// one PENDING order exists per visit id.
type PharmacyOrder struct {
	ID          string      `json:"id"`
	VisitID     string      `json:"visitId"`
	PatientName string      `json:"patientName"`
	Age         int         `json:"age"`
	Gender      string      `json:"gender"`
	DoctorName  string      `json:"doctorName"`
	CreatedAt   time.Time   `json:"createdAt"`
	Items       []OrderItem `json:"items"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	PaidAmount  float64     `json:"paidAmount"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// BillItem is a single line of a consolidated bill.
type BillItem struct {
	ID          string         `json:"id"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Domain      BillDomain     `json:"domain"`
	Amount      float64        `json:"amount"`
	Status      BillItemStatus `json:"status"`
}

// BillingRecord is the derived per-patient ledger. It is recomputed on
// every tick and never persisted.
type BillingRecord struct {
	PatientID      string     `json:"patientId"`
	PatientName    string     `json:"patientName"`
	Age            int        `json:"age"`
	Gender         string     `json:"gender"`
	Mobile         string     `json:"mobile"`
	Items          []BillItem `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	Tax            float64    `json:"tax"`
	Discount       float64    `json:"discount"`
	Total          float64    `json:"total"`
	PaidAmount     float64    `json:"paidAmount"`
	DueAmount      float64    `json:"dueAmount"`
	IPDActive      bool       `json:"ipdActive,omitempty"`
	BedDescription string     `json:"bedDescription,omitempty"`
}

// DoctorStatusTally counts doctors by availability.
type DoctorStatusTally struct {
	Available   int `json:"available"`
	Busy        int `json:"busy"`
	Unavailable int `json:"unavailable"`
}

// OPDMetrics aggregates outpatient counters for a reference day.
type OPDMetrics struct {
	TotalVisits     int               `json:"totalVisits"`
	ActiveVisits    int               `json:"activeVisits"`
	CompletedVisits int               `json:"completedVisits"`
	EmergencyVisits int               `json:"emergencyVisits"`
	AvgWaitTime     int               `json:"avgWaitTime"`
	DoctorLoad      map[string]int    `json:"doctorLoad"`
	HourlyVisits    []int             `json:"hourlyVisits"`
	DoctorStatus    DoctorStatusTally `json:"doctorStatus"`
}

// IPDMetrics aggregates inpatient counters.
type IPDMetrics struct {
	TotalBeds         int `json:"totalBeds"`
	OccupiedBeds      int `json:"occupiedBeds"`
	FreeBeds          int `json:"freeBeds"`
	OccupancyRate     int `json:"occupancyRate"`
	PendingAdmissions int `json:"pendingAdmissions"`
	TotalAdmissions   int `json:"totalAdmissions"`
}

// AdminMetrics is the derived operational dashboard payload.
type AdminMetrics struct {
	Date            string     `json:"date"`
	OPD             OPDMetrics `json:"opd"`
	IPD             IPDMetrics `json:"ipd"`
	PharmacyRevenue float64    `json:"pharmacyRevenue"`
	ChaosScore      int        `json:"chaosScore"`
	Alerts          []string   `json:"alerts"`
}

// Built-in bed categories. Wards reference these by name; there is no
// store collection for them.
var BedCategories = []BedCategory{
	{ID: "cat-general", Name: "GENERAL", BaseCharge: 1000, NursingCharge: 200, Features: []string{"Shared room", "Nurse call"}},
	{ID: "cat-semi", Name: "SEMI_PRIVATE", BaseCharge: 2000, NursingCharge: 300, Features: []string{"Two beds", "Attached bath"}},
	{ID: "cat-private", Name: "PRIVATE", BaseCharge: 3500, NursingCharge: 500, Features: []string{"Single room", "TV", "Attendant couch"}},
	{ID: "cat-icu", Name: "ICU", BaseCharge: 5000, NursingCharge: 1000, Features: []string{"Ventilator", "Central monitoring"}},
}

// CategoryByName resolves a bed category by its name. Returns false when
// no category matches; callers skip the charge rather than guess a rate.
func CategoryByName(name string) (BedCategory, bool) {
	for _, c := range BedCategories {
		if c.Name == name {
			return c, true
		}
	}
	return BedCategory{}, false
}

// decodeAll unmarshals each raw record independently, dropping records
// that fail to decode. A malformed record never poisons its collection.
func decodeAll[T any](raw []json.RawMessage, normalize func(*T)) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		if normalize != nil {
			normalize(&v)
		}
		out = append(out, v)
	}
	return out
}

// DecodeVisits decodes the visit queue with data-quality fallbacks:
// negative ages coerce to 0 and a missing gender defaults to "other".
func DecodeVisits(raw []json.RawMessage) []Visit {
	return decodeAll(raw, func(v *Visit) {
		if v.Age < 0 {
			v.Age = 0
		}
		if v.Gender == "" {
			v.Gender = GenderOther
		}
	})
}

// DecodeDoctors decodes the doctor roster.
func DecodeDoctors(raw []json.RawMessage) []Doctor {
	return decodeAll[Doctor](raw, nil)
}

// DecodeBeds decodes the bed roster.
func DecodeBeds(raw []json.RawMessage) []Bed {
	return decodeAll[Bed](raw, nil)
}

// DecodeWards decodes the ward roster.
func DecodeWards(raw []json.RawMessage) []Ward {
	return decodeAll[Ward](raw, nil)
}

// DecodeAdmissions decodes the admission request collection.
func DecodeAdmissions(raw []json.RawMessage) []AdmissionRequest {
	return decodeAll[AdmissionRequest](raw, nil)
}

// DecodeOrders decodes the pharmacy order history.
func DecodeOrders(raw []json.RawMessage) []PharmacyOrder {
	return decodeAll(raw, func(o *PharmacyOrder) {
		if o.Gender == "" {
			o.Gender = GenderOther
		}
	})
}

// EncodeAll marshals records for a store write. Records that fail to
// marshal are skipped; domain types here cannot fail to marshal.
func EncodeAll[T any](items []T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, json.RawMessage(b))
	}
	return out
}
