// Package metrics aggregates operational counters into the admin
// dashboard payload: a bounded composite chaos score and a discrete
// alert set, evaluated against the current snapshot.
package metrics

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/snapshot"
)

// Threshold and scoring constants. Score contributions are additive,
// never subtractive; the published value is the clamped sum.
const (
	BaseScore = 20

	WaitTimeCritical  = 45 // minutes
	waitTimeScore     = 20
	DoctorOverloadMax = 8 // queue length
	doctorScoreEach   = 10
	OccupancyCritical = 85 // percent
	occupancyScore    = 15
	AdmissionBacklog  = 5
	admissionScore    = 10
	emergencyScore    = 15
)

// The hourly histogram covers a fixed 12-bucket window anchored at the
// OPD opening hour; check-ins outside the window are ignored.
const (
	HistogramStartHour = 8
	HistogramBuckets   = 12
)

// Engine computes AdminMetrics for a reference day.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a metrics engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, now: time.Now}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Compute filters all collections to the reference calendar day and
// evaluates counters, alerts and the chaos score. Alerts that only make
// sense for live data (doctor overload, admission backlog, recent
// emergencies) are evaluated only when refDay is today.
func (e *Engine) Compute(snap *snapshot.Snapshot, refDay time.Time) record.AdminMetrics {
	now := e.now()
	isToday := sameDay(refDay, now)

	opd := e.opdMetrics(snap, refDay)
	ipd := e.ipdMetrics(snap, refDay)
	revenue := pharmacyRevenue(snap.Orders, refDay)

	score := BaseScore
	var alerts []string

	if opd.AvgWaitTime > WaitTimeCritical {
		alerts = append(alerts, fmt.Sprintf("Average wait time %d min exceeds %d min threshold", opd.AvgWaitTime, WaitTimeCritical))
		score += waitTimeScore
	}

	if isToday {
		overloaded := 0
		for _, d := range snap.Doctors {
			if d.QueueCount > DoctorOverloadMax {
				overloaded++
			}
		}
		if overloaded > 0 {
			alerts = append(alerts, fmt.Sprintf("%d doctor(s) overloaded (queue > %d)", overloaded, DoctorOverloadMax))
			score += overloaded * doctorScoreEach
		}
	}

	if ipd.OccupancyRate > OccupancyCritical {
		alerts = append(alerts, fmt.Sprintf("Bed occupancy %d%% exceeds %d%% threshold", ipd.OccupancyRate, OccupancyCritical))
		score += occupancyScore
	}

	if isToday && ipd.PendingAdmissions > AdmissionBacklog {
		alerts = append(alerts, fmt.Sprintf("%d admission requests pending", ipd.PendingAdmissions))
		score += admissionScore
	}

	if isToday && hasRecentEmergency(snap.Visits, now) {
		score += emergencyScore
	}

	return record.AdminMetrics{
		Date:            refDay.Format("2006-01-02"),
		OPD:             opd,
		IPD:             ipd,
		PharmacyRevenue: revenue,
		ChaosScore:      clampScore(score),
		Alerts:          alerts,
	}
}

func (e *Engine) opdMetrics(snap *snapshot.Snapshot, refDay time.Time) record.OPDMetrics {
	m := record.OPDMetrics{
		DoctorLoad:   make(map[string]int),
		HourlyVisits: make([]int, HistogramBuckets),
	}

	var waitSum, waitCount int
	for _, v := range snap.Visits {
		if !sameDay(v.CheckInTime, refDay) {
			continue
		}
		m.TotalVisits++
		switch v.Status {
		case record.VisitWaiting, record.VisitInProgress:
			m.ActiveVisits++
		case record.VisitCompleted, record.VisitSentToIPD:
			m.CompletedVisits++
		}
		if v.IsEmergency {
			m.EmergencyVisits++
		}
		waitSum += v.WaitTime
		waitCount++

		if bucket := v.CheckInTime.Hour() - HistogramStartHour; bucket >= 0 && bucket < HistogramBuckets {
			m.HourlyVisits[bucket]++
		}
	}

	if waitCount > 0 {
		m.AvgWaitTime = int(math.Round(float64(waitSum) / float64(waitCount)))
	}

	for _, d := range snap.Doctors {
		m.DoctorLoad[d.Name] = d.QueueCount
		switch d.Status {
		case record.DoctorAvailable:
			m.DoctorStatus.Available++
		case record.DoctorBusy:
			m.DoctorStatus.Busy++
		case record.DoctorUnavailable:
			m.DoctorStatus.Unavailable++
		}
	}

	return m
}

func (e *Engine) ipdMetrics(snap *snapshot.Snapshot, refDay time.Time) record.IPDMetrics {
	var m record.IPDMetrics

	for _, b := range snap.Beds {
		m.TotalBeds++
		if b.Status == record.BedOccupied {
			m.OccupiedBeds++
		} else if b.Status == record.BedFree {
			m.FreeBeds++
		}
	}
	m.OccupancyRate = OccupancyRate(m.OccupiedBeds, m.TotalBeds)

	for _, a := range snap.Admissions {
		if !sameDay(a.CreatedAt, refDay) {
			continue
		}
		m.TotalAdmissions++
		if a.Status == record.AdmissionPending {
			m.PendingAdmissions++
		}
	}

	return m
}

// OccupancyRate is round(100*occupied/total), defined as 0 when there
// are no beds.
func OccupancyRate(occupied, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(occupied) / float64(total)))
}

// pharmacyRevenue sums paid amounts of COMPLETED orders completed on the
// reference day.
func pharmacyRevenue(orders []record.PharmacyOrder, refDay time.Time) float64 {
	var revenue float64
	for _, o := range orders {
		if o.Status != record.OrderCompleted || o.CompletedAt == nil {
			continue
		}
		if sameDay(*o.CompletedAt, refDay) {
			revenue += o.PaidAmount
		}
	}
	return revenue
}

// hasRecentEmergency reports whether any emergency-flagged visit checked
// in within the last hour.
func hasRecentEmergency(visits []record.Visit, now time.Time) bool {
	cutoff := now.Add(-time.Hour)
	for _, v := range visits {
		if v.IsEmergency && v.CheckInTime.After(cutoff) && !v.CheckInTime.After(now) {
			return true
		}
	}
	return false
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
