package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/carelogic/go-hde/internal/domain/record"
	"github.com/carelogic/go-hde/internal/snapshot"
)

var testNow = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(nil)
	e.now = func() time.Time { return testNow }
	return e
}

func TestComputeEmptySnapshot(t *testing.T) {
	e := newTestEngine()

	am := e.Compute(&snapshot.Snapshot{}, testNow)

	if am.ChaosScore != BaseScore {
		t.Errorf("empty hospital should score %d, got %d", BaseScore, am.ChaosScore)
	}
	if len(am.Alerts) != 0 {
		t.Errorf("expected no alerts, got %v", am.Alerts)
	}
	if am.Date != "2025-06-10" {
		t.Errorf("unexpected date: %q", am.Date)
	}
	if am.IPD.OccupancyRate != 0 {
		t.Errorf("occupancy with no beds must be 0, got %d", am.IPD.OccupancyRate)
	}
	if len(am.OPD.HourlyVisits) != HistogramBuckets {
		t.Errorf("expected %d histogram buckets, got %d", HistogramBuckets, len(am.OPD.HourlyVisits))
	}
}

func TestComputeWaitTimeAlert(t *testing.T) {
	e := newTestEngine()
	snap := &snapshot.Snapshot{
		Visits: []record.Visit{
			{Token: "T1", CheckInTime: testNow.Add(-2 * time.Hour), Status: record.VisitWaiting, WaitTime: 50},
		},
	}

	am := e.Compute(snap, testNow)
	if am.ChaosScore != BaseScore+20 {
		t.Errorf("expected score %d, got %d", BaseScore+20, am.ChaosScore)
	}
	if len(am.Alerts) != 1 || !strings.Contains(am.Alerts[0], "wait time") {
		t.Errorf("expected wait time alert, got %v", am.Alerts)
	}
	if am.OPD.AvgWaitTime != 50 {
		t.Errorf("expected avg wait 50, got %d", am.OPD.AvgWaitTime)
	}
}

func TestComputeDoctorOverloadTodayOnly(t *testing.T) {
	e := newTestEngine()
	snap := &snapshot.Snapshot{
		Doctors: []record.Doctor{
			{ID: "d1", Name: "Dr. Rao", Status: record.DoctorBusy, QueueCount: 12},
			{ID: "d2", Name: "Dr. Iyer", Status: record.DoctorAvailable, QueueCount: 3},
		},
	}

	today := e.Compute(snap, testNow)
	if today.ChaosScore != BaseScore+10 {
		t.Errorf("expected score %d, got %d", BaseScore+10, today.ChaosScore)
	}
	if len(today.Alerts) != 1 || !strings.Contains(today.Alerts[0], "overloaded") {
		t.Errorf("expected overload alert, got %v", today.Alerts)
	}

	// A historical reference day skips live-data alerts.
	yesterday := e.Compute(snap, testNow.AddDate(0, 0, -1))
	if yesterday.ChaosScore != BaseScore {
		t.Errorf("historical day should not score overloads, got %d", yesterday.ChaosScore)
	}
	if len(yesterday.Alerts) != 0 {
		t.Errorf("historical day should raise no live alerts, got %v", yesterday.Alerts)
	}
}

func TestComputeScoreClampsAt100(t *testing.T) {
	e := newTestEngine()
	doctors := make([]record.Doctor, 20)
	for i := range doctors {
		doctors[i] = record.Doctor{Name: "Dr. X", QueueCount: DoctorOverloadMax + 1}
	}

	am := e.Compute(&snapshot.Snapshot{Doctors: doctors}, testNow)
	if am.ChaosScore != 100 {
		t.Errorf("score must clamp at 100, got %d", am.ChaosScore)
	}
}

func TestComputeOccupancyAlert(t *testing.T) {
	e := newTestEngine()
	beds := make([]record.Bed, 10)
	for i := range beds {
		beds[i] = record.Bed{Status: record.BedOccupied}
	}
	beds[9].Status = record.BedFree

	am := e.Compute(&snapshot.Snapshot{Beds: beds}, testNow)
	if am.IPD.OccupancyRate != 90 {
		t.Errorf("expected occupancy 90, got %d", am.IPD.OccupancyRate)
	}
	if am.ChaosScore != BaseScore+15 {
		t.Errorf("expected score %d, got %d", BaseScore+15, am.ChaosScore)
	}
	if len(am.Alerts) != 1 || !strings.Contains(am.Alerts[0], "occupancy") {
		t.Errorf("expected occupancy alert, got %v", am.Alerts)
	}
}

func TestComputeAdmissionBacklogAlert(t *testing.T) {
	e := newTestEngine()
	admissions := make([]record.AdmissionRequest, 6)
	for i := range admissions {
		admissions[i] = record.AdmissionRequest{Status: record.AdmissionPending, CreatedAt: testNow}
	}

	am := e.Compute(&snapshot.Snapshot{Admissions: admissions}, testNow)
	if am.IPD.PendingAdmissions != 6 {
		t.Errorf("expected 6 pending, got %d", am.IPD.PendingAdmissions)
	}
	if am.ChaosScore != BaseScore+10 {
		t.Errorf("expected score %d, got %d", BaseScore+10, am.ChaosScore)
	}
}

func TestComputeRecentEmergencyScoresWithoutAlert(t *testing.T) {
	e := newTestEngine()
	snap := &snapshot.Snapshot{
		Visits: []record.Visit{
			{Token: "T1", CheckInTime: testNow.Add(-30 * time.Minute), Status: record.VisitWaiting, IsEmergency: true},
		},
	}

	am := e.Compute(snap, testNow)
	if am.ChaosScore != BaseScore+15 {
		t.Errorf("expected score %d, got %d", BaseScore+15, am.ChaosScore)
	}
	if len(am.Alerts) != 0 {
		t.Errorf("emergencies score but never alert, got %v", am.Alerts)
	}

	// Emergencies older than an hour stop contributing.
	snap.Visits[0].CheckInTime = testNow.Add(-2 * time.Hour)
	am = e.Compute(snap, testNow)
	if am.ChaosScore != BaseScore {
		t.Errorf("stale emergency should not score, got %d", am.ChaosScore)
	}
}

func TestComputeHourlyHistogram(t *testing.T) {
	e := newTestEngine()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	snap := &snapshot.Snapshot{
		Visits: []record.Visit{
			{Token: "T1", CheckInTime: day.Add(8 * time.Hour), Status: record.VisitCompleted},
			{Token: "T2", CheckInTime: day.Add(19 * time.Hour), Status: record.VisitCompleted},
			{Token: "T3", CheckInTime: day.Add(7 * time.Hour), Status: record.VisitCompleted},
			{Token: "T4", CheckInTime: day.Add(20 * time.Hour), Status: record.VisitCompleted},
		},
	}

	am := e.Compute(snap, testNow)
	if am.OPD.TotalVisits != 4 {
		t.Errorf("all same-day visits count, got %d", am.OPD.TotalVisits)
	}
	if am.OPD.HourlyVisits[0] != 1 {
		t.Errorf("8am check-in belongs to bucket 0, got %d", am.OPD.HourlyVisits[0])
	}
	if am.OPD.HourlyVisits[11] != 1 {
		t.Errorf("7pm check-in belongs to bucket 11, got %d", am.OPD.HourlyVisits[11])
	}
	var total int
	for _, n := range am.OPD.HourlyVisits {
		total += n
	}
	if total != 2 {
		t.Errorf("out-of-window check-ins must be ignored, histogram total %d", total)
	}
}

func TestComputeVisitDayFilter(t *testing.T) {
	e := newTestEngine()
	snap := &snapshot.Snapshot{
		Visits: []record.Visit{
			{Token: "T1", CheckInTime: testNow, Status: record.VisitWaiting},
			{Token: "T2", CheckInTime: testNow.AddDate(0, 0, -1), Status: record.VisitCompleted},
		},
	}

	am := e.Compute(snap, testNow)
	if am.OPD.TotalVisits != 1 {
		t.Errorf("yesterday's visit must not count, got %d", am.OPD.TotalVisits)
	}
	if am.OPD.ActiveVisits != 1 || am.OPD.CompletedVisits != 0 {
		t.Errorf("unexpected status counts: %+v", am.OPD)
	}
}

func TestPharmacyRevenueDayFilter(t *testing.T) {
	today := testNow
	yesterday := testNow.AddDate(0, 0, -1)
	orders := []record.PharmacyOrder{
		{Status: record.OrderCompleted, PaidAmount: 100, CompletedAt: &today},
		{Status: record.OrderCompleted, PaidAmount: 75, CompletedAt: &yesterday},
		{Status: record.OrderPending, PaidAmount: 999},
		{Status: record.OrderCompleted, PaidAmount: 50},
	}

	if got := pharmacyRevenue(orders, testNow); got != 100 {
		t.Errorf("expected revenue 100, got %v", got)
	}
}

func TestOccupancyRate(t *testing.T) {
	cases := []struct {
		occupied, total, want int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, c := range cases {
		if got := OccupancyRate(c.occupied, c.total); got != c.want {
			t.Errorf("OccupancyRate(%d, %d) = %d, want %d", c.occupied, c.total, got, c.want)
		}
	}
}
