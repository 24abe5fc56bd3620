package prediction

import (
	"fmt"
	"time"

	"github.com/salonbase/noshow-engine/internal/booking"
)

// Sub-score extraction. Every function is deterministic arithmetic over the
// snapshots; none of them reads the wall clock, so identical inputs always
// produce identical scores.

func clampSub(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// historyScore reflects the client's track record. A client with no history
// gets the neutral 50 baseline rather than an error.
func historyScore(h booking.ClientHistorySnapshot, w float64) (float64, []contribution) {
	if h.TotalAppointments <= 0 {
		return 50, nil
	}

	noShow := h.NoShowRate()
	cancel := h.CancelRate()
	score := clampSub(160*noShow + 40*cancel)

	var contribs []contribution
	if h.NoShowCount > 0 {
		contribs = append(contribs, contribution{
			label:  fmt.Sprintf("Missed %d of %d past appointments", h.NoShowCount, h.TotalAppointments),
			impact: clampSub(160*noShow) * w,
		})
	}
	if cancel > 0.2 {
		contribs = append(contribs, contribution{
			label:  fmt.Sprintf("Cancelled %d of %d past appointments", h.CancelledCount, h.TotalAppointments),
			impact: 40 * cancel * w,
		})
	}
	return score, contribs
}

// bookingScore covers how the appointment was booked and paid. Booking less
// than a day in advance is the single largest penalty; prepayment subtracts,
// an unpaid service of meaningful value adds.
func bookingScore(a booking.AppointmentSnapshot, h booking.ClientHistorySnapshot, w float64) (float64, []contribution) {
	score := 20.0
	var contribs []contribution

	advance := a.AdvanceDays()
	switch {
	case advance < 1:
		score += 50
		contribs = append(contribs, contribution{label: "Booked less than 24 hours in advance", impact: 50 * w})
	case advance < 3:
		score += 25
		contribs = append(contribs, contribution{label: "Short-notice booking", impact: 25 * w})
	case advance >= 14:
		score -= 10
	}

	switch {
	case a.PaymentStatus == booking.PaymentCompleted:
		score -= 30
	case a.PaymentStatus == booking.PaymentFailed:
		score += 30
		contribs = append(contribs, contribution{label: "Payment attempt failed", impact: 30 * w})
	case a.PaymentStatus == booking.PaymentPending && a.ServicePrice >= 100:
		score += 20
		contribs = append(contribs, contribution{label: "High-value service not prepaid", impact: 20 * w})
	}

	if a.FirstTime {
		score += 15
		contribs = append(contribs, contribution{label: "First visit with this business", impact: 15 * w})
	}

	// Booking much later than the client's own habit is a signal on its own.
	if h.AvgAdvanceBookingDays > 0 && advance < h.AvgAdvanceBookingDays/2 {
		score += 10
	}

	return clampSub(score), contribs
}

// engagementScore penalizes unanswered reminders and long client inactivity.
// Inactivity is measured against the appointment's scheduled time, not the
// wall clock, to keep the prediction deterministic.
func engagementScore(a booking.AppointmentSnapshot, h booking.ClientHistorySnapshot, w float64) (float64, []contribution) {
	score := 30.0
	var contribs []contribution

	reminders := a.RemindersSent
	if reminders > 3 {
		reminders = 3
	}
	score += 12 * float64(reminders)
	if a.RemindersSent >= 2 {
		contribs = append(contribs, contribution{
			label:  fmt.Sprintf("%d reminders sent without a confirmation", a.RemindersSent),
			impact: 12 * float64(reminders) * w,
		})
	}

	if h.LastAppointmentAt.IsZero() {
		score += 10
	} else {
		gapDays := a.ScheduledAt.Sub(h.LastAppointmentAt).Hours() / 24
		switch {
		case gapDays > 180:
			score += 30
			contribs = append(contribs, contribution{label: "No visit in over six months", impact: 30 * w})
		case gapDays > 90:
			score += 20
			contribs = append(contribs, contribution{label: "No visit in over three months", impact: 20 * w})
		}
	}

	return clampSub(score), contribs
}

// externalScore covers seasonal and situational effects around the date.
func externalScore(a booking.AppointmentSnapshot, ext *ExternalFactors, w float64) (float64, []contribution) {
	score := 25.0
	var contribs []contribution

	switch a.ScheduledAt.Month() {
	case time.December, time.January:
		score += 15
	case time.July, time.August:
		score += 10
	}

	if ext != nil {
		if ext.HolidayAdjacent {
			score += 20
			contribs = append(contribs, contribution{label: "Holiday-adjacent date", impact: 20 * w})
		}
		if ext.WeatherSeverity > 0 {
			score += 15 * ext.WeatherSeverity
		}
		if ext.LocalDisruption {
			score += 10
		}
	}

	return clampSub(score), contribs
}

// temporalScore covers the slot itself: early mornings and evenings are
// missed more often, Mondays slightly more, Saturdays slightly less.
func temporalScore(a booking.AppointmentSnapshot, w float64) (float64, []contribution) {
	score := 30.0

	hour := a.ScheduledAt.Hour()
	switch {
	case hour < 9:
		score += 30
	case hour >= 18:
		score += 20
	}

	switch a.ScheduledAt.Weekday() {
	case time.Monday:
		score += 10
	case time.Saturday:
		score -= 10
	}

	return clampSub(score), nil
}
