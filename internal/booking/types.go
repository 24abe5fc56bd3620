package booking

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks whether an appointment has been paid for in advance.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// AppointmentSnapshot is the immutable view of one scheduled appointment used
// for scoring. It is supplied by the record store and never mutated here.
type AppointmentSnapshot struct {
	ID              uuid.UUID     `json:"id"`
	ClientID        uuid.UUID     `json:"client_id"`
	ServiceName     string        `json:"service_name"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	CreatedAt       time.Time     `json:"created_at"`
	ServicePrice    float64       `json:"service_price"`
	ServiceDuration time.Duration `json:"service_duration"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	RemindersSent   int           `json:"reminders_sent"`
	FirstTime       bool          `json:"first_time"`
}

// AdvanceDays returns how many days in advance the appointment was booked.
func (a AppointmentSnapshot) AdvanceDays() float64 {
	if a.ScheduledAt.IsZero() || a.CreatedAt.IsZero() {
		return 0
	}
	d := a.ScheduledAt.Sub(a.CreatedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// ClientHistorySnapshot aggregates a client's appointment history. It is
// recomputed by the record store after each lifecycle event; this subsystem
// only reads it.
type ClientHistorySnapshot struct {
	ClientID              uuid.UUID `json:"client_id"`
	TotalAppointments     int       `json:"total_appointments"`
	CompletedAppointments int       `json:"completed_appointments"`
	NoShowCount           int       `json:"no_show_count"`
	CancelledCount        int       `json:"cancelled_count"`
	AvgAdvanceBookingDays float64   `json:"avg_advance_booking_days"`
	AvgServiceValue       float64   `json:"avg_service_value"`
	LoyaltyPoints         int       `json:"loyalty_points"`
	LastAppointmentAt     time.Time `json:"last_appointment_at"` // zero = never visited
}

// NoShowRate returns the fraction of past appointments the client missed.
func (h ClientHistorySnapshot) NoShowRate() float64 {
	if h.TotalAppointments <= 0 {
		return 0
	}
	return float64(h.NoShowCount) / float64(h.TotalAppointments)
}

// CancelRate returns the fraction of past appointments the client cancelled.
func (h ClientHistorySnapshot) CancelRate() float64 {
	if h.TotalAppointments <= 0 {
		return 0
	}
	return float64(h.CancelledCount) / float64(h.TotalAppointments)
}

// Client carries the contact details needed to reach a client on a channel.
type Client struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	Email string    `json:"email"`
}

// Business identifies the business sending interventions; its details are
// substituted into outbound message templates.
type Business struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}
