package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/risk"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrAppointmentNotFound is returned for ids the booking tables don't know.
var ErrAppointmentNotFound = errors.New("retention: appointment not found")

// PGSnapshots loads appointment bundles from the booking tables. Business
// contact details come from configuration, not the database; a deployment
// serves one business.
type PGSnapshots struct {
	db       DB
	business booking.Business
}

// NewPGSnapshots creates a Postgres-backed snapshot source.
func NewPGSnapshots(db DB, business booking.Business) *PGSnapshots {
	return &PGSnapshots{db: db, business: business}
}

var (
	_ SnapshotSource = (*PGSnapshots)(nil)
	_ RecordWriter   = (*PGSnapshots)(nil)
)

// Appointment loads one appointment with its client's longitudinal state.
func (s *PGSnapshots) Appointment(ctx context.Context, id uuid.UUID) (*AppointmentBundle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT a.id, a.client_id, a.service_name, a.scheduled_at, a.created_at,
		       a.service_price, a.service_duration_minutes, a.payment_status, a.reminders_sent,
		       c.name, c.phone, c.email,
		       c.loyalty_points, c.created_at,
		       c.response_rate, c.confirmation_rate, c.recent_interactions
		FROM appointments a
		JOIN clients c ON c.id = a.client_id
		WHERE a.id = $1`, id)

	var (
		appt            booking.AppointmentSnapshot
		client          booking.Client
		durationMinutes int
		paymentStatus   string
		loyaltyPoints   int
		clientSince     time.Time
		engagement      risk.EngagementSignals
	)
	err := row.Scan(&appt.ID, &appt.ClientID, &appt.ServiceName, &appt.ScheduledAt, &appt.CreatedAt,
		&appt.ServicePrice, &durationMinutes, &paymentStatus, &appt.RemindersSent,
		&client.Name, &client.Phone, &client.Email,
		&loyaltyPoints, &clientSince,
		&engagement.ResponseRate, &engagement.ConfirmationRate, &engagement.RecentInteractions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retention: load appointment: %w", err)
	}
	appt.ServiceDuration = time.Duration(durationMinutes) * time.Minute
	appt.PaymentStatus = booking.PaymentStatus(paymentStatus)
	client.ID = appt.ClientID

	history, err := s.clientHistory(ctx, appt.ClientID)
	if err != nil {
		return nil, err
	}
	appt.FirstTime = history.CompletedAppointments == 0

	loyalty := risk.LoyaltySignals{Points: loyaltyPoints}
	if !clientSince.IsZero() {
		tenure := appt.ScheduledAt.Sub(clientSince).Hours() / (24 * 30)
		if tenure > 0 {
			loyalty.TenureMonths = int(tenure)
			loyalty.VisitsPerMonth = float64(history.TotalAppointments) / tenure
		}
	}

	return &AppointmentBundle{
		Appointment: appt,
		Client:      client,
		Business:    s.business,
		History:     history,
		Loyalty:     loyalty,
		Engagement:  engagement,
	}, nil
}

// Upcoming lists ids of appointments scheduled inside the window that are
// still in a scheduled state.
func (s *PGSnapshots) Upcoming(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM appointments
		WHERE status = 'scheduled' AND scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("retention: list upcoming: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("retention: scan upcoming: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention: iterate upcoming: %w", err)
	}
	return out, nil
}

// FindClientByPhone resolves a client by phone number, or nil when unknown.
func (s *PGSnapshots) FindClientByPhone(ctx context.Context, phone string) (*booking.Client, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, email FROM clients WHERE phone = $1`, phone)

	var c booking.Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retention: find client by phone: %w", err)
	}
	return &c, nil
}

// UpdateAppointmentStatus writes the appointment's new lifecycle status.
func (s *PGSnapshots) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("retention: update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// CreateNotification records an operator notification.
func (s *PGSnapshots) CreateNotification(ctx context.Context, n Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, kind, appointment_id, client_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.Kind, n.AppointmentID, n.ClientID, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("retention: create notification: %w", err)
	}
	return nil
}

// clientHistory aggregates the client's appointment record.
func (s *PGSnapshots) clientHistory(ctx context.Context, clientID uuid.UUID) (booking.ClientHistorySnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status IN ('completed', 'no_show', 'cancelled')),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'no_show'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COALESCE(AVG(EXTRACT(EPOCH FROM scheduled_at - created_at) / 86400), 0),
		       COALESCE(AVG(service_price) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(MAX(scheduled_at) FILTER (WHERE status = 'completed'), 'epoch'::timestamptz)
		FROM appointments
		WHERE client_id = $1`, clientID)

	h := booking.ClientHistorySnapshot{ClientID: clientID}
	var lastAt time.Time
	err := row.Scan(&h.TotalAppointments, &h.CompletedAppointments, &h.NoShowCount, &h.CancelledCount,
		&h.AvgAdvanceBookingDays, &h.AvgServiceValue, &lastAt)
	if err != nil {
		return h, fmt.Errorf("retention: load client history: %w", err)
	}
	if lastAt.Unix() > 0 {
		h.LastAppointmentAt = lastAt
	}
	return h, nil
}
