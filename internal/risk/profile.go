package risk

import (
	"time"

	"github.com/google/uuid"
)

// Trend describes how a client's risk score has been moving.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendStable    Trend = "STABLE"
	TrendDeclining Trend = "DECLINING"
)

// EventKind is an appointment lifecycle event that shifts a client's score.
type EventKind string

const (
	EventAppointmentCompleted EventKind = "APPOINTMENT_COMPLETED"
	EventNoShow               EventKind = "NO_SHOW"
	EventCancellation         EventKind = "CANCELLATION"
	EventPayment              EventKind = "PAYMENT"
	EventEngagement           EventKind = "ENGAGEMENT"
)

// EventDeltas holds the fixed signed score delta applied per event kind.
type EventDeltas struct {
	AppointmentCompleted int
	NoShow               int
	Cancellation         int
	Payment              int
	Engagement           int
}

// DefaultEventDeltas returns the standard per-event deltas.
func DefaultEventDeltas() EventDeltas {
	return EventDeltas{
		AppointmentCompleted: -5,
		NoShow:               15,
		Cancellation:         8,
		Payment:              -3,
		Engagement:           -2,
	}
}

// For returns the delta for an event kind; unknown kinds shift nothing.
func (d EventDeltas) For(event EventKind) int {
	switch event {
	case EventAppointmentCompleted:
		return d.AppointmentCompleted
	case EventNoShow:
		return d.NoShow
	case EventCancellation:
		return d.Cancellation
	case EventPayment:
		return d.Payment
	case EventEngagement:
		return d.Engagement
	default:
		return 0
	}
}

// FactorScores are the five behavioral factors behind a profile, each 0-100
// where higher means better behavior.
type FactorScores struct {
	Reliability float64 `json:"reliability"`
	Engagement  float64 `json:"engagement"`
	Recency     float64 `json:"recency"`
	Value       float64 `json:"value"`
	Loyalty     float64 `json:"loyalty"`
}

// ScoreEvent is one append-only history entry on a profile.
type ScoreEvent struct {
	At    time.Time `json:"at"`
	Score int       `json:"score"`
	Event EventKind `json:"event"`
	Delta int       `json:"delta"`
}

// maxHistoryEntries bounds the in-memory history carried on a profile.
const maxHistoryEntries = 50

// RiskProfile is a client's standing no-show risk assessment. The current
// score is mutated only through ApplyEvent or a full recompute; history is
// append-only.
type RiskProfile struct {
	ClientID    uuid.UUID    `json:"client_id"`
	Score       int          `json:"score"`
	Level       Level        `json:"level"`
	Trend       Trend        `json:"trend"`
	Factors     FactorScores `json:"factors"`
	Segment     string       `json:"segment"`
	NoShowCount int          `json:"no_show_count"`
	UpdatedAt   time.Time    `json:"updated_at"`
	History     []ScoreEvent `json:"history,omitempty"`
}

// ScoreChange reports the outcome of applying a lifecycle event.
type ScoreChange struct {
	ClientID uuid.UUID `json:"client_id"`
	Event    EventKind `json:"event"`
	Old      int       `json:"old"`
	New      int       `json:"new"`
	Delta    int       `json:"delta"`
}

func (p *RiskProfile) appendHistory(e ScoreEvent) {
	p.History = append(p.History, e)
	if len(p.History) > maxHistoryEntries {
		p.History = p.History[len(p.History)-maxHistoryEntries:]
	}
}

// trendFromHistory derives the trend from the most recent deltas. A net move
// of 5 or more points across the last entries counts as a direction.
func trendFromHistory(history []ScoreEvent) Trend {
	const lookback = 5
	start := len(history) - lookback
	if start < 0 {
		start = 0
	}
	net := 0
	for _, e := range history[start:] {
		net += e.Delta
	}
	switch {
	case net <= -5:
		return TrendImproving
	case net >= 5:
		return TrendDeclining
	default:
		return TrendStable
	}
}
