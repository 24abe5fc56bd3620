package risk

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// ProfileWeights weight the five factors into the overall risk score.
type ProfileWeights struct {
	Reliability float64
	Engagement  float64
	Recency     float64
	Value       float64
	Loyalty     float64
}

// DefaultProfileWeights returns the standard .40/.25/.15/.10/.10 weighting.
func DefaultProfileWeights() ProfileWeights {
	return ProfileWeights{
		Reliability: 0.40,
		Engagement:  0.25,
		Recency:     0.15,
		Value:       0.10,
		Loyalty:     0.10,
	}
}

// LoyaltySignals carry the loyalty-program inputs to profile scoring.
type LoyaltySignals struct {
	Points         int     `json:"points"`
	TenureMonths   int     `json:"tenure_months"`
	VisitsPerMonth float64 `json:"visits_per_month"`
}

// EngagementSignals carry the client's responsiveness inputs.
type EngagementSignals struct {
	ResponseRate       float64 `json:"response_rate"`       // 0-1, replies to outreach
	ConfirmationRate   float64 `json:"confirmation_rate"`   // 0-1, confirmed reminders
	RecentInteractions int     `json:"recent_interactions"` // last 90 days
}

// Scorer computes and maintains client risk profiles.
type Scorer struct {
	weights    ProfileWeights
	thresholds Thresholds
	deltas     EventDeltas
	segments   []Segment
	now        func() time.Time
	logger     *logging.Logger
}

// NewScorer builds a profile scorer. A nil now falls back to time.Now.
func NewScorer(weights ProfileWeights, thresholds Thresholds, deltas EventDeltas, segments []Segment, now func() time.Time, logger *logging.Logger) *Scorer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(segments) == 0 {
		segments = DefaultSegments()
	}
	return &Scorer{
		weights:    weights,
		thresholds: thresholds,
		deltas:     deltas,
		segments:   segments,
		now:        now,
		logger:     logger,
	}
}

// NewDefaultScorer builds a scorer with the standard product constants.
func NewDefaultScorer(logger *logging.Logger) *Scorer {
	return NewScorer(DefaultProfileWeights(), DefaultThresholds(), DefaultEventDeltas(), DefaultSegments(), nil, logger)
}

// ScoreClient computes a fresh risk profile from the client's longitudinal
// behavior. Each factor is an independent bounded formula; high factor quality
// reduces the risk score.
func (s *Scorer) ScoreClient(history booking.ClientHistorySnapshot, loyalty LoyaltySignals, engagement EngagementSignals) RiskProfile {
	factors := FactorScores{
		Reliability: reliabilityFactor(history),
		Engagement:  engagementFactor(engagement),
		Recency:     recencyFactor(history, s.now()),
		Value:       valueFactor(history),
		Loyalty:     loyaltyFactor(loyalty),
	}

	weighted := s.weights.Reliability*factors.Reliability +
		s.weights.Engagement*factors.Engagement +
		s.weights.Recency*factors.Recency +
		s.weights.Value*factors.Value +
		s.weights.Loyalty*factors.Loyalty

	score := ClampScore(int(math.Round(100 - weighted)))

	profile := RiskProfile{
		ClientID:    history.ClientID,
		Score:       score,
		Level:       s.thresholds.Level(score),
		Trend:       TrendStable,
		Factors:     factors,
		NoShowCount: history.NoShowCount,
		UpdatedAt:   s.now(),
	}
	profile.Segment = Classify(&profile, s.segments).Name
	return profile
}

// ApplyEvent applies the fixed delta for a lifecycle event to the profile's
// current score, clamped to [0,100], and appends a history entry. This is the
// only mutation path outside a full recompute.
func (s *Scorer) ApplyEvent(p *RiskProfile, event EventKind) ScoreChange {
	delta := s.deltas.For(event)
	switch event {
	case EventAppointmentCompleted, EventNoShow, EventCancellation, EventPayment, EventEngagement:
	default:
		s.logger.Warn("risk: unknown score event, no delta applied", "event", string(event))
	}

	old := p.Score
	if event == EventNoShow {
		p.NoShowCount++
	}
	p.Score = ClampScore(old + delta)
	p.Level = s.thresholds.Level(p.Score)
	p.UpdatedAt = s.now()
	p.appendHistory(ScoreEvent{At: p.UpdatedAt, Score: p.Score, Event: event, Delta: p.Score - old})
	p.Trend = trendFromHistory(p.History)

	return ScoreChange{
		ClientID: p.ClientID,
		Event:    event,
		Old:      old,
		New:      p.Score,
		Delta:    p.Score - old,
	}
}

// NeutralProfile returns the baseline-50 profile assigned to clients the
// engine has never scored. Lifecycle events that arrive before a full
// recompute apply on top of it instead of being dropped.
func (s *Scorer) NeutralProfile(clientID uuid.UUID) RiskProfile {
	p := RiskProfile{
		ClientID:  clientID,
		Score:     50,
		Trend:     TrendStable,
		UpdatedAt: s.now(),
		Factors: FactorScores{
			Reliability: 50, Engagement: 50, Recency: 50, Value: 50, Loyalty: 50,
		},
	}
	p.Level = s.thresholds.Level(p.Score)
	p.Segment = Classify(&p, s.segments).Name
	return p
}

// reliabilityFactor rewards completed appointments and punishes no-shows on
// top of the plain completion rate.
func reliabilityFactor(h booking.ClientHistorySnapshot) float64 {
	if h.TotalAppointments <= 0 {
		return 50
	}
	completedRate := float64(h.CompletedAppointments) / float64(h.TotalAppointments)
	return clampFactor(100*completedRate - 20*h.NoShowRate())
}

func engagementFactor(e EngagementSignals) float64 {
	return clampFactor(60*e.ResponseRate + 30*e.ConfirmationRate + 2*float64(e.RecentInteractions))
}

// recencyFactor buckets days since the client's last visit.
func recencyFactor(h booking.ClientHistorySnapshot, now time.Time) float64 {
	if h.LastAppointmentAt.IsZero() {
		return 30
	}
	days := now.Sub(h.LastAppointmentAt).Hours() / 24
	switch {
	case days <= 30:
		return 100
	case days <= 60:
		return 80
	case days <= 90:
		return 60
	case days <= 180:
		return 40
	case days <= 365:
		return 20
	default:
		return 5
	}
}

// valueFactor buckets total spend, average ticket and visit frequency.
func valueFactor(h booking.ClientHistorySnapshot) float64 {
	totalSpend := h.AvgServiceValue * float64(h.CompletedAppointments)

	var spendPts float64
	switch {
	case totalSpend >= 5000:
		spendPts = 50
	case totalSpend >= 2000:
		spendPts = 40
	case totalSpend >= 1000:
		spendPts = 30
	case totalSpend >= 500:
		spendPts = 20
	case totalSpend >= 100:
		spendPts = 10
	}

	var ticketPts float64
	switch {
	case h.AvgServiceValue >= 300:
		ticketPts = 30
	case h.AvgServiceValue >= 150:
		ticketPts = 20
	case h.AvgServiceValue >= 75:
		ticketPts = 10
	case h.AvgServiceValue > 0:
		ticketPts = 5
	}

	var freqPts float64
	switch {
	case h.TotalAppointments >= 24:
		freqPts = 20
	case h.TotalAppointments >= 12:
		freqPts = 15
	case h.TotalAppointments >= 6:
		freqPts = 10
	case h.TotalAppointments >= 2:
		freqPts = 5
	}

	return clampFactor(spendPts + ticketPts + freqPts)
}

// loyaltyFactor combines program points, tenure and visit regularity.
func loyaltyFactor(l LoyaltySignals) float64 {
	points := math.Min(50, float64(l.Points)/20)
	tenure := math.Min(30, float64(l.TenureMonths))
	regularity := math.Min(20, l.VisitsPerMonth*10)
	return clampFactor(points + tenure + regularity)
}
