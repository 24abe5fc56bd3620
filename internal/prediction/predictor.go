package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Factor labels promote to primary at this weighted impact; below it they are
// reported as secondary.
const (
	primaryImpactFloor   = 10.0
	secondaryImpactFloor = 3.0
)

// Predictor estimates no-show risk for individual appointments. Predict has
// no side effects; the same inputs always produce the same score.
type Predictor struct {
	weights    Weights
	thresholds risk.Thresholds
	now        func() time.Time
	logger     *logging.Logger
}

// New builds a predictor. A nil now falls back to time.Now; it is only used
// to stamp the prediction, never in the score arithmetic.
func New(weights Weights, thresholds risk.Thresholds, now func() time.Time, logger *logging.Logger) *Predictor {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Predictor{weights: weights, thresholds: thresholds, now: now, logger: logger}
}

// NewDefault builds a predictor with the standard weights and thresholds.
func NewDefault(logger *logging.Logger) *Predictor {
	return New(DefaultWeights(), risk.DefaultThresholds(), nil, logger)
}

// Predict combines the five weighted sub-scores into a 0-100 risk score with
// level, confidence, contributing factors and recommendations.
func (p *Predictor) Predict(appt booking.AppointmentSnapshot, history booking.ClientHistorySnapshot, ext *ExternalFactors) Prediction {
	hScore, hContribs := historyScore(history, p.weights.History)
	bScore, bContribs := bookingScore(appt, history, p.weights.Booking)
	eScore, eContribs := engagementScore(appt, history, p.weights.Engagement)
	xScore, xContribs := externalScore(appt, ext, p.weights.External)
	tScore, tContribs := temporalScore(appt, p.weights.Temporal)

	raw := p.weights.History*hScore +
		p.weights.Booking*bScore +
		p.weights.Engagement*eScore +
		p.weights.External*xScore +
		p.weights.Temporal*tScore
	score := risk.ClampScore(int(math.Round(raw)))

	var contribs []contribution
	contribs = append(contribs, hContribs...)
	contribs = append(contribs, bContribs...)
	contribs = append(contribs, eContribs...)
	contribs = append(contribs, xContribs...)
	contribs = append(contribs, tContribs...)
	primary, secondary := rankFactors(contribs, score)

	level := p.thresholds.Level(score)
	return Prediction{
		AppointmentID:    appt.ID,
		ClientID:         appt.ClientID,
		RiskScore:        score,
		RiskLevel:        level,
		Confidence:       confidence(history),
		PrimaryFactors:   primary,
		SecondaryFactors: secondary,
		Recommendations:  recommendations(level, appt, history),
		GeneratedAt:      p.now(),
	}
}

// confidence grows with sample size and shrinks with historical inconsistency
// (cancellations and no-shows). Base 0.5, capped at 1.0.
func confidence(h booking.ClientHistorySnapshot) float64 {
	c := 0.5
	if h.TotalAppointments > 0 {
		c += math.Min(0.3, float64(h.TotalAppointments)*0.03)
		inconsistency := float64(h.NoShowCount+h.CancelledCount) / float64(h.TotalAppointments)
		c -= inconsistency * 0.25
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// rankFactors splits contributions into primary and secondary lists by
// weighted impact. Any non-zero score reports at least one primary factor.
func rankFactors(contribs []contribution, score int) (primary, secondary []string) {
	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].impact > contribs[j].impact
	})
	for _, c := range contribs {
		switch {
		case c.impact >= primaryImpactFloor:
			primary = append(primary, c.label)
		case c.impact >= secondaryImpactFloor:
			secondary = append(secondary, c.label)
		}
	}
	if len(primary) == 0 && score > 0 {
		if len(contribs) > 0 {
			primary = append(primary, contribs[0].label)
			if len(secondary) > 0 && secondary[0] == contribs[0].label {
				secondary = secondary[1:]
			}
		} else {
			primary = append(primary, "General booking and engagement pattern")
		}
	}
	return primary, secondary
}

func recommendations(level risk.Level, appt booking.AppointmentSnapshot, history booking.ClientHistorySnapshot) []string {
	var recs []string
	switch level {
	case risk.LevelLow:
		recs = append(recs, "Standard reminder flow is sufficient.")
	case risk.LevelMedium:
		recs = append(recs, "Send a reminder with a one-tap confirmation link.")
	case risk.LevelHigh:
		recs = append(recs,
			"Request an explicit booking confirmation.",
			"Follow up on an unconfirmed reminder within 24 hours.")
	case risk.LevelCritical:
		recs = append(recs,
			"Call the client to confirm personally.",
			"Consider holding the slot only after confirmation.")
	}

	if appt.PaymentStatus != booking.PaymentCompleted && appt.ServicePrice >= 100 {
		recs = append(recs, "Suggest an advance payment to secure the appointment.")
	}
	if history.NoShowCount >= 2 {
		recs = append(recs, "Offer a small incentive for showing up on time.")
	}
	return recs
}
