package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/risk"
)

// ExternalFactors are optional context signals outside the client's own
// behavior (weather, local disruptions, holiday proximity).
type ExternalFactors struct {
	HolidayAdjacent bool    `json:"holiday_adjacent"`
	WeatherSeverity float64 `json:"weather_severity"` // 0-1
	LocalDisruption bool    `json:"local_disruption"`
}

// Prediction is the no-show risk estimate for one appointment. It is created
// fresh per call and never merged; a later prediction fully replaces it.
type Prediction struct {
	AppointmentID    uuid.UUID  `json:"appointment_id"`
	ClientID         uuid.UUID  `json:"client_id"`
	RiskScore        int        `json:"risk_score"`
	RiskLevel        risk.Level `json:"risk_level"`
	Confidence       float64    `json:"confidence"`
	PrimaryFactors   []string   `json:"primary_factors"`
	SecondaryFactors []string   `json:"secondary_factors,omitempty"`
	Recommendations  []string   `json:"recommendations"`
	GeneratedAt      time.Time  `json:"generated_at"`
}

// Weights distribute the five sub-scores into the overall risk score.
type Weights struct {
	History    float64
	Booking    float64
	Engagement float64
	External   float64
	Temporal   float64
}

// DefaultWeights returns the standard .35/.25/.20/.15/.05 weighting.
func DefaultWeights() Weights {
	return Weights{
		History:    0.35,
		Booking:    0.25,
		Engagement: 0.20,
		External:   0.15,
		Temporal:   0.05,
	}
}

// contribution is one scored observation about the appointment, carrying its
// weighted impact on the final score so factors can be ranked for reporting.
type contribution struct {
	label  string
	impact float64
}
