package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/channels"
	"github.com/salonbase/noshow-engine/internal/intervention"
	"github.com/salonbase/noshow-engine/internal/observability/metrics"
	"github.com/salonbase/noshow-engine/internal/prediction"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

var tracer = otel.Tracer("noshow.internal.retention")

// AppointmentBundle is everything the engine needs to evaluate one
// appointment: the appointment itself plus the client's longitudinal state.
type AppointmentBundle struct {
	Appointment booking.AppointmentSnapshot
	Client      booking.Client
	Business    booking.Business
	History     booking.ClientHistorySnapshot
	Loyalty     risk.LoyaltySignals
	Engagement  risk.EngagementSignals
	External    *prediction.ExternalFactors
}

// SnapshotSource loads appointment bundles from the booking system.
type SnapshotSource interface {
	Appointment(ctx context.Context, id uuid.UUID) (*AppointmentBundle, error)
	Upcoming(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
	FindClientByPhone(ctx context.Context, phone string) (*booking.Client, error)
}

// Notification is an operator-facing record about an intervention that needs
// human attention.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ClientID      uuid.UUID `json:"client_id"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordWriter covers the booking-system write-backs the engine performs
// after dispatch. Both calls are best effort; the execution record is the
// source of truth and a failed write-back must not fail the evaluation.
type RecordWriter interface {
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateNotification(ctx context.Context, n Notification) error
}

// ProfileStore persists client risk profiles.
type ProfileStore interface {
	Get(ctx context.Context, clientID uuid.UUID) (*risk.RiskProfile, error)
	Upsert(ctx context.Context, p *risk.RiskProfile) error
	ApplyEvent(ctx context.Context, clientID uuid.UUID, event risk.EventKind) (risk.ScoreChange, error)
}

// Executor runs one matched rule's action plan.
type Executor interface {
	Execute(ctx context.Context, rule intervention.Rule, appt booking.AppointmentSnapshot, client booking.Client, business booking.Business) intervention.ExecutedIntervention
}

// ExecutionSink persists execution records.
type ExecutionSink interface {
	Save(ctx context.Context, rec intervention.ExecutedIntervention) error
	MarkEffectiveness(ctx context.Context, executionID uuid.UUID, score float64) error
}

// CooldownRecorder primes the cooldown cache after an execution. Optional.
type CooldownRecorder interface {
	Record(ctx context.Context, rec intervention.ExecutedIntervention)
}

// EvaluateOptions controls one evaluation pass.
type EvaluateOptions struct {
	// Execute dispatches the matched rules' actions. When false the
	// evaluation is a dry run: prediction, profile and matched rules only.
	Execute bool
}

// Evaluation is the result of one pass over an appointment.
type Evaluation struct {
	Prediction prediction.Prediction               `json:"prediction"`
	Profile    *risk.RiskProfile                   `json:"profile"`
	Matched    []intervention.Rule                 `json:"matched_rules"`
	Executions []intervention.ExecutedIntervention `json:"executions,omitempty"`
}

// Service ties prediction, profiling, rule evaluation and dispatch together.
type Service struct {
	snapshots  SnapshotSource
	predictor  *prediction.Predictor
	scorer     *risk.Scorer
	profiles   ProfileStore
	engine     *intervention.Engine
	executor   Executor
	executions ExecutionSink
	cooldowns  CooldownRecorder
	records    RecordWriter
	metrics    *metrics.RetentionMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// NewService creates the retention service. cooldowns, records and metrics
// may be nil.
func NewService(
	snapshots SnapshotSource,
	predictor *prediction.Predictor,
	scorer *risk.Scorer,
	profiles ProfileStore,
	engine *intervention.Engine,
	executor Executor,
	executions ExecutionSink,
	cooldowns CooldownRecorder,
	records RecordWriter,
	m *metrics.RetentionMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		snapshots:  snapshots,
		predictor:  predictor,
		scorer:     scorer,
		profiles:   profiles,
		engine:     engine,
		executor:   executor,
		executions: executions,
		cooldowns:  cooldowns,
		records:    records,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate runs the full pipeline for one appointment: predict its no-show
// risk, refresh the client's profile, match intervention rules, and, when
// requested, execute them. A persistence failure while saving an execution
// record fails the request; the send already happened and losing the record
// would break cooldowns.
func (s *Service) Evaluate(ctx context.Context, appointmentID uuid.UUID, opts EvaluateOptions) (*Evaluation, error) {
	ctx, span := tracer.Start(ctx, "retention.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("noshow.appointment_id", appointmentID.String()),
		attribute.Bool("noshow.execute", opts.Execute),
	)

	bundle, err := s.snapshots.Appointment(ctx, appointmentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retention: load appointment %s: %w", appointmentID, err)
	}

	pred := s.predictor.Predict(bundle.Appointment, bundle.History, bundle.External)
	s.metrics.ObservePrediction(string(pred.RiskLevel))
	span.SetAttributes(
		attribute.Int("noshow.risk_score", pred.RiskScore),
		attribute.String("noshow.risk_level", string(pred.RiskLevel)),
	)

	profile, err := s.refreshProfile(ctx, bundle)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	matched, err := s.engine.Evaluate(ctx, bundle.Appointment, pred, profile)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &Evaluation{Prediction: pred, Profile: profile, Matched: matched}
	if !opts.Execute || len(matched) == 0 {
		return result, nil
	}

	for _, rule := range matched {
		rec := s.executor.Execute(ctx, rule, bundle.Appointment, bundle.Client, bundle.Business)
		if err := s.executions.Save(ctx, rec); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("retention: save execution for rule %s: %w", rule.ID, err)
		}
		if s.cooldowns != nil {
			s.cooldowns.Record(ctx, rec)
		}
		s.writeBack(ctx, bundle, rec)
		result.Executions = append(result.Executions, rec)
	}

	s.logger.Info("retention: appointment evaluated",
		"appointment_id", appointmentID,
		"risk_score", pred.RiskScore,
		"risk_level", string(pred.RiskLevel),
		"rules_matched", len(matched),
		"executed", len(result.Executions),
	)
	return result, nil
}

// writeBack reflects a plan execution into the booking records: a successful
// confirmation request marks the appointment as awaiting confirmation, and a
// fully failed plan raises an operator notification with per-action detail in
// the execution record.
func (s *Service) writeBack(ctx context.Context, bundle *AppointmentBundle, rec intervention.ExecutedIntervention) {
	if s.records == nil {
		return
	}

	for _, o := range rec.Outcomes {
		if o.Channel == channels.ChannelConfirmation && o.Status == intervention.ActionSent {
			if err := s.records.UpdateAppointmentStatus(ctx, rec.AppointmentID, "confirmation_requested"); err != nil {
				s.logger.Warn("retention: appointment status write-back failed",
					"appointment_id", rec.AppointmentID, "error", err)
			}
			break
		}
	}

	if rec.Result == intervention.ResultFailed {
		n := Notification{
			ID:            uuid.New(),
			Kind:          "intervention_failed",
			AppointmentID: rec.AppointmentID,
			ClientID:      rec.ClientID,
			Message: fmt.Sprintf("All %d actions of rule %s failed for %s's appointment",
				len(rec.Outcomes), rec.RuleID, bundle.Client.Name),
			CreatedAt: s.now().UTC(),
		}
		if err := s.records.CreateNotification(ctx, n); err != nil {
			s.logger.Warn("retention: operator notification failed",
				"appointment_id", rec.AppointmentID, "error", err)
		}
	}
}

// refreshProfile recomputes the client's profile from the latest history and
// persists it, carrying the stored score history forward.
func (s *Service) refreshProfile(ctx context.Context, bundle *AppointmentBundle) (*risk.RiskProfile, error) {
	existing, err := s.profiles.Get(ctx, bundle.Client.ID)
	if err != nil {
		return nil, fmt.Errorf("retention: load profile: %w", err)
	}

	fresh := s.scorer.ScoreClient(bundle.History, bundle.Loyalty, bundle.Engagement)
	fresh.ClientID = bundle.Client.ID
	if existing != nil {
		fresh.History = existing.History
		fresh.Trend = existing.Trend
	}

	if err := s.profiles.Upsert(ctx, &fresh); err != nil {
		return nil, fmt.Errorf("retention: store profile: %w", err)
	}
	return &fresh, nil
}

// RecordEvent applies an appointment lifecycle event to the client's profile.
func (s *Service) RecordEvent(ctx context.Context, clientID uuid.UUID, event risk.EventKind) (risk.ScoreChange, error) {
	ctx, span := tracer.Start(ctx, "retention.record_event")
	defer span.End()

	change, err := s.profiles.ApplyEvent(ctx, clientID, event)
	if err != nil {
		span.RecordError(err)
		return risk.ScoreChange{}, err
	}
	s.metrics.ObserveScoreEvent(string(event))
	s.logger.Info("retention: score event applied",
		"client_id", clientID,
		"event", string(event),
		"old", change.Old,
		"new", change.New,
	)
	return change, nil
}

// MarkEffectiveness annotates an execution once the appointment's final
// disposition is known.
func (s *Service) MarkEffectiveness(ctx context.Context, executionID uuid.UUID, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("retention: effectiveness %v out of range [0,1]", score)
	}
	return s.executions.MarkEffectiveness(ctx, executionID, score)
}
