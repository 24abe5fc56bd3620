package intervention

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/salonbase/noshow-engine/internal/booking"
	"github.com/salonbase/noshow-engine/internal/prediction"
	"github.com/salonbase/noshow-engine/internal/risk"
	"github.com/salonbase/noshow-engine/pkg/logging"
)

// LastExecutionSource answers when a rule last fired for an appointment.
// Backed by the execution store, optionally fronted by the Redis cache.
type LastExecutionSource interface {
	GetLastExecution(ctx context.Context, ruleID string, appointmentID uuid.UUID) (*ExecutedIntervention, error)
}

// ruleSet is an immutable snapshot of the rule list. Readers load the
// current snapshot atomically; updates build a new one and swap it in, so an
// evaluation never observes a half-updated rule.
type ruleSet struct {
	rules []Rule
}

// Engine matches the rule catalog against predictions and profiles.
type Engine struct {
	set      atomic.Pointer[ruleSet]
	lastExec LastExecutionSource
	now      func() time.Time
	logger   *logging.Logger
}

// NewEngine creates a rule engine with the given catalog.
func NewEngine(rules []Rule, lastExec LastExecutionSource, now func() time.Time, logger *logging.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{lastExec: lastExec, now: now, logger: logger}
	e.Replace(rules)
	return e
}

// Rules returns the current snapshot's rules in declaration order.
func (e *Engine) Rules() []Rule {
	set := e.set.Load()
	out := make([]Rule, len(set.rules))
	copy(out, set.rules)
	return out
}

// Replace swaps in a whole new rule catalog.
func (e *Engine) Replace(rules []Rule) {
	snapshot := &ruleSet{rules: make([]Rule, len(rules))}
	copy(snapshot.rules, rules)
	e.set.Store(snapshot)
}

// UpdateRule replaces one rule wholesale by id. An unknown id is a logged
// no-op returning false, never an error that aborts a batch.
func (e *Engine) UpdateRule(rule Rule) bool {
	for {
		current := e.set.Load()
		idx := -1
		for i, r := range current.rules {
			if r.ID == rule.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			e.logger.Warn("intervention: update for unknown rule id ignored", "rule_id", rule.ID)
			return false
		}
		next := &ruleSet{rules: make([]Rule, len(current.rules))}
		copy(next.rules, current.rules)
		next.rules[idx] = rule
		if e.set.CompareAndSwap(current, next) {
			return true
		}
	}
}

// Evaluate returns the rules eligible to fire for this appointment, sorted by
// priority ascending with declaration order breaking ties. Cooldowns are
// checked first; a persistence failure on the cooldown lookup aborts the
// evaluation since firing without it could double-send.
func (e *Engine) Evaluate(ctx context.Context, appt booking.AppointmentSnapshot, pred prediction.Prediction, profile *risk.RiskProfile) ([]Rule, error) {
	set := e.set.Load()
	now := e.now()

	var matched []Rule
	for _, rule := range set.rules {
		if !rule.Active {
			continue
		}

		onCooldown, err := e.onCooldown(ctx, rule, appt.ID, now)
		if err != nil {
			return nil, fmt.Errorf("intervention: cooldown lookup for rule %s: %w", rule.ID, err)
		}
		if onCooldown {
			continue
		}

		if matchesTrigger(rule.Trigger, appt, pred, profile, now) {
			matched = append(matched, rule)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched, nil
}

func (e *Engine) onCooldown(ctx context.Context, rule Rule, appointmentID uuid.UUID, now time.Time) (bool, error) {
	if rule.Cooldown <= 0 || e.lastExec == nil {
		return false, nil
	}
	last, err := e.lastExec.GetLastExecution(ctx, rule.ID, appointmentID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return now.Sub(last.ExecutedAt) < rule.Cooldown, nil
}

// matchesTrigger evaluates every clause of the trigger as a conjunction.
func matchesTrigger(t Trigger, appt booking.AppointmentSnapshot, pred prediction.Prediction, profile *risk.RiskProfile, now time.Time) bool {
	if len(t.Levels) > 0 {
		found := false
		for _, lvl := range t.Levels {
			if lvl == pred.RiskLevel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if t.ScoreMin != nil && pred.RiskScore < *t.ScoreMin {
		return false
	}
	if t.ScoreMax != nil && pred.RiskScore > *t.ScoreMax {
		return false
	}

	if t.HoursBeforeMin != nil || t.HoursBeforeMax != nil {
		hoursBefore := appt.ScheduledAt.Sub(now).Hours()
		if t.HoursBeforeMin != nil && hoursBefore < *t.HoursBeforeMin {
			return false
		}
		if t.HoursBeforeMax != nil && hoursBefore > *t.HoursBeforeMax {
			return false
		}
	}

	if t.MinValue != nil && appt.ServicePrice < *t.MinValue {
		return false
	}
	if t.FirstTime != nil && appt.FirstTime != *t.FirstTime {
		return false
	}
	if t.HasNoShowHistory != nil {
		hasHistory := profile != nil && profileHasNoShow(profile)
		if hasHistory != *t.HasNoShowHistory {
			return false
		}
	}
	return true
}

// profileHasNoShow reports whether the client has any recorded no-show.
func profileHasNoShow(p *risk.RiskProfile) bool {
	if p.NoShowCount > 0 {
		return true
	}
	for _, e := range p.History {
		if e.Event == risk.EventNoShow {
			return true
		}
	}
	return false
}
