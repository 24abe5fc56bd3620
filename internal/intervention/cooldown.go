package intervention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// CooldownCache fronts a LastExecutionSource with a Redis read-through
// cache. Postgres stays authoritative: a cache miss falls through to the
// inner source and repopulates the key, and cache write failures are logged
// but never surfaced, since a stale miss only costs one extra query.
type CooldownCache struct {
	client *redis.Client
	inner  LastExecutionSource
	ttl    time.Duration
	logger *logging.Logger
}

// cachedExecution is the slim record kept in Redis; cooldown checks only
// need identity and the execution time.
type cachedExecution struct {
	ID            uuid.UUID `json:"id"`
	RuleID        string    `json:"rule_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ClientID      uuid.UUID `json:"client_id"`
	ExecutedAt    time.Time `json:"executed_at"`
	Result        Result    `json:"result"`
}

// NewCooldownCache wraps inner with a Redis cache on last-execution lookups.
func NewCooldownCache(client *redis.Client, inner LastExecutionSource, ttl time.Duration, logger *logging.Logger) *CooldownCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &CooldownCache{client: client, inner: inner, ttl: ttl, logger: logger}
}

func cooldownKey(ruleID string, appointmentID uuid.UUID) string {
	return fmt.Sprintf("noshow:lastexec:%s:%s", ruleID, appointmentID)
}

// GetLastExecution implements LastExecutionSource.
func (c *CooldownCache) GetLastExecution(ctx context.Context, ruleID string, appointmentID uuid.UUID) (*ExecutedIntervention, error) {
	key := cooldownKey(ruleID, appointmentID)

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedExecution
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &ExecutedIntervention{
				ID:            cached.ID,
				RuleID:        cached.RuleID,
				AppointmentID: cached.AppointmentID,
				ClientID:      cached.ClientID,
				ExecutedAt:    cached.ExecutedAt,
				Result:        cached.Result,
			}, nil
		}
		c.logger.Warn("intervention: corrupt cooldown cache entry dropped", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("intervention: cooldown cache read failed, falling back to store", "key", key, "error", err)
	}

	rec, err := c.inner.GetLastExecution(ctx, ruleID, appointmentID)
	if err != nil || rec == nil {
		return rec, err
	}

	c.put(ctx, key, rec)
	return rec, nil
}

// Record caches a fresh execution so the immediately following evaluations
// see the cooldown without a Postgres round trip.
func (c *CooldownCache) Record(ctx context.Context, rec ExecutedIntervention) {
	c.put(ctx, cooldownKey(rec.RuleID, rec.AppointmentID), &rec)
}

func (c *CooldownCache) put(ctx context.Context, key string, rec *ExecutedIntervention) {
	payload, err := json.Marshal(cachedExecution{
		ID:            rec.ID,
		RuleID:        rec.RuleID,
		AppointmentID: rec.AppointmentID,
		ClientID:      rec.ClientID,
		ExecutedAt:    rec.ExecutedAt,
		Result:        rec.Result,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("intervention: cooldown cache write failed", "key", key, "error", err)
	}
}
