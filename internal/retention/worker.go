package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/salonbase/noshow-engine/pkg/logging"
)

// Worker periodically sweeps upcoming appointments through the evaluation
// pipeline so interventions fire without an external trigger.
type Worker struct {
	service  *Service
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// NewWorker creates a scheduler worker. window is how far ahead of now the
// sweep looks for appointments.
func NewWorker(service *Service, interval, window time.Duration, now func() time.Time, logger *logging.Logger) *Worker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{service: service, interval: interval, window: window, now: now, logger: logger}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("retention worker: started",
		"interval", w.interval.String(),
		"window", w.window.String(),
	)

	if _, err := w.ProcessWindow(ctx); err != nil {
		w.logger.Error("retention worker: sweep failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention worker: stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessWindow(ctx); err != nil {
				w.logger.Error("retention worker: sweep failed", "error", err)
			}
		}
	}
}

// ProcessWindow evaluates every appointment scheduled inside the look-ahead
// window, executing matched rules. A failing appointment is logged and
// skipped; one bad record must not stall the sweep. Returns the number of
// appointments evaluated successfully.
func (w *Worker) ProcessWindow(ctx context.Context) (int, error) {
	from := w.now().UTC()
	to := from.Add(w.window)

	ids, err := w.service.snapshots.Upcoming(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("retention worker: list upcoming: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	w.logger.Info("retention worker: sweeping upcoming appointments", "count", len(ids))

	processed := 0
	for _, id := range ids {
		if _, err := w.service.Evaluate(ctx, id, EvaluateOptions{Execute: true}); err != nil {
			w.logger.Error("retention worker: evaluation failed",
				"appointment_id", id, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}
