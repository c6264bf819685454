package engine

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// timerHandle owns one scheduled timer. stop is idempotent.
type timerHandle struct {
	once   sync.Once
	cancel func()
}

func (h *timerHandle) stop() {
	h.once.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// scheduleBoundary arms a one-shot boundary timer for a parked wait. The
// firing is delivered as a synthetic timer event through the same correlation
// path as external events.
func (e *Engine) scheduleBoundary(inst *Instance, nodeID string, duration time.Duration) *timerHandle {
	timer := e.clock.AfterFunc(duration, func() {
		e.deliverTimer(events.NewTimerFired(nodeID, inst.WorkflowID, inst.ID, nodeID))
	})

	return &timerHandle{cancel: func() { timer.Stop() }}
}

// scheduleTimerEvent arms a parked timer-fired wait from its declared "at"
// instant or "repeat" cron expression. Recurring timers re-arm themselves
// after firing until the owning instance reaches a terminal state.
func (e *Engine) scheduleTimerEvent(inst *Instance, nodeID string, spec *models.TimerFiredEvent) *timerHandle {
	if spec == nil {
		return nil
	}

	if spec.At != "" {
		at, err := time.Parse(time.RFC3339, spec.At)
		if err != nil {
			e.logger.Error("Invalid timer instant", "node_id", nodeID, "at", spec.At, "error", err)

			return nil
		}

		duration := at.Sub(e.clock.Now())
		if duration < 0 {
			duration = 0
		}

		timer := e.clock.AfterFunc(duration, func() {
			e.deliverTimer(events.NewTimerFired(nodeID, inst.WorkflowID, inst.ID, nodeID))
		})

		return &timerHandle{cancel: func() { timer.Stop() }}
	}

	if spec.Repeat != "" {
		return e.scheduleRecurring(spec.Repeat, nodeID, func() events.Event {
			return events.NewTimerFired(nodeID, inst.WorkflowID, inst.ID, nodeID)
		}, func() bool {
			inst.mu.Lock()
			defer inst.mu.Unlock()

			return inst.terminal()
		})
	}

	return nil
}

// scheduleStartTimer arms a deployment-level timer-fired start event. Each
// firing may start a new instance through the correlation layer.
func (e *Engine) scheduleStartTimer(workflowID, nodeID string, spec *models.TimerFiredEvent) *timerHandle {
	if spec == nil {
		return nil
	}

	if spec.At != "" {
		at, err := time.Parse(time.RFC3339, spec.At)
		if err != nil {
			e.logger.Error("Invalid timer instant", "node_id", nodeID, "at", spec.At, "error", err)

			return nil
		}

		duration := at.Sub(e.clock.Now())
		if duration < 0 {
			return nil
		}

		timer := e.clock.AfterFunc(duration, func() {
			e.deliverTimer(events.NewTimerFired(nodeID, workflowID, "", nodeID))
		})

		return &timerHandle{cancel: func() { timer.Stop() }}
	}

	if spec.Repeat != "" {
		return e.scheduleRecurring(spec.Repeat, nodeID, func() events.Event {
			return events.NewTimerFired(nodeID, workflowID, "", nodeID)
		}, func() bool { return false })
	}

	return nil
}

// scheduleRecurring arms a cron-driven timer that re-arms after every firing
// until stopped or done reports true.
func (e *Engine) scheduleRecurring(expr, nodeID string, makeEvent func() events.Event, done func() bool) *timerHandle {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		e.logger.Error("Invalid cron expression", "node_id", nodeID, "cron", expr, "error", err)

		return nil
	}

	handle := &timerHandle{}

	var (
		mu      sync.Mutex
		stopped bool
		arm     func()
	)

	arm = func() {
		now := e.clock.Now()
		next := schedule.Next(now)

		timer := e.clock.AfterFunc(next.Sub(now), func() {
			mu.Lock()
			if stopped {
				mu.Unlock()

				return
			}
			mu.Unlock()

			e.deliverTimer(makeEvent())

			if done() {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			if !stopped {
				arm()
			}
		})

		handle.cancel = func() {
			mu.Lock()
			defer mu.Unlock()

			stopped = true

			timer.Stop()
		}
	}

	mu.Lock()
	arm()
	mu.Unlock()

	return handle
}

// deliverTimer feeds a synthetic timer event into the normal dispatch pass.
func (e *Engine) deliverTimer(ev events.Event) {
	if err := e.OnEvent(context.Background(), ev); err != nil {
		e.logger.Error("Failed to dispatch timer event", "timer_id", ev.Timer.TimerID, "error", err)
	}
}
