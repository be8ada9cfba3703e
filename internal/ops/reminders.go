package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
)

// RemindersOutput lists reminders.
type RemindersOutput struct {
	Items []reminder.Reminder `json:"items"`
	// Source is "scheduler" for live pending reminders or "store" for
	// reminders armed on notes.
	Source string `json:"source"`
}

// Reminders lists pending reminders. Without a scheduler it reports the
// future reminders armed on notes instead.
func Reminders(ctx context.Context, env *Env) (*RemindersOutput, error) {
	if env.Reminders != nil {
		items := env.Reminders.Pending()
		if items == nil {
			items = []reminder.Reminder{}
		}
		return &RemindersOutput{Items: items, Source: "scheduler"}, nil
	}

	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	items := reminder.Armed(all, time.Now())
	if items == nil {
		items = []reminder.Reminder{}
	}
	return &RemindersOutput{Items: items, Source: "store"}, nil
}

// RearmReminders schedules every armed reminder still in the future.
// It runs once when a long-lived process starts.
func RearmReminders(ctx context.Context, env *Env) (int, error) {
	if env.Reminders == nil {
		return 0, errors.NewInvalidRequest("reminders are not available in this mode")
	}
	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	n := reconcileReminders(ctx, env, all, time.Now())
	env.logger().Info("reminders re-armed", zap.Int("count", n))
	return n, nil
}

// WatchReminders keeps the scheduler in step with the store until ctx is
// done. Reminders that arrive through import or merge get scheduled, and
// pending reminders whose note was deleted or disarmed are cancelled.
func WatchReminders(ctx context.Context, env *Env) error {
	if env.Reminders == nil {
		return errors.NewInvalidRequest("reminders are not available in this mode")
	}
	snapshots, stop := env.Store.Subscribe()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-snapshots:
			if !ok {
				return nil
			}
			reconcileReminders(ctx, env, snapshot, time.Now())
		}
	}
}

// reconcileReminders makes the pending set match the reminders armed in
// contacts and returns how many are armed afterwards. Reminders already
// pending with the same time and text are left alone.
func reconcileReminders(ctx context.Context, env *Env, contacts []*contact.Contact, now time.Time) int {
	pending := make(map[int]reminder.Reminder)
	for _, r := range env.Reminders.Pending() {
		pending[r.ExternalID] = r
	}

	armed := 0
	want := make(map[int]bool)
	for _, r := range reminder.Armed(contacts, now) {
		want[r.ExternalID] = true
		if p, ok := pending[r.ExternalID]; ok && p.At.Equal(r.At) && p.Title == r.Title && p.Body == r.Body {
			armed++
			continue
		}
		if err := env.Reminders.Schedule(ctx, r); err != nil {
			env.logger().Debug("reminder not re-armed", zap.Int("external_id", r.ExternalID), zap.Error(err))
			continue
		}
		armed++
	}

	for id, p := range pending {
		// Past-due entries are about to fire and drop out on their own
		if want[id] || !p.At.After(now) {
			continue
		}
		env.Reminders.Cancel(id)
		env.logger().Debug("stale reminder cancelled", zap.Int("external_id", id))
	}
	return armed
}
