package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string // required
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted            bool   `json:"deleted"`
	ID                 string `json:"id"`
	RemindersCancelled int    `json:"reminders_cancelled"`
}

// Delete permanently removes a contact and cancels its armed reminders.
func Delete(ctx context.Context, env *Env, input DeleteInput) (*DeleteOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	c, err := getContact(ctx, env, id)
	if err != nil {
		return nil, err
	}

	ok, err := env.Store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	cancelled := cancelReminders(env, c)
	env.logger().Debug("contact deleted", zap.String("id", id), zap.Int("reminders_cancelled", cancelled))
	return &DeleteOutput{Deleted: true, ID: id, RemindersCancelled: cancelled}, nil
}

// DeleteAllInput contains parameters for the DeleteAll operation.
type DeleteAllInput struct {
	// Confirm must be true; it guards against accidental wipes.
	Confirm bool
}

// DeleteAllOutput contains the result of the DeleteAll operation.
type DeleteAllOutput struct {
	Deleted            int `json:"deleted"`
	RemindersCancelled int `json:"reminders_cancelled"`
}

// DeleteAll removes every contact.
func DeleteAll(ctx context.Context, env *Env, input DeleteAllInput) (*DeleteAllOutput, error) {
	if !input.Confirm {
		return nil, errors.NewInvalidRequest("confirm must be true to delete all contacts")
	}

	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	n, err := env.Store.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}

	cancelled := 0
	for _, c := range all {
		cancelled += cancelReminders(env, c)
	}
	env.logger().Info("all contacts deleted", zap.Int("count", n))
	return &DeleteAllOutput{Deleted: n, RemindersCancelled: cancelled}, nil
}

// cancelReminders disarms every armed reminder of c in the scheduler.
func cancelReminders(env *Env, c *contact.Contact) int {
	if env.Reminders == nil {
		return 0
	}
	n := 0
	for _, note := range c.Notes {
		if note.Reminder != nil && note.Reminder.Armed {
			env.Reminders.Cancel(reminder.NotificationID(note.ID))
			n++
		}
	}
	return n
}
