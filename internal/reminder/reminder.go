// Package reminder schedules note reminders and exports them as calendars.
package reminder

import (
	"context"
	"time"
	"unicode/utf16"

	"github.com/hpungsan/rolodex/internal/contact"
)

// idRange bounds external reminder ids to [0, idRange).
const idRange = 1_000_000

// Reminder is one scheduled notification.
type Reminder struct {
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	At         time.Time `json:"at"`
	ExternalID int       `json:"external_id"`
	ContactID  string    `json:"contact_id,omitempty"`
	NoteID     string    `json:"note_id,omitempty"`
}

// Scheduler delivers reminders at their time.
type Scheduler interface {
	// Schedule arms r, replacing any reminder with the same ExternalID.
	Schedule(ctx context.Context, r Reminder) error
	// Cancel disarms a reminder. Unknown ids are ignored.
	Cancel(externalID int)
	// Pending lists armed reminders ordered by time.
	Pending() []Reminder
}

// Notifier receives reminders when they fire.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotificationID derives a stable external id from a note id: a 31-multiplier
// string hash over UTF-16 code units with 32-bit wraparound, folded into
// [0, 1000000).
func NotificationID(noteID string) int {
	var h int32
	for _, u := range utf16.Encode([]rune(noteID)) {
		h = h*31 + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % idRange)
}

// Title is the notification title for a meeting with name.
func Title(name string) string {
	return "Meeting with " + name
}

// ForNote builds the reminder for note n of contact c. ok is false when the
// note carries no reminder time.
func ForNote(c *contact.Contact, n *contact.Note) (Reminder, bool) {
	if n.Reminder == nil || n.Reminder.At == 0 {
		return Reminder{}, false
	}
	return Reminder{
		Title:      Title(c.Name),
		Body:       n.Text,
		At:         time.Unix(n.Reminder.At, 0),
		ExternalID: NotificationID(n.ID),
		ContactID:  c.ID,
		NoteID:     n.ID,
	}, true
}

// Armed lists the armed reminders of every contact. When after is non-zero,
// reminders at or before it are left out.
func Armed(contacts []*contact.Contact, after time.Time) []Reminder {
	var out []Reminder
	for _, c := range contacts {
		for i := range c.Notes {
			n := &c.Notes[i]
			if n.Reminder == nil || !n.Reminder.Armed {
				continue
			}
			r, ok := ForNote(c, n)
			if !ok {
				continue
			}
			if !after.IsZero() && !r.At.After(after) {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}
