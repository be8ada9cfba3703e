package ops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
)

// AddNoteInput contains parameters for the AddNote operation.
type AddNoteInput struct {
	ContactID string // required
	Text      string // required unless Checklist is set
	Type      string // default: note
	Date      int64  // unix seconds the note refers to; default: now
	// Checklist items, only for meeting_checklist notes
	Checklist []string
	// RemindAt arms a reminder at this unix time
	RemindAt *int64
}

// NoteOutput contains the note touched by a note operation.
type NoteOutput struct {
	ContactID string       `json:"contact_id"`
	Note      contact.Note `json:"note"`
}

// AddNote appends a note to a contact, arming its reminder when requested.
func AddNote(ctx context.Context, env *Env, input AddNoteInput) (*NoteOutput, error) {
	id, err := requireID(input.ContactID)
	if err != nil {
		return nil, err
	}

	noteType := contact.NoteType(strings.TrimSpace(input.Type))
	if noteType == "" {
		noteType = contact.NotePlain
	}
	text := strings.TrimSpace(input.Text)
	if text == "" && len(input.Checklist) == 0 {
		return nil, errors.NewInvalidRequest("text is required")
	}

	note := newNote(text, noteType, input.Date, input.Checklist)
	if err := contact.ValidateNote(&note); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	c, err := getContact(ctx, env, id)
	if err != nil {
		return nil, err
	}

	if input.RemindAt != nil {
		r, err := armReminder(ctx, env, c, &note, *input.RemindAt)
		if err != nil {
			return nil, err
		}
		note.Reminder = r
	}

	notes := append(contact.CloneNotes(c.Notes), note)
	if err := writeNotes(ctx, env, id, notes); err != nil {
		if note.Reminder != nil {
			env.Reminders.Cancel(note.Reminder.ExternalID)
		}
		return nil, err
	}

	env.logger().Debug("note added", zap.String("contact_id", id), zap.String("note_id", note.ID))
	return &NoteOutput{ContactID: id, Note: note}, nil
}

// NoteRef addresses one note of one contact.
type NoteRef struct {
	ContactID string // required
	NoteID    string // required
}

// DeleteNote removes a note and cancels its reminder.
func DeleteNote(ctx context.Context, env *Env, input NoteRef) (*NoteOutput, error) {
	c, idx, err := findNote(ctx, env, input)
	if err != nil {
		return nil, err
	}
	removed := c.Notes[idx].Clone()

	notes := contact.CloneNotes(c.Notes)
	notes = append(notes[:idx], notes[idx+1:]...)
	if err := writeNotes(ctx, env, c.ID, notes); err != nil {
		return nil, err
	}
	if removed.Reminder != nil && removed.Reminder.Armed && env.Reminders != nil {
		env.Reminders.Cancel(reminder.NotificationID(removed.ID))
	}
	return &NoteOutput{ContactID: c.ID, Note: removed}, nil
}

// SetReminderInput contains parameters for the SetReminder operation.
type SetReminderInput struct {
	NoteRef
	At int64 // unix seconds, must be in the future
}

// SetReminder arms (or moves) the reminder of a note.
func SetReminder(ctx context.Context, env *Env, input SetReminderInput) (*NoteOutput, error) {
	c, idx, err := findNote(ctx, env, input.NoteRef)
	if err != nil {
		return nil, err
	}

	notes := contact.CloneNotes(c.Notes)
	r, err := armReminder(ctx, env, c, &notes[idx], input.At)
	if err != nil {
		return nil, err
	}
	notes[idx].Reminder = r

	if err := writeNotes(ctx, env, c.ID, notes); err != nil {
		env.Reminders.Cancel(r.ExternalID)
		return nil, err
	}
	return &NoteOutput{ContactID: c.ID, Note: notes[idx]}, nil
}

// CancelReminder disarms the reminder of a note. Cancelling a note that
// has no armed reminder is a no-op.
func CancelReminder(ctx context.Context, env *Env, input NoteRef) (*NoteOutput, error) {
	c, idx, err := findNote(ctx, env, input)
	if err != nil {
		return nil, err
	}

	notes := contact.CloneNotes(c.Notes)
	note := &notes[idx]
	if note.Reminder == nil || !note.Reminder.Armed {
		return &NoteOutput{ContactID: c.ID, Note: *note}, nil
	}

	if env.Reminders != nil {
		env.Reminders.Cancel(reminder.NotificationID(note.ID))
	}
	note.Reminder.Armed = false
	if err := writeNotes(ctx, env, c.ID, notes); err != nil {
		return nil, err
	}
	return &NoteOutput{ContactID: c.ID, Note: *note}, nil
}

// ToggleChecklistInput contains parameters for the ToggleChecklistItem operation.
type ToggleChecklistInput struct {
	NoteRef
	ItemID string // required
}

// ToggleChecklistItem flips the completed flag of one checklist item.
func ToggleChecklistItem(ctx context.Context, env *Env, input ToggleChecklistInput) (*NoteOutput, error) {
	itemID := strings.TrimSpace(input.ItemID)
	if itemID == "" {
		return nil, errors.NewInvalidRequest("item_id is required")
	}

	c, idx, err := findNote(ctx, env, input.NoteRef)
	if err != nil {
		return nil, err
	}

	notes := contact.CloneNotes(c.Notes)
	note := &notes[idx]
	found := false
	for i := range note.Checklist {
		if note.Checklist[i].ID == itemID {
			note.Checklist[i].Completed = !note.Checklist[i].Completed
			found = true
			break
		}
	}
	if !found {
		return nil, errors.NewInvalidRequest("checklist item not found: " + itemID)
	}

	if err := writeNotes(ctx, env, c.ID, notes); err != nil {
		return nil, err
	}
	return &NoteOutput{ContactID: c.ID, Note: *note}, nil
}

func newNote(text string, t contact.NoteType, date int64, checklist []string) contact.Note {
	now := time.Now().Unix()
	if date <= 0 {
		date = now
	}
	n := contact.Note{
		ID:      contact.NewNoteID(),
		Text:    text,
		Date:    date,
		Created: now,
		Type:    t,
	}
	for _, item := range checklist {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n.Checklist = append(n.Checklist, contact.ChecklistItem{
			ID:    contact.NewNoteID(),
			Text:  item,
			Order: len(n.Checklist),
		})
	}
	return n
}

func findNote(ctx context.Context, env *Env, ref NoteRef) (*contact.Contact, int, error) {
	id, err := requireID(ref.ContactID)
	if err != nil {
		return nil, 0, err
	}
	noteID := strings.TrimSpace(ref.NoteID)
	if noteID == "" {
		return nil, 0, errors.NewInvalidRequest("note_id is required")
	}

	c, err := getContact(ctx, env, id)
	if err != nil {
		return nil, 0, err
	}
	idx := c.FindNote(noteID)
	if idx < 0 {
		return nil, 0, errors.NewNoteNotFound(id, noteID)
	}
	return c, idx, nil
}

// armReminder schedules the reminder for note and returns the record to
// store on it.
func armReminder(ctx context.Context, env *Env, c *contact.Contact, note *contact.Note, at int64) (*contact.Reminder, error) {
	if env.Reminders == nil {
		return nil, errors.NewInvalidRequest("reminders are not available in this mode")
	}
	r := reminder.Reminder{
		Title:      reminder.Title(c.Name),
		Body:       note.Text,
		At:         time.Unix(at, 0),
		ExternalID: reminder.NotificationID(note.ID),
		ContactID:  c.ID,
		NoteID:     note.ID,
	}
	if err := env.Reminders.Schedule(ctx, r); err != nil {
		return nil, err
	}
	return &contact.Reminder{Armed: true, At: at, ExternalID: r.ExternalID}, nil
}

func writeNotes(ctx context.Context, env *Env, id string, notes []contact.Note) error {
	ok, err := env.Store.Update(ctx, id, contact.Patch{Notes: &notes})
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewNotFound(id)
	}
	return nil
}
