package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/config"
	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/devicesync"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
	"github.com/hpungsan/rolodex/internal/store"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env bundles the collaborators every operation needs.
// Reminders and Sync may be nil; operations that need them then fail
// with INVALID_REQUEST.
type Env struct {
	Store     *store.SQLStore
	Config    *config.Config
	Reminders reminder.Scheduler
	Sync      *devicesync.Engine
	Logger    *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Env) config() *config.Config {
	if e.Config == nil {
		return config.DefaultConfig()
	}
	return e.Config
}

// ContactSummary is the compact form returned by list and search.
type ContactSummary struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Company         string           `json:"company,omitempty"`
	Position        string           `json:"position,omitempty"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Tags            []string         `json:"tags"`
	Priority        contact.Priority `json:"priority"`
	NoteCount       int              `json:"note_count"`
	CreatedAt       int64            `json:"created_at"`
	LastInteraction int64            `json:"last_interaction"`
}

// Summarize builds the summary of c.
func Summarize(c *contact.Contact) ContactSummary {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ContactSummary{
		ID:              c.ID,
		Name:            c.Name,
		Company:         c.Company,
		Position:        c.Position,
		Email:           c.Email,
		Phone:           c.Phone,
		Tags:            tags,
		Priority:        c.Priority,
		NoteCount:       len(c.Notes),
		CreatedAt:       c.CreatedAt,
		LastInteraction: c.LastInteraction,
	}
}

func summarizeAll(cs []*contact.Contact) []ContactSummary {
	out := make([]ContactSummary, len(cs))
	for i, c := range cs {
		out[i] = Summarize(c)
	}
	return out
}

// requireID trims and checks a contact id.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

// cleanOptionalString trims s and returns nil when it is nil or blank.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// parsePriority validates an optional priority string.
func parsePriority(s string) (contact.Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return contact.PriorityMedium, nil
	}
	p := contact.Priority(s)
	if !p.Valid() {
		return "", errors.NewInvalidRequest("priority must be one of: low, medium, high")
	}
	return p, nil
}

// getContact loads a contact, mapping ctx cancellation.
func getContact(ctx context.Context, env *Env, id string) (*contact.Contact, error) {
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("operation")
	}
	return env.Store.Get(ctx, id)
}
