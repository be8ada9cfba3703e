package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
)

// AddInput contains parameters for the Add operation.
type AddInput struct {
	Name     string // required
	Company  string
	Position string
	Email    string
	Phone    string
	Links    []contact.Link
	Tags     []string
	Priority string // default: medium
	// Note, when set, becomes the first note of the contact
	Note *string
}

// AddOutput contains the result of the Add operation.
type AddOutput struct {
	ID      string           `json:"id"`
	Contact *contact.Contact `json:"contact"`
}

// Add creates a contact and prepends it to the store.
func Add(ctx context.Context, env *Env, input AddInput) (*AddOutput, error) {
	priority, err := parsePriority(input.Priority)
	if err != nil {
		return nil, err
	}

	c := &contact.Contact{
		Name:     contact.CleanName(input.Name),
		Company:  strings.TrimSpace(input.Company),
		Position: strings.TrimSpace(input.Position),
		Email:    strings.TrimSpace(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
		Links:    contact.CloneLinks(input.Links),
		Tags:     contact.CleanTags(input.Tags),
		Priority: priority,
	}
	if note := cleanOptionalString(input.Note); note != nil {
		c.Notes = []contact.Note{newNote(*note, contact.NotePlain, 0, nil)}
	}

	if err := contact.Validate(c); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	added, err := env.Store.Add(ctx, c)
	if err != nil {
		return nil, err
	}

	env.logger().Debug("contact added", zap.String("id", added.ID))
	return &AddOutput{ID: added.ID, Contact: added}, nil
}
