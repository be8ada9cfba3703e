package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ID string // required

	// Editable fields (nil = don't change)
	Name     *string
	Company  *string
	Position *string
	Email    *string
	Phone    *string
	Priority *string
	Links    *[]contact.Link // replaces the whole list
	Tags     *[]string       // replaces the whole set
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID      string           `json:"id"`
	Updated []string         `json:"updated"`
	Contact *contact.Contact `json:"contact"`
}

// Update applies a partial edit and refreshes the contact's last interaction.
func Update(ctx context.Context, env *Env, input UpdateInput) (*UpdateOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	patch, err := input.patch()
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}

	current, err := getContact(ctx, env, id)
	if err != nil {
		return nil, err
	}

	// Validate the result before writing anything
	preview := current.Clone()
	patch.Apply(preview)
	if err := contact.Validate(preview); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	ok, err := env.Store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	updated, err := env.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	env.logger().Debug("contact updated", zap.String("id", id), zap.Strings("fields", patch.Fields()))
	return &UpdateOutput{ID: id, Updated: patch.Fields(), Contact: updated}, nil
}

func (in UpdateInput) patch() (contact.Patch, error) {
	var p contact.Patch
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}

	if in.Name != nil {
		name := contact.CleanName(*in.Name)
		if name == "" {
			return p, errors.NewInvalidRequest("name must not be empty")
		}
		p.Name = &name
	}
	p.Company = trim(in.Company)
	p.Position = trim(in.Position)
	p.Email = trim(in.Email)
	p.Phone = trim(in.Phone)

	if in.Priority != nil {
		pr, err := parsePriority(*in.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if in.Links != nil {
		links := contact.CloneLinks(*in.Links)
		if links == nil {
			links = []contact.Link{}
		}
		p.Links = &links
	}
	if in.Tags != nil {
		tags := contact.CleanTags(*in.Tags)
		if tags == nil {
			tags = []string{}
		}
		p.Tags = &tags
	}
	return p, nil
}
