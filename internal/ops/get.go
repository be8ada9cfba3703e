package ops

import (
	"context"

	"github.com/hpungsan/rolodex/internal/contact"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string // required
}

// Get retrieves one contact with its links and notes.
func Get(ctx context.Context, env *Env, input GetInput) (*contact.Contact, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	return getContact(ctx, env, id)
}
