package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit    int     // default: 20, max: 100
	Offset   int     // default: 0
	Priority *string // optional filter
	Tag      *string // optional filter, exact match
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []ContactSummary `json:"items"`
	Pagination Pagination       `json:"pagination"`
	Sort       string           `json:"sort"`
}

// List retrieves contact summaries in store order with pagination.
func List(ctx context.Context, env *Env, input ListInput) (*ListOutput, error) {
	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	var filters db.ListFilters
	if p := cleanOptionalString(input.Priority); p != nil {
		pr, err := parsePriority(*p)
		if err != nil {
			return nil, err
		}
		filters.Priority = &pr
	}
	if input.Tag != nil {
		tag := strings.TrimSpace(*input.Tag)
		if tag != "" {
			filters.Tag = &tag
		}
	}

	items, total, err := db.List(ctx, env.Store.DB(), filters, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*contact.Contact{}
	}

	return &ListOutput{
		Items: summarizeAll(items),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "newest_first",
	}, nil
}
