package ops

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/errors"
)

// Search limits
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxQueryLength     = db.MaxSearchQueryChars
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query string // required
	Limit int    // default: 20, max: 100
	// Fuzzy ranks contacts by how well their name matches the query
	// instead of prefix matching on name, email, phone and company.
	Fuzzy bool
}

// SearchResultItem wraps a ContactSummary with its fuzzy score.
type SearchResultItem struct {
	ContactSummary
	Score int `json:"score,omitempty"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items []SearchResultItem `json:"items"`
	Sort  string             `json:"sort"`
}

// Search finds contacts by query.
//
// The default mode matches a case-insensitive prefix of name, email, phone or
// company, or a substring of any tag, in store order. Fuzzy mode scores every
// contact name and returns the best matches first.
func Search(ctx context.Context, env *Env, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest("query is too long")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	if input.Fuzzy {
		return fuzzySearch(ctx, env, query, limit)
	}

	found, err := env.Store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]SearchResultItem, len(found))
	for i, c := range found {
		items[i] = SearchResultItem{ContactSummary: Summarize(c)}
	}
	return &SearchOutput{Items: items, Sort: "newest_first"}, nil
}

// contactNames adapts a contact slice to fuzzy.Source.
type contactNames []*contact.Contact

func (c contactNames) String(i int) string { return c[i].Name }

func (c contactNames) Len() int { return len(c) }

func fuzzySearch(ctx context.Context, env *Env, query string, limit int) (*SearchOutput, error) {
	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := fuzzy.FindFrom(query, contactNames(all))
	if len(matches) > limit {
		matches = matches[:limit]
	}

	items := make([]SearchResultItem, len(matches))
	for i, m := range matches {
		items[i] = SearchResultItem{
			ContactSummary: Summarize(all[m.Index]),
			Score:          m.Score,
		}
	}
	return &SearchOutput{Items: items, Sort: "relevance"}, nil
}
