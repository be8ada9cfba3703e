package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/hpungsan/rolodex/internal/errors"
)

func TestList_NewestFirst(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	first := mustAdd(t, env, AddInput{Name: "Ana Garcia"})
	second := mustAdd(t, env, AddInput{Name: "Bob Smith"})

	out, err := List(ctx, env, ListInput{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].ID != second || out.Items[1].ID != first {
		t.Errorf("order = [%s %s], want newest first", out.Items[0].Name, out.Items[1].Name)
	}
	if out.Sort != "newest_first" {
		t.Errorf("Sort = %q", out.Sort)
	}
}

func TestList_Pagination(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustAdd(t, env, AddInput{Name: fmt.Sprintf("Contact %d", i)})
	}

	tests := []struct {
		name        string
		input       ListInput
		wantItems   int
		wantLimit   int
		wantHasMore bool
	}{
		{"default limit", ListInput{}, 5, DefaultListLimit, false},
		{"first page", ListInput{Limit: 2}, 2, 2, true},
		{"last page", ListInput{Limit: 2, Offset: 4}, 1, 2, false},
		{"limit clamped", ListInput{Limit: 1000}, 5, MaxListLimit, false},
		{"negative offset", ListInput{Limit: 2, Offset: -3}, 2, 2, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := List(ctx, env, tc.input)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(out.Items) != tc.wantItems {
				t.Errorf("len(Items) = %d, want %d", len(out.Items), tc.wantItems)
			}
			if out.Pagination.Limit != tc.wantLimit {
				t.Errorf("Limit = %d, want %d", out.Pagination.Limit, tc.wantLimit)
			}
			if out.Pagination.HasMore != tc.wantHasMore {
				t.Errorf("HasMore = %v, want %v", out.Pagination.HasMore, tc.wantHasMore)
			}
			if out.Pagination.Total != 5 {
				t.Errorf("Total = %d, want 5", out.Pagination.Total)
			}
		})
	}
}

func TestList_Filters(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	mustAdd(t, env, AddInput{Name: "Ana Garcia", Priority: "high", Tags: []string{"Client"}})
	mustAdd(t, env, AddInput{Name: "Bob Smith", Priority: "low", Tags: []string{"Client", "Friend"}})
	mustAdd(t, env, AddInput{Name: "Cleo Park"})

	out, err := List(ctx, env, ListInput{Priority: stringPtr("high")})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Name != "Ana Garcia" {
		t.Errorf("priority filter = %+v", out.Items)
	}

	out, err = List(ctx, env, ListInput{Tag: stringPtr("Client")})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Total != 2 {
		t.Errorf("tag filter total = %d, want 2", out.Pagination.Total)
	}

	// Tag filter is exact
	out, err = List(ctx, env, ListInput{Tag: stringPtr("client")})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Pagination.Total != 0 {
		t.Errorf("lowercase tag total = %d, want 0", out.Pagination.Total)
	}

	_, err = List(ctx, env, ListInput{Priority: stringPtr("urgent")})
	assertCode(t, err, errors.ErrInvalidRequest)
}

func TestSearch_Prefix(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	mustAdd(t, env, AddInput{Name: "Ana Garcia", Email: "ana@techsol.com", Company: "Tech Solutions"})
	mustAdd(t, env, AddInput{Name: "Bob Smith", Phone: "+1 555 0100", Tags: []string{"Conference"}})

	tests := []struct {
		query string
		want  []string
	}{
		{"ana", []string{"Ana Garcia"}},
		{"ANA@", []string{"Ana Garcia"}},
		{"tech", []string{"Ana Garcia"}},
		{"+1 555", []string{"Bob Smith"}},
		{"feren", []string{"Bob Smith"}},
		{"garcia", nil},
		{"100%", nil},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			out, err := Search(ctx, env, SearchInput{Query: tc.query})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(out.Items) != len(tc.want) {
				t.Fatalf("Search(%q) = %d items, want %d", tc.query, len(out.Items), len(tc.want))
			}
			for i, name := range tc.want {
				if out.Items[i].Name != name {
					t.Errorf("Items[%d] = %q, want %q", i, out.Items[i].Name, name)
				}
			}
		})
	}
}

func TestSearch_Fuzzy(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()
	mustAdd(t, env, AddInput{Name: "Ana Garcia"})
	mustAdd(t, env, AddInput{Name: "Bob Smith"})

	out, err := Search(ctx, env, SearchInput{Query: "Grca", Fuzzy: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Name != "Ana Garcia" {
		t.Fatalf("fuzzy items = %+v", out.Items)
	}
	if out.Sort != "relevance" {
		t.Errorf("Sort = %q, want relevance", out.Sort)
	}
}

func TestSearch_Validation(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	_, err := Search(ctx, env, SearchInput{Query: "  "})
	assertCode(t, err, errors.ErrInvalidRequest)

	long := make([]byte, MaxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = Search(ctx, env, SearchInput{Query: string(long)})
	assertCode(t, err, errors.ErrInvalidRequest)
}
