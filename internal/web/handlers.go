package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleList handles GET /contacts: list contacts newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	priority := r.URL.Query().Get("priority")
	tag := r.URL.Query().Get("tag")

	input := ops.ListInput{
		Priority: ptrString(priority),
		Tag:      ptrString(tag),
		Limit:    parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:   parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Contacts",
			Version: h.renderer.version,
			Nav:     "contacts",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Priority:   priority,
		Tag:        tag,
	})
}

// HandleSearch handles GET /contacts/search: prefix or fuzzy search.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Query:    query,
		Fuzzy:    parseBoolParam(r, "fuzzy"),
		HasQuery: strings.TrimSpace(query) != "",
	}

	if !data.HasQuery {
		// If htmx targets #results (user cleared the search box), return just the results fragment
		if r.Header.Get("HX-Target") == "results" {
			h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
			return
		}
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	result, err := ops.Search(r.Context(), h.env, ops.SearchInput{
		Query: query,
		Limit: parseIntParam(r, "limit", ops.DefaultSearchLimit),
		Fuzzy: data.Fuzzy,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Items = result.Items

	// If htmx targets #results, render only the results fragment
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}

	h.renderer.renderPage(w, r, "search", data)
}

// HandleDetail handles GET /contacts/{id}: view a single contact and its notes.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("contact ID is required"))
		return
	}

	c, err := ops.Get(r.Context(), h.env, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	notes := make([]NoteView, len(c.Notes))
	// Newest note first
	for i := range c.Notes {
		n := c.Notes[len(c.Notes)-1-i]
		notes[i] = NoteView{Note: n, RenderedHTML: renderMarkdown(n.Text)}
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Name,
			Version: h.renderer.version,
			Nav:     "contacts",
		},
		Contact: c,
		Notes:   notes,
	})
}

// HandleDelete handles DELETE /contacts/{id}: permanently delete a contact.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("contact ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.env, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/contacts")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/contacts", http.StatusFound)
}

// HandleReminders handles GET /reminders: pending reminders, soonest first.
func (h *Handlers) HandleReminders(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Reminders(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "reminders", RemindersPageData{
		PageData: PageData{
			Title:   "Reminders",
			Version: h.renderer.version,
			Nav:     "reminders",
		},
		Items:  result.Items,
		Source: result.Source,
	})
}

// HandleSync handles POST /sync: import the device address book.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	report, err := ops.Sync(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	message := fmt.Sprintf("Sync finished: %d created, %d updated, %d skipped",
		report.Created, report.Updated, report.Skipped)

	// HTMX request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="sync-result">` + template.HTMLEscapeString(message) + `</div>`))
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, report)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/contacts", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// initials returns up to two uppercase initials of name for the avatar badge.
func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			out = append(out, r)
			break
		}
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}
