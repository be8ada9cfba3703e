package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// AddRequest represents the arguments for contact_add.
type AddRequest struct {
	Name     string         `json:"name"`
	Company  string         `json:"company,omitempty"`
	Position string         `json:"position,omitempty"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Links    []contact.Link `json:"links,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Note     *string        `json:"note,omitempty"`
}

// IDRequest represents the arguments of tools addressing one contact.
type IDRequest struct {
	ID string `json:"id"`
}

// UpdateRequest represents the arguments for contact_update.
type UpdateRequest struct {
	ID       string          `json:"id"`
	Name     *string         `json:"name,omitempty"`
	Company  *string         `json:"company,omitempty"`
	Position *string         `json:"position,omitempty"`
	Email    *string         `json:"email,omitempty"`
	Phone    *string         `json:"phone,omitempty"`
	Priority *string         `json:"priority,omitempty"`
	Links    *[]contact.Link `json:"links,omitempty"`
	Tags     *[]string       `json:"tags,omitempty"`
}

// DeleteAllRequest represents the arguments for contact_delete_all.
type DeleteAllRequest struct {
	Confirm bool `json:"confirm"`
}

// ListRequest represents the arguments for contact_list.
type ListRequest struct {
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Tag      *string `json:"tag,omitempty"`
}

// SearchRequest represents the arguments for contact_search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Fuzzy bool   `json:"fuzzy,omitempty"`
}

// AddNoteRequest represents the arguments for contact_add_note.
type AddNoteRequest struct {
	ContactID string   `json:"contact_id"`
	Text      string   `json:"text,omitempty"`
	Type      string   `json:"type,omitempty"`
	Date      int64    `json:"date,omitempty"`
	Checklist []string `json:"checklist,omitempty"`
	RemindAt  *int64   `json:"remind_at,omitempty"`
}

// NoteRequest addresses one note of one contact.
type NoteRequest struct {
	ContactID string `json:"contact_id"`
	NoteID    string `json:"note_id"`
}

func (r NoteRequest) ref() ops.NoteRef {
	return ops.NoteRef{ContactID: r.ContactID, NoteID: r.NoteID}
}

// SetReminderRequest represents the arguments for contact_set_reminder.
type SetReminderRequest struct {
	NoteRequest
	At int64 `json:"at"`
}

// ToggleChecklistRequest represents the arguments for contact_toggle_checklist.
type ToggleChecklistRequest struct {
	NoteRequest
	ItemID string `json:"item_id"`
}

// ExportRequest represents the arguments for contact_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// ImportRequest represents the arguments for contact_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// SyncSetEnabledRequest represents the arguments for sync_set_enabled.
type SyncSetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SyncSetPermissionRequest represents the arguments for sync_set_permission.
type SyncSetPermissionRequest struct {
	Decision string `json:"decision"`
}

// Handler implementations

// HandleAdd handles the contact_add tool call.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Add(ctx, h.env, ops.AddInput{
		Name:     input.Name,
		Company:  input.Company,
		Position: input.Position,
		Email:    input.Email,
		Phone:    input.Phone,
		Links:    input.Links,
		Tags:     input.Tags,
		Priority: input.Priority,
		Note:     input.Note,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the contact_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Get(ctx, h.env, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the contact_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Update(ctx, h.env, ops.UpdateInput{
		ID:       input.ID,
		Name:     input.Name,
		Company:  input.Company,
		Position: input.Position,
		Email:    input.Email,
		Phone:    input.Phone,
		Priority: input.Priority,
		Links:    input.Links,
		Tags:     input.Tags,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the contact_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Delete(ctx, h.env, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDeleteAll handles the contact_delete_all tool call.
func (h *Handlers) HandleDeleteAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteAllRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteAll(ctx, h.env, ops.DeleteAllInput{Confirm: input.Confirm})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the contact_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.List(ctx, h.env, ops.ListInput{
		Limit:    input.Limit,
		Offset:   input.Offset,
		Priority: input.Priority,
		Tag:      input.Tag,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the contact_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Search(ctx, h.env, ops.SearchInput{
		Query: input.Query,
		Limit: input.Limit,
		Fuzzy: input.Fuzzy,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAddNote handles the contact_add_note tool call.
func (h *Handlers) HandleAddNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddNoteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.AddNote(ctx, h.env, ops.AddNoteInput{
		ContactID: input.ContactID,
		Text:      input.Text,
		Type:      input.Type,
		Date:      input.Date,
		Checklist: input.Checklist,
		RemindAt:  input.RemindAt,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDeleteNote handles the contact_delete_note tool call.
func (h *Handlers) HandleDeleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteNote(ctx, h.env, input.ref())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSetReminder handles the contact_set_reminder tool call.
func (h *Handlers) HandleSetReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetReminderRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SetReminder(ctx, h.env, ops.SetReminderInput{
		NoteRef: input.ref(),
		At:      input.At,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCancelReminder handles the contact_cancel_reminder tool call.
func (h *Handlers) HandleCancelReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.CancelReminder(ctx, h.env, input.ref())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleToggleChecklist handles the contact_toggle_checklist tool call.
func (h *Handlers) HandleToggleChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToggleChecklistRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ToggleChecklistItem(ctx, h.env, ops.ToggleChecklistInput{
		NoteRef: input.ref(),
		ItemID:  input.ItemID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReminders handles the contact_reminders tool call.
func (h *Handlers) HandleReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Reminders(ctx, h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the contact_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Path:   input.Path,
		Format: input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the contact_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Import(ctx, h.env, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSyncRun handles the sync_run tool call.
func (h *Handlers) HandleSyncRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Sync(ctx, h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSyncStatus handles the sync_status tool call.
func (h *Handlers) HandleSyncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.SyncStatus(ctx, h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSyncSetEnabled handles the sync_set_enabled tool call.
func (h *Handlers) HandleSyncSetEnabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncSetEnabledRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SetSyncEnabled(ctx, h.env, input.Enabled)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSyncSetPermission handles the sync_set_permission tool call.
func (h *Handlers) HandleSyncSetPermission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncSetPermissionRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SetSyncPermission(ctx, h.env, input.Decision)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if rErr, ok := errors.As(err); ok {
		message := rErr.Message
		// Keep wrapper context such as "line 3: ..." added on the way up
		if err != error(rErr) && rErr.Code != errors.ErrInternal {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    rErr.Code,
			"message": message,
			"status":  rErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if rErr.Code != errors.ErrInternal && rErr.Details != nil {
			errorObj["details"] = rErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
