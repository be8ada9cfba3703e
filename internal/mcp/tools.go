package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

var linkItems = mcp.Items(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"type": map[string]any{
			"type": "string",
			"enum": []string{"email", "phone", "linkedin", "facebook", "twitter", "instagram", "website"},
		},
		"value": map[string]any{"type": "string"},
		"label": map[string]any{"type": "string"},
	},
	"required": []string{"type", "value"},
})

var priorityEnum = mcp.Enum("high", "medium", "low")

var addToolDef = mcp.NewTool("contact_add",
	mcp.WithDescription("Create a contact. It becomes the first entry in the rolodex."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("company", mcp.Description("Company or organization")),
	mcp.WithString("position", mcp.Description("Job title")),
	mcp.WithString("email", mcp.Description("Primary email address")),
	mcp.WithString("phone", mcp.Description("Primary phone number")),
	mcp.WithArray("links", mcp.Description("Social and web links"), linkItems),
	mcp.WithArray("tags", mcp.Description("Tags; exact duplicates are dropped"), stringItems),
	mcp.WithString("priority", mcp.Description("Priority (default: medium)"), priorityEnum),
	mcp.WithString("note", mcp.Description("Optional first note")),
)

var getToolDef = mcp.NewTool("contact_get",
	mcp.WithDescription("Fetch one contact with its notes and links."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Contact ID")),
)

var updateToolDef = mcp.NewTool("contact_update",
	mcp.WithDescription("Edit a contact. Only provided fields change; links and tags replace the whole list."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Contact ID")),
	mcp.WithString("name", mcp.Description("Display name")),
	mcp.WithString("company", mcp.Description("Company; empty string clears it")),
	mcp.WithString("position", mcp.Description("Job title; empty string clears it")),
	mcp.WithString("email", mcp.Description("Email; empty string clears it")),
	mcp.WithString("phone", mcp.Description("Phone; empty string clears it")),
	mcp.WithString("priority", priorityEnum),
	mcp.WithArray("links", mcp.Description("Replacement link list"), linkItems),
	mcp.WithArray("tags", mcp.Description("Replacement tag set"), stringItems),
)

var deleteToolDef = mcp.NewTool("contact_delete",
	mcp.WithDescription("Permanently delete a contact and cancel its reminders."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Contact ID")),
)

var deleteAllToolDef = mcp.NewTool("contact_delete_all",
	mcp.WithDescription("Delete every contact. Requires confirm=true."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var listToolDef = mcp.NewTool("contact_list",
	mcp.WithDescription("List contact summaries, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithString("priority", mcp.Description("Filter by priority"), priorityEnum),
	mcp.WithString("tag", mcp.Description("Filter by exact tag")),
)

var searchToolDef = mcp.NewTool("contact_search",
	mcp.WithDescription("Search contacts by name, email, phone or company prefix, or by tag. Set fuzzy for ranked name matching."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithBoolean("fuzzy", mcp.Description("Rank by fuzzy name match")),
)

var addNoteToolDef = mcp.NewTool("contact_add_note",
	mcp.WithDescription("Add a note to a contact, optionally with a reminder."),
	mcp.WithString("contact_id", mcp.Required(), mcp.Description("Contact ID")),
	mcp.WithString("text", mcp.Description("Note text (markdown)")),
	mcp.WithString("type", mcp.Description("Note type (default: note)"),
		mcp.Enum("note", "meeting", "meeting_bullets", "meeting_checklist")),
	mcp.WithNumber("date", mcp.Description("Unix seconds the note refers to (default: now)")),
	mcp.WithArray("checklist", mcp.Description("Checklist items for meeting_checklist notes"), stringItems),
	mcp.WithNumber("remind_at", mcp.Description("Unix seconds for a reminder, must be in the future")),
)

var deleteNoteToolDef = mcp.NewTool("contact_delete_note",
	mcp.WithDescription("Remove a note and cancel its reminder."),
	mcp.WithString("contact_id", mcp.Required()),
	mcp.WithString("note_id", mcp.Required()),
)

var setReminderToolDef = mcp.NewTool("contact_set_reminder",
	mcp.WithDescription("Arm or move the reminder of a note."),
	mcp.WithString("contact_id", mcp.Required()),
	mcp.WithString("note_id", mcp.Required()),
	mcp.WithNumber("at", mcp.Required(), mcp.Description("Unix seconds, must be in the future")),
)

var cancelReminderToolDef = mcp.NewTool("contact_cancel_reminder",
	mcp.WithDescription("Cancel the reminder of a note."),
	mcp.WithString("contact_id", mcp.Required()),
	mcp.WithString("note_id", mcp.Required()),
)

var toggleChecklistToolDef = mcp.NewTool("contact_toggle_checklist",
	mcp.WithDescription("Flip the completed flag of a checklist item."),
	mcp.WithString("contact_id", mcp.Required()),
	mcp.WithString("note_id", mcp.Required()),
	mcp.WithString("item_id", mcp.Required()),
)

var remindersToolDef = mcp.NewTool("contact_reminders",
	mcp.WithDescription("List pending reminders, soonest first."),
)

var exportToolDef = mcp.NewTool("contact_export",
	mcp.WithDescription("Export contacts to JSONL or vCard, or armed reminders to iCalendar."),
	mcp.WithString("path", mcp.Description("Output path (default: ~/.rolodex/exports/)")),
	mcp.WithString("format", mcp.Description("Output format (default: jsonl)"), mcp.Enum("jsonl", "vcf", "ics")),
)

var importToolDef = mcp.NewTool("contact_import",
	mcp.WithDescription("Import contacts from a JSONL export."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the JSONL file")),
	mcp.WithString("mode", mcp.Description("Collision handling (default: error)"), mcp.Enum("error", "replace", "merge")),
)

var syncRunToolDef = mcp.NewTool("sync_run",
	mcp.WithDescription("Import the device address book. New people are created; known people only get their gaps filled."),
)

var syncStatusToolDef = mcp.NewTool("sync_status",
	mcp.WithDescription("Report whether a sync is running and when the last one finished."),
)

var syncSetEnabledToolDef = mcp.NewTool("sync_set_enabled",
	mcp.WithDescription("Turn device sync on or off."),
	mcp.WithBoolean("enabled", mcp.Required()),
)

var syncSetPermissionToolDef = mcp.NewTool("sync_set_permission",
	mcp.WithDescription("Grant or deny access to device contacts, or reset the decision so the next run asks again."),
	mcp.WithString("decision", mcp.Required(), mcp.Enum("grant", "deny", "reset")),
)
