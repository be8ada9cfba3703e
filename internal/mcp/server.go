package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/rolodex/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"contact", "sync"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"contact_add": {
		def:     addToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAdd },
	},
	"contact_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"contact_update": {
		def:     updateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"contact_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"contact_delete_all": {
		def:     deleteAllToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteAll },
	},
	"contact_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"contact_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"contact_add_note": {
		def:     addNoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddNote },
	},
	"contact_delete_note": {
		def:     deleteNoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteNote },
	},
	"contact_set_reminder": {
		def:     setReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetReminder },
	},
	"contact_cancel_reminder": {
		def:     cancelReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCancelReminder },
	},
	"contact_toggle_checklist": {
		def:     toggleChecklistToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleToggleChecklist },
	},
	"contact_reminders": {
		def:     remindersToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReminders },
	},
	"contact_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"contact_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"sync_run": {
		def:     syncRunToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSyncRun },
	},
	"sync_status": {
		def:     syncStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSyncStatus },
	},
	"sync_set_enabled": {
		def:     syncSetEnabledToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSyncSetEnabled },
	},
	"sync_set_permission": {
		def:     syncSetPermissionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSyncSetPermission },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "contact_add" → "contact").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Rolodex tools registered.
// Tools listed in DisabledTools or belonging to DisabledTypes
// are excluded from registration.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rolodex",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)
	cfg := env.Config

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	if cfg != nil {
		for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
			disabled[tool] = true
		}
		for _, name := range cfg.DisabledTools {
			disabled[name] = true
		}
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	s := NewServer(env, version)
	return server.ServeStdio(s)
}
