package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/ops"
	"github.com/hpungsan/rolodex/internal/web"
)

// maxStdinBytes caps note text piped through stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "rolodex",
		Usage:   "Personal contact book",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(env),
			getCmd(env),
			updateCmd(env),
			deleteCmd(env),
			listCmd(env),
			searchCmd(env),
			noteCmd(env),
			remindCmd(env),
			syncCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// contactFlags returns the editable contact fields shared by add and update.
func contactFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "company", Aliases: []string{"c"}, Usage: "Company or organization"},
		&cli.StringFlag{Name: "position", Usage: "Job title"},
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address"},
		&cli.StringFlag{Name: "phone", Aliases: []string{"p"}, Usage: "Phone number"},
		&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		&cli.StringFlag{Name: "priority", Usage: "Priority: high|medium|low"},
		&cli.StringSliceFlag{Name: "link", Aliases: []string{"l"}, Usage: "Link as type=value, repeatable"},
	}
}

// addCmd creates the add command.
func addCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a contact (an optional first note may be piped via stdin)",
		ArgsUsage: "<name>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "First note text"},
		}, contactFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("name is required"))
			}

			links, err := parseLinks(c.StringSlice("link"))
			if err != nil {
				return outputError(err)
			}

			input := ops.AddInput{
				Name:     c.Args().First(),
				Company:  c.String("company"),
				Position: c.String("position"),
				Email:    c.String("email"),
				Phone:    c.String("phone"),
				Priority: c.String("priority"),
				Tags:     parseTags(c.String("tags")),
				Links:    links,
			}

			if note := c.String("note"); note != "" {
				input.Note = &note
			} else if stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if text != "" {
					input.Note = &text
				}
			}

			output, err := ops.Add(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a contact with its notes",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Get(c.Context, env, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command. Only flags that are passed change.
func updateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Edit a contact",
		ArgsUsage: "<id>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Display name"},
		}, contactFlags()...),
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{ID: c.Args().First()}

			for flag, dst := range map[string]**string{
				"name":     &input.Name,
				"company":  &input.Company,
				"position": &input.Position,
				"email":    &input.Email,
				"phone":    &input.Phone,
				"priority": &input.Priority,
			} {
				if c.IsSet(flag) {
					v := c.String(flag)
					*dst = &v
				}
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				if tags == nil {
					tags = []string{}
				}
				input.Tags = &tags
			}
			if c.IsSet("link") {
				links, err := parseLinks(c.StringSlice("link"))
				if err != nil {
					return outputError(err)
				}
				input.Links = &links
			}

			output, err := ops.Update(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a contact, or every contact with --all --confirm",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Delete every contact"},
			&cli.BoolFlag{Name: "confirm", Usage: "Required with --all"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("all") {
				output, err := ops.DeleteAll(c.Context, env, ops.DeleteAllInput{Confirm: c.Bool("confirm")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.Delete(c.Context, env, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List contacts, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Max items"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
			&cli.StringFlag{Name: "priority", Usage: "Filter by priority"},
			&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}
			if p := c.String("priority"); p != "" {
				input.Priority = &p
			}
			if tag := c.String("tag"); tag != "" {
				input.Tag = &tag
			}

			output, err := ops.List(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search contacts by name, email, phone, company or tag",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: ops.DefaultSearchLimit, Usage: "Max items"},
			&cli.BoolFlag{Name: "fuzzy", Aliases: []string{"f"}, Usage: "Rank by fuzzy name match"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, env, ops.SearchInput{
				Query: strings.Join(c.Args().Slice(), " "),
				Limit: c.Int("limit"),
				Fuzzy: c.Bool("fuzzy"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// noteCmd groups note subcommands.
func noteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Add, delete or check off notes",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a note (text from --text or stdin)",
				ArgsUsage: "<contact-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Note text (markdown)"},
					&cli.StringFlag{Name: "type", Value: string(contact.NotePlain), Usage: "note|meeting|meeting_bullets|meeting_checklist"},
					&cli.StringSliceFlag{Name: "item", Usage: "Checklist item, repeatable"},
					&cli.StringFlag{Name: "remind", Usage: "Reminder time: RFC 3339, unix seconds, or offset like 2h or 3d"},
				},
				Action: func(c *cli.Context) error {
					text := c.String("text")
					if text == "" && stdinHasData() {
						var err error
						if text, err = readStdin(maxStdinBytes); err != nil {
							return outputError(err)
						}
					}

					input := ops.AddNoteInput{
						ContactID: c.Args().First(),
						Text:      text,
						Type:      c.String("type"),
						Checklist: c.StringSlice("item"),
					}
					if s := c.String("remind"); s != "" {
						at, err := parseWhen(s, time.Now())
						if err != nil {
							return outputError(err)
						}
						input.RemindAt = &at
					}

					output, err := ops.AddNote(c.Context, env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a note and cancel its reminder",
				ArgsUsage: "<contact-id> <note-id>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteNote(c.Context, env, noteRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "toggle",
				Usage:     "Flip a checklist item",
				ArgsUsage: "<contact-id> <note-id> <item-id>",
				Action: func(c *cli.Context) error {
					output, err := ops.ToggleChecklistItem(c.Context, env, ops.ToggleChecklistInput{
						NoteRef: noteRef(c),
						ItemID:  c.Args().Get(2),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// remindCmd groups reminder subcommands.
func remindCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Manage note reminders",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Arm or move the reminder of a note",
				ArgsUsage: "<contact-id> <note-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Required: true, Usage: "RFC 3339, unix seconds, or offset like 2h or 3d"},
				},
				Action: func(c *cli.Context) error {
					at, err := parseWhen(c.String("at"), time.Now())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.SetReminder(c.Context, env, ops.SetReminderInput{NoteRef: noteRef(c), At: at})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "cancel",
				Usage:     "Cancel the reminder of a note",
				ArgsUsage: "<contact-id> <note-id>",
				Action: func(c *cli.Context) error {
					output, err := ops.CancelReminder(c.Context, env, noteRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List pending reminders, soonest first",
				Action: func(c *cli.Context) error {
					output, err := ops.Reminders(c.Context, env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// syncCmd groups device sync subcommands.
func syncCmd(env *ops.Env) *cli.Command {
	setEnabled := func(enabled bool) cli.ActionFunc {
		return func(c *cli.Context) error {
			output, err := ops.SetSyncEnabled(c.Context, env, enabled)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}
	}

	setPermission := func(decision string) cli.ActionFunc {
		return func(c *cli.Context) error {
			output, err := ops.SetSyncPermission(c.Context, env, decision)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Import the device address book",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a sync now",
				Action: func(c *cli.Context) error {
					output, err := ops.Sync(c.Context, env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "status",
				Usage: "Show sync state and last run",
				Action: func(c *cli.Context) error {
					output, err := ops.SyncStatus(c.Context, env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{Name: "enable", Usage: "Turn sync on", Action: setEnabled(true)},
			{Name: "disable", Usage: "Turn sync off", Action: setEnabled(false)},
			{
				Name:  "permission",
				Usage: "Grant, deny or reset access to device contacts",
				Subcommands: []*cli.Command{
					{Name: ops.PermissionGrant, Usage: "Allow sync to read device contacts", Action: setPermission(ops.PermissionGrant)},
					{Name: ops.PermissionDeny, Usage: "Block sync from reading device contacts", Action: setPermission(ops.PermissionDeny)},
					{Name: ops.PermissionReset, Usage: "Forget the decision and ask again", Action: setPermission(ops.PermissionReset)},
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export contacts to JSONL or vCard, or reminders to iCalendar",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file path"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "jsonl", Usage: "jsonl|vcf|ics"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env, ops.ExportInput{
				Path:   c.String("path"),
				Format: c.String("format"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import contacts from a JSONL export",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "Collision mode: error|replace|merge"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd starts the web UI.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 7380, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, env.Logger)
		},
	}
}

func noteRef(c *cli.Context) ops.NoteRef {
	return ops.NoteRef{ContactID: c.Args().Get(0), NoteID: c.Args().Get(1)}
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseLinks parses "type=value" pairs.
func parseLinks(specs []string) ([]contact.Link, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	links := make([]contact.Link, 0, len(specs))
	for _, s := range specs {
		typ, value, ok := strings.Cut(s, "=")
		typ, value = strings.TrimSpace(typ), strings.TrimSpace(value)
		if !ok || typ == "" || value == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid link %q: expected type=value", s))
		}
		links = append(links, contact.Link{Type: contact.LinkType(typ), Value: value})
	}
	return links, nil
}

// parseWhen parses a reminder time into unix seconds. It accepts RFC 3339,
// raw unix seconds, a Go duration offset ("90m", "2h") or days ("3d").
func parseWhen(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil || days < 0 {
			return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid time %q", s))
		}
		return now.AddDate(0, 0, days).Unix(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid time %q", s))
	}
	return now.Add(d).Unix(), nil
}
