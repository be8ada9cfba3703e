package ops

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/device"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/stretchr/testify/require"
)

// TestFullWorkflow exercises the complete contact lifecycle:
// add → sync → note + reminder → search → export → delete → import (merge)
func TestFullWorkflow(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	ctx := context.Background()

	// 1. Add
	addOut, err := Add(ctx, env, AddInput{
		Name:  "Ana Garcia",
		Email: "ana@techsol.com",
		Tags:  []string{"Client"},
	})
	require.NoError(t, err)
	id := addOut.ID

	// 2. Sync a device address book that knows Ana and one new person
	attachSync(env, &device.StaticDirectory{
		Granted: true,
		Entries: []device.Entry{
			{
				DisplayName:  stringPtr("Ana Garcia"),
				Emails:       []device.Email{{Address: "ana@techsol.com"}},
				Organization: &device.Organization{Name: "Tech Solutions"},
				URLs:         []device.URL{{URL: "https://techsol.com"}},
			},
			{DisplayName: stringPtr("Bob Smith")},
		},
	})
	report, err := Sync(ctx, env)
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 1, report.Updated)

	ana, err := Get(ctx, env, GetInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, "Tech Solutions", ana.Company)
	require.Equal(t, []string{"Client"}, ana.Tags)

	// 3. Note with a reminder
	noteOut, err := AddNote(ctx, env, AddNoteInput{
		ContactID: id,
		Text:      "Follow up on the proposal",
		Type:      string(contact.NoteMeeting),
		RemindAt:  int64Ptr(time.Now().Add(time.Hour).Unix()),
	})
	require.NoError(t, err)
	require.NotNil(t, noteOut.Note.Reminder)
	require.Len(t, env.Reminders.Pending(), 1)

	// 4. Search finds Ana by company prefix and Bob by import tag
	searchOut, err := Search(ctx, env, SearchInput{Query: "tech"})
	require.NoError(t, err)
	require.Len(t, searchOut.Items, 1)
	require.Equal(t, id, searchOut.Items[0].ID)

	searchOut, err = Search(ctx, env, SearchInput{Query: "imported"})
	require.NoError(t, err)
	require.Len(t, searchOut.Items, 1)
	require.Equal(t, "Bob Smith", searchOut.Items[0].Name)

	// 5. Export
	exportPath := filepath.Join(tmpDir, "backup.jsonl")
	exportOut, err := Export(ctx, env, ExportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, 2, exportOut.Count)

	// 6. Delete cancels the reminder
	deleteOut, err := Delete(ctx, env, DeleteInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, 1, deleteOut.RemindersCancelled)
	require.Empty(t, env.Reminders.Pending())

	_, err = Get(ctx, env, GetInput{ID: id})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	// 7. Merge import restores Ana and leaves Bob alone
	importOut, err := Import(ctx, env, ImportInput{Path: exportPath, Mode: ImportModeMerge})
	require.NoError(t, err)
	require.Equal(t, 1, importOut.Imported)
	require.Equal(t, 1, importOut.Unchanged)

	restored, err := Get(ctx, env, GetInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, "Ana Garcia", restored.Name)
	require.Len(t, restored.Notes, 1)

	// 8. Re-arming picks the restored reminder back up
	n, err := RearmReminders(ctx, env)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	listOut, err := List(ctx, env, ListInput{})
	require.NoError(t, err)
	require.Equal(t, 2, listOut.Pagination.Total)
}
