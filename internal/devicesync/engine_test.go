package devicesync

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/device"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return store.New(database, nil)
}

// countingStore records AddBatch sizes and can fail a given batch call.
type countingStore struct {
	store.Store
	batches   []int
	failBatch int // 1-based; 0 never fails
	failWrite bool
}

func (s *countingStore) AddBatch(ctx context.Context, cs []*contact.Contact) error {
	s.batches = append(s.batches, len(cs))
	if s.failBatch == len(s.batches) {
		return stderrors.New("disk full")
	}
	return s.Store.AddBatch(ctx, cs)
}

func (s *countingStore) Update(ctx context.Context, id string, p contact.Patch) (bool, error) {
	if s.failWrite {
		return false, stderrors.New("disk full")
	}
	return s.Store.Update(ctx, id, p)
}

// blockingDirectory holds ListContacts until released or cancelled.
type blockingDirectory struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDirectory) CheckPermission(ctx context.Context) (bool, error) { return true, nil }

func (d *blockingDirectory) RequestPermission(ctx context.Context) (bool, error) { return true, nil }

func (d *blockingDirectory) ListContacts(ctx context.Context, fields device.Fields) ([]device.Entry, error) {
	close(d.entered)
	select {
	case <-d.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func named(name string) device.Entry {
	return device.Entry{DisplayName: strPtr(name)}
}

func TestRun_FillsGapsOnExistingContact(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ana, err := st.Add(ctx, &contact.Contact{Name: "Ana Garcia"})
	if err != nil {
		t.Fatal(err)
	}

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{{
		DisplayName:  strPtr("Ana Garcia"),
		Emails:       []device.Email{{Address: "ana@x.com"}},
		Organization: &device.Organization{Name: "Tech Co"},
	}}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Updated != 1 || report.Created != 0 {
		t.Errorf("report = %+v, want 1 updated, 0 created", report)
	}
	if !report.Success || report.State != StateIdle {
		t.Errorf("report = %+v, want success in idle", report)
	}

	got, err := st.Get(ctx, ana.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "ana@x.com" || got.Company != "Tech Co" {
		t.Errorf("merged contact = %+v", got)
	}
	if len(got.Links) != 1 || got.Links[0].Value != "ana@x.com" {
		t.Errorf("Links = %+v", got.Links)
	}
	// Import note and tag are not merged into existing contacts
	if len(got.Notes) != 0 || len(got.Tags) != 0 {
		t.Errorf("notes/tags merged: %+v / %v", got.Notes, got.Tags)
	}
}

func TestRun_CreatesNewContact(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Add(ctx, &contact.Contact{Name: "Existing"}); err != nil {
		t.Fatal(err)
	}

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{named("Bob Stone")}}
	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 1 || report.Updated != 0 {
		t.Errorf("report = %+v", report)
	}

	all, _ := st.GetAll(ctx)
	if len(all) != 2 {
		t.Fatalf("store size = %d, want 2", len(all))
	}
	bob := all[0]
	if bob.Name != "Bob Stone" {
		t.Fatalf("newest contact = %q, want Bob Stone", bob.Name)
	}
	if len(bob.Tags) != 1 || bob.Tags[0] != DefaultImportTag {
		t.Errorf("Tags = %v", bob.Tags)
	}
	if len(bob.Notes) != 1 || bob.Notes[0].Text != DefaultImportNote {
		t.Errorf("Notes = %+v", bob.Notes)
	}
}

func TestRun_SameNameTwiceCreatesOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana Garcia"), Emails: []device.Email{{Address: "ana@x.com"}}},
		{DisplayName: strPtr("ANA GARCIA"), Phones: []device.Phone{{Number: "+34 600"}}},
	}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 1 || report.Updated != 0 {
		t.Errorf("report = %+v, want 1 created", report)
	}

	all, _ := st.GetAll(ctx)
	if len(all) != 1 {
		t.Fatalf("store size = %d, want 1", len(all))
	}
	if all[0].Phone != "+34 600" || len(all[0].Links) != 2 {
		t.Errorf("second entry not merged into staged record: %+v", all[0])
	}
}

func TestRun_TwoEntriesMatchOneStoredContact(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ana, _ := st.Add(ctx, &contact.Contact{Name: "Ana Garcia"})

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana Garcia"), Emails: []device.Email{{Address: "ana@x.com"}}},
		{DisplayName: strPtr("ana garcia"), URLs: []device.URL{{URL: "https://ana.dev"}}},
	}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Errorf("report = %+v, want 0 created, 1 updated", report)
	}

	got, _ := st.Get(ctx, ana.ID)
	// Both entries' links survive: the second merge sees the first
	if len(got.Links) != 2 {
		t.Errorf("Links = %+v, want 2", got.Links)
	}
}

func TestRun_MatchesOnEmailFilledEarlierInRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ana, _ := st.Add(ctx, &contact.Contact{Name: "Ana Garcia"})

	// The first entry gives Ana an email; the second only shares that email
	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana Garcia"), Emails: []device.Email{{Address: "ana@x.com"}}},
		{DisplayName: strPtr("A. Garcia"), Emails: []device.Email{{Address: "ANA@x.com"}}, Phones: []device.Phone{{Number: "+1 555 0100"}}},
	}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Errorf("report = %+v, want 0 created, 1 updated", report)
	}

	got, _ := st.Get(ctx, ana.ID)
	if got.Phone != "+1 555 0100" {
		t.Errorf("Phone = %q, second entry should merge into Ana", got.Phone)
	}
}

func TestRun_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana"), Emails: []device.Email{{Address: "ana@x.com"}}},
		named("Bob"),
	}}
	engine := NewEngine(dir, st, nil, Options{}, nil)

	if _, err := engine.Run(ctx); err != nil {
		t.Fatal(err)
	}
	report, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Created != 0 || report.Updated != 0 {
		t.Errorf("second report = %+v, want no changes", report)
	}
	if all, _ := st.GetAll(ctx); len(all) != 2 {
		t.Errorf("store size = %d, want 2", len(all))
	}
}

func TestRun_SkipsNamelessEntries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{Emails: []device.Email{{Address: "anon@x.com"}}},
		{DisplayName: strPtr("  ")},
	}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 0 || report.Updated != 0 || report.Skipped != 2 {
		t.Errorf("report = %+v", report)
	}
	if all, _ := st.GetAll(ctx); len(all) != 0 {
		t.Errorf("store size = %d, want 0", len(all))
	}
}

func TestRun_DropsMalformedEmails(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bob, err := st.Add(ctx, &contact.Contact{Name: "Bob Stone"})
	if err != nil {
		t.Fatal(err)
	}

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana Garcia"), Emails: []device.Email{{Address: "ana at home"}}},
		{DisplayName: strPtr("Cleo Park"), Emails: []device.Email{
			{Address: "cleo@"},
			{Address: "cleo@park.io"},
		}},
		{DisplayName: strPtr("Bob Stone"), Emails: []device.Email{{Address: "bob(at)stone"}}},
	}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 2 || report.Updated != 0 {
		t.Errorf("report = %+v, want 2 created, 0 updated", report)
	}

	all, err := st.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]*contact.Contact, len(all))
	for _, c := range all {
		if err := contact.Validate(c); err != nil {
			t.Errorf("stored contact %q is invalid: %v", c.Name, err)
		}
		byName[c.Name] = c
	}

	ana := byName["Ana Garcia"]
	if ana == nil {
		t.Fatal("Ana Garcia not created")
	}
	if ana.Email != "" {
		t.Errorf("Ana Email = %q, want empty", ana.Email)
	}
	for _, l := range ana.Links {
		if l.Type == contact.LinkEmail {
			t.Errorf("Ana has email link %q", l.Value)
		}
	}

	cleo := byName["Cleo Park"]
	if cleo == nil || cleo.Email != "cleo@park.io" {
		t.Errorf("Cleo = %+v, want first valid address as primary", cleo)
	}

	// A contact holding only valid fields stays editable
	priority := contact.PriorityHigh
	if ok, err := st.Update(ctx, ana.ID, contact.Patch{Priority: &priority}); err != nil || !ok {
		t.Errorf("Update(ana) = %v, %v", ok, err)
	}

	got, err := st.Get(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "" || len(got.Links) != 0 {
		t.Errorf("Bob picked up a malformed address: %+v", got)
	}
}

func TestRun_ChunkedFlush(t *testing.T) {
	cs := &countingStore{Store: newTestStore(t)}
	ctx := context.Background()

	var entries []device.Entry
	for i := 0; i < 120; i++ {
		entries = append(entries, named(fmt.Sprintf("Contact %03d", i)))
	}
	dir := &device.StaticDirectory{Granted: true, Entries: entries}

	report, err := NewEngine(dir, cs, nil, Options{}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Created != 120 {
		t.Errorf("Created = %d, want 120", report.Created)
	}
	want := []int{50, 50, 20}
	if len(cs.batches) != len(want) {
		t.Fatalf("batches = %v, want %v", cs.batches, want)
	}
	for i := range want {
		if cs.batches[i] != want[i] {
			t.Errorf("batches = %v, want %v", cs.batches, want)
		}
	}

	all, _ := cs.GetAll(ctx)
	if all[0].Name != "Contact 100" {
		t.Errorf("first contact = %q, want the last chunk prepended in order", all[0].Name)
	}
}

func TestRun_StoreFailureKeepsPartialWork(t *testing.T) {
	cs := &countingStore{Store: newTestStore(t), failBatch: 2}
	ctx := context.Background()

	var entries []device.Entry
	for i := 0; i < 75; i++ {
		entries = append(entries, named(fmt.Sprintf("Contact %03d", i)))
	}
	dir := &device.StaticDirectory{Granted: true, Entries: entries}

	engine := NewEngine(dir, cs, nil, Options{}, nil)
	report, err := engine.Run(ctx)
	if !errors.Is(err, errors.ErrStoreWriteFailed) {
		t.Fatalf("Run() error = %v, want STORE_WRITE_FAILED", err)
	}
	if report.Created != 50 || report.Success {
		t.Errorf("report = %+v", report)
	}
	if report.State != StateMerging {
		t.Errorf("State = %q, want merging", report.State)
	}
	if all, _ := cs.GetAll(ctx); len(all) != 50 {
		t.Errorf("store size = %d, want 50 kept", len(all))
	}
	if engine.Busy() {
		t.Error("busy flag should be cleared after failure")
	}
}

func TestRun_UpdateFailure(t *testing.T) {
	inner := newTestStore(t)
	ctx := context.Background()
	if _, err := inner.Add(ctx, &contact.Contact{Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	cs := &countingStore{Store: inner, failWrite: true}

	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{
		{DisplayName: strPtr("Ana"), Emails: []device.Email{{Address: "ana@x.com"}}},
	}}
	_, err := NewEngine(dir, cs, nil, Options{}, nil).Run(ctx)
	if !errors.Is(err, errors.ErrStoreWriteFailed) {
		t.Errorf("Run() error = %v, want STORE_WRITE_FAILED", err)
	}
}

func TestRun_PermissionDenied(t *testing.T) {
	st := newTestStore(t)
	dir := &device.StaticDirectory{Granted: false, Entries: []device.Entry{named("Ana")}}

	report, err := NewEngine(dir, st, nil, Options{}, nil).Run(context.Background())
	if !errors.Is(err, errors.ErrPermissionDenied) {
		t.Fatalf("Run() error = %v, want PERMISSION_DENIED", err)
	}
	if dir.Requests != 1 {
		t.Errorf("RequestPermission calls = %d, want 1", dir.Requests)
	}
	if report.State != StateRequestingPermission {
		t.Errorf("State = %q", report.State)
	}
	if all, _ := st.GetAll(context.Background()); len(all) != 0 {
		t.Error("denied run must not mutate the store")
	}
}

func TestRun_ImportSourceFailure(t *testing.T) {
	st := newTestStore(t)
	dir := &device.StaticDirectory{Granted: true, Err: stderrors.New("unreadable")}

	_, err := NewEngine(dir, st, nil, Options{}, nil).Run(context.Background())
	if !errors.Is(err, errors.ErrImportSourceFailed) {
		t.Errorf("Run() error = %v, want IMPORT_SOURCE_FAILED", err)
	}
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	st := newTestStore(t)
	dir := &blockingDirectory{entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(dir, st, nil, Options{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = engine.Run(context.Background())
	}()

	<-dir.entered
	if !engine.Busy() {
		t.Error("engine should be busy")
	}
	if engine.State() != StateImporting {
		t.Errorf("State() = %q, want importing", engine.State())
	}

	report, err := engine.Run(context.Background())
	if !errors.Is(err, errors.ErrSyncInProgress) {
		t.Errorf("second Run() error = %v, want SYNC_IN_PROGRESS", err)
	}
	if report != nil {
		t.Error("rejected run should not produce a report")
	}

	close(dir.release)
	wg.Wait()
	if firstErr != nil {
		t.Errorf("first Run() error = %v", firstErr)
	}
	if engine.Busy() || engine.State() != StateIdle {
		t.Error("engine should be idle after the run")
	}
}

func TestRun_DeadlineClearsBusyFlag(t *testing.T) {
	st := newTestStore(t)
	dir := &blockingDirectory{entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(dir, st, nil, Options{Timeout: 50 * time.Millisecond}, nil)

	_, err := engine.Run(context.Background())
	if !errors.Is(err, errors.ErrCancelled) {
		t.Fatalf("Run() error = %v, want CANCELLED", err)
	}
	if engine.Busy() {
		t.Error("busy flag should clear when the deadline passes")
	}

	// A later run is accepted
	ok := &device.StaticDirectory{Granted: true}
	engine.dir = ok
	if _, err := engine.Run(context.Background()); err != nil {
		t.Errorf("Run() after deadline error = %v", err)
	}
}

type fakeSettings struct {
	enabled  bool
	recorded time.Time
}

func (s *fakeSettings) SyncEnabled(ctx context.Context) (bool, error) { return s.enabled, nil }

func (s *fakeSettings) RecordSync(ctx context.Context, at time.Time) error {
	s.recorded = at
	return nil
}

func TestRun_Settings(t *testing.T) {
	st := newTestStore(t)
	dir := &device.StaticDirectory{Granted: true, Entries: []device.Entry{named("Ana")}}

	disabled := &fakeSettings{enabled: false}
	_, err := NewEngine(dir, st, disabled, Options{}, nil).Run(context.Background())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("disabled Run() error = %v, want INVALID_REQUEST", err)
	}
	if !disabled.recorded.IsZero() {
		t.Error("failed run should not record a sync time")
	}

	enabled := &fakeSettings{enabled: true}
	if _, err := NewEngine(dir, st, enabled, Options{}, nil).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if enabled.recorded.IsZero() {
		t.Error("successful run should record a sync time")
	}
}

func TestDBSettings(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	ctx := context.Background()
	s := DBSettings{DB: database}

	enabled, err := s.SyncEnabled(ctx)
	if err != nil || !enabled {
		t.Errorf("SyncEnabled() default = %v, %v; want true", enabled, err)
	}
	if err := db.SetSetting(ctx, database, db.SettingSyncEnabled, "false"); err != nil {
		t.Fatal(err)
	}
	if enabled, _ := s.SyncEnabled(ctx); enabled {
		t.Error("SyncEnabled() should read false")
	}

	if _, ok, _ := s.LastSync(ctx); ok {
		t.Error("LastSync() should be unset")
	}
	at := time.Unix(1700000000, 0)
	if err := s.RecordSync(ctx, at); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.LastSync(ctx)
	if err != nil || !ok || !got.Equal(at) {
		t.Errorf("LastSync() = %v, %v, %v", got, ok, err)
	}
}
