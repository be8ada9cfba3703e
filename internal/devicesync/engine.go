package devicesync

import (
	"context"
	"database/sql"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/config"
	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/device"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/store"
)

// State is the phase a sync run is in.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateImporting            State = "importing"
	StateMerging              State = "merging"
)

const (
	DefaultChunkSize = 50
	DefaultTimeout   = 300 * time.Second
)

// Report summarizes one sync run.
type Report struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	// Skipped counts entries without a display name and entries that
	// would store an invalid contact.
	Skipped int `json:"skipped"`
	// State is the phase the run ended in: idle on success, otherwise the
	// phase that failed.
	State      State     `json:"state"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Settings gates runs and records their completion.
type Settings interface {
	SyncEnabled(ctx context.Context) (bool, error)
	RecordSync(ctx context.Context, at time.Time) error
}

// Options tunes an Engine. Zero values take defaults.
type Options struct {
	ChunkSize  int
	Timeout    time.Duration
	Normalizer Normalizer
}

// OptionsFromConfig reads the sync keys of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		ChunkSize: cfg.SyncChunkSize,
		Timeout:   cfg.SyncTimeout(),
		Normalizer: Normalizer{
			PlaceholderName: cfg.PlaceholderName,
			ImportTag:       cfg.ImportTag,
		},
	}
}

// Engine runs device syncs. At most one run is active at a time.
type Engine struct {
	dir      device.Directory
	store    store.Store
	settings Settings
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	busy  atomic.Bool
	state atomic.Value
}

// NewEngine wires an engine. settings and logger may be nil.
func NewEngine(dir device.Directory, st store.Store, settings Settings, opts Options, logger *zap.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.Normalizer = opts.Normalizer.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		dir:      dir,
		store:    st,
		settings: settings,
		opts:     opts,
		logger:   logger.Named("sync"),
		now:      time.Now,
	}
	e.state.Store(StateIdle)
	return e
}

// Busy reports whether a run is in progress.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// State returns the phase of the current run, or idle.
func (e *Engine) State() State {
	return e.state.Load().(State)
}

func (e *Engine) setState(s State) {
	e.state.Store(s)
}

// record is one contact the run can match against.
type record struct {
	c *contact.Contact
	// created marks contacts staged by this run
	created bool
	// persisted is false while a created contact waits for its chunk flush
	persisted bool
}

// run carries the mutable state of one sync.
type run struct {
	records []*record
	// keys mirrors records index for index
	keys    []Keys
	pending []*record
	updated map[string]bool
	report  *Report
}

// Run performs one sync. A concurrent call fails with SYNC_IN_PROGRESS
// without touching the store. The run is bounded by the configured timeout
// and the busy flag is cleared on every return path.
//
// On failure the returned report holds the counts reached so far; writes
// applied before the failure are kept.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.logger.Warn("sync rejected: already running")
		return nil, errors.NewSyncInProgress()
	}
	defer e.busy.Store(false)
	defer e.setState(StateIdle)

	report := &Report{State: StateIdle, StartedAt: e.now()}

	err := e.run(ctx, report)
	report.FinishedAt = e.now()
	if err != nil {
		report.State = e.State()
		report.Error = err.Error()
		e.logger.Warn("sync failed",
			zap.String("state", string(report.State)),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Error(err))
		return report, err
	}

	report.Success = true
	if e.settings != nil {
		if err := e.settings.RecordSync(ctx, report.FinishedAt); err != nil {
			e.logger.Warn("failed to record sync time", zap.Error(err))
		}
	}
	e.logger.Info("sync finished",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (e *Engine) run(ctx context.Context, report *Report) error {
	if e.settings != nil {
		enabled, err := e.settings.SyncEnabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			return errors.NewInvalidRequest("contact sync is disabled (sync_enabled=false)")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	e.setState(StateRequestingPermission)
	if err := e.ensurePermission(ctx); err != nil {
		return err
	}

	e.setState(StateImporting)
	entries, err := e.dir.ListContacts(ctx, device.AllFields)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("sync")
		}
		return errors.NewImportSourceFailed(err)
	}

	e.setState(StateMerging)
	snapshot, err := e.store.GetAll(ctx)
	if err != nil {
		return err
	}

	r := &run{updated: make(map[string]bool), report: report}
	r.records = make([]*record, len(snapshot))
	r.keys = make([]Keys, len(snapshot))
	for i, c := range snapshot {
		r.records[i] = &record{c: c.Clone(), persisted: true}
		r.keys[i] = KeysOf(c)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return errors.NewCancelled("sync")
		}
		if !HasName(entry) {
			report.Skipped++
			continue
		}
		if err := e.process(ctx, r, entry); err != nil {
			return err
		}
	}

	return e.flush(ctx, r)
}

func (e *Engine) ensurePermission(ctx context.Context) error {
	granted, err := e.dir.CheckPermission(ctx)
	if err != nil {
		return errors.NewImportSourceFailed(err)
	}
	if granted {
		return nil
	}
	granted, err = e.dir.RequestPermission(ctx)
	if err != nil {
		return errors.NewImportSourceFailed(err)
	}
	if !granted {
		return errors.NewPermissionDenied("access to device contacts was denied")
	}
	return nil
}

func (e *Engine) process(ctx context.Context, r *run, entry device.Entry) error {
	candidate := e.opts.Normalizer.Normalize(entry, e.now())

	idx, _ := MatchKeys(KeysOf(candidate), r.keys)
	if idx < 0 {
		return e.stage(ctx, r, candidate)
	}

	rec := r.records[idx]
	patch, changed := Merge(rec.c, candidate)
	if !changed {
		return nil
	}

	merged := rec.c.Clone()
	patch.Apply(merged)
	if err := contact.Validate(merged); err != nil {
		e.logger.Warn("skipping device entry: merged contact is invalid",
			zap.String("id", rec.c.ID), zap.Error(err))
		r.report.Skipped++
		return nil
	}

	if rec.persisted {
		ok, err := e.store.Update(ctx, rec.c.ID, patch)
		if err != nil {
			if ctx.Err() != nil {
				return errors.NewCancelled("sync")
			}
			return errors.NewStoreWriteFailed(err)
		}
		if !ok {
			// Deleted since the snapshot was taken; nothing to merge into
			e.logger.Debug("matched contact vanished", zap.String("id", rec.c.ID))
			return nil
		}
	}
	rec.c = merged
	r.keys[idx] = KeysOf(merged)

	if !rec.created && !r.updated[rec.c.ID] {
		r.updated[rec.c.ID] = true
		r.report.Updated++
	}
	return nil
}

func (e *Engine) stage(ctx context.Context, r *run, candidate *contact.Contact) error {
	now := e.now().Unix()
	candidate.ID = contact.NewID()
	candidate.CreatedAt = now
	candidate.LastInteraction = now

	if err := contact.Validate(candidate); err != nil {
		e.logger.Warn("skipping device entry: contact is invalid",
			zap.String("name", candidate.Name), zap.Error(err))
		r.report.Skipped++
		return nil
	}

	rec := &record{c: candidate, created: true}
	r.records = append(r.records, rec)
	r.keys = append(r.keys, KeysOf(candidate))
	r.pending = append(r.pending, rec)

	if len(r.pending) >= e.opts.ChunkSize {
		return e.flush(ctx, r)
	}
	return nil
}

func (e *Engine) flush(ctx context.Context, r *run) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := make([]*contact.Contact, len(r.pending))
	for i, rec := range r.pending {
		batch[i] = rec.c
	}
	if err := e.store.AddBatch(ctx, batch); err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("sync")
		}
		return errors.NewStoreWriteFailed(err)
	}
	for _, rec := range r.pending {
		rec.persisted = true
	}
	r.report.Created += len(r.pending)
	e.logger.Debug("flushed chunk", zap.Int("size", len(r.pending)))
	r.pending = r.pending[:0]
	return nil
}

// DBSettings reads sync settings from the settings table.
type DBSettings struct {
	DB *sql.DB
}

// SyncEnabled defaults to true when the setting was never written.
func (s DBSettings) SyncEnabled(ctx context.Context) (bool, error) {
	v, ok, err := db.GetSetting(ctx, s.DB, db.SettingSyncEnabled)
	if err != nil || !ok {
		return true, err
	}
	enabled, perr := strconv.ParseBool(v)
	if perr != nil {
		return true, nil
	}
	return enabled, nil
}

func (s DBSettings) RecordSync(ctx context.Context, at time.Time) error {
	return db.SetSetting(ctx, s.DB, db.SettingLastSyncTime, strconv.FormatInt(at.Unix(), 10))
}

// LastSync returns the time of the last successful run, if any.
func (s DBSettings) LastSync(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := db.GetSetting(ctx, s.DB, db.SettingLastSyncTime)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(secs, 0), true, nil
}
