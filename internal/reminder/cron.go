package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/errors"
)

// once is a cron schedule that fires a single time.
type once struct {
	at time.Time
}

// Next returns the firing time until it has passed, then the zero time,
// which cron treats as "never again".
func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

type scheduled struct {
	entry    cron.EntryID
	reminder Reminder
}

// CronScheduler runs reminders on an in-process cron.
type CronScheduler struct {
	cron     *cron.Cron
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[int]scheduled
}

// NewCronScheduler returns a stopped scheduler. Call Start to begin firing.
func NewCronScheduler(notifier Notifier, logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("reminder")
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &CronScheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[int]scheduled),
	}
}

// Start begins firing reminders in the background.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// notifications have finished.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *CronScheduler) Schedule(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("schedule reminder")
	}
	if !r.At.After(s.now()) {
		return errors.NewInvalidRequest("reminder time must be in the future")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[r.ExternalID]; ok {
		s.cron.Remove(prev.entry)
	}

	externalID := r.ExternalID
	id := s.cron.Schedule(once{at: r.At}, cron.FuncJob(func() {
		s.fire(externalID)
	}))
	s.entries[externalID] = scheduled{entry: id, reminder: r}

	s.logger.Debug("reminder scheduled",
		zap.Int("external_id", externalID),
		zap.Time("at", r.At))
	return nil
}

func (s *CronScheduler) Cancel(externalID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries[externalID]
	if !ok {
		return
	}
	s.cron.Remove(prev.entry)
	delete(s.entries, externalID)
	s.logger.Debug("reminder cancelled", zap.Int("external_id", externalID))
}

func (s *CronScheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reminder, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.reminder)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (s *CronScheduler) fire(externalID int) {
	s.mu.Lock()
	e, ok := s.entries[externalID]
	if ok {
		delete(s.entries, externalID)
		s.cron.Remove(e.entry)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.notifier.Notify(context.Background(), e.reminder); err != nil {
		s.logger.Warn("reminder delivery failed",
			zap.Int("external_id", externalID),
			zap.Error(err))
	}
}

// LogNotifier delivers reminders as log lines.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(ctx context.Context, r Reminder) error {
	n.Logger.Info(r.Title,
		zap.String("body", r.Body),
		zap.String("contact_id", r.ContactID),
		zap.String("note_id", r.NoteID),
		zap.Int("external_id", r.ExternalID))
	return nil
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
