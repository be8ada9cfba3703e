// Package store is the contact repository used by the sync engine and the
// operations layer. Callers always receive copies: mutating a returned
// contact never changes stored state.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/errors"
)

// DefaultSearchLimit caps Search results when the caller passes no limit.
const DefaultSearchLimit = 100

// Store is an ordered contact collection addressable by id.
type Store interface {
	// GetAll returns a snapshot of every contact in store order.
	GetAll(ctx context.Context) ([]*contact.Contact, error)
	Get(ctx context.Context, id string) (*contact.Contact, error)
	// Add prepends a contact, assigning id and timestamps when missing.
	Add(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
	// AddBatch prepends contacts as one block in a single transaction.
	AddBatch(ctx context.Context, cs []*contact.Contact) error
	// Update applies p to the contact and refreshes its last interaction.
	// It reports false with a nil error when id does not exist.
	Update(ctx context.Context, id string, p contact.Patch) (bool, error)
	// Delete removes a contact permanently. It reports false when id does not exist.
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]*contact.Contact, error)
	// Subscribe delivers a fresh snapshot after every mutation. Only the
	// latest snapshot is buffered. Call the returned func to stop.
	Subscribe() (<-chan []*contact.Contact, func())
}

// SQLStore implements Store on the SQLite database.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[int]chan []*contact.Contact
	nextID int
}

// New returns a SQLStore. A nil logger disables logging.
func New(database *sql.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:     database,
		logger: logger.Named("store"),
		now:    time.Now,
		subs:   make(map[int]chan []*contact.Contact),
	}
}

// DB exposes the underlying database for operations that need a transaction.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) GetAll(ctx context.Context) ([]*contact.Contact, error) {
	return db.ListAll(ctx, s.db)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*contact.Contact, error) {
	return db.GetByID(ctx, s.db, id)
}

func (s *SQLStore) Add(ctx context.Context, c *contact.Contact) (*contact.Contact, error) {
	if c == nil {
		return nil, errors.NewInvalidRequest("contact is required")
	}
	out := s.prepare(c)
	if err := db.Insert(ctx, s.db, out); err != nil {
		return nil, err
	}
	s.publish(ctx)
	return out.Clone(), nil
}

func (s *SQLStore) AddBatch(ctx context.Context, cs []*contact.Contact) error {
	if len(cs) == 0 {
		return nil
	}
	prepared := make([]*contact.Contact, len(cs))
	for i, c := range cs {
		if c == nil {
			return errors.NewInvalidRequest("batch contains a nil contact")
		}
		prepared[i] = s.prepare(c)
	}
	if err := db.InsertBatch(ctx, s.db, prepared); err != nil {
		return err
	}
	s.publish(ctx)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, id string, p contact.Patch) (bool, error) {
	// SQLite cannot upgrade a read transaction while another connection
	// writes, so read-modify-write runs one at a time per store.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := db.GetByIDTx(ctx, tx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.Apply(current)
	current.Name = contact.CleanName(current.Name)
	current.Tags = contact.CleanTags(current.Tags)

	if err := db.UpdateByIDTx(ctx, tx, current); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, errors.NewInternal(err)
	}
	s.publish(ctx)
	return true, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	err := db.Delete(ctx, s.db, id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.publish(ctx)
	return true, nil
}

// DeleteAll removes every contact and returns how many were removed.
func (s *SQLStore) DeleteAll(ctx context.Context) (int, error) {
	n, err := db.DeleteAll(ctx, s.db)
	if err != nil {
		return 0, err
	}
	s.publish(ctx)
	return n, nil
}

func (s *SQLStore) Search(ctx context.Context, query string, limit int) ([]*contact.Contact, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return db.Search(ctx, s.db, query, limit)
}

func (s *SQLStore) Subscribe() (<-chan []*contact.Contact, func()) {
	ch := make(chan []*contact.Contact, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify publishes a snapshot to subscribers. Operations that write through
// db directly (import, transactional edits) call it after committing.
func (s *SQLStore) Notify(ctx context.Context) {
	s.publish(ctx)
}

// prepare returns a copy of c ready to insert: id and timestamps assigned,
// name and tags cleaned, collections non-nil.
func (s *SQLStore) prepare(c *contact.Contact) *contact.Contact {
	out := c.Clone()
	now := s.now().Unix()
	if out.ID == "" {
		out.ID = contact.NewID()
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = now
	}
	if out.LastInteraction == 0 {
		out.LastInteraction = out.CreatedAt
	}
	if out.Priority == "" {
		out.Priority = contact.PriorityMedium
	}
	out.Name = contact.CleanName(out.Name)
	out.Tags = contact.CleanTags(out.Tags)
	if out.Links == nil {
		out.Links = []contact.Link{}
	}
	if out.Notes == nil {
		out.Notes = []contact.Note{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

func (s *SQLStore) publish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}

	snapshot, err := db.ListAll(ctx, s.db)
	if err != nil {
		s.logger.Warn("snapshot reload failed", zap.Error(err))
		return
	}

	for _, ch := range s.subs {
		// Drop a stale undelivered snapshot so the newest one wins
		select {
		case <-ch:
		default:
		}
		ch <- cloneAll(snapshot)
	}
}

func cloneAll(cs []*contact.Contact) []*contact.Contact {
	out := make([]*contact.Contact, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
