package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.RolodexError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// MaxSearchQueryChars bounds the length of a search query.
const MaxSearchQueryChars = 200

const contactColumns = `
	id, name, company, position, email, phone,
	links_json, notes_json, tags_json, priority, created_at, last_interaction`

// snapshotOrder is the store order. New contacts are prepended, so the most
// recently inserted row comes first.
const snapshotOrder = " ORDER BY rowid DESC"

// Insert stores a new contact in the database.
func Insert(ctx context.Context, db *sql.DB, c *contact.Contact) error {
	return insert(ctx, db, c)
}

// InsertBatch stores contacts in one transaction. Either all rows are written or none.
// The batch is prepended as a block and keeps its own order.
func InsertBatch(ctx context.Context, db *sql.DB, contacts []*contact.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Inserted last-to-first so contacts[0] gets the highest rowid
	for i := len(contacts) - 1; i >= 0; i-- {
		if err := insert(ctx, tx, contacts[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertTx inserts a contact within a caller-owned transaction.
func InsertTx(ctx context.Context, tx *sql.Tx, c *contact.Contact) error {
	return insert(ctx, tx, c)
}

func insert(ctx context.Context, q querier, c *contact.Contact) error {
	links, notes, tags, err := encodeCollections(c)
	if err != nil {
		return err
	}

	tagsNorm, err := encodeTagKeys(c.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contacts (
			id, name, name_norm, company, company_norm, position, email, email_norm,
			phone, phone_norm, links_json, notes_json, tags_json, tags_norm,
			priority, created_at, last_interaction
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = q.ExecContext(ctx, query,
		c.ID, c.Name, contact.Key(c.Name), c.Company, contact.Key(c.Company), c.Position,
		c.Email, contact.Key(c.Email), c.Phone, contact.Key(c.Phone),
		links, notes, tags, tagsNorm, string(c.Priority), c.CreatedAt, c.LastInteraction,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a contact by its ULID.
func GetByID(ctx context.Context, db *sql.DB, id string) (*contact.Contact, error) {
	return getByID(ctx, db, id)
}

// GetByIDTx retrieves a contact within a caller-owned transaction.
func GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*contact.Contact, error) {
	return getByID(ctx, tx, id)
}

func getByID(ctx context.Context, q querier, id string) (*contact.Contact, error) {
	row := q.QueryRowContext(ctx, "SELECT"+contactColumns+" FROM contacts WHERE id = ?", id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListAll returns every contact in store order.
func ListAll(ctx context.Context, db *sql.DB) ([]*contact.Contact, error) {
	rows, err := db.QueryContext(ctx, "SELECT"+contactColumns+" FROM contacts"+snapshotOrder)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListFilters narrows List results.
type ListFilters struct {
	Priority *contact.Priority
	Tag      *string
}

// List returns a page of contacts in store order and the total matching count.
func List(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int) ([]*contact.Contact, int, error) {
	where, args := filters.clause()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := "SELECT" + contactColumns + " FROM contacts" + where + snapshotOrder + " LIMIT ? OFFSET ?"
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (f ListFilters) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Priority != nil {
		conds = append(conds, "priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.Tag != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(contacts.tags_json) WHERE json_each.value = ?)")
		args = append(args, *f.Tag)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Search finds contacts whose name, email, phone or company starts with query
// (case-insensitive), or whose tags contain it as a substring. Matching runs
// on the *_norm columns, which hold contact.Key values: SQLite's lower() only
// folds ASCII.
func Search(ctx context.Context, db *sql.DB, query string, limit int) ([]*contact.Contact, error) {
	key := contact.Key(query)
	prefix := escapeLike(key) + "%"
	infix := "%" + escapeLike(key) + "%"

	sqlQuery := "SELECT" + contactColumns + ` FROM contacts
		WHERE name_norm LIKE ? ESCAPE '\'
		   OR email_norm LIKE ? ESCAPE '\'
		   OR phone_norm LIKE ? ESCAPE '\'
		   OR company_norm LIKE ? ESCAPE '\'
		   OR EXISTS (
		     SELECT 1 FROM json_each(contacts.tags_norm)
		     WHERE json_each.value LIKE ? ESCAPE '\'
		   )` + snapshotOrder + " LIMIT ?"

	rows, err := db.QueryContext(ctx, sqlQuery, prefix, prefix, prefix, prefix, infix, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collect(rows)
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// UpdateByID overwrites the mutable fields of an existing contact and
// refreshes last_interaction. Does NOT change: id, created_at.
func UpdateByID(ctx context.Context, db *sql.DB, c *contact.Contact) error {
	return updateByID(ctx, db, c)
}

// UpdateByIDTx is UpdateByID within a caller-owned transaction.
func UpdateByIDTx(ctx context.Context, tx *sql.Tx, c *contact.Contact) error {
	return updateByID(ctx, tx, c)
}

func updateByID(ctx context.Context, q querier, c *contact.Contact) error {
	links, notes, tags, err := encodeCollections(c)
	if err != nil {
		return err
	}

	tagsNorm, err := encodeTagKeys(c.Tags)
	if err != nil {
		return err
	}

	now := time.Now().Unix()

	query := `
		UPDATE contacts
		SET name = ?, name_norm = ?, company = ?, company_norm = ?, position = ?,
			email = ?, email_norm = ?, phone = ?, phone_norm = ?,
			links_json = ?, notes_json = ?, tags_json = ?, tags_norm = ?, priority = ?,
			last_interaction = ?
		WHERE id = ?
	`

	result, err := q.ExecContext(ctx, query,
		c.Name, contact.Key(c.Name), c.Company, contact.Key(c.Company), c.Position,
		c.Email, contact.Key(c.Email), c.Phone, contact.Key(c.Phone),
		links, notes, tags, tagsNorm, string(c.Priority),
		now, c.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(c.ID)
	}

	c.LastInteraction = now
	return nil
}

// Delete permanently removes a contact.
func Delete(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// DeleteAll removes every contact and returns how many were removed.
func DeleteAll(ctx context.Context, db *sql.DB) (int, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM contacts")
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Count returns the number of stored contacts.
func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// StreamForExport returns rows for every contact in store order.
// Caller must close the rows.
func StreamForExport(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx, "SELECT"+contactColumns+" FROM contacts"+snapshotOrder)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanContactFromRows scans the current row of a StreamForExport result.
func ScanContactFromRows(rows *sql.Rows) (*contact.Contact, error) {
	return scanContact(rows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collect(rows *sql.Rows) ([]*contact.Contact, error) {
	var out []*contact.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func scanContact(row rowScanner) (*contact.Contact, error) {
	var (
		c                 contact.Contact
		links, notes, tgs string
		priority          string
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.Company, &c.Position, &c.Email, &c.Phone,
		&links, &notes, &tgs, &priority, &c.CreatedAt, &c.LastInteraction,
	)
	if err != nil {
		return nil, err
	}
	c.Priority = contact.Priority(priority)

	if err := json.Unmarshal([]byte(links), &c.Links); err != nil {
		return nil, fmt.Errorf("decode links for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(notes), &c.Notes); err != nil {
		return nil, fmt.Errorf("decode notes for %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(tgs), &c.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", c.ID, err)
	}
	if c.Links == nil {
		c.Links = []contact.Link{}
	}
	if c.Notes == nil {
		c.Notes = []contact.Note{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}

	return &c, nil
}

// encodeCollections renders the JSON columns. Nil slices are stored as "[]".
func encodeCollections(c *contact.Contact) (links, notes, tags string, err error) {
	enc := func(v any, empty bool) (string, error) {
		if empty {
			return "[]", nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", errors.NewInternal(err)
		}
		return string(b), nil
	}
	if links, err = enc(c.Links, len(c.Links) == 0); err != nil {
		return
	}
	if notes, err = enc(c.Notes, len(c.Notes) == 0); err != nil {
		return
	}
	tags, err = enc(c.Tags, len(c.Tags) == 0)
	return
}

// encodeTagKeys renders the tags_norm column: the tags as contact.Key values.
func encodeTagKeys(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = contact.Key(t)
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(b), nil
}
