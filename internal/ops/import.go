package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/devicesync"
	"github.com/hpungsan/rolodex/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on id collision
	ImportModeMerge   ImportMode = "merge"   // fill gaps of a matching contact
)

// maxImportLine bounds one JSONL line (contacts with long notes).
const maxImportLine = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported  int           `json:"imported"`
	Merged    int           `json:"merged"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Errors    []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line    int
	contact *contact.Contact
}

// Import loads contacts from a JSONL export file. Files list contacts in
// store order (newest first), so records are written last-to-first to keep
// that order.
func Import(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeMerge {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, merge")
	}

	if err := ValidatePath(input.Path, PathCheckRead, env.config()); err != nil {
		return nil, err
	}
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file, time.Now().Unix())

	// mode:error is all-or-nothing, including parse errors
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		out, err = importModeError(ctx, env, records)
	case ImportModeReplace:
		out, err = importModeReplace(ctx, env, records, parseErrors)
	case ImportModeMerge:
		out, err = importModeMerge(ctx, env, records, parseErrors)
	}
	if err != nil {
		return nil, err
	}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Line < out.Errors[j].Line })

	if out.Imported > 0 || out.Merged > 0 {
		env.Store.Notify(ctx)
	}
	env.logger().Info("import finished",
		zap.String("path", input.Path),
		zap.String("mode", string(input.Mode)),
		zap.Int("imported", out.Imported),
		zap.Int("merged", out.Merged),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// parseExportFile parses a JSONL export file. The header line is skipped and
// every record is cleaned and validated.
func parseExportFile(r io.Reader, now int64) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record contact.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if record.RolodexExport {
			continue
		}

		if record.ID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}

		c := record.ToContact()
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		if c.LastInteraction < c.CreatedAt {
			c.LastInteraction = c.CreatedAt
		}
		if err := contact.Validate(c); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      c.ID,
				Name:    c.Name,
				Code:    "INVALID_RECORD",
				Message: err.Error(),
			})
			continue
		}

		records = append(records, importRecord{line: lineNum, contact: c})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importModeError imports all records in one transaction, aborting on the
// first id collision.
func importModeError(ctx context.Context, env *Env, records []importRecord) (*ImportOutput, error) {
	tx, err := env.Store.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	seen := make(map[string]int, len(records))
	for _, rec := range records {
		c := rec.contact
		if first, dup := seen[c.ID]; dup {
			return &ImportOutput{Errors: []ImportError{{
				Line:    rec.line,
				ID:      c.ID,
				Name:    c.Name,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("id %q already appears on line %d", c.ID, first),
			}}}, nil
		}
		seen[c.ID] = rec.line

		_, err := db.GetByIDTx(ctx, tx, c.ID)
		if err == nil {
			return &ImportOutput{Errors: []ImportError{{
				Line:    rec.line,
				ID:      c.ID,
				Name:    c.Name,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("contact with id %q already exists", c.ID),
			}}}, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}

	for i := len(records) - 1; i >= 0; i-- {
		if err := db.InsertTx(ctx, tx, records[i].contact); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: len(records)}, nil
}

// importModeReplace overwrites contacts whose id already exists and inserts
// the rest.
func importModeReplace(ctx context.Context, env *Env, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  append([]ImportError(nil), parseErrors...),
	}
	database := env.Store.DB()

	for i := len(records) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		rec := records[i]
		c := rec.contact

		_, err := db.GetByID(ctx, database, c.ID)
		switch {
		case err == nil:
			err = db.UpdateByID(ctx, database, c)
		case errors.Is(err, errors.ErrNotFound):
			err = db.Insert(ctx, database, c)
		}
		if err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    rec.line,
				ID:      c.ID,
				Name:    c.Name,
				Code:    "WRITE_FAILED",
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}

// importModeMerge applies the sync merge policy: a record matching an existing
// contact (by id, then email, then name) only fills that contact's gaps and
// extends its links. Unmatched records are inserted. Importing the same file
// twice changes nothing the second time.
func importModeMerge(ctx context.Context, env *Env, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  append([]ImportError(nil), parseErrors...),
	}
	database := env.Store.DB()

	working, err := env.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]devicesync.Keys, len(working))
	for i, c := range working {
		keys[i] = devicesync.KeysOf(c)
	}

	for i := len(records) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}
		rec := records[i]
		c := rec.contact

		idx := indexByID(working, c.ID)
		if idx < 0 {
			idx, _ = devicesync.MatchKeys(devicesync.KeysOf(c), keys)
		}

		if idx < 0 {
			if err := db.Insert(ctx, database, c); err != nil {
				out.Errors = append(out.Errors, ImportError{
					Line:    rec.line,
					ID:      c.ID,
					Name:    c.Name,
					Code:    "WRITE_FAILED",
					Message: err.Error(),
				})
				out.Skipped++
				continue
			}
			working = append(working, c.Clone())
			keys = append(keys, devicesync.KeysOf(c))
			out.Imported++
			continue
		}

		patch, changed := devicesync.Merge(working[idx], c)
		if !changed {
			out.Unchanged++
			continue
		}
		merged := working[idx].Clone()
		patch.Apply(merged)
		if err := db.UpdateByID(ctx, database, merged); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    rec.line,
				ID:      merged.ID,
				Name:    merged.Name,
				Code:    "WRITE_FAILED",
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		working[idx] = merged
		keys[idx] = devicesync.KeysOf(merged)
		out.Merged++
	}
	return out, nil
}

func indexByID(cs []*contact.Contact, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}
