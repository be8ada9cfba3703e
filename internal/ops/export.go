package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/errors"
	"github.com/hpungsan/rolodex/internal/reminder"
)

// ExportFormat selects the file format of an export.
type ExportFormat string

const (
	FormatJSONL ExportFormat = "jsonl" // header line + one contact per line
	FormatVCard ExportFormat = "vcf"   // vCard 4.0, one card per contact
	FormatICS   ExportFormat = "ics"   // armed reminders as calendar events
)

// ExportSchemaVersion is written to the jsonl header line.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // optional, default: ~/.rolodex/exports/contacts-<timestamp>.<ext>
	Format string // jsonl (default), vcf or ics
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string       `json:"path"`
	Format     ExportFormat `json:"format"`
	Count      int          `json:"count"`
	ExportedAt int64        `json:"exported_at"`
}

func parseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSONL:
		return FormatJSONL, nil
	case FormatVCard:
		return FormatVCard, nil
	case FormatICS:
		return FormatICS, nil
	}
	return "", errors.NewInvalidRequest("format must be one of: jsonl, vcf, ics")
}

// Export writes every contact (or every armed reminder, for ics) to a file.
// The file is written to a temp path and renamed into place, so an existing
// file survives a failed export.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	format, err := parseFormat(input.Format)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(format, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too
	if err := ValidatePath(exportPath, PathCheckWrite, env.config(), "."+string(format)); err != nil {
		return nil, err
	}

	var write func(w io.Writer) (int, error)
	switch format {
	case FormatJSONL:
		write = func(w io.Writer) (int, error) { return writeJSONL(ctx, env, w, now) }
	case FormatVCard:
		write = func(w io.Writer) (int, error) { return writeVCards(ctx, env, w) }
	case FormatICS:
		write = func(w io.Writer) (int, error) { return writeCalendar(ctx, env, w, now) }
	}

	count, err := writeFileAtomic(exportPath, write)
	if err != nil {
		return nil, err
	}

	env.logger().Info("export written",
		zap.String("path", exportPath),
		zap.String("format", string(format)),
		zap.Int("count", count))
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

func writeJSONL(ctx context.Context, env *Env, w io.Writer, now time.Time) (int, error) {
	enc := json.NewEncoder(w)
	header := ExportHeader{
		RolodexExport: true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    now.Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return 0, errors.NewInternal(err)
	}

	rows, err := db.StreamForExport(ctx, env.Store.DB())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if ctx.Err() != nil {
			return 0, errors.NewCancelled("export")
		}
		c, err := db.ScanContactFromRows(rows)
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		if err := enc.Encode(contact.ContactToExportRecord(c)); err != nil {
			return 0, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// ExportHeader represents the header line in a JSONL export file.
type ExportHeader struct {
	RolodexExport bool   `json:"_rolodex_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

func writeVCards(ctx context.Context, env *Env, w io.Writer) (int, error) {
	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	enc := vcard.NewEncoder(w)
	for _, c := range all {
		if ctx.Err() != nil {
			return 0, errors.NewCancelled("export")
		}
		if err := enc.Encode(contact.ToVCard(c)); err != nil {
			return 0, errors.NewInternal(fmt.Errorf("encode vcard %s: %w", c.ID, err))
		}
	}
	return len(all), nil
}

func writeCalendar(ctx context.Context, env *Env, w io.Writer, now time.Time) (int, error) {
	all, err := env.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	items := reminder.Armed(all, time.Time{})
	if err := reminder.WriteICS(w, items, now); err != nil {
		return 0, errors.NewInternal(err)
	}
	return len(items), nil
}

// writeFileAtomic streams write into a temp file next to path, then renames it
// into place.
func writeFileAtomic(path string, write func(w io.Writer) (int, error)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	count, err := write(bw)
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return 0, errors.NewInternal(err)
	}

	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return 0, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows, os.Rename fails if the destination exists. Fail and keep the
	// existing file rather than a non-atomic delete+rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return 0, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return count, nil
}

// defaultExportPath generates ~/.rolodex/exports/contacts-<timestamp>.<ext>
// (reminders-<timestamp>.ics for calendars).
func defaultExportPath(format ExportFormat, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := "contacts"
	if format == FormatICS {
		name = "reminders"
	}
	filename := fmt.Sprintf("%s-%s.%s", SanitizeForFilename(name), now.Format("2006-01-02T150405"), format)
	return filepath.Join(dir, filename), nil
}
