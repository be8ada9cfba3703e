package device

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-vcard"
	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/db"
)

// PermissionStore persists the permission decision.
type PermissionStore interface {
	Permission(ctx context.Context) (string, error)
	SetPermission(ctx context.Context, state string) error
}

// PromptFunc asks the user for access. It returns the decision.
type PromptFunc func(ctx context.Context) (bool, error)

// VCardDirectory reads an address book exported as a .vcf file.
type VCardDirectory struct {
	path   string
	perms  PermissionStore
	prompt PromptFunc
	logger *zap.Logger
}

// NewVCardDirectory returns a directory over the .vcf file at path.
// With a nil prompt, a first request is granted: configuring the path is
// taken as consent. A stored denial is never overridden without a prompt.
func NewVCardDirectory(path string, perms PermissionStore, prompt PromptFunc, logger *zap.Logger) *VCardDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VCardDirectory{
		path:   path,
		perms:  perms,
		prompt: prompt,
		logger: logger.Named("device"),
	}
}

func (d *VCardDirectory) CheckPermission(ctx context.Context) (bool, error) {
	state, err := d.perms.Permission(ctx)
	if err != nil {
		return false, err
	}
	return state == PermissionGranted, nil
}

func (d *VCardDirectory) RequestPermission(ctx context.Context) (bool, error) {
	state, err := d.perms.Permission(ctx)
	if err != nil {
		return false, err
	}
	if state == PermissionGranted {
		return true, nil
	}

	var granted bool
	switch {
	case d.prompt != nil:
		granted, err = d.prompt(ctx)
		if err != nil {
			return false, err
		}
	case state == PermissionDenied:
		return false, nil
	default:
		granted = true
	}

	next := PermissionDenied
	if granted {
		next = PermissionGranted
	}
	if err := d.perms.SetPermission(ctx, next); err != nil {
		return false, err
	}
	d.logger.Info("contacts permission decided", zap.String("state", next))
	return granted, nil
}

func (d *VCardDirectory) ListContacts(ctx context.Context, fields Fields) ([]Entry, error) {
	if d.path == "" {
		return nil, fmt.Errorf("no device directory configured (set device_directory_path)")
	}
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open device directory: %w", err)
	}
	defer f.Close()

	entries, err := DecodeEntries(ctx, f, fields)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("device directory read", zap.String("path", d.path), zap.Int("entries", len(entries)))
	return entries, nil
}

// DecodeEntries reads every vCard in r.
func DecodeEntries(ctx context.Context, r io.Reader, fields Fields) ([]Entry, error) {
	dec := vcard.NewDecoder(r)
	var entries []Entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vCard %d: %w", len(entries)+1, err)
		}
		entries = append(entries, EntryFromCard(card, fields))
	}
	return entries, nil
}

// EntryFromCard maps one vCard to an Entry, filling only the requested fields.
func EntryFromCard(card vcard.Card, fields Fields) Entry {
	var e Entry

	if fields.Has(FieldName) {
		if name := displayName(card); name != "" {
			e.DisplayName = &name
		}
	}
	if fields.Has(FieldEmails) {
		for _, f := range card[vcard.FieldEmail] {
			if v := strings.TrimSpace(f.Value); v != "" {
				e.Emails = append(e.Emails, Email{Address: v, Label: fieldLabel(f)})
			}
		}
	}
	if fields.Has(FieldPhones) {
		for _, f := range card[vcard.FieldTelephone] {
			if v := strings.TrimSpace(f.Value); v != "" {
				e.Phones = append(e.Phones, Phone{Number: v, Label: fieldLabel(f)})
			}
		}
	}
	if fields.Has(FieldURLs) {
		for _, f := range card[vcard.FieldURL] {
			if v := strings.TrimSpace(f.Value); v != "" {
				e.URLs = append(e.URLs, URL{URL: v, Label: fieldLabel(f)})
			}
		}
	}
	if fields.Has(FieldOrganization) {
		var org Organization
		if f := card.Get(vcard.FieldOrganization); f != nil {
			// ORG may carry units after semicolons; the first part is the company
			org.Name = strings.TrimSpace(strings.Split(f.Value, ";")[0])
		}
		if f := card.Get(vcard.FieldTitle); f != nil {
			org.Role = strings.TrimSpace(f.Value)
		} else if f := card.Get(vcard.FieldRole); f != nil {
			org.Role = strings.TrimSpace(f.Value)
		}
		if org.Name != "" || org.Role != "" {
			e.Organization = &org
		}
	}

	return e
}

func displayName(card vcard.Card) string {
	if f := card.Get(vcard.FieldFormattedName); f != nil {
		if v := strings.TrimSpace(f.Value); v != "" {
			return v
		}
	}
	if n := card.Name(); n != nil {
		return strings.TrimSpace(strings.Join(strings.Fields(n.GivenName+" "+n.FamilyName), " "))
	}
	return ""
}

// fieldLabel prefers an explicit label over the first TYPE value.
func fieldLabel(f *vcard.Field) string {
	if l := f.Params.Get("X-LABEL"); l != "" {
		return l
	}
	if types := f.Params.Types(); len(types) > 0 {
		t := strings.ToLower(strings.TrimSpace(types[0]))
		if t == "" || t == "pref" || t == "internet" || t == "voice" {
			return ""
		}
		return strings.ToUpper(t[:1]) + t[1:]
	}
	return ""
}

// DBPermissions persists the permission decision in the settings table.
type DBPermissions struct {
	DB *sql.DB
}

func (p DBPermissions) Permission(ctx context.Context) (string, error) {
	v, ok, err := db.GetSetting(ctx, p.DB, db.SettingContactsPermission)
	if err != nil {
		return "", err
	}
	if !ok {
		return PermissionUnknown, nil
	}
	return v, nil
}

func (p DBPermissions) SetPermission(ctx context.Context, state string) error {
	return db.SetSetting(ctx, p.DB, db.SettingContactsPermission, state)
}
