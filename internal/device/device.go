// Package device reads contacts from the user's external address book.
// The source is read-only; access is gated by a permission that is
// remembered between runs.
package device

import "context"

// Entry is one raw address-book record. Every field is optional: a nil
// DisplayName or Organization means the source did not provide it.
type Entry struct {
	DisplayName  *string
	Emails       []Email
	Phones       []Phone
	URLs         []URL
	Organization *Organization
}

type Email struct {
	Address string
	Label   string
}

type Phone struct {
	Number string
	Label  string
}

type URL struct {
	URL   string
	Label string
}

type Organization struct {
	Name string
	Role string
}

// Field selects which parts of an entry ListContacts fills in.
type Field string

const (
	FieldName         Field = "name"
	FieldEmails       Field = "emails"
	FieldPhones       Field = "phones"
	FieldURLs         Field = "urls"
	FieldOrganization Field = "organization"
)

// Fields is a set of requested fields. An empty set means all fields.
type Fields []Field

// AllFields requests every field the importer understands.
var AllFields = Fields{FieldName, FieldEmails, FieldPhones, FieldURLs, FieldOrganization}

// Has reports whether f is requested.
func (fs Fields) Has(f Field) bool {
	if len(fs) == 0 {
		return true
	}
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Directory is the external address book.
type Directory interface {
	// CheckPermission reports whether access was already granted.
	CheckPermission(ctx context.Context) (bool, error)
	// RequestPermission asks for access and reports the decision.
	RequestPermission(ctx context.Context) (bool, error)
	// ListContacts reads every entry in one call.
	ListContacts(ctx context.Context, fields Fields) ([]Entry, error)
}

// Permission states persisted between runs.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionUnknown = "unknown"
)

// StaticDirectory serves a fixed list of entries. It is useful for
// tests and for callers that already hold entries in memory.
type StaticDirectory struct {
	Entries []Entry
	Granted bool
	// Err, when set, is returned by ListContacts.
	Err error
	// Requests counts RequestPermission calls.
	Requests int
}

func (d *StaticDirectory) CheckPermission(ctx context.Context) (bool, error) {
	return d.Granted, nil
}

func (d *StaticDirectory) RequestPermission(ctx context.Context) (bool, error) {
	d.Requests++
	return d.Granted, nil
}

func (d *StaticDirectory) ListContacts(ctx context.Context, fields Fields) ([]Entry, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]Entry, len(d.Entries))
	copy(out, d.Entries)
	return out, nil
}
