// Package devicesync imports the device address book into the contact store.
// Each run normalizes raw entries, matches them against one snapshot of the
// store, fills gaps in matched contacts and creates the rest in chunks.
package devicesync

import (
	"strings"
	"time"

	"github.com/hpungsan/rolodex/internal/contact"
	"github.com/hpungsan/rolodex/internal/device"
)

// Default labels and texts for imported contacts.
const (
	DefaultPlaceholderName = "Unnamed contact"
	DefaultImportTag       = "Imported"
	DefaultImportNote      = "Contact imported from device"

	LabelEmail   = "Email"
	LabelPhone   = "Phone"
	LabelWebsite = "Website"
)

// Normalizer turns device entries into candidate contacts.
type Normalizer struct {
	PlaceholderName string
	ImportTag       string
	ImportNote      string
}

func (n Normalizer) withDefaults() Normalizer {
	if strings.TrimSpace(n.PlaceholderName) == "" {
		n.PlaceholderName = DefaultPlaceholderName
	}
	if strings.TrimSpace(n.ImportTag) == "" {
		n.ImportTag = DefaultImportTag
	}
	if strings.TrimSpace(n.ImportNote) == "" {
		n.ImportNote = DefaultImportNote
	}
	return n
}

// HasName reports whether the entry carries a usable display name.
func HasName(e device.Entry) bool {
	return e.DisplayName != nil && strings.TrimSpace(*e.DisplayName) != ""
}

// Normalize builds a candidate contact from e. The candidate has no id and
// no creation time; now stamps the synthetic import note.
func (n Normalizer) Normalize(e device.Entry, now time.Time) *contact.Contact {
	n = n.withDefaults()

	c := &contact.Contact{
		Name:     n.PlaceholderName,
		Links:    []contact.Link{},
		Priority: contact.PriorityMedium,
		Tags:     []string{n.ImportTag},
	}
	if HasName(e) {
		c.Name = contact.CleanName(*e.DisplayName)
	}

	// Addresses the store would reject are dropped so an imported contact
	// always stays editable.
	for _, em := range e.Emails {
		v := strings.TrimSpace(em.Address)
		if !contact.ValidEmail(v) {
			continue
		}
		if c.Email == "" {
			c.Email = v
		}
		c.Links = append(c.Links, contact.Link{Type: contact.LinkEmail, Value: v, Label: labelOr(em.Label, LabelEmail)})
	}
	for _, ph := range e.Phones {
		v := strings.TrimSpace(ph.Number)
		if v == "" {
			continue
		}
		if c.Phone == "" {
			c.Phone = v
		}
		c.Links = append(c.Links, contact.Link{Type: contact.LinkPhone, Value: v, Label: labelOr(ph.Label, LabelPhone)})
	}
	for _, u := range e.URLs {
		v := strings.TrimSpace(u.URL)
		if v == "" {
			continue
		}
		c.Links = append(c.Links, contact.Link{Type: contact.LinkWebsite, Value: v, Label: labelOr(u.Label, LabelWebsite)})
	}

	if e.Organization != nil {
		c.Company = strings.TrimSpace(e.Organization.Name)
		c.Position = strings.TrimSpace(e.Organization.Role)
	}

	ts := now.Unix()
	c.Notes = []contact.Note{{
		ID:      contact.NewNoteID(),
		Text:    n.ImportNote,
		Date:    ts,
		Created: ts,
		Type:    contact.NotePlain,
	}}

	return c
}

func labelOr(label, def string) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	return def
}
