package contact

// Priority ranks how important a contact is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// LinkType identifies the channel a Link points at.
type LinkType string

const (
	LinkEmail     LinkType = "email"
	LinkPhone     LinkType = "phone"
	LinkLinkedIn  LinkType = "linkedin"
	LinkFacebook  LinkType = "facebook"
	LinkTwitter   LinkType = "twitter"
	LinkInstagram LinkType = "instagram"
	LinkWebsite   LinkType = "website"
)

// NoteType is the semantic kind of a note.
type NoteType string

const (
	NotePlain            NoteType = "note"
	NoteMeeting          NoteType = "meeting"
	NoteMeetingBullets   NoteType = "meeting_bullets"
	NoteMeetingChecklist NoteType = "meeting_checklist"
)

// Contact is a person record owned by the application.
type Contact struct {
	// ID is a ULID assigned at creation; never changes
	ID string `json:"id"`

	// Name is the display name (required, non-empty)
	Name string `json:"name" validate:"required"`

	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty"`

	// Links are ordered; value uniqueness is only enforced by the sync merge policy
	Links []Link `json:"links" validate:"dive"`

	// Notes are ordered chronologically by insertion
	Notes []Note `json:"notes" validate:"dive"`

	// Tags are case-sensitive and free-form
	Tags []string `json:"tags"`

	Priority Priority `json:"priority" validate:"omitempty,oneof=low medium high"`

	// CreatedAt is the Unix timestamp of creation; set once
	CreatedAt int64 `json:"created_at"`

	// LastInteraction is the Unix timestamp of the last update
	LastInteraction int64 `json:"last_interaction"`
}

// Link is one addressable contact channel.
type Link struct {
	Type  LinkType `json:"type" validate:"required,oneof=email phone linkedin facebook twitter instagram website"`
	Value string   `json:"value" validate:"required"`
	Label string   `json:"label,omitempty"`
}

// Note is an annotation attached to a contact.
type Note struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Date      int64           `json:"date"`
	Created   int64           `json:"created"`
	Type      NoteType        `json:"type" validate:"required,oneof=note meeting meeting_bullets meeting_checklist"`
	Checklist []ChecklistItem `json:"checklist,omitempty" validate:"dive"`
	Reminder  *Reminder       `json:"reminder,omitempty"`
}

// ChecklistItem is one entry of a meeting checklist.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text" validate:"required"`
	Completed bool   `json:"completed"`
	Order     int    `json:"order"`
}

// Reminder records that a notification was requested for a note.
// The scheduler owns the notification lifecycle; only Armed is tracked here.
type Reminder struct {
	Armed      bool  `json:"armed"`
	At         int64 `json:"at"`
	ExternalID int   `json:"external_id"`
}

// Clone returns a deep copy of c. Slices and nested records are not shared.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Links = CloneLinks(c.Links)
	out.Notes = CloneNotes(c.Notes)
	out.Tags = cloneStrings(c.Tags)
	return &out
}

// FindNote returns the index of the note with the given id, or -1.
func (c *Contact) FindNote(noteID string) int {
	for i := range c.Notes {
		if c.Notes[i].ID == noteID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of n.
func (n Note) Clone() Note {
	out := n
	if n.Checklist != nil {
		out.Checklist = make([]ChecklistItem, len(n.Checklist))
		copy(out.Checklist, n.Checklist)
	}
	if n.Reminder != nil {
		r := *n.Reminder
		out.Reminder = &r
	}
	return out
}

// CloneLinks copies a link slice. A nil input stays nil.
func CloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	copy(out, links)
	return out
}

// CloneNotes deep-copies a note slice. A nil input stays nil.
func CloneNotes(notes []Note) []Note {
	if notes == nil {
		return nil
	}
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
