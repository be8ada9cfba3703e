package contact

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh ULID for a contact.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewNoteID returns a fresh id for a note or checklist item.
func NewNoteID() string {
	return uuid.NewString()
}
