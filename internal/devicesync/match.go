package devicesync

import "github.com/hpungsan/rolodex/internal/contact"

// MatchKind says why a stored contact matched a candidate.
type MatchKind int

const (
	NoMatch MatchKind = iota
	MatchByName
	MatchByEmail
)

// Keys holds the folded name and email a contact is matched on.
type Keys struct {
	Name  string
	Email string
}

// KeysOf folds the matching fields of c once so repeated comparisons do
// not lowercase on every call.
func KeysOf(c *contact.Contact) Keys {
	return Keys{Name: contact.Key(c.Name), Email: contact.Key(c.Email)}
}

// Match finds the stored contact that represents the same person as
// candidate. A contact matches when the names are equal ignoring case, or
// when both primary emails are non-empty and equal ignoring case.
//
// An email match outranks a name match. Among matches of the same rank the
// first in snapshot order wins. It returns -1 when nothing matches.
func Match(candidate *contact.Contact, snapshot []*contact.Contact) (int, MatchKind) {
	keys := make([]Keys, len(snapshot))
	for i, c := range snapshot {
		keys[i] = KeysOf(c)
	}
	return MatchKeys(KeysOf(candidate), keys)
}

// MatchKeys is Match over precomputed keys.
func MatchKeys(candidate Keys, keys []Keys) (int, MatchKind) {
	best, kind := -1, NoMatch
	for i, k := range keys {
		if candidate.Email != "" && k.Email == candidate.Email {
			return i, MatchByEmail
		}
		if kind == NoMatch && candidate.Name != "" && k.Name == candidate.Name {
			best, kind = i, MatchByName
		}
	}
	return best, kind
}
