package devicesync

import (
	"strings"

	"github.com/hpungsan/rolodex/internal/contact"
)

// Merge computes the patch that fills gaps in existing from candidate.
//
// Company, position, email and phone are copied only when existing has
// none. Candidate links whose value (ignoring case) is not already present
// are appended after the existing ones. Nothing is removed or overwritten,
// and notes, tags, priority and timestamps are left alone. The second
// return is false when the patch is empty, so merging the same candidate
// twice changes nothing the second time.
func Merge(existing, candidate *contact.Contact) (contact.Patch, bool) {
	var p contact.Patch

	fill := func(have, offer string) *string {
		if strings.TrimSpace(have) == "" && strings.TrimSpace(offer) != "" {
			v := offer
			return &v
		}
		return nil
	}
	p.Company = fill(existing.Company, candidate.Company)
	p.Position = fill(existing.Position, candidate.Position)
	p.Email = fill(existing.Email, candidate.Email)
	p.Phone = fill(existing.Phone, candidate.Phone)

	seen := make(map[string]bool, len(existing.Links))
	for _, l := range existing.Links {
		seen[contact.Key(l.Value)] = true
	}
	var added []contact.Link
	for _, l := range candidate.Links {
		k := contact.Key(l.Value)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		added = append(added, l)
	}
	if len(added) > 0 {
		links := make([]contact.Link, 0, len(existing.Links)+len(added))
		links = append(links, existing.Links...)
		links = append(links, added...)
		p.Links = &links
	}

	return p, !p.IsEmpty()
}
