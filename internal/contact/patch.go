package contact

// Patch is a partial update. A nil field means "leave unchanged".
// Slice fields replace the whole collection and are deep-copied on Apply,
// so a patch never aliases the caller's slices.
type Patch struct {
	Name     *string
	Company  *string
	Position *string
	Email    *string
	Phone    *string
	Priority *Priority
	Links    *[]Link
	Notes    *[]Note
	Tags     *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Company == nil && p.Position == nil &&
		p.Email == nil && p.Phone == nil && p.Priority == nil &&
		p.Links == nil && p.Notes == nil && p.Tags == nil
}

// Apply writes the patch into c. It does not touch ID, CreatedAt or LastInteraction.
func (p Patch) Apply(c *Contact) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Company != nil {
		c.Company = *p.Company
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Links != nil {
		c.Links = CloneLinks(*p.Links)
	}
	if p.Notes != nil {
		c.Notes = CloneNotes(*p.Notes)
	}
	if p.Tags != nil {
		c.Tags = cloneStrings(*p.Tags)
	}
}

// Fields lists the names of the fields the patch sets, in a stable order.
func (p Patch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Name != nil, "name")
	add(p.Company != nil, "company")
	add(p.Position != nil, "position")
	add(p.Email != nil, "email")
	add(p.Phone != nil, "phone")
	add(p.Priority != nil, "priority")
	add(p.Links != nil, "links")
	add(p.Notes != nil, "notes")
	add(p.Tags != nil, "tags")
	return fields
}
