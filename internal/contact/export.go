package contact

// ExportRecord is one line of a JSONL export file.
// The header line sets RolodexExport; every other line is a contact.
type ExportRecord struct {
	// Header detection field - true only for header line
	RolodexExport bool `json:"_rolodex_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	Contact
}

// ToContact converts an ExportRecord to a Contact, cleaning fields that
// hand-edited files commonly get wrong.
func (r *ExportRecord) ToContact() *Contact {
	c := r.Contact.Clone()
	c.Name = CleanName(c.Name)
	c.Tags = CleanTags(c.Tags)
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Links == nil {
		c.Links = []Link{}
	}
	if c.Notes == nil {
		c.Notes = []Note{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.LastInteraction < c.CreatedAt {
		c.LastInteraction = c.CreatedAt
	}
	return c
}

// ContactToExportRecord converts a Contact to an ExportRecord for export.
func ContactToExportRecord(c *Contact) *ExportRecord {
	return &ExportRecord{Contact: *c.Clone()}
}
