package contact

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emersion/go-vcard"
)

func sampleContact() *Contact {
	return &Contact{
		ID:      "01HZX3J8Y3Q3T3G9V1K2M4N5P6",
		Name:    "Ana Garcia",
		Company: "Tech Solutions",
		Email:   "ana@techsol.com",
		Links: []Link{
			{Type: LinkEmail, Value: "ana@techsol.com", Label: "Work"},
			{Type: LinkLinkedIn, Value: "https://linkedin.com/in/ana", Label: "LinkedIn"},
		},
		Notes: []Note{{
			ID:   "n1",
			Text: "Met at the conference",
			Type: NoteMeetingChecklist,
			Checklist: []ChecklistItem{
				{ID: "c1", Text: "Send deck", Order: 0},
			},
			Reminder: &Reminder{Armed: true, At: 1700000000, ExternalID: 42},
		}},
		Tags:            []string{"Client"},
		Priority:        PriorityHigh,
		CreatedAt:       1690000000,
		LastInteraction: 1695000000,
	}
}

func TestClone_Independent(t *testing.T) {
	orig := sampleContact()
	cp := orig.Clone()

	cp.Links[0].Value = "changed"
	cp.Notes[0].Checklist[0].Completed = true
	cp.Notes[0].Reminder.Armed = false
	cp.Tags[0] = "Other"

	if orig.Links[0].Value != "ana@techsol.com" {
		t.Error("link slice is shared")
	}
	if orig.Notes[0].Checklist[0].Completed {
		t.Error("checklist slice is shared")
	}
	if !orig.Notes[0].Reminder.Armed {
		t.Error("reminder pointer is shared")
	}
	if orig.Tags[0] != "Client" {
		t.Error("tag slice is shared")
	}
}

func TestClone_Nil(t *testing.T) {
	var c *Contact
	if c.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestFindNote(t *testing.T) {
	c := sampleContact()
	if got := c.FindNote("n1"); got != 0 {
		t.Errorf("FindNote(n1) = %d, want 0", got)
	}
	if got := c.FindNote("missing"); got != -1 {
		t.Errorf("FindNote(missing) = %d, want -1", got)
	}
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Priority("urgent").Valid() {
		t.Error("urgent should be invalid")
	}
}

func TestPatch_ApplyDoesNotAlias(t *testing.T) {
	c := sampleContact()
	links := []Link{{Type: LinkPhone, Value: "+1 555"}}
	company := "New Co"

	p := Patch{Company: &company, Links: &links}
	p.Apply(c)

	if c.Company != "New Co" {
		t.Errorf("Company = %q, want %q", c.Company, "New Co")
	}
	if len(c.Links) != 1 || c.Links[0].Value != "+1 555" {
		t.Fatalf("Links = %+v", c.Links)
	}

	links[0].Value = "mutated"
	if c.Links[0].Value != "+1 555" {
		t.Error("Apply should copy the links slice")
	}
	// Untouched fields stay
	if c.Email != "ana@techsol.com" {
		t.Errorf("Email = %q, should be unchanged", c.Email)
	}
}

func TestPatch_IsEmptyAndFields(t *testing.T) {
	var p Patch
	if !p.IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if len(p.Fields()) != 0 {
		t.Errorf("Fields() = %v, want none", p.Fields())
	}

	email := "x@y.z"
	tags := []string{"a"}
	p = Patch{Email: &email, Tags: &tags}
	if p.IsEmpty() {
		t.Error("patch with fields should not be empty")
	}
	got := strings.Join(p.Fields(), ",")
	if got != "email,tags" {
		t.Errorf("Fields() = %q, want %q", got, "email,tags")
	}
}

func TestKeyAndSameText(t *testing.T) {
	if Key("  Ana@X.com ") != "ana@x.com" {
		t.Errorf("Key() = %q", Key("  Ana@X.com "))
	}
	if !SameText("Ana Garcia", "ana garcia") {
		t.Error("SameText should ignore case")
	}
	if SameText("", "  ") {
		t.Error("SameText should not match two empty values")
	}
}

func TestCleanName(t *testing.T) {
	if got := CleanName("  Ana   Maria\tGarcia "); got != "Ana Maria Garcia" {
		t.Errorf("CleanName() = %q", got)
	}
}

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{" Client ", "client", "Client", "", "VIP"})
	want := []string{"Client", "client", "VIP"}
	if len(got) != len(want) {
		t.Fatalf("CleanTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CleanTags()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if CleanTags(nil) != nil {
		t.Error("CleanTags(nil) should be nil")
	}
	if !HasTag(got, "VIP") || HasTag(got, "vip") {
		t.Error("HasTag should be case-sensitive")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Contact)
		wantErr string
	}{
		{"valid", func(c *Contact) {}, ""},
		{"empty name", func(c *Contact) { c.Name = "  " }, "name is required"},
		{"bad email", func(c *Contact) { c.Email = "not-an-email" }, "email must be a valid email address"},
		{"bad priority", func(c *Contact) { c.Priority = "urgent" }, "priority must be one of"},
		{"bad link type", func(c *Contact) { c.Links[0].Type = "fax" }, "links[0].type must be one of"},
		{"empty link value", func(c *Contact) { c.Links[1].Value = "" }, "links[1].value is required"},
		{"checklist on plain note", func(c *Contact) { c.Notes[0].Type = NotePlain }, "checklist is only allowed"},
		{"empty priority allowed", func(c *Contact) { c.Priority = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleContact()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateNoteAndLink(t *testing.T) {
	if err := ValidateNote(&Note{Text: "x", Type: "memo"}); err == nil {
		t.Error("unknown note type should fail")
	}
	if err := ValidateNote(&Note{Text: "x", Type: NoteMeeting}); err != nil {
		t.Errorf("ValidateNote() error = %v", err)
	}
	if err := ValidateLink(&Link{Type: LinkWebsite, Value: "https://x.io"}); err != nil {
		t.Errorf("ValidateLink() error = %v", err)
	}
	if err := ValidateLink(&Link{Type: LinkWebsite}); err == nil {
		t.Error("link without value should fail")
	}
}

func TestExportRecord_ToContact(t *testing.T) {
	r := &ExportRecord{Contact: Contact{
		ID:              "01H",
		Name:            "  Ana   Garcia ",
		Tags:            []string{"a", "a", " "},
		CreatedAt:       100,
		LastInteraction: 50,
	}}

	c := r.ToContact()
	if c.Name != "Ana Garcia" {
		t.Errorf("Name = %q", c.Name)
	}
	if len(c.Tags) != 1 {
		t.Errorf("Tags = %v, want one tag", c.Tags)
	}
	if c.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want medium", c.Priority)
	}
	if c.Links == nil || c.Notes == nil {
		t.Error("Links and Notes should be non-nil")
	}
	if c.LastInteraction != 100 {
		t.Errorf("LastInteraction = %d, want clamped to CreatedAt", c.LastInteraction)
	}
}

func TestToVCard(t *testing.T) {
	c := sampleContact()
	c.Links = append(c.Links, Link{Type: LinkWebsite, Value: "https://techsol.com"})
	card := ToVCard(c)

	if card.Value(vcard.FieldVersion) != "4.0" {
		t.Errorf("VERSION = %q, want 4.0", card.Value(vcard.FieldVersion))
	}
	if card.Value(vcard.FieldFormattedName) != "Ana Garcia" {
		t.Errorf("FN = %q", card.Value(vcard.FieldFormattedName))
	}
	if card.Value(vcard.FieldOrganization) != "Tech Solutions" {
		t.Errorf("ORG = %q", card.Value(vcard.FieldOrganization))
	}

	// Primary email and the identical email link collapse to one property
	if n := len(card[vcard.FieldEmail]); n != 1 {
		t.Errorf("EMAIL count = %d, want 1", n)
	}

	urls := card[vcard.FieldURL]
	if len(urls) != 2 {
		t.Fatalf("URL count = %d, want 2", len(urls))
	}
	if LinkTypeFromURLParams(urls[0].Params) != LinkLinkedIn {
		t.Errorf("first URL type = %v, want linkedin", urls[0].Params.Types())
	}
	if LabelFromParams(urls[0].Params) != "LinkedIn" {
		t.Errorf("first URL label = %q", LabelFromParams(urls[0].Params))
	}
	if LinkTypeFromURLParams(urls[1].Params) != LinkWebsite {
		t.Error("plain URL should map back to website")
	}

	cats := card.Categories()
	if len(cats) != 1 || cats[0] != "Client" {
		t.Errorf("CATEGORIES = %v", cats)
	}

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(buf.String(), "FN:Ana Garcia") {
		t.Errorf("encoded card missing FN:\n%s", buf.String())
	}
}

func TestSplitName(t *testing.T) {
	n := splitName("Ana Maria Garcia")
	if n.GivenName != "Ana Maria" || n.FamilyName != "Garcia" {
		t.Errorf("splitName() = %+v", n)
	}
	n = splitName("Cher")
	if n.GivenName != "Cher" || n.FamilyName != "" {
		t.Errorf("splitName(single) = %+v", n)
	}
}
