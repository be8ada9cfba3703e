package contact

import (
	"strings"
	"time"

	"github.com/emersion/go-vcard"
)

// paramLabel carries a link's human-readable label on vCard properties.
const paramLabel = "X-LABEL"

// ToVCard renders a contact as a vCard 4.0 card.
// Links map to EMAIL, TEL or URL properties; social links keep their type
// in the TYPE parameter so they survive a round trip through other address books.
func ToVCard(c *Contact) vcard.Card {
	card := make(vcard.Card)

	card.SetValue(vcard.FieldUID, c.ID)
	card.SetValue(vcard.FieldFormattedName, c.Name)
	card.SetName(splitName(c.Name))

	if c.Company != "" {
		card.SetValue(vcard.FieldOrganization, c.Company)
	}
	if c.Position != "" {
		card.SetValue(vcard.FieldTitle, c.Position)
	}

	emails := make(map[string]bool)
	phones := make(map[string]bool)
	if c.Email != "" {
		card.Add(vcard.FieldEmail, &vcard.Field{
			Value:  c.Email,
			Params: vcard.Params{vcard.ParamPreferred: {"1"}},
		})
		emails[Key(c.Email)] = true
	}
	if c.Phone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  c.Phone,
			Params: vcard.Params{vcard.ParamPreferred: {"1"}},
		})
		phones[Key(c.Phone)] = true
	}

	for _, l := range c.Links {
		params := vcard.Params{}
		if l.Label != "" {
			params[paramLabel] = []string{l.Label}
		}
		switch l.Type {
		case LinkEmail:
			if emails[Key(l.Value)] {
				continue
			}
			emails[Key(l.Value)] = true
			card.Add(vcard.FieldEmail, &vcard.Field{Value: l.Value, Params: params})
		case LinkPhone:
			if phones[Key(l.Value)] {
				continue
			}
			phones[Key(l.Value)] = true
			card.Add(vcard.FieldTelephone, &vcard.Field{Value: l.Value, Params: params})
		default:
			if l.Type != LinkWebsite {
				params[vcard.ParamType] = []string{string(l.Type)}
			}
			card.Add(vcard.FieldURL, &vcard.Field{Value: l.Value, Params: params})
		}
	}

	for _, n := range c.Notes {
		if strings.TrimSpace(n.Text) != "" {
			card.AddValue(vcard.FieldNote, n.Text)
		}
	}

	if len(c.Tags) > 0 {
		card.SetCategories(c.Tags)
	}
	if c.LastInteraction > 0 {
		card.SetRevision(time.Unix(c.LastInteraction, 0).UTC())
	}

	vcard.ToV4(card)
	return card
}

// splitName makes a best-effort structured name from a display name:
// the last word is the family name, the rest the given name.
func splitName(display string) *vcard.Name {
	parts := strings.Fields(display)
	name := &vcard.Name{}
	switch len(parts) {
	case 0:
	case 1:
		name.GivenName = parts[0]
	default:
		name.GivenName = strings.Join(parts[:len(parts)-1], " ")
		name.FamilyName = parts[len(parts)-1]
	}
	return name
}

// LinkTypeFromURLParams maps the TYPE parameter of a vCard URL property back
// to a link type. Unknown or missing types are websites.
func LinkTypeFromURLParams(params vcard.Params) LinkType {
	for _, t := range params.Types() {
		switch LinkType(strings.ToLower(t)) {
		case LinkLinkedIn:
			return LinkLinkedIn
		case LinkFacebook:
			return LinkFacebook
		case LinkTwitter:
			return LinkTwitter
		case LinkInstagram:
			return LinkInstagram
		}
	}
	return LinkWebsite
}

// LabelFromParams returns the link label stored on a vCard property, if any.
func LabelFromParams(params vcard.Params) string {
	return params.Get(paramLabel)
}
