package contact

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what callers sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a contact's field constraints.
// The returned error message lists every failing field.
func Validate(c *Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	for _, n := range c.Notes {
		if err := checkNoteShape(n); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNote checks a single note.
func ValidateNote(n *Note) error {
	if err := validate.Struct(n); err != nil {
		return describe(err)
	}
	return checkNoteShape(*n)
}

// ValidEmail reports whether s passes the same email check Validate applies
// to the primary email.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// ValidateLink checks a single link.
func ValidateLink(l *Link) error {
	if err := validate.Struct(l); err != nil {
		return describe(err)
	}
	return nil
}

func checkNoteShape(n Note) error {
	if len(n.Checklist) > 0 && n.Type != NoteMeetingChecklist {
		return fmt.Errorf("checklist is only allowed on %s notes", NoteMeetingChecklist)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the root struct name ("Contact.links[0].type" -> "links[0].type")
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
