package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/casetrail/internal/ir"
)

// ErrInvalidInput is returned when an operation's arguments fail validation.
// Nothing is recorded.
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New()

// Ids may not contain ':', the link id separator.
type noteInput struct {
	ID             string  `validate:"omitempty,max=128,excludes=:"`
	Title          *string `validate:"omitempty,max=256"`
	PublicDetails  *string `validate:"omitempty,max=4096"`
	PrivateDetails *string `validate:"omitempty,max=4096"`
}

type moodInput struct {
	NoteID     string `validate:"required"`
	ID         string `validate:"omitempty,max=128,excludes=:"`
	Descriptor string `validate:"required,max=64"`
}

type childInput struct {
	ID     string `validate:"omitempty,max=128,excludes=:"`
	Label  string `validate:"max=256"`
	Status string `validate:"max=32"`
}

func checkNote(id string, f NoteFields) error {
	if f.InteractedAt != nil {
		if err := checkTime("interacted_at", *f.InteractedAt); err != nil {
			return err
		}
	}
	return validateStruct(noteInput{
		ID:             id,
		Title:          f.Title,
		PublicDetails:  f.PublicDetails,
		PrivateDetails: f.PrivateDetails,
	})
}

// checkTime rejects a non-zero time the store cannot persist.
func checkTime(field string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	if err := ir.CheckTime(t); err != nil {
		return fmt.Errorf("%w: %s %w", ErrInvalidInput, field, err)
	}
	return nil
}

// validateStruct validates s by its tags and wraps failures in
// ErrInvalidInput.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		msgs[i] = formatFieldError(e)
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain %q", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
