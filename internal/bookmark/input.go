package bookmark

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lesterapp/lester/internal/errors"
)

// NewWorkspace is the input for creating a workspace.
type NewWorkspace struct {
	Name string `json:"name" validate:"required,max=200"`
}

// NewBookmark is the input for creating a bookmark.
type NewBookmark struct {
	WorkspaceID string  `json:"workspace_id" validate:"required"`
	URL         string  `json:"url" validate:"required,max=2048"`
	Title       string  `json:"title" validate:"required,max=1000"`
	Notes       *string `json:"notes,omitempty"`
}

// Normalize trims surrounding whitespace. Blank notes become nil.
func (n NewBookmark) Normalize() NewBookmark {
	n.WorkspaceID = strings.TrimSpace(n.WorkspaceID)
	n.URL = strings.TrimSpace(n.URL)
	n.Title = strings.TrimSpace(n.Title)
	if n.Notes != nil && strings.TrimSpace(*n.Notes) == "" {
		n.Notes = nil
	}
	return n
}

// Normalize trims surrounding whitespace.
func (n NewWorkspace) Normalize() NewWorkspace {
	n.Name = strings.TrimSpace(n.Name)
	return n
}

// ValidateWorkspace normalizes and validates a workspace input.
func ValidateWorkspace(in NewWorkspace) (NewWorkspace, error) {
	in = in.Normalize()
	if err := defaultValidator().Validate(in, "workspace name is empty"); err != nil {
		return in, err
	}
	return in, nil
}

// ValidateBookmark normalizes and validates a bookmark input.
func ValidateBookmark(in NewBookmark) (NewBookmark, error) {
	in = in.Normalize()
	msg := "bookmark url or title is empty"
	if in.URL != "" && in.Title != "" {
		msg = "invalid bookmark"
	}
	if err := defaultValidator().Validate(in, msg); err != nil {
		return in, err
	}
	return in, nil
}

// Validator wraps go-playground/validator with error code conversion.
type Validator struct {
	v *validator.Validate
}

var (
	sharedOnce      sync.Once
	sharedValidator *Validator
)

func defaultValidator() *Validator {
	sharedOnce.Do(func() { sharedValidator = NewValidator() })
	return sharedValidator
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks s and returns an INVALID_REQUEST error carrying per-field
// messages under msg.
func (v *Validator) Validate(s any, msg string) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewInvalidRequest(err.Error())
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = friendlyMessage(fe)
	}
	return errors.NewInvalidFields(msg, fields)
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
