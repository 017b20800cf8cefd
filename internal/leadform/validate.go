package leadform

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Field names as they appear on the wire and in error reports.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldCompany = "company"
	FieldSector  = "sector"
	FieldVolume  = "subscriptionVolume"
	FieldMessage = "message"
)

// User-facing validation messages.
const (
	MsgNameRequired   = "Nom requis"
	MsgEmailInvalid   = "Format d'email invalide"
	MsgVolumeRequired = "Quantité requise"
)

// schema declares the constraints on the required fields. Optional fields
// carry no tags.
type schema struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company"`
	Sector  string `json:"sector"`
	Volume  int    `json:"subscriptionVolume" validate:"gte=1000"`
	Message string `json:"message"`
}

var fieldMessages = map[string]string{
	FieldName:   MsgNameRequired,
	FieldEmail:  MsgEmailInvalid,
	FieldVolume: MsgVolumeRequired,
}

var fieldOrder = []string{FieldName, FieldEmail, FieldCompany, FieldSector, FieldVolume, FieldMessage}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schemaValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the current field values against the form schema. It is a
// pure function of f: the same values always yield the same errors.
func Validate(f Fields) ValidationErrors {
	s := schema{
		Name:    f.Name,
		Email:   f.Email,
		Company: f.Company,
		Sector:  f.Sector,
		Volume:  f.Volume.Amount,
		Message: f.Message,
	}

	failed := map[string]bool{}
	if err := schemaValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			// Struct only returns InvalidValidationError for non-struct input.
			panic(err)
		}
		for _, fe := range verrs {
			failed[fe.Field()] = true
		}
	}
	// An unparsed selection is compared as-is and can never satisfy the minimum.
	if !f.Volume.Parsed {
		failed[FieldVolume] = true
	}

	var out ValidationErrors
	for _, field := range fieldOrder {
		if failed[field] {
			out = append(out, ValidationError{Field: field, Message: fieldMessages[field]})
		}
	}
	return out
}
