package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "contactlink/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// flexString accepts a JSON string, non-negative integer or null. Clients send
// phone numbers both ways. Fractions, exponents and signs are rejected since
// they have no single digit spelling.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		if !isDigits(n.String()) {
			return fmt.Errorf("numeric phone number must be a plain integer, got %s", data)
		}
		*f = flexString(n.String())
		return nil
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IdentifyRequest is the HTTP request body for POST /identify.
type IdentifyRequest struct {
	Email       *string    `json:"email" validate:"omitempty,max=320"`
	PhoneNumber flexString `json:"phoneNumber" validate:"max=32"`
}

// Normalize trims both fields.
func (r *IdentifyRequest) Normalize() {
	if r.Email != nil {
		trimmed := strings.TrimSpace(*r.Email)
		r.Email = &trimmed
	}
	r.PhoneNumber = flexString(strings.TrimSpace(string(r.PhoneNumber)))
}

// Validate checks field limits. Implements httputil.Validatable.
func (r *IdentifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *IdentifyRequest) EmailValue() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

func (r *IdentifyRequest) PhoneNumberValue() string {
	return string(r.PhoneNumber)
}

// validationError turns the first field failure into a client-facing message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	fe := verrs[0]
	field := jsonFieldName(fe.StructField())
	switch fe.Tag() {
	case "max":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
	}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "Email":
		return "email"
	case "PhoneNumber":
		return "phoneNumber"
	default:
		return structField
	}
}
