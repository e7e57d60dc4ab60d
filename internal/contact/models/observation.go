package models

import (
	"strings"

	dErrors "contactlink/pkg/domain-errors"
)

// Observation is one incoming (email, phone) sighting after normalization.
// Values are trimmed; an empty value means the field was not supplied.
type Observation struct {
	Email       string
	PhoneNumber string
}

// NewObservation trims both fields and rejects observations that carry neither.
func NewObservation(email, phoneNumber string) (Observation, error) {
	obs := Observation{
		Email:       strings.TrimSpace(email),
		PhoneNumber: strings.TrimSpace(phoneNumber),
	}
	if obs.Email == "" && obs.PhoneNumber == "" {
		return Observation{}, dErrors.New(dErrors.CodeInvalidInput, "email or phoneNumber is required")
	}
	return obs, nil
}

func (o Observation) HasEmail() bool { return o.Email != "" }

func (o Observation) HasPhoneNumber() bool { return o.PhoneNumber != "" }

// Complete reports whether both fields were supplied.
func (o Observation) Complete() bool {
	return o.HasEmail() && o.HasPhoneNumber()
}

// Matches reports whether c carries exactly this (email, phone) pair. Absent
// fields never match each other.
func (o Observation) Matches(c *Contact) bool {
	return o.Complete() && c.Email == o.Email && c.PhoneNumber == o.PhoneNumber
}
