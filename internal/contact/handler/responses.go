package handler

import (
	"time"

	"contactlink/internal/contact/models"
)

// IdentifyResponse is the HTTP response for identify and identity lookups.
type IdentifyResponse struct {
	Contact IdentityResponse `json:"contact"`
}

// IdentityResponse keeps the field names existing clients read.
type IdentityResponse struct {
	PrimaryContactID    models.ContactID   `json:"primaryContactId"`
	Emails              []string           `json:"emails"`
	PhoneNumbers        []string           `json:"phoneNumbers"`
	SecondaryContactIDs []models.ContactID `json:"secondaryContactIds"`
}

func FromView(view *models.IdentityView) *IdentifyResponse {
	return &IdentifyResponse{
		Contact: IdentityResponse{
			PrimaryContactID:    view.PrimaryID,
			Emails:              nonNil(view.Emails),
			PhoneNumbers:        nonNil(view.PhoneNumbers),
			SecondaryContactIDs: nonNil(view.SecondaryIDs),
		},
	}
}

// ContactResponse is one row of GET /contacts. Absent fields render as null.
type ContactResponse struct {
	ID             models.ContactID  `json:"id"`
	Email          *string           `json:"email"`
	PhoneNumber    *string           `json:"phoneNumber"`
	LinkedID       *models.ContactID `json:"linkedId"`
	LinkPrecedence string            `json:"linkPrecedence"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	DeletedAt      *time.Time        `json:"deletedAt"`
}

// ListContactsResponse is the HTTP response for GET /contacts.
type ListContactsResponse struct {
	Contacts []ContactResponse `json:"contacts"`
	Total    int               `json:"total"`
}

func FromContacts(contacts []*models.Contact) *ListContactsResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ContactResponse{
			ID:             c.ID,
			Email:          optional(c.Email),
			PhoneNumber:    optional(c.PhoneNumber),
			LinkedID:       c.LinkedID,
			LinkPrecedence: string(c.LinkPrecedence),
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
			DeletedAt:      c.DeletedAt,
		})
	}
	return &ListContactsResponse{Contacts: out, Total: len(out)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
