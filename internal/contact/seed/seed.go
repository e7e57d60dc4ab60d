// Package seed loads contact fixtures from YAML.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"contactlink/internal/contact/models"
)

//go:embed demo.yaml
var demoYAML []byte

// File is the on-disk fixture layout.
type File struct {
	Contacts []Record `yaml:"contacts"`
}

// Record is one fixture row. Times are RFC 3339; UpdatedAt defaults to
// CreatedAt.
type Record struct {
	ID             int64      `yaml:"id"`
	Email          string     `yaml:"email"`
	PhoneNumber    string     `yaml:"phoneNumber"`
	LinkedID       *int64     `yaml:"linkedId"`
	LinkPrecedence string     `yaml:"linkPrecedence"`
	CreatedAt      time.Time  `yaml:"createdAt"`
	UpdatedAt      *time.Time `yaml:"updatedAt"`
	DeletedAt      *time.Time `yaml:"deletedAt"`
}

// Demo returns the built-in demo dataset.
func Demo() ([]*models.Contact, error) {
	return Parse(demoYAML)
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) ([]*models.Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	contacts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return contacts, nil
}

// Parse decodes fixture YAML and checks each record's shape.
func Parse(data []byte) ([]*models.Contact, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if len(f.Contacts) == 0 {
		return nil, errors.New("fixture has no contacts")
	}

	out := make([]*models.Contact, 0, len(f.Contacts))
	for i, r := range f.Contacts {
		c, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("contact #%d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r Record) toModel() (*models.Contact, error) {
	if r.ID <= 0 {
		return nil, errors.New("id must be positive")
	}
	if r.CreatedAt.IsZero() {
		return nil, fmt.Errorf("contact %d: createdAt is required", r.ID)
	}
	c := &models.Contact{
		ID:             models.ContactID(r.ID),
		Email:          r.Email,
		PhoneNumber:    r.PhoneNumber,
		LinkPrecedence: models.LinkPrecedence(r.LinkPrecedence),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.CreatedAt.UTC(),
	}
	if r.LinkedID != nil {
		linked := models.ContactID(*r.LinkedID)
		c.LinkedID = &linked
	}
	if r.UpdatedAt != nil {
		c.UpdatedAt = r.UpdatedAt.UTC()
	}
	if r.DeletedAt != nil {
		deleted := r.DeletedAt.UTC()
		c.DeletedAt = &deleted
	}
	if err := c.CheckShape(); err != nil {
		return nil, fmt.Errorf("contact %d: %w", r.ID, err)
	}
	return c, nil
}
