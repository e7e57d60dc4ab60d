package seed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactlink/internal/contact/models"
)

func TestDemo(t *testing.T) {
	contacts, err := Demo()
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	lorraine, mcfly := contacts[0], contacts[1]
	assert.Equal(t, models.ContactID(1), lorraine.ID)
	assert.True(t, lorraine.IsPrimary())
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 374_000_000, time.UTC), lorraine.CreatedAt)

	assert.Equal(t, models.ContactID(23), mcfly.ID)
	assert.True(t, mcfly.LinksTo(1))
	assert.Equal(t, "123456", mcfly.PhoneNumber)
	assert.Equal(t, mcfly.CreatedAt, mcfly.UpdatedAt)
	assert.True(t, lorraine.Before(mcfly))
}

func TestParse(t *testing.T) {
	t.Run("removed records keep their deletion time", func(t *testing.T) {
		contacts, err := Parse([]byte(`
contacts:
  - id: 4
    email: gone@x
    linkPrecedence: primary
    createdAt: 2023-01-01T00:00:00Z
    deletedAt: 2023-02-01T00:00:00Z
`))
		require.NoError(t, err)
		require.NotNil(t, contacts[0].DeletedAt)
		assert.True(t, contacts[0].IsRemoved())
	})

	cases := map[string]string{
		"empty":                  `contacts: []`,
		"not yaml":               `contacts: [`,
		"missing id":             "contacts:\n  - email: a@x\n    linkPrecedence: primary\n    createdAt: 2023-01-01T00:00:00Z\n",
		"missing createdAt":      "contacts:\n  - id: 1\n    email: a@x\n    linkPrecedence: primary\n",
		"secondary without link": "contacts:\n  - id: 2\n    email: a@x\n    linkPrecedence: secondary\n    createdAt: 2023-01-01T00:00:00Z\n",
		"no fields":              "contacts:\n  - id: 3\n    linkPrecedence: primary\n    createdAt: 2023-01-01T00:00:00Z\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(path, demoYAML, 0o600))

	contacts, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
