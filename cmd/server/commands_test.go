package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contacthandler "contactlink/internal/contact/handler"
	"contactlink/internal/contact/models"
)

// inMemoryEnv points every backing service at its in-process default.
func inMemoryEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_FORMAT", "text")
	prev := stderr
	stderr = io.Discard
	t.Cleanup(func() { stderr = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestIdentifyCommand(t *testing.T) {
	inMemoryEnv(t)

	t.Run("resolves against the demo dataset", func(t *testing.T) {
		out, err := execute(t, "identify", "--seed-demo", "--email", "mcfly@hillvalley.edu", "--phone", "123456")
		require.NoError(t, err)

		var resp contacthandler.IdentifyResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, models.ContactID(1), resp.Contact.PrimaryContactID)
		assert.Equal(t, []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, resp.Contact.Emails)
		assert.Equal(t, []string{"123456"}, resp.Contact.PhoneNumbers)
		assert.Equal(t, []models.ContactID{23}, resp.Contact.SecondaryContactIDs)
	})

	t.Run("empty observation fails", func(t *testing.T) {
		_, err := execute(t, "identify")
		require.Error(t, err)
	})
}

func TestSeedCommand(t *testing.T) {
	inMemoryEnv(t)

	t.Run("imports a fixture file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "contacts.yaml")
		fixture := `contacts:
  - id: 7
    email: doc@hillvalley.edu
    linkPrecedence: primary
    createdAt: 2023-04-01T00:00:00Z
`
		require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))
		_, err := execute(t, "seed", "--file", path)
		require.NoError(t, err)
	})

	t.Run("rejects an unreadable fixture", func(t *testing.T) {
		_, err := execute(t, "seed", "--file", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestMigrateCommand(t *testing.T) {
	inMemoryEnv(t)

	t.Run("requires a database", func(t *testing.T) {
		_, err := execute(t, "migrate", "up")
		require.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("rejects unknown directions", func(t *testing.T) {
		_, err := execute(t, "migrate", "sideways")
		require.Error(t, err)
	})
}
