package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"OWNPAD_ADDR", "OWNPAD_PORT", "OWNPAD_SECRET", "OWNPAD_MONGO_URI", "OWNPAD_MONGO_DB",
		"OWNPAD_ENFORCE_DELETES", "OWNPAD_ALLOW_UNOWNED", "OWNPAD_SEND_BUFFER", "OWNPAD_TICKET_TTL",
	} {
		// Setenv restores the old value on cleanup, godotenv skips
		// variables that exist even when empty
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:3000", c.Listen())
	require.False(t, c.EnforceDeletes)
	require.False(t, c.AllowUnowned)
	require.Equal(t, DefaultSendBuffer, c.SendBuffer)
	require.Equal(t, DefaultTicketTTL, c.TicketTTL)
	require.Len(t, c.Secret, 32)
	require.Empty(t, c.MongoURI)
}

func TestMissingEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	// values already in the environment win over the file
	t.Setenv("OWNPAD_PORT", "9000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"OWNPAD_ADDR=0.0.0.0\nOWNPAD_SECRET=hunter2\nOWNPAD_ALLOW_UNOWNED=true\nOWNPAD_ENFORCE_DELETES=1\nOWNPAD_TICKET_TTL=30s\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", c.Listen())
	require.Equal(t, []byte("hunter2"), c.Secret)
	require.True(t, c.AllowUnowned)
	require.True(t, c.EnforceDeletes)
	require.Equal(t, 30*time.Second, c.TicketTTL)
}

func TestInvalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"port":   {"OWNPAD_PORT", "http"},
		"range":  {"OWNPAD_PORT", "70000"},
		"bool":   {"OWNPAD_ENFORCE_DELETES", "maybe"},
		"buffer": {"OWNPAD_SEND_BUFFER", "0"},
		"ttl":    {"OWNPAD_TICKET_TTL", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env[0], env[1])

			_, err := Load("")
			require.Error(t, err)
			require.Contains(t, err.Error(), env[0])
		})
	}
}
