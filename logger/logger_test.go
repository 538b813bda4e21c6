package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"user_id", 7,
		"password", "hunter2",
		"csrf_token", "abc",
		"Session_Secret", "s3",
		"dangling",
	})

	assert.Equal(t, []interface{}{
		"user_id", 7,
		"password", "[REDACTED]",
		"csrf_token", "[REDACTED]",
		"Session_Secret", "[REDACTED]",
		"dangling",
	}, out)
}

func TestNew_TestModeIsNop(t *testing.T) {
	l, err := New("test")
	require.NoError(t, err)
	l.Info("ignored", "k", "v")
	l.With("component", "x").Warn("ignored")
}
