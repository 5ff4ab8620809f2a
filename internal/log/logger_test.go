package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("", false))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", true))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN", true))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud", true))
}

func TestProductionWritesJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := WithComponent(newLogger(&buf, "production", "info"), "auth")
	logger.Debug().Msg("hidden")
	logger.Info().Str("username", "alice").Msg("user registered")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "production", event["env"])
	assert.Equal(t, "auth", event["component"])
	assert.Equal(t, "alice", event["username"])
	assert.Equal(t, "user registered", event["message"])
}
