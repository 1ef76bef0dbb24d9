package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"resolvex/backend/internal/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProdIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("prod", &buf)

	l.Debug().Msg("hidden")
	l.Info().Uint("complaint_id", 42).Msg("escalated")

	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "escalated", line["message"])
	assert.EqualValues(t, 42, line["complaint_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewWithWriter_DevIsDebug(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("dev", &buf)

	l.Debug().Msg("visible")

	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
	assert.Contains(t, buf.String(), "visible")
}
