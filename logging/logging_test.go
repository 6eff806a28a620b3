package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"deposito-ledger/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("deposit settled", "account_id", "acc-1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "deposit settled", entry["msg"])
	assert.Equal(t, "acc-1", entry["account_id"])
}

func TestNew_Fallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "loud", Format: "xml"}, &buf)

	logger.Debug("hidden")
	logger.Warn("withdrawal rejected", "account_id", "acc-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "withdrawal rejected")
	assert.Contains(t, out, "acc-1")
}
