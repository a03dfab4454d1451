package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "v", rec["k"])
}

func TestNewLoggerDefaultsToTextInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "", "")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLoggerRejectsUnknownValues(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "verbose", "text")
	require.ErrorIs(t, err, ErrLogLevel)

	_, err = newLogger(&bytes.Buffer{}, "info", "xml")
	require.ErrorIs(t, err, ErrLogFormat)
}
