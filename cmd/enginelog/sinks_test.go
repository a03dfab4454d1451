package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

func TestBuildSinksConsoleAndJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	var console bytes.Buffer

	sinks, err := buildSinks(sinkConfig{Console: true, JSONL: path}, &console, nil)
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "console", logging.SinkName(sinks[0]))
	assert.Equal(t, "jsonl", logging.SinkName(sinks[1]))

	event := &logging.Event{Seq: 1, Severity: api.SeverityWarning, Message: "disk almost full"}
	for _, s := range sinks {
		require.NoError(t, s.Write(event))
		require.NoError(t, s.Close())
	}

	assert.Contains(t, console.String(), "disk almost full")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got logging.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &got))
	assert.Equal(t, "disk almost full", got.Message)
}

func TestBuildSinksWrapsWithFilter(t *testing.T) {
	var console bytes.Buffer
	sinks, err := buildSinks(sinkConfig{Console: true, Filter: "level >= WARNING"}, &console, nil)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "console", logging.SinkName(sinks[0]))

	require.NoError(t, sinks[0].Write(&logging.Event{Severity: api.SeverityInfo, Message: "quiet"}))
	require.NoError(t, sinks[0].Write(&logging.Event{Severity: api.SeverityError, Message: "loud"}))
	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")
}

func TestBuildSinksInvalidFilterFails(t *testing.T) {
	_, err := buildSinks(sinkConfig{JSONL: filepath.Join(t.TempDir(), "e.jsonl"), Filter: "level >="}, &bytes.Buffer{}, nil)
	require.ErrorIs(t, err, ErrCreateSink)
	require.ErrorIs(t, err, logging.ErrCompileFilter)
}

func TestBuildSinksDatabase(t *testing.T) {
	sinks, err := buildSinks(sinkConfig{DB: filepath.Join(t.TempDir(), "engine.db")}, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "sqlite", logging.SinkName(sinks[0]))
	require.NoError(t, sinks[0].Close())
}
