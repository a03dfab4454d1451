package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/pkg/api"
)

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 2, 23, 14, 30, 0, 0, time.Local)
	event := &Event{
		Timestamp: ts,
		Severity:  api.SeverityError,
		Message:   "build failed",
		URN:       "urn:pkg:foo",
		StreamID:  9,
	}
	assert.Equal(t, "14:30:00 ERROR   [urn:pkg:foo] #9 build failed", FormatEvent(event, "15:04:05"))
}

func TestConsole_PlainOutputSkipsEphemeral(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{TimeFormat: "15:04"})

	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "progress 10%", Ephemeral: true}))
	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "done"}))
	require.NoError(t, c.Close())

	out := buf.String()
	assert.NotContains(t, out, "progress")
	assert.Contains(t, out, "INFO    done\n")
}

func TestConsole_PlainOutputShowEphemeral(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{ShowEphemeral: true})

	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "progress 10%", Ephemeral: true}))
	assert.Contains(t, buf.String(), "progress 10%\n")
}

func TestConsole_TTYStatusLineIsOverwritten(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ConsoleOptions{ForceTTY: true})

	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "progress 10%", Ephemeral: true}))
	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "progress 20%", Ephemeral: true}))
	require.NoError(t, c.Write(&Event{Severity: api.SeverityWarning, Message: "slow mirror"}))

	out := buf.String()
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte(clearLine)), "each status draw and the final line clear the row")
	assert.NotContains(t, out, "progress 10%\n")
	assert.Contains(t, out, "slow mirror\n")

	buf.Reset()
	require.NoError(t, c.Write(&Event{Severity: api.SeverityInfo, Message: "tick", Ephemeral: true}))
	require.NoError(t, c.Close())
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(clearLine)), "close clears a pending status line")
}
