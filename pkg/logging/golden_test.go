package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/pkg/api"
)

func TestEvent_GoldenFull(t *testing.T) {
	event := &Event{
		Timestamp: time.Date(2026, 2, 23, 14, 30, 0, 123000000, time.UTC),
		Seq:       42,
		EngineID:  "engine-9f8e7d6c",
		Severity:  api.SeverityError,
		Message:   "build failed",
		URN:       "urn:pkg:foo",
		StreamID:  12,
		Ephemeral: true,
		Source:    &Source{Transport: "rpc", Conn: "conn-1", PID: 4242},
	}

	got, err := json.Marshal(event)
	require.NoError(t, err)

	goldenPath := filepath.Join("testdata", "event_full.golden")
	if os.Getenv("UPDATE_GOLDEN") != "" {
		os.MkdirAll("testdata", 0755)
		os.WriteFile(goldenPath, append(got, '\n'), 0644)
		t.Skip("golden file updated")
	}

	expected, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "golden file missing; run with UPDATE_GOLDEN=1 to create")

	assert.JSONEq(t, string(expected), string(got))
}

func TestEvent_GoldenMinimal(t *testing.T) {
	event := &Event{
		Timestamp: time.Date(2026, 2, 23, 14, 30, 0, 0, time.UTC),
		Seq:       1,
		EngineID:  "engine-a1b2c3d4",
		Severity:  api.SeverityInfo,
		Message:   "",
	}

	got, err := json.Marshal(event)
	require.NoError(t, err)

	goldenPath := filepath.Join("testdata", "event_minimal.golden")
	if os.Getenv("UPDATE_GOLDEN") != "" {
		os.MkdirAll("testdata", 0755)
		os.WriteFile(goldenPath, append(got, '\n'), 0644)
		t.Skip("golden file updated")
	}

	expected, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "golden file missing; run with UPDATE_GOLDEN=1 to create")

	assert.JSONEq(t, string(expected), string(got))
}
