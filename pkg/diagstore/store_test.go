package diagstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "diag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(seq uint64, sev api.Severity, message string) *logging.Event {
	return &logging.Event{
		Timestamp: time.Date(2026, 10, 16, 9, 0, int(seq), 0, time.UTC),
		Seq:       seq,
		EngineID:  "engine-test",
		Severity:  sev,
		Message:   message,
	}
}

func TestStoreRoundTripKeepsFields(t *testing.T) {
	s := openTestStore(t)

	ev := record(1, api.SeverityError, "build failed")
	ev.URN = "urn:pkg:foo"
	ev.StreamID = 5
	ev.Source = &logging.Source{Transport: "rpc", PID: 12}
	require.NoError(t, s.Write(ev))

	got, err := s.Query(context.Background(), QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.LogEvent(), got[0].LogEvent())
	assert.Equal(t, ev.Seq, got[0].Seq)
	assert.True(t, ev.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, 12, got[0].Source.PID)
}

func TestStoreSkipsEphemeral(t *testing.T) {
	s := openTestStore(t)

	ev := record(1, api.SeverityInfo, "progress 10%")
	ev.Ephemeral = true
	require.NoError(t, s.Write(ev))
	require.NoError(t, s.Write(record(2, api.SeverityInfo, "done")))

	got, err := s.Query(context.Background(), QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "done", got[0].Message)
}

func TestStoreQueryFilters(t *testing.T) {
	s := openTestStore(t)

	a := record(1, api.SeverityDebug, "a")
	a.URN = "urn:pkg:a"
	b := record(2, api.SeverityWarning, "b")
	b.URN = "urn:pkg:a"
	b.StreamID = 9
	c := record(3, api.SeverityError, "c")
	for _, ev := range []*logging.Event{a, b, c} {
		require.NoError(t, s.Write(ev))
	}

	ctx := context.Background()

	got, err := s.Query(ctx, QueryOptions{URN: "urn:pkg:a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, messages(got))

	got, err = s.Query(ctx, QueryOptions{MinSeverity: api.SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, messages(got))

	got, err = s.Query(ctx, QueryOptions{StreamID: 9})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, messages(got))

	got, err = s.Query(ctx, QueryOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, messages(got), "limit keeps the newest, oldest first")
}

func TestStoreKeepsEventsAcrossEngineRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.db")

	// a restarted engine with a fixed ID numbers its events from 1 again
	for _, message := range []string{"first run", "second run"} {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Write(record(1, api.SeverityInfo, message)))
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Query(context.Background(), QueryOptions{EngineID: "engine-test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first run", "second run"}, messages(got))
}

func TestStoreQuerySinceSubSecond(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 10, 16, 9, 0, 5, 0, time.UTC)
	early := record(1, api.SeverityInfo, "early")
	early.Timestamp = base.Add(-500 * time.Millisecond)
	half := record(2, api.SeverityInfo, "half")
	half.Timestamp = base.Add(500 * time.Millisecond)
	exact := record(3, api.SeverityInfo, "exact")
	exact.Timestamp = base.Add(time.Second)
	for _, ev := range []*logging.Event{early, half, exact} {
		require.NoError(t, s.Write(ev))
	}

	got, err := s.Query(context.Background(), QueryOptions{Since: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"half", "exact"}, messages(got))

	got, err = s.Query(context.Background(), QueryOptions{Since: base.Add(600 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, []string{"exact"}, messages(got))
}

func messages(events []*logging.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Message)
	}
	return out
}
