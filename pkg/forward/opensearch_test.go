package forward

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexCall struct {
	method string
	path   string
	body   map[string]any
}

func newFakeOpenSearch(t *testing.T, status int) (*httptest.Server, func() []indexCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []indexCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		mu.Lock()
		calls = append(calls, indexCall{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception"},"status":400}`)
			return
		}
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []indexCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]indexCall(nil), calls...)
	}
}

func TestIndexName(t *testing.T) {
	ts := time.Date(2026, 1, 2, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	assert.Equal(t, "enginelog-2026.01.03", IndexName("enginelog", ts))
}

func TestOpenSearchSinkIndexesRecord(t *testing.T) {
	srv, calls := newFakeOpenSearch(t, http.StatusCreated)
	sink, err := NewOpenSearchSink(OpenSearchOptions{Addresses: []string{srv.URL}, IndexPrefix: "diag"})
	require.NoError(t, err)

	require.NoError(t, sink.Write(testRecord()))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/diag-2026.10.16/_doc/engine-1-12", got[0].path)
	assert.Equal(t, "build failed", got[0].body["message"])
	assert.Equal(t, "urn:pkg:foo", got[0].body["urn"])
}

func TestOpenSearchSinkSkipsEphemeral(t *testing.T) {
	srv, calls := newFakeOpenSearch(t, http.StatusCreated)
	sink, err := NewOpenSearchSink(OpenSearchOptions{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	event := testRecord()
	event.Ephemeral = true
	require.NoError(t, sink.Write(event))
	assert.Empty(t, calls())
}

func TestOpenSearchSinkReportsErrors(t *testing.T) {
	srv, _ := newFakeOpenSearch(t, http.StatusBadRequest)
	sink, err := NewOpenSearchSink(OpenSearchOptions{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	err = sink.Write(testRecord())
	require.ErrorIs(t, err, ErrIndex)
}

func TestNewOpenSearchSinkValidates(t *testing.T) {
	_, err := NewOpenSearchSink(OpenSearchOptions{})
	require.ErrorIs(t, err, ErrConfig)
}
