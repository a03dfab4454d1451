package httpapi

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// streamQuery narrows the live feed. Both parts are optional.
type streamQuery struct {
	minSeverity api.Severity
	filter      *logging.Filter
}

func parseStreamQuery(r *http.Request) (streamQuery, error) {
	var q streamQuery
	values := r.URL.Query()
	if v := values.Get("min_severity"); v != "" {
		sev, err := api.ParseSeverity(v)
		if err != nil {
			return q, errx.With(ErrBadQuery, " min_severity: %w", err)
		}
		q.minSeverity = sev
	}
	if v := values.Get("filter"); v != "" {
		f, err := logging.CompileFilter(v)
		if err != nil {
			return q, errx.With(ErrBadQuery, " filter: %w", err)
		}
		q.filter = f
	}
	return q, nil
}

func (q streamQuery) match(event *logging.Event) bool {
	if q.minSeverity != "" && event.Severity.Rank() < q.minSeverity.Rank() {
		return false
	}
	if q.filter != nil {
		ok, err := q.filter.Match(event)
		return err == nil && ok
	}
	return true
}

func (rt *router) handleStream(w http.ResponseWriter, r *http.Request) {
	q, err := parseStreamQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", err)
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		rt.serveStreamConn(conn, q)
	}).ServeHTTP(w, r)
}

func (rt *router) serveStreamConn(conn *websocket.Conn, q streamQuery) {
	defer conn.Close()

	sub, err := rt.opts.Broadcaster.Subscribe(rt.opts.StreamBuffer)
	if err != nil {
		_ = websocket.Message.Send(conn, "[stream unavailable] "+err.Error())
		return
	}
	defer sub.Close()
	defer func() {
		if n := sub.Dropped(); n > 0 {
			rt.logger.Warn("stream client missed events", "dropped", n)
		}
	}()

	// The peer never sends anything; a read returning means it went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if !q.match(event) {
				continue
			}
			if err := websocket.JSON.Send(conn, event); err != nil {
				rt.logger.Debug("stream client write failed", "error", err)
				return
			}
		}
	}
}
