// Package diagstore persists the engine's diagnostic stream in SQLite.
// Ephemeral events are transient display state and are not stored.
package diagstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/api"
	"github.com/jingkaihe/enginelog/pkg/logging"
	"github.com/jingkaihe/enginelog/pkg/storedb"
)

const storeModule = "diagstore"

func migrations() []storedb.Migration {
	return []storedb.Migration{
		{
			Version: 1,
			Name:    "create_events",
			SQL: `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  engine_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  ts TEXT NOT NULL,
  severity TEXT NOT NULL,
  level INTEGER NOT NULL,
  message TEXT NOT NULL,
  urn TEXT NOT NULL DEFAULT '',
  stream_id INTEGER NOT NULL DEFAULT 0,
  source_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_urn ON events(urn);
CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_engine_seq ON events(engine_id, seq);
`,
		},
		{
			// seq restarts with every engine run, so (engine_id, seq) is not
			// unique across restarts. ts_ns orders by time; RFC3339Nano text
			// does not.
			Version: 2,
			Name:    "events_ts_ns",
			SQL: `
DROP INDEX IF EXISTS idx_events_engine_seq;
ALTER TABLE events ADD COLUMN ts_ns INTEGER NOT NULL DEFAULT 0;
UPDATE events SET ts_ns = CAST(ROUND((julianday(ts) - 2440587.5) * 86400000) AS INTEGER) * 1000000;
CREATE INDEX IF NOT EXISTS idx_events_engine_seq ON events(engine_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ns);
`,
		},
	}
}

// Store is a Sink that keeps non-ephemeral records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := storedb.Open(storedb.OpenOptions{
		Path:       path,
		Module:     storeModule,
		Migrations: migrations(),
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Write inserts event unless it is ephemeral.
func (s *Store) Write(event *logging.Event) error {
	if event.Ephemeral {
		return nil
	}
	var source sql.NullString
	if event.Source != nil {
		b, err := json.Marshal(event.Source)
		if err != nil {
			return errx.Wrap(ErrInsert, err)
		}
		source = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO events (engine_id, seq, ts, ts_ns, severity, level, message, urn, stream_id, source_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EngineID, event.Seq, event.Timestamp.UTC().Format(time.RFC3339Nano), event.Timestamp.UnixNano(),
		string(event.Severity), event.Severity.Rank(), event.Message, event.URN, event.StreamID, source,
	)
	if err != nil {
		return errx.Wrap(ErrInsert, err)
	}
	return nil
}

// QueryOptions narrows a Query. Zero fields do not filter.
type QueryOptions struct {
	EngineID    string
	URN         string
	StreamID    int64
	MinSeverity api.Severity
	Since       time.Time
	// Limit keeps the most recent N matches; results are still returned
	// oldest first.
	Limit int
}

// Query returns stored records in engine order.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]*logging.Event, error) {
	var where []string
	var args []interface{}
	if opts.EngineID != "" {
		where = append(where, "engine_id = ?")
		args = append(args, opts.EngineID)
	}
	if opts.URN != "" {
		where = append(where, "urn = ?")
		args = append(args, opts.URN)
	}
	if opts.StreamID != 0 {
		where = append(where, "stream_id = ?")
		args = append(args, opts.StreamID)
	}
	if opts.MinSeverity != "" {
		where = append(where, "level >= ?")
		args = append(args, opts.MinSeverity.Rank())
	}
	if !opts.Since.IsZero() {
		where = append(where, "ts_ns >= ?")
		args = append(args, opts.Since.UnixNano())
	}

	query := `SELECT engine_id, seq, ts, severity, message, urn, stream_id, source_json FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errx.Wrap(ErrQuery, err)
	}
	defer rows.Close()

	var events []*logging.Event
	for rows.Next() {
		var (
			ev     logging.Event
			ts     string
			sev    string
			source sql.NullString
		)
		if err := rows.Scan(&ev.EngineID, &ev.Seq, &ts, &sev, &ev.Message, &ev.URN, &ev.StreamID, &source); err != nil {
			return nil, errx.Wrap(ErrQuery, err)
		}
		ev.Severity = api.Severity(sev)
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errx.Wrap(ErrQuery, err)
		}
		if source.Valid {
			ev.Source = &logging.Source{}
			if err := json.Unmarshal([]byte(source.String), ev.Source); err != nil {
				return nil, errx.Wrap(ErrQuery, err)
			}
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrQuery, err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
