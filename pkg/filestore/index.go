package filestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lingocore/engine/internal/metrics"
	"github.com/lingocore/engine/pkg/eventstore"
)

// Index mirrors Store.Clock's results into a local SQLite table keyed by
// (user, stream, device), so repeated clock reads on a large tree avoid a
// full directory walk. The JSON tree is always the ground truth: RecordWrite
// only ever reflects a write Save already made to disk, and Reconcile always
// trusts a fresh disk enumeration over whatever the table currently says.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) a sqlite database at path and
// ensures its schema exists.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("filestore: open index: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS device_counts (
	user_id   TEXT NOT NULL,
	stream_id TEXT NOT NULL,
	device_id TEXT NOT NULL,
	count     INTEGER NOT NULL,
	PRIMARY KEY (user_id, stream_id, device_id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("filestore: migrate index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// RecordWrite records that device now has count envelopes persisted for
// (user, stream), called once per envelope Save writes to disk.
func (idx *Index) RecordWrite(user eventstore.UserID, stream eventstore.StreamID, device eventstore.DeviceID, count uint64) error {
	_, err := idx.db.Exec(`
INSERT INTO device_counts (user_id, stream_id, device_id, count) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, stream_id, device_id) DO UPDATE SET count = excluded.count
WHERE excluded.count > device_counts.count`,
		string(user), string(stream), string(device), count)
	return err
}

// Clock returns the side-index's view of the clock for user, without
// touching disk. Callers must treat this as a cache: Reconcile (or a direct
// comparison against Store.Clock) is the only source of truth.
func (idx *Index) Clock(user eventstore.UserID) (eventstore.Clock, error) {
	rows, err := idx.db.Query(`SELECT stream_id, device_id, count FROM device_counts WHERE user_id = ?`, string(user))
	if err != nil {
		return nil, fmt.Errorf("filestore: query index: %w", err)
	}
	defer rows.Close()

	out := make(eventstore.Clock)
	for rows.Next() {
		var stream, device string
		var count uint64
		if err := rows.Scan(&stream, &device, &count); err != nil {
			return nil, fmt.Errorf("filestore: scan index row: %w", err)
		}
		devices, ok := out[eventstore.StreamID(stream)]
		if !ok {
			devices = make(map[eventstore.DeviceID]uint64)
			out[eventstore.StreamID(stream)] = devices
		}
		devices[eventstore.DeviceID(device)] = count
	}
	return out, rows.Err()
}

// Reconcile recomputes the authoritative clock from disk via s.Clock and
// overwrites the side-index to match it exactly, incrementing the drift
// counter whenever the cached value disagreed.
func (idx *Index) Reconcile(s *Store) (eventstore.Clock, error) {
	authoritative, err := s.Clock()
	if err != nil {
		return nil, err
	}
	cached, err := idx.Clock(s.User)
	if err != nil {
		return nil, err
	}
	tx, err := idx.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("filestore: begin reconcile: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM device_counts WHERE user_id = ?`, string(s.User)); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("filestore: clear index: %w", err)
	}
	for stream, devices := range authoritative {
		for device, count := range devices {
			if cached[stream][device] != count {
				metrics.FilestoreIndexDriftTotal.WithLabelValues(string(stream)).Inc()
			}
			if _, err := tx.Exec(`INSERT INTO device_counts (user_id, stream_id, device_id, count) VALUES (?, ?, ?, ?)`,
				string(s.User), string(stream), string(device), count); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("filestore: rewrite index row: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("filestore: commit reconcile: %w", err)
	}
	return authoritative, nil
}
