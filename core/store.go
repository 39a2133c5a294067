package core

// store.go – durable state store. Two tables: processed_events for dedup,
// block_cursors for recovery. Backed by SQLite in WAL mode so the journal
// survives a crash without losing an acknowledged write.

import (
	"database/sql"
	"fmt"
	"math/big"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DurableStore is the persistence surface every pipeline shares. All
// operations are synchronous and atomic; implementations must be safe for
// concurrent use by multiple streams (I1/I2).
type DurableStore interface {
	IsProcessed(stream StreamID, nonce *big.Int, kind EventKind) (bool, error)
	MarkProcessed(stream StreamID, nonce *big.Int, kind EventKind, destTxHash string) error
	GetCursor(stream StreamID) (uint64, error)
	SetCursor(stream StreamID, block uint64) error
	ListProcessed(stream StreamID) ([]ProcessedMark, error)
	Close() error
}

// sqliteStore is the production DurableStore.
type sqliteStore struct {
	db  *sql.DB
	log *logrus.Entry

	// mu serialises writes to a given stream's cursor against concurrent
	// readers; SQLite's own WAL locking already protects the file, this
	// mutex just avoids read-modify-write races in SetCursor's MAX guard.
	mu sync.Mutex
}

// OpenStore opens (creating if absent) the SQLite-backed durable store at
// path and ensures its schema exists.
func OpenStore(path string, log *logrus.Logger) (DurableStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &DurabilityError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: single writer, avoids SQLITE_BUSY storms

	s := &sqliteStore{db: db, log: log.WithField("component", "store")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, &DurabilityError{Op: "migrate", Err: err}
	}
	s.log.WithField("path", path).Info("durable store opened")
	return s, nil
}

func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS processed_events (
	stream_id    TEXT NOT NULL,
	nonce        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	dest_tx_hash TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	PRIMARY KEY (stream_id, nonce, kind)
);
CREATE TABLE IF NOT EXISTS block_cursors (
	stream_id  TEXT PRIMARY KEY,
	last_block INTEGER NOT NULL
);
`)
	return err
}

func (s *sqliteStore) IsProcessed(stream StreamID, nonce *big.Int, kind EventKind) (bool, error) {
	streamID, nonceStr, kindStr := dedupKey(stream, nonce, kind)
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM processed_events WHERE stream_id = ? AND nonce = ? AND kind = ?`,
		streamID, nonceStr, kindStr,
	).Scan(&n)
	if err != nil {
		return false, &DurabilityError{Op: "isProcessed", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStore) MarkProcessed(stream StreamID, nonce *big.Int, kind EventKind, destTxHash string) error {
	streamID, nonceStr, kindStr := dedupKey(stream, nonce, kind)
	// INSERT OR IGNORE: on primary-key collision the caller simply treats
	// the event as already done, per §4.1.
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed_events (stream_id, nonce, kind, dest_tx_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		streamID, nonceStr, kindStr, destTxHash, time.Now().UTC(),
	)
	if err != nil {
		return &DurabilityError{Op: "markProcessed", Err: err}
	}
	return nil
}

func (s *sqliteStore) GetCursor(stream StreamID) (uint64, error) {
	var last int64
	err := s.db.QueryRow(`SELECT last_block FROM block_cursors WHERE stream_id = ?`, string(stream)).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &DurabilityError{Op: "getCursor", Err: err}
	}
	return uint64(last), nil
}

// SetCursor upserts the stream's cursor. Implementations MAY reject a
// decrease (I2); this one guards it defensively even though callers must
// never pass one.
func (s *sqliteStore) SetCursor(stream StreamID, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetCursor(stream)
	if err != nil {
		return err
	}
	if block < current {
		return &DurabilityError{Op: "setCursor", Err: fmt.Errorf("refusing cursor regression for %s: %d < %d", stream, block, current)}
	}
	_, err = s.db.Exec(
		`INSERT INTO block_cursors (stream_id, last_block) VALUES (?, ?)
		 ON CONFLICT(stream_id) DO UPDATE SET last_block = excluded.last_block`,
		string(stream), int64(block),
	)
	if err != nil {
		return &DurabilityError{Op: "setCursor", Err: err}
	}
	return nil
}

func (s *sqliteStore) ListProcessed(stream StreamID) ([]ProcessedMark, error) {
	rows, err := s.db.Query(
		`SELECT nonce, kind, dest_tx_hash, created_at FROM processed_events WHERE stream_id = ? ORDER BY created_at ASC`,
		string(stream),
	)
	if err != nil {
		return nil, &DurabilityError{Op: "listProcessed", Err: err}
	}
	defer rows.Close()

	var out []ProcessedMark
	for rows.Next() {
		var nonceStr, kind, destTxHash string
		var createdAt time.Time
		if err := rows.Scan(&nonceStr, &kind, &destTxHash, &createdAt); err != nil {
			return nil, &DurabilityError{Op: "listProcessed", Err: err}
		}
		nonce, ok := new(big.Int).SetString(nonceStr, 10)
		if !ok {
			return nil, &DurabilityError{Op: "listProcessed", Err: fmt.Errorf("corrupt nonce %q", nonceStr)}
		}
		out = append(out, ProcessedMark{
			Stream:     stream,
			Nonce:      nonce,
			Kind:       EventKind(kind),
			DestTxHash: destTxHash,
			CreatedAt:  createdAt,
		})
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
