package ipc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/gocontext-indexd/internal/storage"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

const namespaceSchema = `
CREATE TABLE IF NOT EXISTS work_units (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS in_flight (
    slot INTEGER PRIMARY KEY,
    path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS finished (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    slot INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS crashed (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    slot INTEGER NOT NULL,
    payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_slot ON results(slot, seq);
`

// SQLiteNamespace stores the channels of one build in a SQLite database file
// that the coordinator and every worker process open independently. Each
// operation is a single statement or a short write-first transaction so that
// concurrent processes only contend on SQLite's own write lock.
type SQLiteNamespace struct {
	id   string
	path string
	db   *sql.DB
}

// namespacePath returns the database file of namespace id under dir
func namespacePath(dir, id string) string {
	return filepath.Join(dir, id+".db")
}

// CreateSQLiteNamespace creates a fresh namespace file, discarding any stale
// state left behind by an earlier build with the same id.
func CreateSQLiteNamespace(dir, id string) (*SQLiteNamespace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}
	path := namespacePath(dir, id)
	if err := removeDatabaseFiles(path); err != nil {
		return nil, err
	}
	ns, err := openSQLiteNamespace(id, path)
	if err != nil {
		return nil, err
	}
	if _, err := ns.db.Exec(namespaceSchema); err != nil {
		_ = ns.Close()
		return nil, fmt.Errorf("failed to create namespace schema: %w", err)
	}
	return ns, nil
}

// OpenSQLiteNamespace opens a namespace created by the coordinator
func OpenSQLiteNamespace(dir, id string) (*SQLiteNamespace, error) {
	path := namespacePath(dir, id)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("namespace %s not found: %w", id, err)
	}
	return openSQLiteNamespace(id, path)
}

func openSQLiteNamespace(id, path string) (*SQLiteNamespace, error) {
	db, err := storage.OpenDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", id, err)
	}
	return &SQLiteNamespace{id: id, path: path, db: db}, nil
}

func removeDatabaseFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (n *SQLiteNamespace) ID() string            { return n.id }
func (n *SQLiteNamespace) Queue() WorkQueue      { return sqliteQueue{db: n.db} }
func (n *SQLiteNamespace) Status() StatusChannel { return sqliteStatus{db: n.db} }

func (n *SQLiteNamespace) Results(slot int) (ResultChannel, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return sqliteResults{db: n.db, slot: slot}, nil
}

// Close closes the database handle
func (n *SQLiteNamespace) Close() error {
	return n.db.Close()
}

type sqliteQueue struct {
	db *sql.DB
}

func (q sqliteQueue) Push(units []types.WorkUnit) error {
	ctx := context.Background()
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO work_units (payload) VALUES (?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range units {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to encode work unit %s: %w", u.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, string(payload)); err != nil {
			return fmt.Errorf("failed to enqueue work unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

func (q sqliteQueue) Pop() (types.WorkUnit, bool, error) {
	var payload string
	err := q.db.QueryRow(`
		DELETE FROM work_units
		WHERE seq = (SELECT MIN(seq) FROM work_units)
		RETURNING payload
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return types.WorkUnit{}, false, nil
	}
	if err != nil {
		return types.WorkUnit{}, false, fmt.Errorf("failed to pop work unit: %w", err)
	}

	var unit types.WorkUnit
	if err := json.Unmarshal([]byte(payload), &unit); err != nil {
		return types.WorkUnit{}, false, fmt.Errorf("failed to decode work unit: %w", err)
	}
	return unit, true, nil
}

func (q sqliteQueue) Len() (int, error) {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM work_units`).Scan(&n)
	return n, err
}

func (q sqliteQueue) Clear() error {
	_, err := q.db.Exec(`DELETE FROM work_units`)
	return err
}

type sqliteStatus struct {
	db *sql.DB
}

// inTx runs fn in a transaction. Callers issue a write first so the
// transaction never has to upgrade a read lock held by another process.
func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s sqliteStatus) StartUnit(slot int, path string) error {
	if err := validateSlot(slot); err != nil {
		return err
	}
	return inTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO crashed (path) SELECT path FROM in_flight WHERE slot = ?`, slot); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO in_flight (slot, path) VALUES (?, ?)
			ON CONFLICT(slot) DO UPDATE SET path = excluded.path
		`, slot, path)
		return err
	})
}

func (s sqliteStatus) FinishUnit(slot int) error {
	if err := validateSlot(slot); err != nil {
		return err
	}
	return inTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM in_flight WHERE slot = ?`, slot); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO finished (slot) VALUES (?)`, slot)
		return err
	})
}

func (s sqliteStatus) MarkCrashed(slot int) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO crashed (path) SELECT path FROM in_flight WHERE slot = ?`, slot); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM in_flight WHERE slot = ?`, slot)
		return err
	})
}

func (s sqliteStatus) InFlight() ([]string, error) {
	return queryStrings(s.db, `SELECT path FROM in_flight ORDER BY slot`)
}

func (s sqliteStatus) NextFinished() (int, bool, error) {
	var slot int
	err := s.db.QueryRow(`
		DELETE FROM finished
		WHERE seq = (SELECT MIN(seq) FROM finished)
		RETURNING slot
	`).Scan(&slot)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to pop finished slot: %w", err)
	}
	return slot, true, nil
}

func (s sqliteStatus) Crashed() ([]string, error) {
	return queryStrings(s.db, `SELECT path FROM crashed ORDER BY seq`)
}

func queryStrings(db *sql.DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type sqliteResults struct {
	db   *sql.DB
	slot int
}

func (r sqliteResults) Push(bundle *types.ResultBundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to encode result bundle: %w", err)
	}
	_, err = r.db.Exec(`INSERT INTO results (slot, payload) VALUES (?, ?)`, r.slot, payload)
	return err
}

func (r sqliteResults) Pop() (*types.ResultBundle, bool, error) {
	var payload []byte
	err := r.db.QueryRow(`
		DELETE FROM results
		WHERE seq = (SELECT MIN(seq) FROM results WHERE slot = ?)
		RETURNING payload
	`, r.slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to pop result bundle: %w", err)
	}

	var bundle types.ResultBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, false, fmt.Errorf("failed to decode result bundle: %w", err)
	}
	return &bundle, true, nil
}

func (r sqliteResults) Len() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM results WHERE slot = ?`, r.slot).Scan(&n)
	return n, err
}
