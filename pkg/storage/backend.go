package storage

import (
	"database/sql"
	"log"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

type Backend interface {
	Write(p Point) error
	BatchWrite(ps []Point) error
	Apply(records []Record) error
	Delete(x, y float64) error
	Read(x, y float64) (Point, bool)
	LoadAll() ([]Point, error)
	Count() (int, error)
	Close()
	Truncate() error
}

// SQLiteBackend keeps one row per coordinate pair.
type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	query := `
	CREATE TABLE IF NOT EXISTS points (
		x REAL NOT NULL,
		y REAL NOT NULL,
		id INTEGER NOT NULL,
		PRIMARY KEY (x, y)
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init points table")
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		log.Printf("[Store] Warning: failed to set PRAGMA: %v", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Write(p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO points (x, y, id) VALUES (?, ?, ?)", p.X, p.Y, int64(p.ID))
	return errors.Wrap(err, "write point")
}

func (s *SQLiteBackend) BatchWrite(ps []Point) error {
	records := make([]Record, len(ps))
	for i, p := range ps {
		records[i] = Record{Op: OpInsert, Point: p}
	}
	return s.Apply(records)
}

// Apply replays records in order inside a single transaction.
func (s *SQLiteBackend) Apply(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	upsert, err := tx.Prepare("INSERT OR REPLACE INTO points (x, y, id) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare upsert")
	}
	defer upsert.Close()

	del, err := tx.Prepare("DELETE FROM points WHERE x = ? AND y = ?")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare delete")
	}
	defer del.Close()

	for _, rec := range records {
		switch rec.Op {
		case OpInsert:
			_, err = upsert.Exec(rec.Point.X, rec.Point.Y, int64(rec.Point.ID))
		case OpRemove:
			_, err = del.Exec(rec.Point.X, rec.Point.Y)
		default:
			err = errors.Errorf("unknown op %d", rec.Op)
		}
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "apply %s", rec.Op)
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

func (s *SQLiteBackend) Delete(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM points WHERE x = ? AND y = ?", x, y)
	return errors.Wrap(err, "delete point")
}

func (s *SQLiteBackend) Read(x, y float64) (Point, bool) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM points WHERE x = ? AND y = ?", x, y).Scan(&id)
	if err == sql.ErrNoRows {
		return Point{}, false
	}
	if err != nil {
		log.Printf("[Store] DB read error: %v", err)
		return Point{}, false
	}
	return Point{ID: int(id), X: x, Y: y}, true
}

func (s *SQLiteBackend) LoadAll() ([]Point, error) {
	rows, err := s.db.Query("SELECT id, x, y FROM points ORDER BY x ASC, y ASC")
	if err != nil {
		return nil, errors.Wrap(err, "load points")
	}
	defer rows.Close()

	var ps []Point
	for rows.Next() {
		var id int64
		var p Point
		if err := rows.Scan(&id, &p.X, &p.Y); err != nil {
			return nil, errors.Wrap(err, "scan point")
		}
		p.ID = int(id)
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func (s *SQLiteBackend) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM points").Scan(&n)
	return n, errors.Wrap(err, "count points")
}

func (s *SQLiteBackend) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM points")
	return errors.Wrap(err, "truncate points")
}

func (s *SQLiteBackend) Close() {
	s.db.Close()
}
