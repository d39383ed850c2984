package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, same as the teacher's internal/database package
)

// SQLiteBackend persists each flushed batch into one SQLite table per
// Datum title, creating the table from the first Datum's field set the
// way the schema-discipline rule in spec.md §4.C implies: "the set of
// field names and their types of the first recorded Datum ... defines the
// schema". Non-scalar field values (vectors, maps, blobs) are msgpack-
// encoded into a BLOB column, grounded on the teacher's use of
// vmihailenco/msgpack for wire encoding.
type SQLiteBackend struct {
	mu      sync.Mutex
	db      *sql.DB
	log     zerolog.Logger
	created map[string]bool
}

// NewSQLiteBackend opens (creating if absent) a SQLite database at path
// in WAL mode, mirroring the teacher's buildConnectionString profile
// defaults for a standard (non-ledger, non-cache) workload.
func NewSQLiteBackend(path string, log zerolog.Logger) (*SQLiteBackend, error) {
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlite backend %s: %w", path, err)
	}
	return &SQLiteBackend{
		db:      db,
		log:     log.With().Str("component", "sqlite_backend").Logger(),
		created: make(map[string]bool),
	}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

func (s *SQLiteBackend) Notify(batch []*Datum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTitle := make(map[string][]*Datum)
	order := make([]string, 0)
	for _, d := range batch {
		if _, ok := byTitle[d.Title]; !ok {
			order = append(order, d.Title)
		}
		byTitle[d.Title] = append(byTitle[d.Title], d)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, title := range order {
		rows := byTitle[title]
		if !s.created[title] {
			if err := createTable(tx, title, rows[0]); err != nil {
				tx.Rollback()
				return err
			}
			s.created[title] = true
		}
		if err := insertRows(tx, title, rows); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func createTable(tx *sql.Tx, title string, sample *Datum) error {
	cols := make([]string, 0, len(sample.Fields))
	for _, f := range sample.Fields {
		cols = append(cols, fmt.Sprintf("%q %s", f.Name, sqlColumnType(f.Value)))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", title, strings.Join(cols, ", "))
	_, err := tx.Exec(stmt)
	if err != nil {
		return fmt.Errorf("create table %s: %w", title, err)
	}
	return nil
}

func insertRows(tx *sql.Tx, title string, rows []*Datum) error {
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(rows[0].Fields))
	placeholders := make([]string, 0, len(rows[0].Fields))
	for _, f := range rows[0].Fields {
		names = append(names, fmt.Sprintf("%q", f.Name))
		placeholders = append(placeholders, "?")
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", title, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	prepared, err := tx.Prepare(stmt)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", title, err)
	}
	defer prepared.Close()

	for _, d := range rows {
		args := make([]any, 0, len(d.Fields))
		for _, f := range d.Fields {
			v, err := sqlValue(f.Value)
			if err != nil {
				return fmt.Errorf("encode field %s.%s: %w", title, f.Name, err)
			}
			args = append(args, v)
		}
		if _, err := prepared.Exec(args...); err != nil {
			return fmt.Errorf("insert %s: %w", title, err)
		}
	}
	return nil
}

func sqlColumnType(v any) string {
	switch v.(type) {
	case int, int64, uint64, bool:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case string, uuid.UUID:
		return "TEXT"
	case []byte:
		return "BLOB"
	default:
		return "BLOB"
	}
}

func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case int, int64, uint64, float32, float64, string, []byte, nil:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case uuid.UUID:
		return x.String(), nil
	default:
		b, err := msgpack.Marshal(x)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
