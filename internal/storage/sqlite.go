package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kilupskalvis/orderset/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite implements Backend on a SQLite database file in WAL mode.
// Each transaction pins one pooled connection; writers start with BEGIN IMMEDIATE
// so they serialize on the database's RESERVED lock instead of failing at commit.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database at dbPath and applies pending migrations.
func OpenSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.RunMigrations(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func tableName(collection string) string {
	return `"c_` + collection + `"`
}

// EnsureCollection creates the collection table and registers it.
func (s *SQLite) EnsureCollection(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	table := tableName(name)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			"order" INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			payload JSON NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_` + name + `_order" ON ` + table + `("order", id)`,
	}

	return s.withConn(ctx, "BEGIN IMMEDIATE", func(conn *sql.Conn) error {
		for _, stmt := range stmts {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create collection %s: %w", name, err)
			}
		}
		_, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO collections (name) VALUES (?)`, name)
		return err
	})
}

// withConn runs fn on a dedicated connection inside a transaction opened with begin.
func (s *SQLite) withConn(ctx context.Context, begin string, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, begin); err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return err
	}
	return nil
}

// Begin starts a transaction on a dedicated connection.
func (s *SQLite) Begin(ctx context.Context, writable bool) (Tx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	begin := "BEGIN"
	if writable {
		begin = "BEGIN IMMEDIATE"
	}
	if _, err := conn.ExecContext(ctx, begin); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqliteTx{ctx: ctx, conn: conn, writable: writable, now: s.now}, nil
}

type sqliteTx struct {
	ctx      context.Context
	conn     *sql.Conn
	writable bool
	done     bool
	now      func() time.Time
}

const recordColumns = `id, "order", is_active, payload, created_at, updated_at`

func (t *sqliteTx) check(write bool) error {
	if t.done {
		return ErrTxDone
	}
	if write && !t.writable {
		return ErrReadOnly
	}
	return nil
}

// translateSQLite maps a missing table onto ErrUnknownCollection.
func translateSQLite(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrUnknownCollection, err)
	}
	return err
}

func filterClause(f models.Filter) (string, []any) {
	if f.Active == nil {
		return "", nil
	}
	return " WHERE is_active = ?", []any{*f.Active}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r                  models.Record
		payload            []byte
		created, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Order, &r.IsActive, &payload, &created, &updatedAt); err != nil {
		return nil, err
	}
	r.Payload = payload
	r.CreatedAt = parseTimestamp(created)
	r.UpdatedAt = parseTimestamp(updatedAt)
	return &r, nil
}

func (t *sqliteTx) FindMany(collection string, f models.Filter) ([]*models.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	where, args := filterClause(f)
	rows, err := t.conn.QueryContext(t.ctx,
		`SELECT `+recordColumns+` FROM `+tableName(collection)+where+` ORDER BY "order", id`, args...)
	if err != nil {
		return nil, translateSQLite(err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *sqliteTx) FindOne(collection string, id int64) (*models.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	row := t.conn.QueryRowContext(t.ctx,
		`SELECT `+recordColumns+` FROM `+tableName(collection)+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translateSQLite(err)
	}
	return r, nil
}

func (t *sqliteTx) Count(collection string, f models.Filter) (int, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}
	where, args := filterClause(f)
	var n int
	err := t.conn.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+tableName(collection)+where, args...).Scan(&n)
	if err != nil {
		return 0, translateSQLite(err)
	}
	return n, nil
}

func (t *sqliteTx) Insert(collection string, r *models.Record) (*models.Record, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}
	now := t.now()
	stamp := now.UTC().Format(time.RFC3339Nano)
	res, err := t.conn.ExecContext(t.ctx,
		`INSERT INTO `+tableName(collection)+` ("order", is_active, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		r.Order, r.IsActive, []byte(r.Payload), stamp, stamp,
	)
	if err != nil {
		return nil, translateSQLite(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	stored := r.Clone()
	stored.ID = id
	stored.CreatedAt = parseTimestamp(stamp)
	stored.UpdatedAt = stored.CreatedAt
	return stored, nil
}

func (t *sqliteTx) UpdateOne(collection string, id int64, fields models.Fields) (*models.Record, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}
	sets := []string{"updated_at = ?"}
	args := []any{t.now().UTC().Format(time.RFC3339Nano)}
	if fields.Payload != nil {
		sets = append(sets, "payload = ?")
		args = append(args, []byte(fields.Payload))
	}
	if fields.Order != nil {
		sets = append(sets, `"order" = ?`)
		args = append(args, *fields.Order)
	}
	if fields.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *fields.IsActive)
	}
	args = append(args, id)

	res, err := t.conn.ExecContext(t.ctx,
		`UPDATE `+tableName(collection)+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, translateSQLite(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return t.FindOne(collection, id)
}

func (t *sqliteTx) Delete(collection string, id int64) error {
	if err := t.check(true); err != nil {
		return err
	}
	res, err := t.conn.ExecContext(t.ctx, `DELETE FROM `+tableName(collection)+` WHERE id = ?`, id)
	if err != nil {
		return translateSQLite(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) GetDocument(key string) (*models.Document, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	var (
		body      []byte
		updatedAt string
	)
	err := t.conn.QueryRowContext(t.ctx, `SELECT body, updated_at FROM documents WHERE key = ?`, key).Scan(&body, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Document{Key: key, Body: body, UpdatedAt: parseTimestamp(updatedAt)}, nil
}

func (t *sqliteTx) PutDocument(doc *models.Document) (*models.Document, error) {
	if err := t.check(true); err != nil {
		return nil, err
	}
	stamp := t.now().UTC().Format(time.RFC3339Nano)
	_, err := t.conn.ExecContext(t.ctx,
		"INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at",
		doc.Key, []byte(doc.Body), stamp,
	)
	if err != nil {
		return nil, err
	}
	stored := *doc
	stored.UpdatedAt = parseTimestamp(stamp)
	return &stored, nil
}

func (t *sqliteTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	if _, err := t.conn.ExecContext(t.ctx, "COMMIT"); err != nil {
		return err
	}
	t.done = true
	return t.conn.Close()
}

func (t *sqliteTx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	_, err := t.conn.ExecContext(context.Background(), "ROLLBACK")
	if cerr := t.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
