package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "tablero/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store.
// It returns (nil, nil) if storage is disabled (empty path).
func Open(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertClient(ctx context.Context, c Client) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients(holded_ref, internal_id, name, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(holded_ref) DO UPDATE SET internal_id=excluded.internal_id, name=excluded.name, updated_at=excluded.updated_at`,
		c.HoldedRef, nullInt(c.InternalID), c.Name, c.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ClientByHoldedRef(ctx context.Context, ref string) (Client, error) {
	if s == nil || s.db == nil {
		return Client{}, ErrDisabled
	}
	var (
		c   Client
		id  sql.NullInt64
		at  string
		err = s.db.QueryRowContext(ctx,
			`SELECT holded_ref, internal_id, name, updated_at FROM clients WHERE holded_ref = ?`, ref,
		).Scan(&c.HoldedRef, &id, &c.Name, &at)
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	if id.Valid {
		c.InternalID = id.Int64
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, at)
	return c, nil
}

func (s *sqliteStore) UpsertService(ctx context.Context, sv Service) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if sv.UpdatedAt.IsZero() {
		sv.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO services(holded_ref, name, recurring, type, updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(holded_ref) DO UPDATE SET name=excluded.name, recurring=excluded.recurring, type=excluded.type, updated_at=excluded.updated_at`,
		sv.HoldedRef, sv.Name, boolInt(sv.Recurring), nullStr(sv.Type), sv.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ServiceByHoldedRef(ctx context.Context, ref string) (Service, error) {
	if s == nil || s.db == nil {
		return Service{}, ErrDisabled
	}
	var (
		sv  Service
		rec int
		typ sql.NullString
		at  string
		err = s.db.QueryRowContext(ctx,
			`SELECT holded_ref, name, recurring, type, updated_at FROM services WHERE holded_ref = ?`, ref,
		).Scan(&sv.HoldedRef, &sv.Name, &rec, &typ, &at)
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Service{}, ErrNotFound
	}
	if err != nil {
		return Service{}, err
	}
	sv.Recurring = rec != 0
	if typ.Valid {
		sv.Type = typ.String
	}
	sv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, at)
	return sv, nil
}

func (s *sqliteStore) PutHolidays(ctx context.Context, country string, year int, days []string, fetchedAt time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	b, err := json.Marshal(days)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO holidays(country, year, days, fetched_at) VALUES(?,?,?,?)
		 ON CONFLICT(country, year) DO UPDATE SET days=excluded.days, fetched_at=excluded.fetched_at`,
		country, year, string(b), fetchedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetHolidays(ctx context.Context, country string, year int) ([]string, time.Time, bool, error) {
	if s == nil || s.db == nil {
		return nil, time.Time{}, false, ErrDisabled
	}
	var (
		raw string
		at  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT days, fetched_at FROM holidays WHERE country = ? AND year = ?`, country, year,
	).Scan(&raw, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, time.Time{}, false, err
	}
	fetchedAt, _ := time.Parse(time.RFC3339Nano, at)
	return days, fetchedAt, true, nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_audit(at, job, client, ok, fail, err, took_ms) VALUES(?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Job, nullStr(e.Client), e.OK, e.Fail, nullStr(e.Error), e.TookMS,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
