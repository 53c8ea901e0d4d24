package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bcast/internal/model"
	logx "bcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the directory database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// AuditEntry records one operator action. Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time
	Action string // submit, start, stop, delete
	Target string // campaign id
	Error  string
	TookMS int64
}

// Store serves directory reads and audit appends over one SQLite file.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("directory path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Contacts returns the whole contact pool with category memberships.
func (s *Store) Contacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, COALESCE(email, '') FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contact
	index := map[string]int{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email); err != nil {
			return nil, err
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := s.db.QueryContext(ctx,
		`SELECT contact_id, category_id FROM contact_categories ORDER BY contact_id, category_id`)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var contactID, categoryID string
		if err := crows.Scan(&contactID, &categoryID); err != nil {
			return nil, err
		}
		if i, ok := index[contactID]; ok {
			out[i].CategoryIDs = append(out[i].CategoryIDs, categoryID)
		}
	}
	return out, crows.Err()
}

// Senders returns all messaging identities, connected or not. Callers filter
// on the connected flag during audience selection.
func (s *Store) Senders(ctx context.Context) ([]model.Sender, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, phone, connected FROM senders ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Sender
	for rows.Next() {
		var m model.Sender
		var connected int
		if err := rows.Scan(&m.ID, &m.Label, &m.Phone, &connected); err != nil {
			return nil, err
		}
		m.Connected = connected != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Templates returns the reusable message bodies.
func (s *Store) Templates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, body FROM templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Body); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Template fetches one template by id.
func (s *Store) Template(ctx context.Context, id string) (model.Template, error) {
	var t model.Template
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, body FROM templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Template{}, fmt.Errorf("template %s: not found", id)
	}
	return t, err
}

// Categories returns the contact grouping labels.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendAudit records an operator action. Audit is observability only; a
// failed append is logged and never propagated to the action itself.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, action, target, err, took_ms) VALUES(?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Action, nullStr(e.Target), nullStr(e.Error), e.TookMS,
	)
	if err != nil {
		s.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
