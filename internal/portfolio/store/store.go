//
// Package store handles SQLite persistence of portfolio templates,
// learners' copies and panel preferences.
//
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/nsip/otf-reporter/internal/portfolio"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // SQLite driver.
)

//
// Store wraps SQLite access; it implements portfolio.Store and portfolio.Preferences.
//
type Store struct {
	db *sql.DB
}

//
// Open opens or creates the SQLite database and applies migrations.
//
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps sqlite writes serialised
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

//
// Close closes the underlying database.
//
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS templates (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			resource_id TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS copies (
			id INTEGER PRIMARY KEY,
			template_key INTEGER NOT NULL,
			kind TEXT NOT NULL,
			owner_key INTEGER NOT NULL,
			course_entry TEXT NOT NULL,
			node_ident TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			copy_date TEXT,
			return_date TEXT,
			deadline TEXT,
			UNIQUE (owner_key, template_key, course_entry, node_ident)
		);`,
		`CREATE TABLE IF NOT EXISTS panel_prefs (
			owner_key INTEGER NOT NULL,
			pref_key TEXT NOT NULL,
			is_open INTEGER NOT NULL,
			PRIMARY KEY (owner_key, pref_key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

//
// AddTemplate registers a template, replacing the title and kind of an
// existing template for the same resource.
//
func (s *Store) AddTemplate(ctx context.Context, tpl portfolio.Template) (*portfolio.Template, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (kind, title, resource_id) VALUES (?, ?, ?)
		 ON CONFLICT(resource_id) DO UPDATE SET kind = excluded.kind, title = excluded.title`,
		string(tpl.Kind), tpl.Title, tpl.ResourceID)
	if err != nil {
		return nil, errors.Wrap(err, "insert template")
	}
	return s.TemplateByResource(ctx, tpl.ResourceID)
}

//
// TemplateByResource implements portfolio.Store.
//
func (s *Store) TemplateByResource(ctx context.Context, resourceID string) (*portfolio.Template, error) {
	var tpl portfolio.Template
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, title, resource_id FROM templates WHERE resource_id = ?`, resourceID).
		Scan(&tpl.Key, &kind, &tpl.Title, &tpl.ResourceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query template")
	}
	tpl.Kind = portfolio.Kind(kind)
	return &tpl, nil
}

const copyColumns = `id, template_key, kind, owner_key, course_entry, node_ident, title, status, copy_date, return_date, deadline`

//
// FindCopy implements portfolio.Store.
//
func (s *Store) FindCopy(ctx context.Context, ownerKey, templateKey int64, courseEntry, nodeIdent string) (*portfolio.Copy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+copyColumns+` FROM copies
		 WHERE owner_key = ? AND template_key = ? AND course_entry = ? AND node_ident = ?`,
		ownerKey, templateKey, courseEntry, nodeIdent)
	cp, err := scanCopy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

func (s *Store) copyByKey(ctx context.Context, key int64) (*portfolio.Copy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+copyColumns+` FROM copies WHERE id = ?`, key)
	cp, err := scanCopy(row)
	if err == sql.ErrNoRows {
		return nil, portfolio.ErrNoCopy
	}
	return cp, err
}

//
// AssignCopy implements portfolio.Store. An existing copy is returned unchanged.
//
func (s *Store) AssignCopy(ctx context.Context, ownerKey int64, tpl portfolio.Template, courseEntry, nodeIdent string, deadline *time.Time) (*portfolio.Copy, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO copies (template_key, kind, owner_key, course_entry, node_ident, title, status, copy_date, deadline)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_key, template_key, course_entry, node_ident) DO NOTHING`,
		tpl.Key, string(tpl.Kind), ownerKey, courseEntry, nodeIdent, tpl.Title,
		string(portfolio.StatusOpen), formatTime(&now), formatTime(deadline))
	if err != nil {
		return nil, errors.Wrap(err, "insert copy")
	}
	return s.FindCopy(ctx, ownerKey, tpl.Key, courseEntry, nodeIdent)
}

//
// SetStatus implements portfolio.Store.
//
func (s *Store) SetStatus(ctx context.Context, copyKey int64, status portfolio.Status) (*portfolio.Copy, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE copies SET status = ? WHERE id = ?`, string(status), copyKey); err != nil {
		return nil, errors.Wrap(err, "update copy status")
	}
	return s.copyByKey(ctx, copyKey)
}

//
// SetReturnDate records when the copy was handed back after assessment.
//
func (s *Store) SetReturnDate(ctx context.Context, copyKey int64, at time.Time) (*portfolio.Copy, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE copies SET return_date = ? WHERE id = ?`, formatTime(&at), copyKey); err != nil {
		return nil, errors.Wrap(err, "update copy return date")
	}
	return s.copyByKey(ctx, copyKey)
}

//
// PanelOpen implements portfolio.Preferences.
//
func (s *Store) PanelOpen(ctx context.Context, ownerKey int64, key string) (bool, bool, error) {
	var open int
	err := s.db.QueryRowContext(ctx,
		`SELECT is_open FROM panel_prefs WHERE owner_key = ? AND pref_key = ?`, ownerKey, key).Scan(&open)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, errors.Wrap(err, "query panel preference")
	}
	return open != 0, true, nil
}

//
// SavePanel implements portfolio.Preferences.
//
func (s *Store) SavePanel(ctx context.Context, ownerKey int64, key string, open bool) error {
	v := 0
	if open {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO panel_prefs (owner_key, pref_key, is_open) VALUES (?, ?, ?)
		 ON CONFLICT(owner_key, pref_key) DO UPDATE SET is_open = excluded.is_open`,
		ownerKey, key, v)
	if err != nil {
		return errors.Wrap(err, "save panel preference")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCopy(row scanner) (*portfolio.Copy, error) {
	var cp portfolio.Copy
	var kind, status string
	var copyDate, returnDate, deadline sql.NullString
	err := row.Scan(&cp.Key, &cp.TemplateKey, &kind, &cp.OwnerKey, &cp.CourseEntry, &cp.NodeIdent,
		&cp.Title, &status, &copyDate, &returnDate, &deadline)
	if err != nil {
		return nil, err
	}
	cp.Kind = portfolio.Kind(kind)
	cp.Status = portfolio.Status(status)
	if cp.CopyDate, err = parseTime(copyDate); err != nil {
		return nil, err
	}
	if cp.ReturnDate, err = parseTime(returnDate); err != nil {
		return nil, err
	}
	if cp.Deadline, err = parseTime(deadline); err != nil {
		return nil, err
	}
	return &cp, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, errors.Wrap(err, "parse stored time")
	}
	return &t, nil
}
