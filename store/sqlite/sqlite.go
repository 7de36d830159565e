/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements worktime.EventStore, worktime.MembershipStore and
  ledger.Store on SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  work_events:     Immutable per-(project,user) status-change log.
                   No UPDATE, no DELETE - append only. The AUTOINCREMENT
                   seq column is the tie-break for equal occurred_at.
  project_members: Cached work state, written only together with an
                   event append (same transaction, CAS on status).
  requirements:    Priced scope items; soft-deleted via deleted_at.
                   hourly_rate and amount are sealed by the codec.
  milestones:      Owned wholesale by their requirement; every set change
                   is delete-all-then-insert inside the caller's tx.
  project_totals:  One encrypted running total per project, written only
                   through UpdateTotal.

CONCURRENCY:
  Event appends re-check the cached status inside their transaction and
  fail with engine.ErrConcurrentModification when it moved. UpdateTotal
  holds a transaction across the read-modify-write, so concurrent deltas
  serialize instead of losing each other. A process mutex backs both
  paths because the amounts must round-trip through the codec in Go,
  not in SQL.

WAL MODE:
  Opened with WAL so readers don't block on the single writer.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/engine"
	"github.com/lumencrm/ledger-engine/ledger"
	"github.com/lumencrm/ledger-engine/pricing"
	"github.com/lumencrm/ledger-engine/worktime"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	codec *codec.Codec
	mu    sync.Mutex
}

var (
	_ worktime.EventStore      = (*Store)(nil)
	_ worktime.MembershipStore = (*Store)(nil)
	_ ledger.Store             = (*Store)(nil)
)

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database. The codec seals monetary columns at rest.
func New(dbPath string, c *codec.Codec) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, codec: c}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Work-status event log (append-only)
	CREATE TABLE IF NOT EXISTS work_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_work_events_key
		ON work_events(project_id, user_id, occurred_at, seq);

	-- Cached member work state (written only with an event append)
	CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT,
		ended_at TEXT,
		done_notes TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, user_id)
	);

	-- Requirements (soft-deleted, monetary columns sealed)
	CREATE TABLE IF NOT EXISTS requirements (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		requirement_type TEXT NOT NULL,
		pricing_type TEXT NOT NULL,
		estimated_hours TEXT,
		hourly_rate TEXT,
		amount TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_requirements_project
		ON requirements(project_id, deleted_at);

	-- Milestones (owned wholesale by their requirement)
	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		requirement_id TEXT NOT NULL REFERENCES requirements(id),
		title TEXT NOT NULL,
		due_date TEXT,
		amount TEXT NOT NULL,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_milestones_requirement
		ON milestones(requirement_id, position);

	-- Encrypted running total, one row per project
	CREATE TABLE IF NOT EXISTS project_totals (
		project_id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const timeFormat = time.RFC3339Nano

// =============================================================================
// WORK EVENTS (worktime.EventStore)
// =============================================================================

// Append writes the event and the cached state in one transaction,
// re-checking the cached status against prev before writing. A stale
// prev means a concurrent append won; the whole write is rolled back.
func (s *Store) Append(ctx context.Context, ev worktime.Event, prev worktime.Status, next worktime.MemberState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM project_members WHERE project_id = ? AND user_id = ?`,
		ev.ProjectID, ev.UserID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = string(worktime.StatusNotStarted)
	case err != nil:
		return err
	}

	if current != string(prev) {
		return engine.ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO work_events (id, project_id, user_id, event_type, occurred_at, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ProjectID, ev.UserID, string(ev.Type),
		ev.OccurredAt.UTC().Format(timeFormat), ev.Note); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, status, started_at, ended_at, done_notes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			done_notes = excluded.done_notes`,
		ev.ProjectID, ev.UserID, string(next.Status),
		nullTime(next.StartedAt), nullTime(next.EndedAt), next.DoneNotes); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Events(ctx context.Context, projectID, userID string) ([]worktime.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, user_id, event_type, occurred_at, note
		 FROM work_events
		 WHERE project_id = ? AND user_id = ?
		 ORDER BY occurred_at, seq`,
		projectID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []worktime.Event
	for rows.Next() {
		var ev worktime.Event
		var typ, occurred string
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.UserID, &typ, &occurred, &ev.Note); err != nil {
			return nil, err
		}
		ev.Type = worktime.EventType(typ)
		if ev.OccurredAt, err = time.Parse(timeFormat, occurred); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) MemberState(ctx context.Context, projectID, userID string) (worktime.MemberState, bool, error) {
	state, err := scanMemberState(s.db.QueryRowContext(ctx,
		`SELECT status, started_at, ended_at, done_notes
		 FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID))
	if err == sql.ErrNoRows {
		return worktime.MemberState{}, false, nil
	}
	if err != nil {
		return worktime.MemberState{}, false, err
	}
	return state, true, nil
}

// =============================================================================
// MEMBERSHIPS (worktime.MembershipStore)
// =============================================================================

func (s *Store) AddMember(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, status)
		 VALUES (?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO NOTHING`,
		projectID, userID, string(worktime.StatusNotStarted))
	return err
}

func (s *Store) Members(ctx context.Context, projectID string) ([]worktime.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, user_id, status, started_at, ended_at, done_notes
		 FROM project_members WHERE project_id = ? ORDER BY user_id`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []worktime.Member
	for rows.Next() {
		var m worktime.Member
		var status string
		var started, ended sql.NullString
		if err := rows.Scan(&m.ProjectID, &m.UserID, &status, &started, &ended, &m.State.DoneNotes); err != nil {
			return nil, err
		}
		m.State.Status = worktime.Status(status)
		if m.State.StartedAt, err = parseNullTime(started); err != nil {
			return nil, err
		}
		if m.State.EndedAt, err = parseNullTime(ended); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// REQUIREMENTS (ledger.RequirementStore)
// =============================================================================

func (s *Store) InsertRequirement(ctx context.Context, r pricing.Requirement) error {
	return s.queries(s.db).insertRequirement(ctx, r)
}

func (s *Store) UpdateRequirement(ctx context.Context, r pricing.Requirement) error {
	return s.queries(s.db).updateRequirement(ctx, r)
}

func (s *Store) SoftDeleteRequirement(ctx context.Context, id string, at time.Time) error {
	return s.queries(s.db).softDeleteRequirement(ctx, id, at)
}

func (s *Store) Requirement(ctx context.Context, id string) (pricing.Requirement, error) {
	return s.queries(s.db).requirement(ctx, id)
}

func (s *Store) LiveRequirements(ctx context.Context, projectID string) ([]pricing.Requirement, error) {
	return s.queries(s.db).liveRequirements(ctx, projectID)
}

// =============================================================================
// PROJECT TOTALS (ledger.TotalStore)
// =============================================================================

func (s *Store) Total(ctx context.Context, projectID string) (string, error) {
	return s.queries(s.db).total(ctx, projectID)
}

// UpdateTotal runs the read-modify-write in its own transaction, held
// for the duration of the callback so concurrent deltas serialize.
func (s *Store) UpdateTotal(ctx context.Context, projectID string, update func(current string) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.queries(tx).updateTotal(ctx, projectID, update); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// TRANSACTIONS (ledger.Store)
// =============================================================================

// WithTx executes fn against a transaction-scoped ledger.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&txStore{queries: s.queries(tx)}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore adapts queries to ledger.Store inside an open transaction.
type txStore struct {
	queries
}

var _ ledger.Store = (*txStore)(nil)

func (t *txStore) InsertRequirement(ctx context.Context, r pricing.Requirement) error {
	return t.insertRequirement(ctx, r)
}

func (t *txStore) UpdateRequirement(ctx context.Context, r pricing.Requirement) error {
	return t.updateRequirement(ctx, r)
}

func (t *txStore) SoftDeleteRequirement(ctx context.Context, id string, at time.Time) error {
	return t.softDeleteRequirement(ctx, id, at)
}

func (t *txStore) Requirement(ctx context.Context, id string) (pricing.Requirement, error) {
	return t.requirement(ctx, id)
}

func (t *txStore) LiveRequirements(ctx context.Context, projectID string) ([]pricing.Requirement, error) {
	return t.liveRequirements(ctx, projectID)
}

func (t *txStore) Total(ctx context.Context, projectID string) (string, error) {
	return t.total(ctx, projectID)
}

func (t *txStore) UpdateTotal(ctx context.Context, projectID string, update func(string) (string, error)) error {
	return t.updateTotal(ctx, projectID, update)
}

func (t *txStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(t) // already inside the outer transaction
}

// =============================================================================
// QUERIES - shared between Store (db) and txStore (tx)
// =============================================================================

type queries struct {
	q     dbtx
	codec *codec.Codec
}

func (s *Store) queries(q dbtx) queries {
	return queries{q: q, codec: s.codec}
}

func (qr queries) insertRequirement(ctx context.Context, r pricing.Requirement) error {
	rate, err := qr.encodeOptional(r.HourlyRate)
	if err != nil {
		return err
	}
	amount, err := qr.encodeOptional(r.Amount)
	if err != nil {
		return err
	}

	if _, err := qr.q.ExecContext(ctx,
		`INSERT INTO requirements
		 (id, project_id, requirement_type, pricing_type, estimated_hours,
		  hourly_rate, amount, created_at, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		r.ID, r.ProjectID, string(r.Type), string(r.Pricing),
		nullDecimal(r.EstimatedHours), rate, amount,
		r.CreatedAt.UTC().Format(timeFormat), r.UpdatedAt.UTC().Format(timeFormat)); err != nil {
		return err
	}
	return qr.insertMilestones(ctx, r.ID, r.Milestones)
}

func (qr queries) updateRequirement(ctx context.Context, r pricing.Requirement) error {
	rate, err := qr.encodeOptional(r.HourlyRate)
	if err != nil {
		return err
	}
	amount, err := qr.encodeOptional(r.Amount)
	if err != nil {
		return err
	}

	res, err := qr.q.ExecContext(ctx,
		`UPDATE requirements SET
			requirement_type = ?, pricing_type = ?, estimated_hours = ?,
			hourly_rate = ?, amount = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		string(r.Type), string(r.Pricing), nullDecimal(r.EstimatedHours),
		rate, amount, r.UpdatedAt.UTC().Format(timeFormat), r.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return engine.ErrNotFound
	}

	// Wholesale replacement: drop the old set, insert the new one.
	if _, err := qr.q.ExecContext(ctx,
		`DELETE FROM milestones WHERE requirement_id = ?`, r.ID); err != nil {
		return err
	}
	return qr.insertMilestones(ctx, r.ID, r.Milestones)
}

func (qr queries) insertMilestones(ctx context.Context, requirementID string, ms []pricing.Milestone) error {
	for i, m := range ms {
		encoded, err := qr.codec.Encode(m.Amount)
		if err != nil {
			return err
		}
		if _, err := qr.q.ExecContext(ctx,
			`INSERT INTO milestones (id, requirement_id, title, due_date, amount, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, requirementID, m.Title, nullTime(m.DueDate), encoded, i); err != nil {
			return err
		}
	}
	return nil
}

func (qr queries) softDeleteRequirement(ctx context.Context, id string, at time.Time) error {
	res, err := qr.q.ExecContext(ctx,
		`UPDATE requirements SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at.UTC().Format(timeFormat), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (qr queries) requirement(ctx context.Context, id string) (pricing.Requirement, error) {
	r, err := qr.scanRequirement(qr.q.QueryRowContext(ctx,
		`SELECT id, project_id, requirement_type, pricing_type, estimated_hours,
			hourly_rate, amount, created_at, updated_at, deleted_at
		 FROM requirements WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return pricing.Requirement{}, engine.ErrNotFound
	}
	if err != nil {
		return pricing.Requirement{}, err
	}

	if r.Milestones, err = qr.milestones(ctx, r.ID); err != nil {
		return pricing.Requirement{}, err
	}
	return r, nil
}

func (qr queries) liveRequirements(ctx context.Context, projectID string) ([]pricing.Requirement, error) {
	rows, err := qr.q.QueryContext(ctx,
		`SELECT id, project_id, requirement_type, pricing_type, estimated_hours,
			hourly_rate, amount, created_at, updated_at, deleted_at
		 FROM requirements
		 WHERE project_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Requirement
	for rows.Next() {
		r, err := qr.scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Milestones, err = qr.milestones(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (qr queries) milestones(ctx context.Context, requirementID string) ([]pricing.Milestone, error) {
	rows, err := qr.q.QueryContext(ctx,
		`SELECT id, requirement_id, title, due_date, amount
		 FROM milestones WHERE requirement_id = ? ORDER BY position`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Milestone
	for rows.Next() {
		var m pricing.Milestone
		var due sql.NullString
		var encoded string
		if err := rows.Scan(&m.ID, &m.RequirementID, &m.Title, &due, &encoded); err != nil {
			return nil, err
		}
		if m.DueDate, err = parseNullTime(due); err != nil {
			return nil, err
		}
		amount := qr.codec.Decode(encoded)
		if amount == nil {
			return nil, engine.ErrDecode // sealed column present but unreadable
		}
		m.Amount = *amount
		out = append(out, m)
	}
	return out, rows.Err()
}

func (qr queries) total(ctx context.Context, projectID string) (string, error) {
	var encoded string
	err := qr.q.QueryRowContext(ctx,
		`SELECT amount FROM project_totals WHERE project_id = ?`, projectID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return encoded, err
}

func (qr queries) updateTotal(ctx context.Context, projectID string, update func(string) (string, error)) error {
	current, err := qr.total(ctx, projectID)
	if err != nil {
		return err
	}
	next, err := update(current)
	if err != nil {
		return err
	}
	if next == current {
		return nil
	}
	_, err = qr.q.ExecContext(ctx,
		`INSERT INTO project_totals (project_id, amount, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
			amount = excluded.amount, updated_at = excluded.updated_at`,
		projectID, next, time.Now().UTC().Format(timeFormat))
	return err
}

// =============================================================================
// SCAN / ENCODE HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func (qr queries) scanRequirement(row rowScanner) (pricing.Requirement, error) {
	var r pricing.Requirement
	var reqType, priceType, created, updated string
	var hours, rate, amount, deleted sql.NullString

	if err := row.Scan(&r.ID, &r.ProjectID, &reqType, &priceType, &hours,
		&rate, &amount, &created, &updated, &deleted); err != nil {
		return pricing.Requirement{}, err
	}

	r.Type = pricing.RequirementType(reqType)
	r.Pricing = pricing.PricingType(priceType)

	var err error
	if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return pricing.Requirement{}, err
	}
	if r.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
		return pricing.Requirement{}, err
	}
	if r.DeletedAt, err = parseNullTime(deleted); err != nil {
		return pricing.Requirement{}, err
	}

	if hours.Valid {
		h, err := decimal.NewFromString(hours.String)
		if err != nil {
			return pricing.Requirement{}, err
		}
		r.EstimatedHours = &h
	}
	if r.HourlyRate, err = qr.decodeOptional(rate); err != nil {
		return pricing.Requirement{}, err
	}
	if r.Amount, err = qr.decodeOptional(amount); err != nil {
		return pricing.Requirement{}, err
	}
	return r, nil
}

// encodeOptional seals a nullable decimal; nil stays SQL NULL.
func (qr queries) encodeOptional(d *decimal.Decimal) (any, error) {
	if d == nil {
		return nil, nil
	}
	return qr.codec.Encode(*d)
}

// decodeOptional opens a nullable sealed column. NULL means "no value
// set"; a present but unreadable value is corruption, not zero.
func (qr queries) decodeOptional(col sql.NullString) (*decimal.Decimal, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	v := qr.codec.Decode(col.String)
	if v == nil {
		return nil, engine.ErrDecode
	}
	return v, nil
}

func scanMemberState(row rowScanner) (worktime.MemberState, error) {
	var state worktime.MemberState
	var status string
	var started, ended sql.NullString

	if err := row.Scan(&status, &started, &ended, &state.DoneNotes); err != nil {
		return worktime.MemberState{}, err
	}
	state.Status = worktime.Status(status)

	var err error
	if state.StartedAt, err = parseNullTime(started); err != nil {
		return worktime.MemberState{}, err
	}
	if state.EndedAt, err = parseNullTime(ended); err != nil {
		return worktime.MemberState{}, err
	}
	return state, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseNullTime(col sql.NullString) (*time.Time, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFormat, col.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
