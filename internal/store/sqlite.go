package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-refinery/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enriched_records (
	raw_lead_id   TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL,
	email         TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	is_verified   INTEGER NOT NULL DEFAULT 0,
	intent_signal TEXT NOT NULL,
	record        TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lead_states (
	raw_lead_id TEXT PRIMARY KEY,
	identity    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'queued',
	error       TEXT NOT NULL DEFAULT '',
	attempts    INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_created_at ON enriched_records(created_at);
CREATE INDEX IF NOT EXISTS idx_records_tenant ON enriched_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_lead_states_status ON lead_states(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec *model.EnrichedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enriched_records (raw_lead_id, job_id, email, tenant_id, is_verified, intent_signal, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(raw_lead_id) DO UPDATE SET
		   job_id = excluded.job_id, email = excluded.email, tenant_id = excluded.tenant_id,
		   is_verified = excluded.is_verified, intent_signal = excluded.intent_signal,
		   record = excluded.record, created_at = excluded.created_at`,
		rec.RawLeadID, rec.JobID, rec.Email, rec.TenantID, rec.IsVerified,
		string(rec.IntentSignal), string(data), rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert record %s", rec.RawLeadID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, rawLeadID string) (*model.EnrichedRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM enriched_records WHERE raw_lead_id = ?`, rawLeadID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", rawLeadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", rawLeadID)
	}
	var rec model.EnrichedRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) FetchAll(ctx context.Context, filter RecordFilter) ([]model.EnrichedRecord, error) {
	query := `SELECT record FROM enriched_records WHERE 1=1`
	var args []any
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.VerifiedOnly {
		query += ` AND is_verified = 1`
	}
	query += ` ORDER BY created_at DESC, raw_lead_id LIMIT ?`
	args = append(args, limitOf(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch records")
	}
	defer rows.Close()

	out := []model.EnrichedRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		var rec model.EnrichedRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: fetch records iterate")
}

func (s *SQLiteStore) EnqueueLeads(ctx context.Context, leads []model.LeadState) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin enqueue")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, enqueueLeadStateSQLite)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare enqueue")
	}
	defer stmt.Close()

	var n int64
	for _, l := range leads {
		args, err := leadStateArgs(l)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: enqueue %s", l.RawLeadID)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: enqueue rows affected")
		}
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit enqueue")
	}
	return n, nil
}

const upsertLeadStateSQLite = `INSERT INTO lead_states (raw_lead_id, identity, status, error, attempts, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(raw_lead_id) DO UPDATE SET
	  identity = excluded.identity, status = excluded.status, error = excluded.error,
	  attempts = excluded.attempts, updated_at = excluded.updated_at`

// enqueueLeadStateSQLite leaves a lead that is already running untouched.
const enqueueLeadStateSQLite = upsertLeadStateSQLite + `
	WHERE lead_states.status <> 'running'`

func (s *SQLiteStore) SetLeadState(ctx context.Context, state model.LeadState) error {
	args, err := leadStateArgs(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertLeadStateSQLite, args...)
	return eris.Wrapf(err, "sqlite: set lead state %s", state.RawLeadID)
}

func (s *SQLiteStore) GetLeadState(ctx context.Context, rawLeadID string) (*model.LeadState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT raw_lead_id, identity, status, error, attempts, updated_at FROM lead_states WHERE raw_lead_id = ?`,
		rawLeadID,
	)
	st, err := scanLeadState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", rawLeadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead state %s", rawLeadID)
	}
	return st, nil
}

func (s *SQLiteStore) ListLeadStates(ctx context.Context, filter LeadFilter) ([]model.LeadState, error) {
	query := `SELECT raw_lead_id, identity, status, error, attempts, updated_at FROM lead_states WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC, raw_lead_id LIMIT ?`
	args = append(args, limitOf(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lead states")
	}
	defer rows.Close()

	out := []model.LeadState{}
	for rows.Next() {
		st, err := scanLeadState(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead state")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lead states iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func leadStateArgs(l model.LeadState) ([]any, error) {
	identity, err := json.Marshal(l.Identity)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal identity")
	}
	status := l.Status
	if status == "" {
		status = model.LeadStatusQueued
	}
	updated := l.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{l.RawLeadID, string(identity), string(status), l.Error, l.Attempts, updated.UTC()}, nil
}

func scanLeadState(row scannable) (*model.LeadState, error) {
	var (
		st       model.LeadState
		identity string
		status   string
	)
	if err := row.Scan(&st.RawLeadID, &identity, &status, &st.Error, &st.Attempts, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Status = model.LeadStatus(status)
	if err := json.Unmarshal([]byte(identity), &st.Identity); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal identity")
	}
	return &st, nil
}
