package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/db"
	"github.com/sells-group/lead-refinery/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enriched_records (
	raw_lead_id   TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL,
	email         TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	is_verified   BOOLEAN NOT NULL DEFAULT false,
	intent_signal TEXT NOT NULL,
	record        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lead_states (
	raw_lead_id TEXT PRIMARY KEY,
	identity    JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'queued',
	error       TEXT NOT NULL DEFAULT '',
	attempts    INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_created_at ON enriched_records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_tenant ON enriched_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_lead_states_status ON lead_states(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec *model.EnrichedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enriched_records (raw_lead_id, job_id, email, tenant_id, is_verified, intent_signal, record, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (raw_lead_id) DO UPDATE SET
		   job_id = EXCLUDED.job_id, email = EXCLUDED.email, tenant_id = EXCLUDED.tenant_id,
		   is_verified = EXCLUDED.is_verified, intent_signal = EXCLUDED.intent_signal,
		   record = EXCLUDED.record, created_at = EXCLUDED.created_at`,
		rec.RawLeadID, rec.JobID, rec.Email, rec.TenantID, rec.IsVerified,
		string(rec.IntentSignal), data, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert record %s", rec.RawLeadID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, rawLeadID string) (*model.EnrichedRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM enriched_records WHERE raw_lead_id = $1`, rawLeadID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", rawLeadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", rawLeadID)
	}
	var rec model.EnrichedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) FetchAll(ctx context.Context, filter RecordFilter) ([]model.EnrichedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM enriched_records
		 WHERE ($1 = '' OR tenant_id = $1) AND (NOT $2 OR is_verified)
		 ORDER BY created_at DESC, raw_lead_id
		 LIMIT $3 OFFSET $4`,
		filter.TenantID, filter.VerifiedOnly, limitOf(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch records")
	}
	defer rows.Close()

	out := []model.EnrichedRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.EnrichedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: fetch records iterate")
}

var leadStateColumns = []string{"raw_lead_id", "identity", "status", "error", "attempts", "updated_at"}

// notRunning keeps a lead that is already in flight from being reset to
// queued by a later enqueue.
const notRunning = `lead_states.status <> 'running'`

// EnqueueLeads writes many lead states in one COPY-backed upsert. Leads
// currently running are left as they are and not counted.
func (s *PostgresStore) EnqueueLeads(ctx context.Context, leads []model.LeadState) (int64, error) {
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		args, err := leadStateArgs(l)
		if err != nil {
			return 0, err
		}
		args[1] = []byte(args[1].(string))
		rows = append(rows, args)
	}
	n, err := db.CopyUpsert(ctx, s.pool, db.Upsert{
		Table:   "lead_states",
		Key:     "raw_lead_id",
		Columns: leadStateColumns,
		Where:   notRunning,
	}, rows)
	return n, eris.Wrap(err, "postgres: enqueue leads")
}

func (s *PostgresStore) SetLeadState(ctx context.Context, state model.LeadState) error {
	args, err := leadStateArgs(state)
	if err != nil {
		return err
	}
	args[1] = []byte(args[1].(string))
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_states (raw_lead_id, identity, status, error, attempts, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (raw_lead_id) DO UPDATE SET
		   identity = EXCLUDED.identity, status = EXCLUDED.status, error = EXCLUDED.error,
		   attempts = EXCLUDED.attempts, updated_at = EXCLUDED.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "postgres: set lead state %s", state.RawLeadID)
}

func (s *PostgresStore) GetLeadState(ctx context.Context, rawLeadID string) (*model.LeadState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT raw_lead_id, identity, status, error, attempts, updated_at FROM lead_states WHERE raw_lead_id = $1`,
		rawLeadID,
	)
	st, err := scanLeadStatePG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", rawLeadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead state %s", rawLeadID)
	}
	return st, nil
}

func (s *PostgresStore) ListLeadStates(ctx context.Context, filter LeadFilter) ([]model.LeadState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT raw_lead_id, identity, status, error, attempts, updated_at FROM lead_states
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY updated_at DESC, raw_lead_id
		 LIMIT $2 OFFSET $3`,
		string(filter.Status), limitOf(filter.Limit), filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lead states")
	}
	defer rows.Close()

	out := []model.LeadState{}
	for rows.Next() {
		st, err := scanLeadStatePG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead state")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lead states iterate")
}

func scanLeadStatePG(row scannable) (*model.LeadState, error) {
	var (
		st       model.LeadState
		identity []byte
		status   string
	)
	if err := row.Scan(&st.RawLeadID, &identity, &status, &st.Error, &st.Attempts, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Status = model.LeadStatus(status)
	if err := json.Unmarshal(identity, &st.Identity); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal identity")
	}
	return &st, nil
}
