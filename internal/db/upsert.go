package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a COPY-staged bulk upsert into Table keyed by Key.
// Every column except Key is overwritten when the key already exists,
// unless Where is set and the existing row fails it.
type Upsert struct {
	Table   string
	Key     string
	Columns []string
	Where   string
}

func (u Upsert) validate() error {
	if u.Table == "" {
		return eris.New("db: upsert: table is required")
	}
	if len(u.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	for _, c := range u.Columns {
		if c == u.Key {
			return nil
		}
	}
	return eris.Errorf("db: upsert: key %q is not one of the columns", u.Key)
}

// stage is the session-local table rows are copied into.
func (u Upsert) stage() string {
	return "stage_" + strings.ReplaceAll(u.Table, ".", "_")
}

func (u Upsert) createStage() string {
	return "CREATE TEMP TABLE " + pgx.Identifier{u.stage()}.Sanitize() +
		" (LIKE " + quoteTable(u.Table) + " INCLUDING DEFAULTS) ON COMMIT DROP"
}

func (u Upsert) merge() string {
	cols := quoteList(u.Columns)
	var set []string
	for _, c := range u.Columns {
		if c == u.Key {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + quoteTable(u.Table) + " (" + cols + ")")
	sb.WriteString(" SELECT " + cols + " FROM " + pgx.Identifier{u.stage()}.Sanitize())
	sb.WriteString(" ON CONFLICT (" + pgx.Identifier{u.Key}.Sanitize() + ")")
	if len(set) == 0 {
		sb.WriteString(" DO NOTHING")
	} else {
		sb.WriteString(" DO UPDATE SET " + strings.Join(set, ", "))
		if u.Where != "" {
			sb.WriteString(" WHERE " + u.Where)
		}
	}
	return sb.String()
}

// CopyUpsert stages rows with COPY and merges them into the target table in
// one transaction. It returns the number of rows inserted or updated.
func CopyUpsert(ctx context.Context, pool Pool, u Upsert, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := u.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, u.createStage()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", u.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{u.stage()}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy %s", u.Table)
	}
	tag, err := tx.Exec(ctx, u.merge())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge %s", u.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit")
	}
	return tag.RowsAffected(), nil
}

// quoteTable quotes a table name that may be schema-qualified.
func quoteTable(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
