package sqldb

import (
	"context"
	"database/sql"
)

const insertImportRun = `INSERT INTO import_runs (id, source_path, status, started_at)
VALUES (?, ?, ?, ?)`

type InsertImportRunParams struct {
	ID         string
	SourcePath string
	Status     string
	StartedAt  int64
}

func (q *Queries) InsertImportRun(ctx context.Context, arg InsertImportRunParams) error {
	_, err := q.db.ExecContext(ctx, insertImportRun,
		arg.ID,
		arg.SourcePath,
		arg.Status,
		arg.StartedAt,
	)
	return err
}

const finishImportRun = `UPDATE import_runs
SET status = ?, source_size = ?, strategy = ?, checksum = ?, imported = ?, skipped = ?, error = ?, finished_at = ?
WHERE id = ?`

type FinishImportRunParams struct {
	Status     string
	SourceSize int64
	Strategy   string
	Checksum   sql.NullString
	Imported   int64
	Skipped    int64
	Error      sql.NullString
	FinishedAt sql.NullInt64
	ID         string
}

func (q *Queries) FinishImportRun(ctx context.Context, arg FinishImportRunParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, finishImportRun,
		arg.Status,
		arg.SourceSize,
		arg.Strategy,
		arg.Checksum,
		arg.Imported,
		arg.Skipped,
		arg.Error,
		arg.FinishedAt,
		arg.ID,
	)
}

const getLatestImportRun = `SELECT id, source_path, source_size, checksum, strategy, status, imported, skipped, error, started_at, finished_at
FROM import_runs
ORDER BY started_at DESC, rowid DESC
LIMIT 1`

func (q *Queries) GetLatestImportRun(ctx context.Context) (ImportRun, error) {
	row := q.db.QueryRowContext(ctx, getLatestImportRun)
	var i ImportRun
	err := row.Scan(
		&i.ID,
		&i.SourcePath,
		&i.SourceSize,
		&i.Checksum,
		&i.Strategy,
		&i.Status,
		&i.Imported,
		&i.Skipped,
		&i.Error,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}
