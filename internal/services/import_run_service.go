package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/choplin/deckcheck/internal/database"
)

// ImportRunService keeps the history of bulk imports.
type ImportRunService struct {
	ctx *database.Context
	now func() time.Time
}

// NewImportRunService creates a new ImportRunService.
func NewImportRunService(ctx *database.Context) *ImportRunService {
	return &ImportRunService{
		ctx: ctx,
		now: time.Now,
	}
}

// Start records a running import for sourcePath and returns it. Size,
// strategy and counters are filled in by Finish.
func (s *ImportRunService) Start(ctx context.Context, sourcePath string) (*database.ImportRunRecord, error) {
	_, q, err := s.ctx.Handle()
	if err != nil {
		return nil, err
	}

	run := database.ImportRunRecord{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Status:     database.ImportRunning,
		StartedAt:  s.now(),
	}
	if err := q.InsertImportRun(ctx, database.ImportRunInsertParams(run)); err != nil {
		return nil, fmt.Errorf("failed to record import run: %w", err)
	}
	return &run, nil
}

// Finish stores the final state of run. A nil runErr marks it completed.
func (s *ImportRunService) Finish(ctx context.Context, run *database.ImportRunRecord, runErr error) error {
	_, q, err := s.ctx.Handle()
	if err != nil {
		return err
	}

	run.FinishedAt = s.now()
	run.Status = database.ImportCompleted
	run.Error = ""
	if runErr != nil {
		run.Status = database.ImportFailed
		run.Error = runErr.Error()
	}

	res, err := q.FinishImportRun(ctx, database.ImportRunFinishParams(*run))
	if err != nil {
		return fmt.Errorf("failed to finish import run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("import run %s not found", run.ID)
	}
	return nil
}

// Latest returns the most recently started run, or nil when there is none.
func (s *ImportRunService) Latest(ctx context.Context) (*database.ImportRunRecord, error) {
	_, q, err := s.ctx.Handle()
	if err != nil {
		return nil, err
	}

	row, err := q.GetLatestImportRun(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	run := database.ImportRunRecordFromRow(row)
	return &run, nil
}
