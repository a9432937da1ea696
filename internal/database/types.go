package database

import "time"

// ImportRunStatus is the lifecycle state of an import run.
type ImportRunStatus string

const (
	ImportRunning   ImportRunStatus = "running"
	ImportCompleted ImportRunStatus = "completed"
	ImportFailed    ImportRunStatus = "failed"
)

// ImportRunRecord mirrors a row in the import_runs table. One row is written
// when an import starts and finalised when it ends, successful or not.
type ImportRunRecord struct {
	ID         string
	SourcePath string
	SourceSize int64
	Checksum   string
	Strategy   string
	Status     ImportRunStatus
	Imported   int64
	Skipped    int64
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
