package sqldb

import "database/sql"

type Card struct {
	NameKey       string
	Name          string
	TypeLine      string
	Colors        string
	ColorIdentity string
	Rarity        string
	Legalities    string
	ManaCost      sql.NullString
	Cmc           sql.NullFloat64
	ImageRefs     sql.NullString
	Faces         sql.NullString
}

type ImportRun struct {
	ID         string
	SourcePath string
	SourceSize int64
	Checksum   sql.NullString
	Strategy   string
	Status     string
	Imported   int64
	Skipped    int64
	Error      sql.NullString
	StartedAt  int64
	FinishedAt sql.NullInt64
}
