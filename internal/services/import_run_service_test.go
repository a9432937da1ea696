package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/choplin/deckcheck/internal/database"
)

func TestImportRunLifecycle(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	svc := NewImportRunService(dbCtx)

	latest, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest on empty history failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no runs, got %#v", latest)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first, err := svc.Start(ctx, "/data/first.json")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if first.ID == "" || first.Status != database.ImportRunning {
		t.Fatalf("unexpected started run: %#v", first)
	}

	first.Imported = 10
	first.SourceSize = 1024
	first.Strategy = "load-all"
	first.Skipped = 2
	first.Checksum = "abc123"
	if err := svc.Finish(ctx, first, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	second, err := svc.Start(ctx, "/data/second.json")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second.Imported = 3
	second.SourceSize = 2048
	second.Strategy = "stream"
	if err := svc.Finish(ctx, second, errors.New("malformed source")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	latest, err = svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected second run to be latest, got %#v", latest)
	}
	if latest.Status != database.ImportFailed || latest.Error != "malformed source" {
		t.Fatalf("expected failed status with error, got %#v", latest)
	}
	if latest.Imported != 3 || latest.Strategy != "stream" || latest.SourceSize != 2048 {
		t.Fatalf("unexpected counters: %#v", latest)
	}
	if !latest.StartedAt.Equal(base.Add(time.Hour)) || !latest.FinishedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps: %v %v", latest.StartedAt, latest.FinishedAt)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	dbCtx := setupServiceDB(t)
	svc := NewImportRunService(dbCtx)

	err := svc.Finish(context.Background(), &database.ImportRunRecord{ID: "missing"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown run")
	}
}
