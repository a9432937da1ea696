package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/choplin/deckcheck/internal/card"
	"github.com/choplin/deckcheck/internal/database"
	"github.com/choplin/deckcheck/internal/logging"
	"github.com/choplin/deckcheck/internal/rules"
	"github.com/choplin/deckcheck/internal/usecase"
)

// Options configures the server.
type Options struct {
	Version       string
	DefaultFormat rules.Format
	Logger        *slog.Logger
}

// Server exposes the card catalog and deck validation over MCP.
type Server struct {
	server  *mcp.Server
	dbCtx   *database.Context
	catalog *usecase.Catalog
	format  rules.Format
}

// NewServer opens the catalog at dbPath and registers the tools.
func NewServer(dbPath string, opts Options) (*Server, error) {
	dbCtx, err := database.CreateDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return newServer(dbCtx, opts), nil
}

func newServer(dbCtx *database.Context, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.DefaultFormat.Name == "" {
		opts.DefaultFormat = rules.StandardCommander
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "deckcheck",
		Version: opts.Version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		dbCtx:   dbCtx,
		catalog: usecase.NewCatalog(dbCtx, logging.OrDefault(opts.Logger)),
		format:  opts.DefaultFormat,
	}

	s.registerTools()

	return s
}

// Run serves over stdio until ctx is done, then closes the catalog.
func (s *Server) Run(ctx context.Context) error {
	defer database.CloseDatabase(s.dbCtx)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_lookup",
		Description: "Look up a card in the local catalog by exact name, ignoring case",
	}, s.handleLookup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "card_search",
		Description: "List catalog cards whose names start with a prefix",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "catalog_info",
		Description: "Report the catalog location, card count and latest import",
	}, s.handleInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "deck_validate",
		Description: "Validate a Commander deck list against the card catalog",
	}, s.handleValidate)
}

type LookupInput struct {
	Name string `json:"name" jsonschema:"the card name"`
}

type LookupOutput struct {
	Found bool         `json:"found"`
	Card  *card.Record `json:"card,omitempty"`
}

type SearchInput struct {
	Prefix string `json:"prefix" jsonschema:"the start of the card name"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"maximum number of cards to return"`
}

type SearchOutput struct {
	Cards []SearchEntry `json:"cards"`
}

type SearchEntry struct {
	Name     string `json:"name"`
	TypeLine string `json:"typeLine"`
	ManaCost string `json:"manaCost,omitempty"`
	Rarity   string `json:"rarity,omitempty"`
}

type InfoInput struct{}

type InfoOutput struct {
	Path       string     `json:"path"`
	Count      int64      `json:"count"`
	LastImport *RunOutput `json:"lastImport,omitempty"`
}

type RunOutput struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	Strategy   string `json:"strategy,omitempty"`
	Imported   int64  `json:"imported"`
	Skipped    int64  `json:"skipped"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

type ValidateInput struct {
	Deck   string  `json:"deck" jsonschema:"the deck list, one card per line such as 1 Sol Ring"`
	Format *string `json:"format,omitempty" jsonschema:"standard-commander or pauper-commander"`
}

type ValidateOutput struct {
	Format     string            `json:"format"`
	IsValid    bool              `json:"isValid"`
	TotalCards int               `json:"totalCards"`
	Violations []rules.Violation `json:"violations"`
}

func (s *Server) handleLookup(ctx context.Context, req *mcp.CallToolRequest, input LookupInput) (*mcp.CallToolResult, LookupOutput, error) {
	if input.Name == "" {
		return nil, LookupOutput{}, errors.New("name is required")
	}

	rec, err := s.catalog.Lookup(ctx, input.Name)
	if err != nil {
		return nil, LookupOutput{}, fmt.Errorf("failed to look up card: %w", err)
	}

	return nil, LookupOutput{
		Found: rec != nil,
		Card:  rec,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	limit := 0
	if input.Limit != nil {
		limit = *input.Limit
	}

	recs, err := s.catalog.Search(ctx, input.Prefix, limit)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("failed to search cards: %w", err)
	}

	entries := make([]SearchEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, SearchEntry{
			Name:     rec.Name,
			TypeLine: rec.TypeLine,
			ManaCost: rec.ManaCost,
			Rarity:   rec.Rarity,
		})
	}

	return nil, SearchOutput{
		Cards: entries,
	}, nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest, input InfoInput) (*mcp.CallToolResult, InfoOutput, error) {
	info, err := s.catalog.Info(ctx)
	if err != nil {
		return nil, InfoOutput{}, fmt.Errorf("failed to read catalog info: %w", err)
	}

	out := InfoOutput{
		Path:  info.Path,
		Count: info.Count,
	}
	if run := info.LatestRun; run != nil {
		out.LastImport = &RunOutput{
			ID:        run.ID,
			Source:    run.SourcePath,
			Status:    string(run.Status),
			Strategy:  run.Strategy,
			Imported:  run.Imported,
			Skipped:   run.Skipped,
			Error:     run.Error,
			StartedAt: run.StartedAt.Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			out.LastImport.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
	}
	return nil, out, nil
}

func (s *Server) handleValidate(ctx context.Context, req *mcp.CallToolRequest, input ValidateInput) (*mcp.CallToolResult, ValidateOutput, error) {
	format := s.format
	if input.Format != nil && *input.Format != "" {
		f, err := rules.FormatByName(*input.Format)
		if err != nil {
			return nil, ValidateOutput{}, err
		}
		format = f
	}

	res, err := s.catalog.Validate(ctx, usecase.ValidateInput{
		Deck:   input.Deck,
		Format: format,
	})
	if err != nil {
		return nil, ValidateOutput{}, fmt.Errorf("failed to validate deck: %w", err)
	}

	return nil, ValidateOutput{
		Format:     res.Result.Format,
		IsValid:    res.Result.IsValid,
		TotalCards: res.Result.TotalCards,
		Violations: res.Result.Violations,
	}, nil
}
