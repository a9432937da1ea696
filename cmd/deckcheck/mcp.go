package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/deckcheck/internal/mcp"
	"github.com/choplin/deckcheck/internal/rules"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server exposing card lookup and deck validation over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := rules.FormatByName(root.cfg.Validate.Format)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(root.catalogPath(), mcp.Options{
				Version:       version,
				DefaultFormat: format,
				Logger:        root.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}

	return cmd
}
