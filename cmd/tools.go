package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"teamsmcp/internal/config"
	"teamsmcp/internal/server"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the MCP tools this server exposes",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	// A placeholder client id is enough to enumerate tools; no OAuth
	// request is made here.
	cfg := config.GetDefaultConfig()
	cfg.Azure.ClientID = "tool-listing"

	srv, err := server.New(cfg, GetVersion())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tool", "Description"})
	for _, tool := range srv.Tools() {
		t.AppendRow(table.Row{tool.Tool.Name, tool.Tool.Description})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
