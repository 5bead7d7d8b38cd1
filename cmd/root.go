package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"teamsmcp/internal/oauth2"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd is the base command for the teams-mcp application.
var rootCmd = &cobra.Command{
	Use:   "teams-mcp",
	Short: "Microsoft Teams tools over the Model Context Protocol",
	Long: `teams-mcp exposes Microsoft Teams chat operations as MCP tools.
It authenticates against Azure AD using the OAuth2 authorization code
flow and talks to the Microsoft Graph API on behalf of the signed-in
user.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "teams-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	var exchangeErr *oauth2.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		return ExitCodeAuthFailed
	}
	if errors.Is(err, oauth2.ErrUnknownState) || errors.Is(err, oauth2.ErrExpiredState) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
