package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"teamsmcp/internal/login"
	"teamsmcp/internal/server"
)

var loginConfigPath string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Microsoft interactively",
	Long: `Runs the OAuth2 authorization code flow in the browser and prints the
resulting tokens as JSON.

A temporary local HTTP server receives the redirect from Microsoft, so
the configured redirect URI must point at localhost. The printed tokens
can be passed to the MCP tools as the "tokens" argument.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	initLogging(false)

	cfg, err := loadConfig(loginConfigPath)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, GetVersion())
	if err != nil {
		return err
	}
	flow := srv.Flow()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, login.CallbackTimeout)
	defer cancel()

	port, path, err := callbackAddress(cfg.Azure.RedirectURI)
	if err != nil {
		return err
	}

	callbackServer := login.NewCallbackServer(port, path)
	callbackURL, err := callbackServer.Start(ctx)
	if err != nil {
		return err
	}
	defer callbackServer.Stop()

	check := flow.IsAuthenticated(ctx, nil, callbackURL, nil)
	if check.AuthURL == "" {
		return fmt.Errorf("failed to start authorization flow: %s", check.Message)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Opening browser for Microsoft sign-in...\n")
	if err := login.OpenBrowser(check.AuthURL); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Could not open browser, visit this URL manually:\n\n  %s\n\n", check.AuthURL)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for sign-in to complete..."
	s.Start()

	result, err := callbackServer.WaitForCallback(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("did not receive OAuth callback: %w", err)
	}
	if result.IsError() {
		return fmt.Errorf("authorization failed: %s: %s", result.Error, result.ErrorDescription)
	}

	authorized := flow.Authorize(ctx, result.Code, callbackURL+"?state="+url.QueryEscape(result.State), nil)
	if !authorized.Success {
		return fmt.Errorf("token exchange failed: %s", authorized.Message)
	}

	tokens, err := json.MarshalIndent(authorized.Tokens, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), text.FgGreen.Sprint("Authentication successful"))
	fmt.Fprintln(cmd.OutOrStdout(), string(tokens))
	return nil
}

// callbackAddress extracts the local port and path from the configured
// redirect URI.
func callbackAddress(redirectURI string) (int, string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return 0, "", fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return 0, "", fmt.Errorf("invalid redirect URI port %q", p)
		}
	}
	return port, u.Path, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginConfigPath, "config-path", "", "Custom configuration directory path")
}
