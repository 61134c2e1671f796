package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/devtrack/TradingAgents/pkg/tactl/auth"
	"github.com/devtrack/TradingAgents/pkg/tactl/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with TradingAgents",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
		newAuthTokenCommand(),
		newAuthHeaderCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with the device authorization flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.nonInteractive {
				return fmt.Errorf("login requires an interactive session")
			}
			client, store, err := buildAuthClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			openBrowser := !noBrowser && !rt.cfg.Auth.NoBrowser
			token, err := client.Login(cmd.Context(), openBrowser)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Authenticated. Token expires at %s (stored in %s)\n",
				output.FormatTime(token.ExpiresAt), store.Backend())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the verification URL without opening a browser")
	return cmd
}

// authStatus is the -o json|yaml|template view of "auth status".
type authStatus struct {
	State       string         `json:"state" yaml:"state"`
	Backend     string         `json:"backend" yaml:"backend"`
	TokenType   string         `json:"tokenType,omitempty" yaml:"tokenType,omitempty"`
	Scope       string         `json:"scope,omitempty" yaml:"scope,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Refreshable bool           `json:"refreshable" yaml:"refreshable"`
	Identity    *auth.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
}

const (
	stateValid            = "valid"
	stateExpired          = "expired"
	stateNotAuthenticated = "not-authenticated"
)

func newStatus(token auth.Token, ok bool, backend string, now time.Time) authStatus {
	status := authStatus{State: stateNotAuthenticated, Backend: backend}
	if !ok {
		return status
	}
	expiresAt := token.ExpiresAt
	status.ExpiresAt = &expiresAt
	status.TokenType = token.TokenType
	status.Scope = token.Scope
	status.Refreshable = token.Refreshable()
	status.State = stateValid
	if token.ExpiredAt(now, auth.DefaultSkew) {
		status.State = stateExpired
	}
	if id, ok := token.Identity(); ok {
		status.Identity = &id
	}
	return status
}

func (s authStatus) writeTable(w io.Writer) error {
	rows := []output.Row{
		{Field: "State", Value: s.State},
		{Field: "Storage", Value: s.Backend},
	}
	if s.State != stateNotAuthenticated {
		expires := "-"
		if s.ExpiresAt != nil {
			expires = output.FormatTime(*s.ExpiresAt)
		}
		rows = append(rows,
			output.Row{Field: "Expires", Value: expires},
			output.Row{Field: "Refreshable", Value: fmt.Sprintf("%t", s.Refreshable)},
			output.Row{Field: "Scope", Value: s.Scope},
		)
		if s.Identity != nil {
			rows = append(rows, output.Row{Field: "User", Value: s.Identity.Display()})
		}
	}
	return output.WriteKeyValueTable(w, rows)
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			spec, err := rt.OutputSpec()
			if err != nil {
				return err
			}
			store, err := openTokenStore(rt)
			if err != nil {
				return err
			}
			token, ok, err := store.Load()
			if err != nil {
				return err
			}
			status := newStatus(token, ok, store.Backend(), time.Now())
			return output.Write(rt.Writer(), spec, status, status.writeTable)
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and remove the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			client, _, err := buildAuthClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing or logging in as needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			client, _, err := buildAuthClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			token, err := client.GetSession(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), token.AccessToken)
			return nil
		},
	}
}

func newAuthHeaderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "header",
		Short: "Print an Authorization header for the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			client, _, err := buildAuthClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			token, err := client.GetSession(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Authorization: %s\n", token.AuthorizationHeader())
			return nil
		},
	}
}
