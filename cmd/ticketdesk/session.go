package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

type sessionOutput struct {
	Authenticated     bool         `json:"authenticated"`
	User              *domain.User `json:"user,omitempty"`
	Role              domain.Role  `json:"role,omitempty"`
	NeedsConfirmation bool         `json:"needs_confirmation,omitempty"`
}

func sessionView(st domain.Session) sessionOutput {
	return sessionOutput{Authenticated: st.Authenticated(), User: st.User, Role: st.Role}
}

type credentialFlags struct {
	email    string
	password string
	role     string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password (default $TICKETDESK_PASSWORD)")
	cmd.Flags().StringVar(&f.role, "role", "", "Act as CLIENTE or TECNICO")
}

func (f *credentialFlags) resolvedPassword() string {
	if f.password != "" {
		return f.password
	}
	return os.Getenv("TICKETDESK_PASSWORD")
}

func (f *credentialFlags) parsedRole() domain.Role {
	return domain.Role(strings.ToUpper(strings.TrimSpace(f.role)))
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, or switch the acting role with --role alone",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if creds.email == "" && creds.role != "" {
				if err := a.session.LoginAs(ctx, creds.parsedRole()); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sessionView(a.session.Snapshot()))
			}
			if err := a.session.LoginWithEmail(ctx, creds.email, creds.resolvedPassword(), creds.parsedRole()); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sessionView(a.session.Snapshot()))
		}),
	}
	creds.register(cmd)
	return cmd
}

func newSignUpCmd(opts *rootOptions) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register an account",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			pending, err := a.session.SignUp(ctx, creds.email, creds.resolvedPassword(), creds.parsedRole())
			if err != nil {
				return err
			}
			out := sessionView(a.session.Snapshot())
			out.NeedsConfirmation = pending
			return printJSON(cmd.OutOrStdout(), out)
		}),
	}
	creds.register(cmd)
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			a.session.Logout(ctx)
			return printJSON(cmd.OutOrStdout(), sessionView(a.session.Snapshot()))
		}),
	}
}

func newWhoAmICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved session and acting role",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			return printJSON(cmd.OutOrStdout(), sessionView(a.session.Snapshot()))
		}),
	}
}
