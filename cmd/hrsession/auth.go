package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/client"
	"github.com/vaintrub/hrsession/config"
	"github.com/vaintrub/hrsession/models"
	"github.com/vaintrub/hrsession/session"
	"github.com/vaintrub/hrsession/token"
)

// passwordFlag returns the --password flag or HRSESSION_PASSWORD.
func passwordFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" && name == "password" {
		v = os.Getenv("HRSESSION_PASSWORD")
	}
	return v
}

func loginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and redeem a pending invitation, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, _ := cmd.Flags().GetString("return-to")
			env, err := a.orch.SignIn.SignIn(cmd.Context(), args[0], passwordFlag(cmd, "password"), dest)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), a.orch.Session.User())
			a.logger.Debug("signed in", zap.String("location", a.nav.Location()), zap.Bool("issued", env.Data.Issued()))
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "password (default $HRSESSION_PASSWORD)")
	cmd.Flags().String("return-to", "", "destination after sign-in")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.orch.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func registerCmd(a *app) *cobra.Command {
	var req client.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Email = args[0]
			req.Password = passwordFlag(cmd, "password")
			dest, _ := cmd.Flags().GetString("return-to")
			if _, err := a.orch.Register.Register(cmd.Context(), req, dest); err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), a.orch.Session.User())
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "password (default $HRSESSION_PASSWORD)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.CompanyName, "company", "", "create a company owned by the new account")
	cmd.Flags().String("return-to", "", "destination after registration")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Refresh and print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.orch.Client.FetchCurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the local session state without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			printStatus(ctx, out, a, a.orch.Session.State())

			follow, _ := cmd.Flags().GetBool("watch")
			if !follow {
				return nil
			}

			if err := a.loader.Watch(func(*config.Config) {
				a.logger.Info("configuration changed; restart to apply")
			}); err != nil {
				a.logger.Debug("not watching configuration", zap.Error(err))
			}
			unsubscribe := a.orch.Session.Subscribe(func(st session.State) {
				printStatus(ctx, out, a, st)
			})
			defer unsubscribe()

			err := a.orch.Session.Watch(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "keep running and print every change of the stored session")
	return cmd
}

func printStatus(ctx context.Context, w io.Writer, a *app, st session.State) {
	now := a.orch.Session.Now()
	if !st.SignedIn() {
		_, _ = fmt.Fprintln(w, "signed out")
	} else if info, err := token.Parse(st.Token); err != nil {
		_, _ = fmt.Fprintf(w, "signed in as %s (token unreadable: %v)\n", st.User.Email, err)
	} else if info.Expired(now) {
		_, _ = fmt.Fprintf(w, "signed in as %s, token expired at %s\n", st.User.Email, info.ExpiresAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintf(w, "signed in as %s, token valid for %s\n", st.User.Email, info.Remaining(now).Round(time.Second))
	}

	if pending, err := a.orch.Store.PendingInvitation(ctx); err == nil && pending != "" {
		_, _ = fmt.Fprintln(w, "pending invitation will be redeemed at next sign-in")
	}
}

func printUser(w io.Writer, u *models.UserSnapshot) {
	if u == nil {
		_, _ = fmt.Fprintln(w, "signed out")
		return
	}
	_, _ = fmt.Fprintf(w, "%s (%s)\n", u.Email, u.Role)
	if scope := u.CompanyScope(); scope != "" {
		name := scope
		if m, ok := u.Membership(scope); ok && m.CompanyName != "" {
			name = m.CompanyName
		}
		_, _ = fmt.Fprintf(w, "  company: %s\n", name)
	}
	for _, m := range u.CompanyMemberships {
		marker := " "
		if m.CompanyID == u.CompanyScope() {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "  %s %s\t%s\t%s\n", marker, m.CompanyID, m.CompanyName, m.Role)
	}
}
