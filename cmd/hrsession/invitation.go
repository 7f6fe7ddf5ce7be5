package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/vaintrub/hrsession/invitation"
)

func invitationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invitation",
		Short: "Inspect and accept company invitations",
	}
	cmd.AddCommand(invitationShowCmd(a), invitationAcceptCmd(a), invitationAutoAcceptCmd(a))
	return cmd
}

func invitationShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <token>",
		Short: "Print what an invitation grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.orch.Client.GetInvitationInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "company: %s\nrole:    %s\nemail:   %s\n", info.CompanyName, info.Role, info.Email)
			switch {
			case info.IsExpired():
				_, _ = fmt.Fprintln(w, "status:  expired")
			case info.IsClosed():
				_, _ = fmt.Fprintf(w, "status:  %s\n", info.Status)
			default:
				_, _ = fmt.Fprintln(w, "status:  open")
			}
			return nil
		},
	}
}

func invitationAcceptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <token>",
		Short: "Accept an invitation, or keep it for the next sign-in when signed out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h := a.orch.NewHandshake()
			snap, err := h.Start(ctx, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch snap.State {
			case invitation.StateAccepted:
				_, _ = fmt.Fprintf(w, "joined %s\n", snap.Info.CompanyName)
				return nil
			case invitation.StateAwaitingAuthentication:
				register, _ := cmd.Flags().GetBool("register")
				if register {
					err = h.ChooseRegister(ctx)
				} else {
					err = h.ChooseSignIn(ctx)
				}
				if err != nil {
					return err
				}
				printAwaiting(w, snap, register)
				return nil
			}
			return describeFailure(snap)
		},
	}
	cmd.Flags().Bool("register", false, "when signed out, carry the invitation to registration instead of sign-in")
	return cmd
}

func invitationAutoAcceptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-accept",
		Short: "Apply every pending invitation addressed to the signed-in email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.orch.Client.AutoAcceptInvitations(cmd.Context())
			if err != nil {
				return err
			}
			if payload == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no pending invitations")
				return nil
			}
			printUser(cmd.OutOrStdout(), payload.User)
			return nil
		},
	}
}

func printAwaiting(w io.Writer, snap invitation.Snapshot, register bool) {
	next := "hrsession login <email>"
	if register {
		next = "hrsession register <email>"
	}
	_, _ = fmt.Fprintf(w, "invitation to %s as %s saved; run %s to accept it\n",
		snap.Info.CompanyName, snap.Info.Role, next)
}

// describeFailure turns a failed or expired handshake into the error shown to the user.
func describeFailure(snap invitation.Snapshot) error {
	switch snap.Failure {
	case invitation.FailureExpired:
		return errors.New("this invitation has expired; ask for a new one")
	case invitation.FailureClosed:
		return errors.New("this invitation was already used or withdrawn")
	case invitation.FailureTimeout:
		return errors.Wrap(snap.Err, "the server did not answer in time, try again")
	case invitation.FailureNoToken:
		return snap.Err
	}
	if snap.Err != nil {
		return errors.Wrap(snap.Err, "invitation could not be accepted")
	}
	return errors.Newf("invitation ended in state %s", snap.State)
}
