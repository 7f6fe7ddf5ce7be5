package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaintrub/hrsession/models"
)

func printAck(cmd *cobra.Command, ack *models.Ack, fallback string) {
	msg := fallback
	if ack != nil && ack.Message != "" {
		msg = ack.Message
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
}

func passwordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change a password",
	}

	forgot := &cobra.Command{
		Use:   "forgot <email>",
		Short: "Email a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := a.orch.Client.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAck(cmd, ack, "reset link sent")
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset <reset-token>",
		Short: "Set a new password with the token from the reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := a.orch.Client.ResetPassword(cmd.Context(), args[0], passwordFlag(cmd, "password"))
			if err != nil {
				return err
			}
			printAck(cmd, ack, "password reset")
			return nil
		},
	}
	reset.Flags().StringP("password", "p", "", "new password (default $HRSESSION_PASSWORD)")

	change := &cobra.Command{
		Use:   "change",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := a.orch.Client.ChangePassword(cmd.Context(),
				passwordFlag(cmd, "current"), passwordFlag(cmd, "new"))
			if err != nil {
				return err
			}
			printAck(cmd, ack, "password changed")
			return nil
		},
	}
	change.Flags().String("current", "", "current password")
	change.Flags().String("new", "", "new password")

	cmd.AddCommand(forgot, reset, change)
	return cmd
}

func verifyEmailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <verification-token>",
		Short: "Confirm an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := a.orch.Client.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAck(cmd, ack, "email verified")
			return nil
		},
	}
}

func resendVerificationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resend-verification <email>",
		Short: "Send a new verification email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := a.orch.Client.ResendVerification(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAck(cmd, ack, "verification email sent")
			return nil
		},
	}
}
