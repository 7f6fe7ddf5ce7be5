package main

import (
	"github.com/spf13/cobra"
)

func companyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Change the active company",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "switch <company-id>",
			Short: "Make a company the active one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, err := a.orch.Client.SwitchCompany(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), payload.User)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop the active company (super admins)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, err := a.orch.Client.ClearCompanyContext(cmd.Context())
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), payload.User)
				return nil
			},
		},
	)
	return cmd
}
