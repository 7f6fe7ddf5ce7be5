// Command hrsession signs in to the HR API and manages the stored session
// from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession"
	"github.com/vaintrub/hrsession/config"
	"github.com/vaintrub/hrsession/internal/logging"
	"github.com/vaintrub/hrsession/navigation"
)

// app carries what every command needs. It is filled in by the root
// command's pre-run hook.
type app struct {
	configPath string

	loader *config.Loader
	cfg    *config.Config
	logger *zap.Logger
	nav    *navigation.History
	orch   *hrsession.Orchestrator
}

func (a *app) setup(ctx context.Context) error {
	a.loader = config.NewLoader(a.configPath, nil)
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	a.nav = navigation.NewHistory(cfg.Paths.Home)
	orch, err := hrsession.New(ctx, cfg,
		hrsession.WithNavigator(a.nav),
		hrsession.WithLogger(logger))
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

func (a *app) teardown() error {
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			a.logger.Warn("close orchestrator", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "hrsession",
		Short:         "Manage an HR API session from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (TOML, YAML or JSON)")

	rootCmd.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		registerCmd(a),
		whoamiCmd(a),
		statusCmd(a),
		invitationCmd(a),
		companyCmd(a),
		passwordCmd(a),
		verifyEmailCmd(a),
		resendVerificationCmd(a),
		apiCmd(a),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
