package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairvault/pairvault/internal/app"
	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/logging"
)

// skipBackends marks commands that must not open the stores.
const skipBackends = "skip-backends"

// cli carries what PersistentPreRunE opened for the running command.
type cli struct {
	cfg      config.Config
	backends *app.Backends
	services app.Services
}

func newRootCmd() *cobra.Command {
	state := &cli{}

	root := &cobra.Command{
		Use:           "pairvault",
		Short:         "Pair two NFC tokens and keep one encrypted memory behind them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			state.cfg = cfg
			if cmd.Annotations[skipBackends] == "true" {
				return nil
			}

			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
			backends, err := app.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			services, err := app.NewServices(backends, cfg, nil, logger)
			if err != nil {
				backends.Close(cmd.Context()) // nolint:errcheck
				return err
			}
			state.backends = backends
			state.services = services
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.backends == nil {
				return nil
			}
			return state.backends.Close(context.Background())
		},
	}

	root.AddCommand(newScanCmd(state), newLockCmd(state), newOpenCmd(state), newMigrateCmd(state))
	return root
}
