package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd(state *cli) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Register a scanned token and show the pair's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var given []string
			if token != "" {
				given = []string{token}
			}
			tokens, err := tokensFrom(cmd, given, 1)
			if err != nil {
				return err
			}

			res, err := state.services.Pairing.Scan(cmd.Context(), tokens[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pair %s: %s (%s)\n", res.PairID, res.Progress, res.Resolution)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token read from the tag (prompted when omitted)")
	return cmd
}
