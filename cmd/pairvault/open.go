package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newOpenCmd(state *cli) *cobra.Command {
	var (
		tokens []string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Decrypt the latest memory of a pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := tokensFrom(cmd, tokens, 2)
			if err != nil {
				return err
			}
			pair, err := state.services.Pairing.Match(cmd.Context(), secrets[0], secrets[1])
			if err != nil {
				return err
			}

			contents, err := state.services.Vault.Open(cmd.Context(), pair)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "note:  %s\n", contents.Note)
			fmt.Fprintf(w, "taken: %s\n", contents.Timestamp.Format(time.RFC3339))
			fmt.Fprintf(w, "photo: %d bytes (%s)\n", len(contents.Image), contents.ImageMIME)
			if out != "" {
				if err := os.WriteFile(out, contents.Image, 0o600); err != nil {
					return fmt.Errorf("write photo: %w", err)
				}
				fmt.Fprintf(w, "photo written to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tokens, "token", nil, "token of the pair, given twice (prompted when omitted)")
	cmd.Flags().StringVar(&out, "out", "", "write the photo to this file")
	return cmd
}
