package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pairvault/pairvault/internal/payload"
)

func newLockCmd(state *cli) *cobra.Command {
	var (
		tokens []string
		note   string
		photo  string
		mime   string
		at     string
	)
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Encrypt a note and photo behind both tokens of a complete pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(photo)
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}
			if mime == "" {
				mime = http.DetectContentType(image)
			}
			var taken time.Time
			if at != "" {
				if taken, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			secrets, err := tokensFrom(cmd, tokens, 2)
			if err != nil {
				return err
			}
			pair, err := state.services.Pairing.Match(cmd.Context(), secrets[0], secrets[1])
			if err != nil {
				return err
			}

			ref, err := state.services.Vault.Lock(cmd.Context(), pair, payload.Contents{
				Note:      note,
				Timestamp: taken,
				Image:     image,
				ImageMIME: mime,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "memory %s locked for pair %s (schema %d)\n", ref.RecordID, ref.PairID, ref.SchemaVersion)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tokens, "token", nil, "token of the pair, given twice (prompted when omitted)")
	cmd.Flags().StringVar(&note, "note", "", "note to seal")
	cmd.Flags().StringVar(&photo, "photo", "", "path of the photo to seal")
	cmd.Flags().StringVar(&mime, "mime", "", "photo MIME type (detected when omitted)")
	cmd.Flags().StringVar(&at, "at", "", "when the memory was taken, RFC3339 (defaults to now)")
	cmd.MarkFlagRequired("note")  // nolint:errcheck
	cmd.MarkFlagRequired("photo") // nolint:errcheck
	return cmd
}
