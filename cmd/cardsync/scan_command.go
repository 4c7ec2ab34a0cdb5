package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"cardsync/internal/api"
	"cardsync/internal/scanqueue"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "scan <uid>",
		Short: "Queue a tag UID as if it had been scanned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := scanqueue.NormalizeTagID(args[0]); err != nil {
				return err
			}
			return ctx.withClient(cmd.Context(), func(client *api.Client) error {
				resp, err := client.SubmitTag(cmd.Context(), args[0], source)
				var statusErr *api.StatusError
				if errors.As(err, &statusErr) && statusErr.Code == http.StatusServiceUnavailable {
					return fmt.Errorf("scan queue is full; try again once the current card finishes")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued tag %s (queue length %d)\n", resp.TagID, resp.QueueLength)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "cli", "Source label recorded with the scan")
	return cmd
}
