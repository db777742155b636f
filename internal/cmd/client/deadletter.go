package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// newDeadLetterCommand constructs the `dlq` command group.
func newDeadLetterCommand() *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:     "dlq",
		Aliases: []string{"deadletters"},
		Short:   "Inspect and redrive stored dead letters",
		Long: `Dead letters are messages received more than their queue's
max receive count. Queues with deadLetter.store enabled keep them on disk.

Filters are CEL expressions over: queue, id, size, text, json,
receive_count, enqueued_ms, dead_ms, now_ms. For example:

  floq dlq list -q orders --filter 'json.amount > 100.0'
  floq dlq list -q orders --filter 'now_ms - dead_ms < 3600000'`,
	}
	dlqCmd.AddCommand(newDLQListCommand(), newDLQRedriveCommand(), newDLQDeleteCommand())
	return dlqCmd
}

func newDLQListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.ListDeadLetters(cmd.Context(), &workqueuesvc.ListDeadLettersRequest{
				Queue:  queue,
				Filter: filter,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			items := make([]map[string]any, 0, len(resp.Entries))
			for _, e := range resp.Entries {
				item := decodedBody(e.Body)
				item["id"] = e.ID
				item["receive_count"] = e.ReceiveCount
				item["dead_at"] = time.UnixMilli(e.DeadAtMs).UTC().Format(time.RFC3339Nano)
				items = append(items, item)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"stored": resp.Stored, "entries": items})
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	cmd.Flags().String("filter", "", "CEL filter expression")
	cmd.Flags().Int("limit", 20, "Maximum entries to show")
	return cmd
}

func newDLQRedriveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redrive ID...",
		Short: "Send dead letters back to their queue as new messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				resp, err := tr.Redrive(cmd.Context(), &workqueuesvc.DeadLetterRequest{Queue: queue, ID: id})
				if err != nil {
					return fmt.Errorf("redrive %s: %w", id, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, resp.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	return cmd
}

func newDLQDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Discard dead letters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := tr.DeleteDeadLetter(cmd.Context(), &workqueuesvc.DeadLetterRequest{Queue: queue, ID: id}); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted: %d\n", len(args))
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	return cmd
}
