package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			body, err := readBody(cmd)
			if err != nil {
				return err
			}
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.Send(cmd.Context(), &workqueuesvc.SendRequest{Queue: queue, Body: body})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.ID)
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	cmd.Flags().String("data", "", "Message body; - reads stdin")
	return cmd
}

func newReceiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive one message, optionally long-polling",
		Long: `Receive one message. The message stays hidden for the queue's
visibility timeout; use ack with the printed receipt to delete it, or
pass --ack to delete it immediately. Exits quietly when nothing arrived.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			wait, _ := cmd.Flags().GetDuration("wait")
			autoAck, _ := cmd.Flags().GetBool("ack")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			resp, err := tr.Receive(ctx, &workqueuesvc.ReceiveRequest{Queue: queue, WaitMs: wait.Milliseconds()})
			if err != nil {
				return err
			}
			m := resp.Message
			if m == nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no message")
				return nil
			}
			out := decodedBody(m.Body)
			out["id"] = m.ID
			out["receipt"] = m.Receipt
			out["receive_count"] = m.ReceiveCount
			out["enqueued_at"] = time.UnixMilli(m.EnqueuedAtMs).UTC().Format(time.RFC3339Nano)
			out["visible_at"] = time.UnixMilli(m.NextVisibleAtMs).UTC().Format(time.RFC3339Nano)
			if autoAck {
				ack, err := tr.Acknowledge(ctx, &workqueuesvc.ReceiptRequest{Queue: queue, Receipt: m.Receipt})
				if err != nil {
					return err
				}
				out["acked"] = ack.OK
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	cmd.Flags().Duration("wait", 0, "Long-poll up to this long for a message")
	cmd.Flags().Bool("ack", false, "Acknowledge the message right after receiving it")
	return cmd
}

// receiptCommand builds ack and release, which differ only in the call.
func receiptCommand(use, short string, call func(cmd *cobra.Command, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " RECEIPT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := call(cmd, &workqueuesvc.ReceiptRequest{Queue: queue, Receipt: args[0]})
			if err != nil {
				return err
			}
			return printOK(cmd, resp.OK)
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	return cmd
}

// printOK prints the outcome and fails the command for a rejected receipt.
func printOK(cmd *cobra.Command, ok bool) error {
	if !ok {
		return fmt.Errorf("receipt is stale, unknown or expired")
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func newAckCommand() *cobra.Command {
	return receiptCommand("ack", "Acknowledge (delete) a received message",
		func(cmd *cobra.Command, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
			tr, err := transportFor(cmd)
			if err != nil {
				return nil, err
			}
			return tr.Acknowledge(cmd.Context(), req)
		})
}

func newReleaseCommand() *cobra.Command {
	return receiptCommand("release", "Make a received message visible again now",
		func(cmd *cobra.Command, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
			tr, err := transportFor(cmd)
			if err != nil {
				return nil, err
			}
			return tr.Release(cmd.Context(), req)
		})
}

func newExtendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extend RECEIPT",
		Short: "Extend a received message's visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			by, _ := cmd.Flags().GetDuration("by")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.ExtendVisibility(cmd.Context(), &workqueuesvc.ExtendRequest{
				Queue:   queue,
				Receipt: args[0],
				ExtraMs: by.Milliseconds(),
			})
			if err != nil {
				return err
			}
			return printOK(cmd, resp.OK)
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	cmd.Flags().Duration("by", 30*time.Second, "Time added to the current deadline")
	return cmd
}

func newCountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show visible and in-flight counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.Counts(cmd.Context(), &workqueuesvc.QueueRequest{Queue: queue})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	return cmd
}

func newQueuesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List queues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.ListQueues(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%-30s %8s %9s %10s %8s\n", "NAME", "VISIBLE", "IN-FLIGHT", "VISIBILITY", "MAX-RECV")
			for _, q := range resp.Queues {
				_, _ = fmt.Fprintf(w, "%-30s %8d %9d %10s %8d\n",
					q.Name, q.Visible, q.InFlight, time.Duration(q.VisibilityTimeoutMs)*time.Millisecond, q.MaxReceiveCount)
			}
			return nil
		},
	}
}

func newPurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every message in a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("purge drops all messages in %q; pass --yes to confirm", queue)
			}
			tr, err := transportFor(cmd)
			if err != nil {
				return err
			}
			resp, err := tr.Purge(cmd.Context(), &workqueuesvc.QueueRequest{Queue: queue})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "purged: %d\n", resp.Purged)
			return nil
		},
	}
	cmd.Flags().StringP("queue", "q", "default", "Queue name")
	cmd.Flags().Bool("yes", false, "Confirm the purge")
	return cmd
}
