package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/careline/internal/delivery"
	"github.com/user/careline/internal/telegram"
	"github.com/user/careline/internal/types"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewSendCmd)
	reviewSendCmd.Flags().String("actor", "operator", "reviewer identity recorded in the audit trail")
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review and release replies held by the confidence gate",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List held and failed replies awaiting review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := openStore(cfg)
		defer store.Close()

		pending, err := store.PendingReplies(cmd.Context())
		if err != nil {
			return fmt.Errorf("list pending replies: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MESSAGE\tTHREAD\tSTATUS\tCONFIDENCE\tTEXT")
		for _, msg := range pending {
			confidence := "-"
			if msg.Confidence != nil {
				confidence = fmt.Sprintf("%.2f", *msg.Confidence)
			}
			text := msg.Content
			if len(text) > 60 {
				text = text[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", msg.ID, msg.ThreadID, msg.Status, confidence, text)
		}
		return w.Flush()
	},
}

var reviewSendCmd = &cobra.Command{
	Use:   "send <message-id>",
	Short: "Deliver a held or failed reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		store := openStore(cfg)
		defer store.Close()

		if cfg.Telegram.Token == "" {
			return fmt.Errorf("no transport configured")
		}
		adapter, err := telegram.New(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		deliverer := delivery.New(adapter)

		ctx := cmd.Context()
		msg, err := store.Message(ctx, types.MessageID(args[0]))
		if err != nil {
			return fmt.Errorf("load message: %w", err)
		}
		if msg.Direction != types.DirectionOutgoing {
			return fmt.Errorf("message %s is not an outgoing reply", msg.ID)
		}
		if msg.Status == types.StatusSent {
			return fmt.Errorf("message %s was already sent", msg.ID)
		}

		thread, err := store.Thread(ctx, msg.ThreadID)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}

		if err := deliverer.Send(ctx, thread.Sender, msg.Content); err != nil {
			if statusErr := store.UpdateMessageStatus(ctx, msg.ID, types.StatusFailed); statusErr != nil {
				return fmt.Errorf("delivery failed (%v) and status update failed: %w", err, statusErr)
			}
			return fmt.Errorf("deliver reply: %w", err)
		}
		if err := store.UpdateMessageStatus(ctx, msg.ID, types.StatusSent); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		actor, _ := cmd.Flags().GetString("actor")
		if err := store.Log(ctx, types.AuditManualReply, actor, thread.ID, map[string]any{
			"message_id": string(msg.ID),
		}); err != nil {
			return fmt.Errorf("audit manual reply: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Sent %s to %s\n", msg.ID, thread.Sender)
		return nil
	},
}
