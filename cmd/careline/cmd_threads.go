package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.AddCommand(threadsListCmd)
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Inspect conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads with status and urgency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := openStore(cfg)
		defer store.Close()

		threads, err := store.ListThreads(cmd.Context())
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tSENDER\tSTATUS\tURGENCY\tMESSAGES\tLAST MESSAGE\tEXPIRES")
		for _, thread := range threads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				thread.ID,
				thread.Sender,
				thread.Status,
				thread.Urgency,
				thread.MessageCount,
				thread.LastMessageAt.Format("2006-01-02 15:04"),
				thread.ExpiresAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}
