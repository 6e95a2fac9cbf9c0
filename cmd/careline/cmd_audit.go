package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/careline/internal/types"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditUnsyncedCmd, auditMarkSyncedCmd, auditPruneCmd)
	auditMarkSyncedCmd.Flags().Bool("all", false, "mark every unsynced event")
	auditPruneCmd.Flags().Int("older-than", 30, "prune synced events older than this many days")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and sync the audit trail",
}

var auditUnsyncedCmd = &cobra.Command{
	Use:   "unsynced",
	Short: "Print unsynced audit events as JSON lines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := openStore(cfg)
		defer store.Close()

		events, err := store.Unsynced(cmd.Context())
		if err != nil {
			return fmt.Errorf("list unsynced events: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		for _, event := range events {
			if err := enc.Encode(event); err != nil {
				return err
			}
		}
		return nil
	},
}

var auditMarkSyncedCmd = &cobra.Command{
	Use:   "mark-synced [event-id...]",
	Short: "Mark audit events as synced to the upstream registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := openStore(cfg)
		defer store.Close()

		all, _ := cmd.Flags().GetBool("all")
		var ids []types.AuditID
		if all {
			events, err := store.Unsynced(cmd.Context())
			if err != nil {
				return fmt.Errorf("list unsynced events: %w", err)
			}
			for _, event := range events {
				ids = append(ids, event.ID)
			}
		} else {
			if len(args) == 0 {
				return fmt.Errorf("pass event ids or --all")
			}
			for _, arg := range args {
				ids = append(ids, types.AuditID(arg))
			}
		}

		if err := store.MarkSynced(cmd.Context(), ids); err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Marked %d events synced\n", len(ids))
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete synced audit events past the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := openStore(cfg)
		defer store.Close()

		days, _ := cmd.Flags().GetInt("older-than")
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		pruned, err := store.PruneSynced(cmd.Context(), cutoff)
		if err != nil {
			return fmt.Errorf("prune audit trail: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Pruned %d events\n", pruned)
		return nil
	},
}
