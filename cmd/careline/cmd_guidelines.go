package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/careline/internal/rag"
	"github.com/user/careline/pkg/llm/llamacpp"
)

func init() {
	rootCmd.AddCommand(guidelinesCmd)
	guidelinesCmd.AddCommand(guidelinesSeedCmd, guidelinesCountCmd, guidelinesDeleteCmd)
	guidelinesSeedCmd.Flags().Bool("force", false, "re-seed even if chunks already exist")
	guidelinesDeleteCmd.Flags().String("source", "", "source whose chunks to delete")
	guidelinesDeleteCmd.MarkFlagRequired("source")
}

var guidelinesCmd = &cobra.Command{
	Use:   "guidelines",
	Short: "Manage the reference guideline index",
}

func openIndex() (*rag.Index, func()) {
	cfg := loadConfig()
	setupLogging(cfg)
	store := openStore(cfg)
	embedder := llamacpp.New(cfg.Embeddings.BaseURL, "embeddings")
	return rag.New(store, embedder), func() { store.Close() }
}

var guidelinesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Index the built-in guideline set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		idx, closeStore := openIndex()
		defer closeStore()

		if err := rag.Seed(cmd.Context(), idx, force); err != nil {
			return fmt.Errorf("seed guidelines: %w", err)
		}
		count, err := idx.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Indexed chunks: %d\n", count)
		return nil
	},
}

var guidelinesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many chunks are indexed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, closeStore := openIndex()
		defer closeStore()

		count, err := idx.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d\n", count)
		return nil
	},
}

var guidelinesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete all chunks from one source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		idx, closeStore := openIndex()
		defer closeStore()

		deleted, err := idx.DeleteSource(cmd.Context(), source)
		if err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Deleted %d chunks from %s\n", deleted, source)
		return nil
	},
}
