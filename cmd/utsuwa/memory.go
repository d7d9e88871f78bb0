package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/pkg/app"
	"github.com/spf13/cobra"
)

// errModelUnavailable is returned when a command needs the embedding model
// and it could not be loaded.
var errModelUnavailable = errors.New("embedding model unavailable")

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Query and maintain the companion's memory",
	}
	cmd.AddCommand(memoryRecallCmd(), memoryEmbedCmd())
	return cmd
}

func memoryRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Show the facts recalled for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asPrompt, _ := cmd.Flags().GetBool("prompt")
			maxTokens, _ := cmd.Flags().GetInt("max-tokens")

			rt, err := app.Open(cmd.Context(), params(cmd, false))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			if !rt.Embedder.Init(cmd.Context()) {
				return fmt.Errorf("%w: %s", errModelUnavailable, rt.Embedder.Status().Error)
			}
			if limit <= 0 {
				limit = rt.Config.Memory.Limit
			}
			query := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if asPrompt {
				facts, err := memory.InjectMemory(cmd.Context(), memory.InjectionRequest{
					Recaller:  rt.Recaller,
					Query:     query,
					MaxFacts:  limit,
					MaxTokens: maxTokens,
				})
				if err != nil {
					return err
				}
				fmt.Fprint(out, memory.FormatFacts(facts))
				return nil
			}

			results, err := rt.Recaller.Recall(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "Nothing relevant remembered.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "%.3f  sim=%.3f  imp=%-3d  %s\n", r.Score, r.Similarity, r.Fact.Importance, r.Fact.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of facts (default from config)")
	cmd.Flags().Bool("prompt", false, "Print the facts as they are injected into the prompt")
	cmd.Flags().Int("max-tokens", 500, "Token budget of the prompt section, with --prompt")
	return cmd
}

func memoryEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed every fact that has no embedding yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Open(cmd.Context(), params(cmd, false))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			before, err := store.FactsWithoutEmbedding(cmd.Context(), rt.Store)
			if err != nil {
				return err
			}
			if len(before) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Every fact is already embedded.")
				return nil
			}
			if !rt.Embedder.Init(cmd.Context()) {
				return fmt.Errorf("%w: %s", errModelUnavailable, rt.Embedder.Status().Error)
			}

			// The backfill job caps each run; repeat until a run makes no progress.
			pending := len(before)
			for pending > 0 {
				if err := rt.Scheduler.RunNow(cmd.Context(), cron.BackfillJobName); err != nil {
					return err
				}
				left, err := store.FactsWithoutEmbedding(cmd.Context(), rt.Store)
				if err != nil {
					return err
				}
				if len(left) == pending {
					break
				}
				pending = len(left)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d facts\n", len(before)-pending, len(before))
			return nil
		},
	}
}
