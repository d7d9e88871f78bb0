// Package main is the entry point for the utsuwa CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/utsuwa/internal/config"
	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/pkg/app"
	"github.com/spf13/cobra"

	// Compiled-in modules.
	_ "github.com/flemzord/utsuwa/internal/gateway"
	_ "github.com/flemzord/utsuwa/modules/embedding/fastembed"
	_ "github.com/flemzord/utsuwa/modules/embedding/ollama"
	_ "github.com/flemzord/utsuwa/modules/embedding/openai"
	_ "github.com/flemzord/utsuwa/modules/store/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "utsuwa",
		Short:         "Memory and save-file core of a local AI companion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Persistent data directory")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(versionCmd(), startCmd(), configCmd(), saveCmd(), memoryCmd(), speakCmd())
	return root
}

// params builds runtime parameters from the persistent flags.
func params(cmd *cobra.Command, batch bool) app.Params {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return app.Params{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Version:    version,
		Commit:     commit,
		Date:       date,
		LogLevel:   level,
		LogOutput:  cmd.ErrOrStderr(),
		Batch:      batch,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "utsuwa %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start utsuwa with all configured modules and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := params(cmd, false)
			if debug, _ := cmd.Flags().GetBool("debug"); !debug {
				p.LogLevel = slog.LevelInfo
			}
			return app.Run(cmd.Context(), p)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := params(cmd, true)
			if len(args) == 1 {
				p.ConfigPath = args[0]
			}
			rt, err := app.Open(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			out := cmd.OutOrStdout()
			ids := config.Resolve(rt.Config)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			fmt.Fprintln(out, "Jobs:")
			for _, name := range rt.Scheduler.Jobs() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	})
	return cmd
}
