package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/security"
	"github.com/flemzord/utsuwa/pkg/app"
	"github.com/spf13/cobra"
)

// errImportCanceled is returned when the replace confirmation is declined.
var errImportCanceled = errors.New("import canceled")

func saveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Export, preview and import save files",
	}
	cmd.AddCommand(saveExportCmd(), savePreviewCmd(), saveImportCmd())
	return cmd
}

func saveExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a save file of the companion's data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("output")

			rt, err := app.Open(cmd.Context(), params(cmd, true))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			sf, err := rt.Codec.Export(cmd.Context())
			if err != nil {
				return err
			}
			if dir == "-" {
				_, err := sf.WriteTo(cmd.OutOrStdout())
				return err
			}
			path, err := savefile.WriteFile(dir, sf, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", ".", `Directory to write into, or "-" for stdout`)
	return cmd
}

func savePreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file>",
		Short: "Validate a save file and summarize it without importing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSaveFile(args[0])
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), doc.Preview())
			return nil
		},
	}
}

func saveImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a save file",
		Long: "Import a save file. Merge mode adds the file's entries to the existing data and\n" +
			"keeps the current character. Replace mode erases everything first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawMode, _ := cmd.Flags().GetString("mode")
			skipDup, _ := cmd.Flags().GetBool("skip-duplicates")
			yes, _ := cmd.Flags().GetBool("yes")

			mode, err := savefile.ParseMode(rawMode)
			if err != nil {
				return err
			}
			doc, err := readSaveFile(args[0])
			if err != nil {
				return err
			}
			preview := doc.Preview()
			printPreview(cmd.OutOrStdout(), preview)

			if mode == savefile.ModeReplace && !yes {
				if err := confirmReplace(preview); err != nil {
					return err
				}
			}

			rt, err := app.Open(cmd.Context(), params(cmd, true))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			res, err := rt.Migrator.Import(cmd.Context(), doc, mode, savefile.ImportOptions{SkipDuplicateFacts: skipDup})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d, rejected %d\n", res.Imported, res.Skipped, res.Rejected)
			return nil
		},
	}
	cmd.Flags().String("mode", string(savefile.ModeMerge), "Import mode: merge or replace")
	cmd.Flags().Bool("skip-duplicates", false, "Skip facts whose content already exists")
	cmd.Flags().BoolP("yes", "y", false, "Replace without asking for confirmation")
	return cmd
}

// confirmReplace asks before a replace import erases the current data.
func confirmReplace(p savefile.Preview) error {
	var ok bool
	err := huh.NewConfirm().
		Title("Replace all data?").
		Description(fmt.Sprintf("Every fact, session and conversation will be erased and replaced by %s's save.", p.CharacterName)).
		Affirmative("Replace").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) || (err == nil && !ok) {
		return errImportCanceled
	}
	return err
}

// readSaveFile reads path with the same size and nesting limits as the
// gateway, then validates its structure.
func readSaveFile(path string) (*savefile.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := security.ReadJSON(f, security.DefaultMaxDocumentSize, security.DefaultMaxJSONDepth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc, err := savefile.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func printPreview(w io.Writer, p savefile.Preview) {
	exported := "unknown"
	if !p.ExportedAt.IsZero() {
		exported = p.ExportedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "Save file v%s from utsuwa %s, exported %s\n", p.Version, p.AppVersion, exported)
	fmt.Fprintf(w, "  character:          %s\n", p.CharacterName)
	fmt.Fprintf(w, "  facts:              %d\n", p.Counts.Facts)
	fmt.Fprintf(w, "  sessions:           %d\n", p.Counts.Sessions)
	fmt.Fprintf(w, "  conversation turns: %d\n", p.Counts.ConversationTurns)
	fmt.Fprintf(w, "  completed events:   %d\n", p.Counts.CompletedEvents)
}
