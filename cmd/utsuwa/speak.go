package main

import (
	"bufio"
	"strings"
	"time"

	"github.com/flemzord/utsuwa/internal/voice"
	"github.com/spf13/cobra"
)

func speakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Queue utterances on the terminal speaker",
		Long: "Queue each argument, or each line of stdin when no argument is given, and\n" +
			"speak them in order on the terminal. Interrupt with Ctrl-C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, _ := cmd.Flags().GetDuration("per-rune")

			q := voice.NewQueue(&voice.WriterSpeaker{W: cmd.OutOrStdout(), PerRune: rate})
			defer q.Stop()

			if len(args) > 0 {
				for _, text := range args {
					q.Speak(text)
				}
			} else {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					q.Speak(strings.TrimSpace(sc.Text()))
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			return q.Wait(cmd.Context())
		},
	}
	cmd.Flags().Duration("per-rune", 40*time.Millisecond, "Simulated speaking time per character")
	return cmd
}
