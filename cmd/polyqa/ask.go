package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/polyqa/internal/domain"
	logpkg "github.com/kailas-cloud/polyqa/internal/logger"
)

func askCMD() *cobra.Command {
	var language, session string
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer a.close()

			ctx, usage := domain.NewContextWithUsage(logpkg.ContextWithLogger(cmd.Context(), a.logger))
			result, err := a.query.Process(ctx, domain.Query{
				Text:      strings.Join(args, " "),
				Language:  language,
				SessionID: session,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintf(os.Stderr, "tokens: embedding=%d completion=%d\n",
				usage.EmbeddingTokens, usage.CompletionTokens)
			return nil
		},
	}
	ask.Flags().StringVar(&language, "language", "", `source language ("auto" or empty to detect)`)
	ask.Flags().StringVar(&session, "session", "", "session id for conversation memory")
	return ask
}
