package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/qa"
)

func newAskCmd() *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documentation",
		Long: `Retrieve the most relevant documentation passages and generate an answer
with cited sources.

Examples:
  docsift ask "how do I configure authentication?"
  docsift ask "what storage backends are supported?" --top-k 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			generator, err := qa.NewGenerator(cfg)
			if err != nil {
				return err
			}
			engine, err := qa.NewEngine(a.retriever, generator)
			if err != nil {
				return err
			}

			if topK <= 0 {
				topK = cfg.Retrieval.TopK
			}
			question := strings.Join(args, " ")
			answer, err := engine.Ask(ctx, question, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(answer)
			}
			_, err = out.Write([]byte(answer.FormatMarkdown()))
			return err
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the answer as JSON")

	return cmd
}
