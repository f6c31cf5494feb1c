package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove indexed documents",
		Long: `Remove all indexed documents, or only those of one repository.

Examples:
  docsift clear --repo owner/repo
  docsift clear`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			out := cmd.OutOrStdout()
			if repo != "" {
				if err := a.manager.ClearRepo(ctx, repo); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared repository: %s\n", repo)
				return nil
			}

			if err := a.manager.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Cleared all documents.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Clear only this repository")

	return cmd
}
