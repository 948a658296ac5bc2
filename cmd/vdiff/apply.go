package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/sink"
	"github.com/vango-dev/vdiff/pkg/treedoc"
)

func applyCmd() *cobra.Command {
	var (
		pretty bool
		strict bool
		stats  bool
	)

	cmd := &cobra.Command{
		Use:   "apply PREV NEXT",
		Short: "Render PREV, reconcile to NEXT and print the resulting HTML",
		Long: `Render PREV into an in-memory tree, reconcile it to NEXT and print the
HTML of the patched tree. The output matches rendering NEXT directly.

Examples:
  vdiff apply before.yaml after.yaml
  vdiff apply --pretty --stats before.html after.html`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, st, err := applyFiles(cmd.Context(), args[0], args[1], pretty, strict)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), html)
			if stats {
				info(cmd.ErrOrStderr(), "%s", summarize(st))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Pretty-print the HTML")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject duplicate sibling keys")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print mutation counts to stderr")

	return cmd
}

func applyFiles(ctx context.Context, prevPath, nextPath string, pretty, strict bool) (string, reconcile.Stats, error) {
	prev, err := treedoc.ParseFile(prevPath)
	if err != nil {
		return "", reconcile.Stats{}, err
	}
	next, err := treedoc.ParseFile(nextPath)
	if err != nil {
		return "", reconcile.Stats{}, err
	}

	mem := sink.NewMemory()
	r := reconcile.New(mem,
		reconcile.WithStrictKeys(strict),
		reconcile.WithLogger(slog.Default().With("component", "apply")),
	)
	m := reconcile.NewMount(r, mem.Root(), reconcile.WithName("apply"))
	if _, err := m.Render(ctx, prev); err != nil {
		return "", reconcile.Stats{}, err
	}
	st, err := m.Render(ctx, next)
	if err != nil {
		return "", st, err
	}

	html, err := mem.HTML(pretty)
	return html, st, err
}
