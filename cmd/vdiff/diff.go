package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/sink"
	"github.com/vango-dev/vdiff/pkg/treedoc"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func diffCmd() *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "diff PREV NEXT",
		Short: "Print the mutations that turn one tree into another",
		Long: `Reconcile PREV into NEXT and print the mutation list.

Documents may be YAML, JSON or HTML, chosen by file extension. Handles are
numbered in creation order; #0 is the container the tree renders into.

Examples:
  vdiff diff before.yaml after.yaml
  vdiff diff --format json before.html after.html`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := diffFiles(cmd.Context(), args[0], args[1], strict)
			if err != nil {
				return err
			}
			switch format {
			case "text":
				return writeDiffText(cmd.OutOrStdout(), res)
			case "json":
				return writeDiffJSON(cmd.OutOrStdout(), res)
			default:
				return errors.Newf(errors.CategoryCLI, "unknown output format %q", format).
					WithSuggestion(`Use "text" or "json"`)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text or json)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject duplicate sibling keys")

	return cmd
}

type diffResult struct {
	Mutations []reconcile.Mutation
	Stats     reconcile.Stats
}

// diffFiles renders prev into a recording sink, then reconciles to next and
// returns only the second pass.
func diffFiles(ctx context.Context, prevPath, nextPath string, strict bool) (*diffResult, error) {
	prev, err := treedoc.ParseFile(prevPath)
	if err != nil {
		return nil, err
	}
	next, err := treedoc.ParseFile(nextPath)
	if err != nil {
		return nil, err
	}

	rec := sink.NewRecorder(nil)
	r := reconcile.New(rec,
		reconcile.WithStrictKeys(strict),
		reconcile.WithLogger(slog.Default().With("component", "diff")),
	)
	inst, _, err := r.Reconcile(ctx, nil, prev, nil)
	if err != nil {
		return nil, err
	}
	rec.Reset()

	_, stats, err := r.Reconcile(ctx, nil, next, inst)
	if err != nil {
		return nil, err
	}
	return &diffResult{Mutations: rec.Mutations(), Stats: stats}, nil
}

// handleID maps recorder handles to numbers; nil is the container (#0).
func handleID(h reconcile.Handle) int {
	if id, ok := h.(int); ok {
		return id
	}
	return 0
}

func formatMutation(m reconcile.Mutation) string {
	switch m.Op {
	case reconcile.OpCreate:
		what := fmt.Sprintf("%q", m.Node.Text)
		if m.Node.Kind == vdom.KindElement {
			what = "<" + m.Node.Tag + ">"
		}
		if m.Node.Key.IsSet() {
			what += " key=" + m.Node.Key.String()
		}
		s := fmt.Sprintf("Create #%d %s in #%d", handleID(m.Handle), what, handleID(m.Parent))
		if m.Before != nil {
			s += fmt.Sprintf(" before #%d", handleID(m.Before))
		}
		return s
	case reconcile.OpRemove:
		return fmt.Sprintf("Remove #%d", handleID(m.Handle))
	case reconcile.OpMove:
		if m.Before == nil {
			return fmt.Sprintf("Move #%d to end", handleID(m.Handle))
		}
		return fmt.Sprintf("Move #%d before #%d", handleID(m.Handle), handleID(m.Before))
	case reconcile.OpSetAttribute:
		return fmt.Sprintf("SetAttribute #%d %s=%q", handleID(m.Handle), m.Name, m.Value)
	case reconcile.OpClearAttribute:
		return fmt.Sprintf("ClearAttribute #%d %s", handleID(m.Handle), m.Name)
	case reconcile.OpSetText:
		return fmt.Sprintf("SetText #%d %q", handleID(m.Handle), m.Value)
	default:
		return m.String()
	}
}

func summarize(stats reconcile.Stats) string {
	var parts []string
	for _, op := range reconcile.Ops {
		if n := stats.Count(op); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", op, n))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return fmt.Sprintf("%d mutations (%s)", stats.Total(), strings.Join(parts, " "))
}

func writeDiffText(w io.Writer, res *diffResult) error {
	for _, m := range res.Mutations {
		if _, err := fmt.Fprintln(w, formatMutation(m)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, summarize(res.Stats))
	return err
}

type mutationJSON struct {
	Op     string `json:"op"`
	Handle int    `json:"handle"`
	Parent *int   `json:"parent,omitempty"`
	Before *int   `json:"before,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Text   string `json:"text,omitempty"`
	Key    string `json:"key,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

func toMutationJSON(m reconcile.Mutation) mutationJSON {
	out := mutationJSON{
		Op:     m.Op.String(),
		Handle: handleID(m.Handle),
		Name:   m.Name,
		Value:  m.Value,
	}
	if m.Before != nil {
		before := handleID(m.Before)
		out.Before = &before
	}
	if m.Op == reconcile.OpCreate {
		parent := handleID(m.Parent)
		out.Parent = &parent
		if m.Node.Kind == vdom.KindElement {
			out.Tag = m.Node.Tag
		} else {
			out.Text = m.Node.Text
		}
		if m.Node.Key.IsSet() {
			out.Key = m.Node.Key.String()
		}
	}
	return out
}

func writeDiffJSON(w io.Writer, res *diffResult) error {
	doc := struct {
		Mutations []mutationJSON  `json:"mutations"`
		Stats     reconcile.Stats `json:"stats"`
	}{
		Mutations: make([]mutationJSON, 0, len(res.Mutations)),
		Stats:     res.Stats,
	}
	for _, m := range res.Mutations {
		doc.Mutations = append(doc.Mutations, toMutationJSON(m))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
