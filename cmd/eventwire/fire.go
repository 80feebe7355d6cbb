package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/server"
)

func newFireCmd(a *app) *cobra.Command {
	var (
		req    server.EventRequest
		sets   []string
		output string
		render bool
	)

	cmd := &cobra.Command{
		Use:   "fire",
		Short: "Fire one event at an element and report the outcomes",
		Example: `  eventwire fire --document page.html --manifest routes.toml \
    --selector '#user-form' --event submit --set '#name=Ada' --set '#email=ada@example.com'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			req.Values = values

			b, err := a.loadBundle(cmd.Context())
			if err != nil {
				return err
			}
			e, err := a.engine(b, a.middlewares(prometheus.NewRegistry())...)
			if err != nil {
				return err
			}
			outs, err := server.Fire(cmd.Context(), e, req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch output {
			case "json":
				if err := renderOutcomesJSON(w, outs); err != nil {
					return err
				}
			default:
				renderOutcomes(w, outs)
			}
			if render {
				_, _ = fmt.Fprintln(w, e.Document().String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Selector, "selector", "", "CSS selector of the target element")
	cmd.Flags().StringVar(&req.Event, "event", "click", "event type")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a value before firing, as selector=value (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json)")
	cmd.Flags().BoolVar(&render, "render", false, "print the document after the event")
	_ = cmd.MarkFlagRequired("selector")
	return cmd
}

// parseSets splits selector=value pairs. The last "=" separates the value
// so attribute selectors like input[name=x] survive.
func parseSets(sets []string) (map[string]string, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		i := strings.LastIndex(s, "=")
		if i <= 0 {
			return nil, wireerrors.New("E341").WithDetailf("--set %q is not selector=value", s)
		}
		out[s[:i]] = s[i+1:]
	}
	return out, nil
}

func renderOutcomes(w io.Writer, outs []*dispatch.Outcome) {
	if len(outs) == 0 {
		_, _ = fmt.Fprintln(w, "(no handlers ran)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Handler", "Category", "Stage", "Remote", "Result", "Error", "Duration"})
	for _, o := range outs {
		t.AppendRow(table.Row{
			o.Owner + "@" + o.Member,
			o.Category,
			string(o.Stage),
			o.Remote,
			formatResult(o),
			formatError(o),
			o.Duration.Round(time.Microsecond),
		})
	}
	t.Render()
}

func renderOutcomesJSON(w io.Writer, outs []*dispatch.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(server.Views(outs))
}

func formatResult(o *dispatch.Outcome) string {
	if o.Result == nil {
		return ""
	}
	data, err := json.Marshal(o.Result)
	if err != nil {
		return fmt.Sprint(o.Result)
	}
	return truncate(string(data), 60)
}

func formatError(o *dispatch.Outcome) string {
	var parts []string
	if o.Alert != "" {
		parts = append(parts, "alert: "+o.Alert)
	}
	for _, field := range o.Errors.Fields() {
		parts = append(parts, field+": "+o.Errors[field])
	}
	if o.Err != nil && len(o.Errors) == 0 && o.Alert == "" {
		parts = append(parts, o.Err.Error())
	}
	if o.FallbackErr != nil {
		parts = append(parts, "fallback: "+o.FallbackErr.Error())
	}
	return truncate(strings.Join(parts, "; "), 80)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
