package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRoutesCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.loadBundle(cmd.Context())
			if err != nil {
				return err
			}
			e, err := a.engine(b)
			if err != nil {
				return err
			}
			routes := e.Routes().Routes()
			w := cmd.OutOrStdout()

			if output == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(routes)
			}

			if len(routes) == 0 {
				_, _ = fmt.Fprintln(w, "(no routes)")
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Method", "Pattern", "Handler", "Options"})
			for _, r := range routes {
				t.AppendRow(table.Row{r.Method, r.Pattern, r.Handler.Owner + "@" + r.Handler.Member, formatOptions(r.Options.Headers, r.Options.Query)})
			}
			t.Render()
			_, _ = fmt.Fprintf(w, "(%d routes, base %q)\n", len(routes), e.Routes().BasePath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json)")
	return cmd
}

func formatOptions(headers, query map[string]string) string {
	var parts []string
	for _, k := range sortedKeys(headers) {
		parts = append(parts, "header "+k+"="+headers[k])
	}
	for _, k := range sortedKeys(query) {
		parts = append(parts, "query "+k+"="+query[k])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
