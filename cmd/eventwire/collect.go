package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/payload"
	"github.com/vango-dev/eventwire/pkg/server"
)

func newCollectCmd(a *app) *cobra.Command {
	var (
		selector string
		sets     []string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Print the payload collected from an element",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.loadBundle(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := b.document()
			if err != nil {
				return err
			}
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			if err := server.ApplyValues(doc, values); err != nil {
				return err
			}

			el := doc.Query(selector)
			if el == nil {
				return wireerrors.New("E340").WithDetail(selector)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload.Collect(el))
		},
	}

	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector of the element")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a value first, as selector=value (repeatable)")
	_ = cmd.MarkFlagRequired("selector")
	return cmd
}
