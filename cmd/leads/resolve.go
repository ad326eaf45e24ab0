package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-leads/core"
	"github.com/spf13/cobra"
)

func resolveCmd(loader EnvLoader) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "resolve <url-or-id>",
		Short: "Fetch a published reference document",
		Long: `Fetch a published reference document through the configured
providers and print it as JSON.

Examples:
  leads resolve https://www.notion.so/Pricing-0123abcd0123abcd0123abcd0123abcd
  leads resolve --id 0123abcd0123abcd0123abcd0123abcd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), loader, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			var doc core.ReferenceDocument
			if byID {
				doc, err = rt.service.ResolveByID(cmd.Context(), args[0])
			} else {
				doc, err = rt.service.Resolve(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, doc.Content, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(doc.Content)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "page %s via %s\n", doc.CanonicalID, doc.Provider)
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "Treat the argument as a page id instead of a URL")
	return cmd
}
