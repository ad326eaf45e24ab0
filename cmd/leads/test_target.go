package main

import (
	"fmt"

	"github.com/goliatone/go-leads/core"
	"github.com/spf13/cobra"
)

func testTargetCmd(loader EnvLoader) *cobra.Command {
	var (
		scopeID string
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "test-target <destination>",
		Short: "Send one synthetic notification to a target",
		Long: `Send one synthetic lead to a destination using the project's display
name. Exactly one attempt is made; the outcome is printed and a failed
delivery exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), loader, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			outcome, err := rt.service.DispatchTest(cmd.Context(), core.DispatchTestRequest{
				ScopeID: scopeID,
				Target:  core.DeliveryTarget{Kind: core.TargetKind(kind), Destination: args[0]},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%d success=%t message=%q\n", outcome.StatusCode, outcome.Success, outcome.Message)
			if !outcome.Success {
				return fmt.Errorf("leads: test delivery to %s failed", core.RedactDestination(args[0]))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scopeID, "scope", "", "Project id whose name is used in the message")
	cmd.Flags().StringVar(&kind, "kind", string(core.TargetKindGeneric), "Target kind: generic, chat_variant_a, chat_variant_b")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
