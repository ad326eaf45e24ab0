package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-leads/core"
	"github.com/spf13/cobra"
)

type scopeAdmin interface {
	RegisterScope(ctx context.Context, scope core.Scope) (core.Scope, error)
	DeleteScope(ctx context.Context, scopeID string) error
}

func scopeCmd(loader EnvLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Manage projects and their notification targets",
	}
	cmd.AddCommand(scopeAddCmd(loader))
	cmd.AddCommand(scopeShowCmd(loader))
	cmd.AddCommand(scopeDeleteCmd(loader))
	return cmd
}

func scopeAddCmd(loader EnvLoader) *cobra.Command {
	var (
		scope   core.Scope
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a project and replace its targets",
		Long: `Create or update a project and replace its targets.

Examples:
  # Generic webhook plus a Slack-style channel
  leads scope add --id demo --name Demo --owner user_1 \
    --target generic=https://hooks.example.com/leads \
    --target chat_variant_a=https://hooks.slack.com/services/x`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseTargets(targets)
			if err != nil {
				return err
			}
			scope.Targets = parsed

			rt, err := newRuntime(cmd.Context(), loader, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			saved, err := scopeAdminFor(rt).RegisterScope(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return printScope(cmd, saved)
		},
	}
	cmd.Flags().StringVar(&scope.ID, "id", "", "Project id")
	cmd.Flags().StringVar(&scope.Name, "name", "", "Display name used in notifications")
	cmd.Flags().StringVar(&scope.OwnerID, "owner", "", "Owner id allowed to send test notifications")
	cmd.Flags().StringArrayVar(&targets, "target", nil, "Target as kind=url (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func scopeShowCmd(loader EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a project and its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), loader, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			scope, err := rt.factory.ScopeDirectory().GetScope(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if scope.Deleted {
				return fmt.Errorf("leads: scope %q is deleted", scope.ID)
			}
			return printScope(cmd, scope)
		},
	}
}

func scopeDeleteCmd(loader EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a project; new submissions for it are rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), loader, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()
			return scopeAdminFor(rt).DeleteScope(cmd.Context(), args[0])
		},
	}
}

func scopeAdminFor(rt *appRuntime) scopeAdmin {
	if admin, ok := rt.factory.ScopeDirectory().(scopeAdmin); ok {
		return admin
	}
	return rt.factory.Scopes()
}

func parseTargets(raw []string) ([]core.DeliveryTarget, error) {
	out := make([]core.DeliveryTarget, 0, len(raw))
	for _, entry := range raw {
		kindRaw, destination, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("leads: target %q must be kind=url", entry)
		}
		kind, ok := core.ParseTargetKind(kindRaw)
		if !ok {
			return nil, fmt.Errorf("leads: unknown target kind %q", kindRaw)
		}
		destination = strings.TrimSpace(destination)
		if err := core.ValidateDestination(destination); err != nil {
			return nil, err
		}
		out = append(out, core.DeliveryTarget{Kind: kind, Destination: destination})
	}
	return out, nil
}

type scopeView struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	OwnerID string       `json:"owner_id"`
	Targets []targetView `json:"targets"`
}

type targetView struct {
	Kind        core.TargetKind `json:"kind"`
	Destination string          `json:"destination"`
}

func printScope(cmd *cobra.Command, scope core.Scope) error {
	view := scopeView{ID: scope.ID, Name: scope.Name, OwnerID: scope.OwnerID, Targets: []targetView{}}
	for _, target := range scope.Targets {
		view.Targets = append(view.Targets, targetView{Kind: target.Kind, Destination: core.RedactDestination(target.Destination)})
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}
