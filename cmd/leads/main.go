// leads runs the lead-ingestion service and its maintenance tasks.
//
// Configuration comes from LEADS_* environment variables, for example:
//
//	LEADS_HTTP__ADDR=:8080
//	LEADS_HTTP__JWT_SECRET=change-me
//	LEADS_DATABASE__DRIVER=pgx
//	LEADS_DATABASE__DSN=postgres://leads@localhost/leads
//	LEADS_DISPATCH__MAX_RETRIES=2
//
// Usage:
//
//	leads migrate
//	leads serve
//	leads scope add --id demo --name "Demo" --owner user_1 --target generic=https://hooks.example.com/x
//	leads resolve https://www.notion.so/Page-0123abcd0123abcd0123abcd0123abcd
//	leads test-target --scope demo --kind chat_variant_a https://hooks.slack.com/services/x
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd(EnvLoader{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(loader EnvLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leads",
		Short: "Collect leads and fan them out to notification targets",
		Long: `leads accepts lead submissions over HTTP, collapses duplicates per
project and notifies every configured webhook target.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(loader))
	rootCmd.AddCommand(migrateCmd(loader))
	rootCmd.AddCommand(scopeCmd(loader))
	rootCmd.AddCommand(resolveCmd(loader))
	rootCmd.AddCommand(testTargetCmd(loader))
	return rootCmd
}
