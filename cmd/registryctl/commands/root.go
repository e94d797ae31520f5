package commands

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// addr is the base HTTP address of a running registryd's web relay.
	addr string

	// ownerID identifies this CLI invocation as a registry owner across
	// register/unregister calls. Defaults to a fresh uuid per invocation
	// unless pinned, since most uses are fire-and-forget one-shot calls.
	ownerID string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "registryctl",
	Short: "Client for the process registry daemon",
	Long: `registryctl talks to a running registryd's HTTP facade to register
and look up names, watch key events live, and inspect the current name
table.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&addr, "addr", "http://localhost:8090",
		"Base address of the registryd web relay",
	)
	rootCmd.PersistentFlags().StringVar(
		&ownerID, "owner-id", defaultOwnerID(),
		"Owner id to register names under (default: a fresh id per invocation)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(namesCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(demoCmd)
}

func defaultOwnerID() string {
	if env := os.Getenv("REGISTRYCTL_OWNER_ID"); env != "" {
		return env
	}
	return uuid.NewString()
}
