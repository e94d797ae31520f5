package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unregisterCmd = &cobra.Command{
	Use:   "unregister <name>",
	Short: "Release a name previously registered under this CLI's owner id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Outcome string `json:"outcome"`
		}
		err := postJSON("/api/v1/unregister", map[string]string{
			"name":     args[0],
			"owner_id": ownerID,
		}, &out)
		if err != nil {
			return err
		}
		fmt.Printf("unregistered %q: outcome=%s\n", args[0], out.Outcome)
		return nil
	},
}
