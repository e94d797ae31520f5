package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a name under this CLI's owner id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Outcome string `json:"outcome"`
			Pid     string `json:"pid"`
		}
		err := postJSON("/api/v1/register", map[string]string{
			"name":     args[0],
			"owner_id": ownerID,
		}, &out)
		if err != nil {
			return err
		}
		fmt.Printf("registered %q: outcome=%s pid=%s owner_id=%s\n",
			args[0], out.Outcome, out.Pid, ownerID)
		return nil
	},
}
