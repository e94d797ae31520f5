package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Look up the current owner of a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Found bool   `json:"found"`
			Owner string `json:"owner"`
		}
		err := getJSON("/api/v1/lookup", url.Values{"name": {args[0]}}, &out)
		if err != nil {
			return err
		}
		if !out.Found {
			fmt.Printf("%q is not registered\n", args[0])
			return nil
		}
		fmt.Printf("%q -> %s\n", args[0], out.Owner)
		return nil
	},
}
