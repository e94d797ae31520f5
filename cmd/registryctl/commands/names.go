package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List every currently registered name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Names []struct {
				Name  string `json:"name"`
				Owner string `json:"owner"`
			} `json:"names"`
		}
		if err := getJSON("/api/v1/names", nil, &out); err != nil {
			return err
		}

		sort.Slice(out.Names, func(i, j int) bool {
			return out.Names[i].Name < out.Names[j].Name
		})

		if outputFormat == "json" {
			return json.NewEncoder(os.Stdout).Encode(out.Names)
		}

		for _, n := range out.Names {
			fmt.Printf("%-30s %s\n", n.Name, n.Owner)
		}
		return nil
	},
}
