package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Register a handful of demo names, look them up, then clean up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		demoOwner := "demo-" + uuid.NewString()
		names := []string{"demo.worker.a", "demo.worker.b", "demo.worker.c"}

		fmt.Printf("using owner id %s\n", demoOwner)

		for _, name := range names {
			var out struct {
				Outcome string `json:"outcome"`
			}
			if err := postJSON("/api/v1/register", map[string]string{
				"name":     name,
				"owner_id": demoOwner,
			}, &out); err != nil {
				return fmt.Errorf("failed to register %q: %w", name, err)
			}
			fmt.Printf("registered %-20s outcome=%s\n", name, out.Outcome)
		}

		time.Sleep(200 * time.Millisecond)

		for _, name := range names {
			var out struct {
				Found bool   `json:"found"`
				Owner string `json:"owner"`
			}
			if err := getJSON("/api/v1/lookup", map[string][]string{"name": {name}}, &out); err != nil {
				return fmt.Errorf("failed to look up %q: %w", name, err)
			}
			fmt.Printf("lookup %-20s found=%v owner=%s\n", name, out.Found, out.Owner)
		}

		for _, name := range names {
			var out struct {
				Outcome string `json:"outcome"`
			}
			if err := postJSON("/api/v1/unregister", map[string]string{
				"name":     name,
				"owner_id": demoOwner,
			}, &out); err != nil {
				return fmt.Errorf("failed to unregister %q: %w", name, err)
			}
			fmt.Printf("unregistered %-20s outcome=%s\n", name, out.Outcome)
		}

		return nil
	},
}
