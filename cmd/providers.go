package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/finsight-labs/finsight/internal/capability"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the provider fallback chains per capability",
	RunE: func(cmd *cobra.Command, args []string) error {
		routing := capability.DefaultRouting()
		if cfg.Routing.File != "" {
			r, err := capability.LoadRouting(cfg.Routing.File)
			if err != nil {
				return eris.Wrap(err, "load routing")
			}
			routing = r
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(routing.Chains)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
