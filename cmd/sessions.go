package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/finsight-labs/finsight/internal/store"
)

var (
	sessionsLimit int
	sessionsID    string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent analysis sessions from the audit store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		audit, err := store.NewSQLite(cfg.Audit.DatabasePath)
		if err != nil {
			return eris.Wrap(err, "open audit store")
		}
		defer audit.Close()

		if err := audit.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate audit store")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if sessionsID != "" {
			records, err := audit.SessionAttributions(ctx, sessionsID)
			if err != nil {
				return eris.Wrap(err, "load attributions")
			}
			return enc.Encode(records)
		}

		sessions, err := audit.ListSessions(ctx, sessionsLimit)
		if err != nil {
			return eris.Wrap(err, "list sessions")
		}
		return enc.Encode(sessions)
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "max sessions to list")
	sessionsCmd.Flags().StringVar(&sessionsID, "attributions", "", "print the attribution log for a session id instead")
	rootCmd.AddCommand(sessionsCmd)
}
