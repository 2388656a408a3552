package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/pipeline"
)

var (
	analyzeSubject string
	analyzeDocs    []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis session and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := loadDocuments(analyzeDocs)
		if err != nil {
			return err
		}

		sessionID, err := env.Coordinator.Start(ctx, pipeline.Request{
			Subject:   analyzeSubject,
			Documents: docs,
		})
		if err != nil {
			return eris.Wrap(err, "start session")
		}

		events, err := env.Coordinator.Subscribe(sessionID)
		if err != nil {
			return eris.Wrap(err, "subscribe")
		}

		// Forward Ctrl-C as a session cancel; the stream still ends with a
		// terminal event.
		go func() {
			<-ctx.Done()
			_ = env.Coordinator.Cancel(sessionID)
		}()

		for ev := range events {
			fmt.Fprintf(os.Stderr, "[%3d%%] %-17s %s\n", ev.Progress, ev.Stage, ev.Message)
		}

		result, err := env.Coordinator.Result(sessionID)
		if err != nil {
			return eris.Wrap(err, "fetch result")
		}

		zap.L().Info("analysis finished",
			zap.String("session", sessionID),
			zap.String("stage", string(result.Stage)),
			zap.Int("facts", len(result.Facts)),
			zap.Int("discrepancies", len(result.Discrepancies)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// loadDocuments reads document files from disk, inferring MIME from the
// extension.
func loadDocuments(paths []string) ([]extract.Document, error) {
	docs := make([]extract.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read document %s", path)
		}
		docs = append(docs, extract.Document{
			Name: filepath.Base(path),
			MIME: mime.TypeByExtension(filepath.Ext(path)),
			Data: data,
		})
	}
	return docs, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSubject, "subject", "", "subject company name or ticker")
	analyzeCmd.Flags().StringArrayVar(&analyzeDocs, "doc", nil, "document file to ingest (repeatable)")
	rootCmd.AddCommand(analyzeCmd)
}
