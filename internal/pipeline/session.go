// Package pipeline drives the staged analysis: document ingestion, entity
// resolution and external enrichment, metric computation, insight synthesis,
// and finalization. Stages run strictly in order; progress is observable;
// partial failure never discards completed work.
package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/finsight-labs/finsight/internal/attribution"
	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/internal/metrics"
	"github.com/finsight-labs/finsight/internal/orchestrator"
	"github.com/finsight-labs/finsight/internal/xref"
)

// Stage is a pipeline state-machine state.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageIngesting        Stage = "ingesting"
	StageEnriching        Stage = "enriching"
	StageComputingMetrics Stage = "computing_metrics"
	StageSynthesizing     Stage = "synthesizing"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
	StageCancelled        Stage = "cancelled"
)

// Terminal reports whether the stage ends the session.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageCancelled:
		return true
	}
	return false
}

// Request starts one analysis.
type Request struct {
	Subject   string
	Documents []extract.Document
}

// DocumentNote records the per-document outcome of the ingest stage.
// Extraction failures are notes, not pipeline failures.
type DocumentNote struct {
	Document string `json:"document"`
	OK       bool   `json:"ok"`
	Facts    int    `json:"facts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StageOutputs accumulates committed stage results. Outputs survive
// cancellation and failure; whatever a stage committed stays retrievable.
type StageOutputs struct {
	DocumentFacts fact.Set                                          `json:"document_facts,omitempty"`
	DocumentNotes []DocumentNote                                    `json:"document_notes,omitempty"`
	Identifier    string                                            `json:"identifier,omitempty"`
	DocumentOnly  bool                                              `json:"document_only,omitempty"`
	Enrichment    map[capability.Capability]orchestrator.FetchOutcome `json:"enrichment,omitempty"`
	ProviderFacts fact.Set                                          `json:"provider_facts,omitempty"`
	MergedFacts   fact.Set                                          `json:"merged_facts,omitempty"`
	Discrepancies []xref.Discrepancy                                `json:"discrepancies,omitempty"`
	Metrics       []metrics.Metric                                  `json:"metrics,omitempty"`
	Insights      []metrics.Insight                                 `json:"insights,omitempty"`
}

// Session is one end-to-end analysis run. It is owned exclusively by the
// coordinator and mutated only on stage transitions.
type Session struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Stage       Stage        `json:"stage"`
	Progress    int          `json:"progress"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Outputs     StageOutputs `json:"outputs"`
	Error       string       `json:"error,omitempty"`
}

// Event is one progress notification. A Terminal event is always the last
// one a subscriber receives.
type Event struct {
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Terminal  bool   `json:"terminal"`
}

// Result is what the presentation layer receives for a finished (or
// cancelled/failed) session.
type Result struct {
	SessionID     string               `json:"session_id"`
	Subject       string               `json:"subject"`
	Stage         Stage                `json:"stage"`
	Facts         fact.Set             `json:"facts"`
	Attribution   []attribution.Record `json:"attribution"`
	Discrepancies []xref.Discrepancy   `json:"discrepancies"`
	Metrics       []metrics.Metric     `json:"metrics"`
	Insights      []metrics.Insight    `json:"insights"`
	DocumentNotes []DocumentNote       `json:"document_notes"`
	Error         string               `json:"error,omitempty"`
}

var (
	// ErrSessionActive is returned when Start is called while another
	// session is still running. Requests are rejected, not queued.
	ErrSessionActive = eris.New("pipeline: another analysis session is active")
	// ErrSessionNotFound is returned for unknown session handles.
	ErrSessionNotFound = eris.New("pipeline: session not found")
	// ErrSessionPending is returned by Result while the session is still
	// running.
	ErrSessionPending = eris.New("pipeline: session still in progress")
)
