package pipeline

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finsight-labs/finsight/internal/attribution"
	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/internal/metrics"
	"github.com/finsight-labs/finsight/internal/orchestrator"
	"github.com/finsight-labs/finsight/internal/provider"
	"github.com/finsight-labs/finsight/internal/resolve"
	"github.com/finsight-labs/finsight/internal/store"
	"github.com/finsight-labs/finsight/internal/xref"
)

// maxConcurrentExtractions bounds parallel document extraction calls.
const maxConcurrentExtractions = 4

// Coordinator owns analysis sessions and runs them through the stage
// machine. Exactly one session is active at a time; concurrent Start calls
// are rejected with ErrSessionActive.
type Coordinator struct {
	picker   *extract.Picker
	fetcher  *orchestrator.Fetcher
	resolver *resolve.Resolver
	audit    store.AuditStore
	caps     []capability.Capability

	mu       sync.Mutex
	sessions map[string]*sessionState
	active   string
}

type sessionState struct {
	mu      sync.Mutex
	session Session
	ledger  *attribution.Ledger
	events  *broadcaster
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCoordinator creates a coordinator with explicitly injected
// collaborators. caps defaults to every known capability when empty.
func NewCoordinator(
	picker *extract.Picker,
	fetcher *orchestrator.Fetcher,
	resolver *resolve.Resolver,
	audit store.AuditStore,
	caps []capability.Capability,
) *Coordinator {
	if len(caps) == 0 {
		caps = capability.All()
	}
	if audit == nil {
		audit = store.NewMemory()
	}
	return &Coordinator{
		picker:   picker,
		fetcher:  fetcher,
		resolver: resolver,
		audit:    audit,
		caps:     caps,
		sessions: make(map[string]*sessionState),
	}
}

// Start begins a new analysis session and returns its handle immediately.
func (c *Coordinator) Start(ctx context.Context, req Request) (string, error) {
	if req.Subject == "" && len(req.Documents) == 0 {
		return "", eris.New("pipeline: a subject or at least one document is required")
	}

	c.mu.Lock()
	if c.active != "" {
		if st, ok := c.sessions[c.active]; ok {
			st.mu.Lock()
			terminal := st.session.Stage.Terminal()
			st.mu.Unlock()
			if !terminal {
				c.mu.Unlock()
				return "", ErrSessionActive
			}
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st := &sessionState{
		session: Session{
			ID:        uuid.New().String(),
			Subject:   req.Subject,
			Stage:     StageIdle,
			StartedAt: time.Now().UTC(),
		},
		ledger: attribution.NewLedger(),
		events: newBroadcaster(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.sessions[st.session.ID] = st
	c.active = st.session.ID
	c.mu.Unlock()

	go c.run(runCtx, st, req)
	return st.session.ID, nil
}

// Subscribe returns the finite progress stream for a session. The stream
// always ends with a terminal stage event.
func (c *Coordinator) Subscribe(sessionID string) (<-chan Event, error) {
	st, err := c.state(sessionID)
	if err != nil {
		return nil, err
	}
	return st.events.Subscribe(), nil
}

// Cancel requests cancellation of an in-flight session. It takes effect at
// the next stage or provider-dispatch boundary; in-flight provider calls
// complete or time out naturally.
func (c *Coordinator) Cancel(sessionID string) error {
	st, err := c.state(sessionID)
	if err != nil {
		return err
	}
	st.cancel()
	return nil
}

// Session returns a snapshot of the session.
func (c *Coordinator) Session(sessionID string) (Session, error) {
	st, err := c.state(sessionID)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session, nil
}

// Result returns the analysis result for a terminal session. While the
// session is still running it returns ErrSessionPending. After Failed or
// Cancelled, everything committed up to that point is still returned.
func (c *Coordinator) Result(sessionID string) (*Result, error) {
	st, err := c.state(sessionID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.session.Stage.Terminal() {
		return nil, ErrSessionPending
	}

	out := st.session.Outputs
	facts := out.MergedFacts
	if facts == nil {
		// Session ended before the merge committed; document facts are
		// still the caller's to keep.
		facts = out.DocumentFacts
	}
	if facts == nil {
		facts = fact.Set{}
	}

	return &Result{
		SessionID:     st.session.ID,
		Subject:       st.session.Subject,
		Stage:         st.session.Stage,
		Facts:         facts,
		Attribution:   st.ledger.All(),
		Discrepancies: out.Discrepancies,
		Metrics:       out.Metrics,
		Insights:      out.Insights,
		DocumentNotes: out.DocumentNotes,
		Error:         st.session.Error,
	}, nil
}

// Wait blocks until the session reaches a terminal stage. Test helper and
// CLI convenience.
func (c *Coordinator) Wait(sessionID string) error {
	st, err := c.state(sessionID)
	if err != nil {
		return err
	}
	<-st.done
	return nil
}

func (c *Coordinator) state(sessionID string) (*sessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// subjectPattern rejects subjects that cannot possibly resolve to an entity
// identifier. Hitting this mid-Enriching is the unrecoverable case.
var subjectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 .,&'\-]{0,79}$`)

func (c *Coordinator) run(ctx context.Context, st *sessionState, req Request) {
	defer close(st.done)
	log := zap.L().With(zap.String("session", st.session.ID), zap.String("subject", req.Subject))
	log.Info("pipeline: session starting", zap.Int("documents", len(req.Documents)))

	// Stage 1: document ingestion.
	c.transition(st, StageIngesting, 10, "Extracting facts from uploaded documents")
	docFacts, notes := c.ingest(ctx, req.Documents)
	st.mu.Lock()
	st.session.Outputs.DocumentFacts = docFacts
	st.session.Outputs.DocumentNotes = notes
	st.mu.Unlock()

	if c.cancelled(ctx, st) {
		return
	}

	// Stage 2: entity resolution and external enrichment.
	c.transition(st, StageEnriching, 35, "Resolving entity and fetching provider data")
	if err := c.enrich(ctx, st, req, docFacts); err != nil {
		if ctx.Err() != nil {
			c.finish(st, StageCancelled, "")
			return
		}
		c.finish(st, StageFailed, err.Error())
		return
	}

	if c.cancelled(ctx, st) {
		return
	}

	// Stage 3: metric computation. Pure transformation; partial inputs are
	// expected and never fail the stage.
	c.transition(st, StageComputingMetrics, 65, "Computing financial metrics")
	st.mu.Lock()
	merged := st.session.Outputs.MergedFacts
	st.session.Outputs.Metrics = metrics.Compute(merged)
	computed := st.session.Outputs.Metrics
	st.mu.Unlock()

	if c.cancelled(ctx, st) {
		return
	}

	// Stage 4: insight synthesis.
	c.transition(st, StageSynthesizing, 80, "Synthesizing risk and insight summary")
	st.mu.Lock()
	st.session.Outputs.Insights = metrics.Synthesize(merged, computed)
	st.mu.Unlock()

	if c.cancelled(ctx, st) {
		return
	}

	c.finish(st, StageCompleted, "")
	log.Info("pipeline: session complete",
		zap.Int("facts", merged.AvailableCount()),
		zap.Int("discrepancies", len(st.session.Outputs.Discrepancies)),
	)
}

// ingest extracts facts from every document, in parallel, absorbing
// per-document failures as notes. Zero successful documents still yields an
// empty fact set; enrichment can proceed from provider data alone.
func (c *Coordinator) ingest(ctx context.Context, docs []extract.Document) (fact.Set, []DocumentNote) {
	docFacts := make(fact.Set)
	notes := make([]DocumentNote, len(docs))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtractions)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			extractor := c.picker.ForDocument(doc)
			if extractor == nil {
				notes[i] = DocumentNote{Document: doc.Name, Error: "no extractor available for this document type"}
				return nil
			}
			extraction, err := extractor.Extract(gCtx, doc)
			if err != nil {
				notes[i] = DocumentNote{Document: doc.Name, Error: err.Error()}
				zap.L().Warn("pipeline: document extraction failed",
					zap.String("document", doc.Name),
					zap.Error(err),
				)
				return nil
			}

			confidence := int(extraction.Confidence * 100)
			mu.Lock()
			for name, ef := range extraction.Facts {
				f := fact.New(name, ef.Value, fact.SourceDocument, doc.Name, confidence)
				f.Unit = ef.Unit
				// Keep the higher-confidence fact when documents overlap.
				if existing, ok := docFacts[name]; !ok || confidence > existing.Confidence {
					docFacts[name] = f
				}
			}
			mu.Unlock()
			notes[i] = DocumentNote{Document: doc.Name, OK: true, Facts: len(extraction.Facts)}
			return nil
		})
	}
	_ = g.Wait()

	return docFacts, notes
}

// enrich resolves an identifier and fans out provider fetches. With no
// resolvable identifier it degrades to document-only mode rather than
// failing; an unusable explicit subject is the one fatal case.
func (c *Coordinator) enrich(ctx context.Context, st *sessionState, req Request, docFacts fact.Set) error {
	identifier := req.Subject
	if identifier != "" && !subjectPattern.MatchString(identifier) {
		return eris.Errorf("pipeline: subject %q is not a usable entity identifier", identifier)
	}
	if identifier == "" {
		identifier = c.resolver.Resolve(ctx, docFacts)
	}

	if identifier == "" {
		st.mu.Lock()
		st.session.Outputs.DocumentOnly = true
		merged, discrepancies := xref.Merge(fact.Set{}, docFacts)
		st.session.Outputs.MergedFacts = merged
		st.session.Outputs.Discrepancies = discrepancies
		st.mu.Unlock()
		zap.L().Info("pipeline: no identifier resolved, document-only mode",
			zap.String("session", st.session.ID),
		)
		return nil
	}

	fetcher := c.fetcher.WithLedger(st.ledger)
	outcomes := fetcher.FetchAll(ctx, c.caps, identifier, provider.Params{})

	providerFacts := make(fact.Set)
	for _, outcome := range outcomes {
		if !outcome.Available {
			continue
		}
		for name, f := range outcome.Facts {
			if existing, ok := providerFacts[name]; !ok || f.Confidence > existing.Confidence {
				providerFacts[name] = f
			}
		}
	}

	merged, discrepancies := xref.Merge(providerFacts, docFacts)

	st.mu.Lock()
	st.session.Outputs.Identifier = identifier
	st.session.Outputs.Enrichment = outcomes
	st.session.Outputs.ProviderFacts = providerFacts
	st.session.Outputs.MergedFacts = merged
	st.session.Outputs.Discrepancies = discrepancies
	st.mu.Unlock()
	return nil
}

// transition commits a stage change and publishes the "stage starting"
// event before the stage body runs.
func (c *Coordinator) transition(st *sessionState, stage Stage, progress int, message string) {
	st.mu.Lock()
	st.session.Stage = stage
	st.session.Progress = progress
	st.mu.Unlock()

	st.events.Publish(Event{
		SessionID: st.session.ID,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
	})
}

func (c *Coordinator) cancelled(ctx context.Context, st *sessionState) bool {
	if ctx.Err() == nil {
		return false
	}
	c.finish(st, StageCancelled, "")
	return true
}

// finish moves the session to a terminal stage, emits the final event, and
// persists the audit trail.
func (c *Coordinator) finish(st *sessionState, stage Stage, errMsg string) {
	now := time.Now().UTC()

	st.mu.Lock()
	st.session.Stage = stage
	st.session.CompletedAt = &now
	st.session.Error = errMsg
	if stage == StageCompleted {
		st.session.Progress = 100
	}
	progress := st.session.Progress
	summary := store.SessionSummary{
		ID:          st.session.ID,
		Subject:     st.session.Subject,
		Stage:       string(stage),
		StartedAt:   st.session.StartedAt,
		CompletedAt: now,
		Error:       errMsg,
	}
	if st.session.Outputs.MergedFacts != nil {
		summary.FactCount = st.session.Outputs.MergedFacts.AvailableCount()
	}
	st.mu.Unlock()

	message := map[Stage]string{
		StageCompleted: "Analysis complete",
		StageFailed:    "Analysis failed: " + errMsg,
		StageCancelled: "Analysis cancelled",
	}[stage]

	st.events.Publish(Event{
		SessionID: st.session.ID,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Terminal:  true,
	})

	// Audit persistence is best-effort; a storage hiccup must not turn a
	// finished analysis into a failure.
	auditCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.audit.SaveSession(auditCtx, summary); err != nil {
		zap.L().Warn("pipeline: save session audit failed", zap.Error(err))
	}
	if err := c.audit.AppendAttributions(auditCtx, st.session.ID, st.ledger.All()); err != nil {
		zap.L().Warn("pipeline: append attribution audit failed", zap.Error(err))
	}

	c.mu.Lock()
	if c.active == st.session.ID {
		c.active = ""
	}
	c.mu.Unlock()
}
