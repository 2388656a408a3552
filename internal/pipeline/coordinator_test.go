package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight/internal/attribution"
	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/internal/fetchcache"
	"github.com/finsight-labs/finsight/internal/orchestrator"
	"github.com/finsight-labs/finsight/internal/provider"
	"github.com/finsight-labs/finsight/internal/ratelimit"
	"github.com/finsight-labs/finsight/internal/resolve"
	"github.com/finsight-labs/finsight/internal/store"
)

// fakeExtractor returns scripted extractions keyed by document name.
type fakeExtractor struct {
	byName map[string]*extract.Extraction
	err    error
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Extract(_ context.Context, doc extract.Document) (*extract.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	ex, ok := f.byName[doc.Name]
	if !ok {
		return nil, errors.New("unreadable document")
	}
	return ex, nil
}

// scriptProvider serves canned facts, optionally blocking until cancellation.
type scriptProvider struct {
	name  string
	facts fact.Set
	block bool
}

func (s *scriptProvider) Name() string                        { return s.name }
func (s *scriptProvider) Supports(capability.Capability) bool { return true }

func (s *scriptProvider) Fetch(ctx context.Context, c capability.Capability, subject string, _ provider.Params) (*provider.RawResult, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	facts := s.facts
	if facts == nil {
		facts = fact.Set{
			"company_name": fact.New("company_name", subject+" Corp", fact.SourceProvider, s.name, 90),
			"revenue":      fact.New("revenue", 1000.0, fact.SourceProvider, s.name, 90),
			"net_income":   fact.New("net_income", 150.0, fact.SourceProvider, s.name, 90),
		}
	}
	return &provider.RawResult{Facts: facts, Endpoint: "/" + string(c), Confidence: 90}, nil
}

type harness struct {
	coordinator *Coordinator
	audit       *store.MemoryStore
}

func newHarness(t *testing.T, extractor extract.Extractor, providers ...provider.Provider) *harness {
	t.Helper()
	registry := provider.NewRegistry()
	chains := make(map[capability.Capability][]string)
	for _, p := range providers {
		registry.Register(p)
	}
	for _, c := range capability.All() {
		for _, p := range providers {
			chains[c] = append(chains[c], p.Name())
		}
	}

	fetcher := orchestrator.NewFetcher(
		&capability.Routing{Chains: chains},
		registry,
		ratelimit.NewTracker(2*time.Minute, time.Hour),
		fetchcache.New[orchestrator.FetchOutcome](5*time.Minute),
		attribution.NewLedger(),
		2*time.Second,
	)

	if extractor == nil {
		extractor = &fakeExtractor{}
	}
	audit := store.NewMemory()
	return &harness{
		coordinator: NewCoordinator(
			extract.NewPicker(extractor, extractor),
			fetcher,
			resolve.NewResolver(nil),
			audit,
			nil,
		),
		audit: audit,
	}
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("event stream did not terminate")
		}
	}
}

func TestRunCompletesThroughAllStages(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{Subject: "ACME"})
	require.NoError(t, err)

	events, err := h.coordinator.Subscribe(id)
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.NotEmpty(t, got)
	lastProgress := -1
	for _, ev := range got {
		assert.GreaterOrEqual(t, ev.Progress, lastProgress)
		lastProgress = ev.Progress
	}
	// The subscriber may attach after the first stage event, so the observed
	// stages are a suffix of the canonical order.
	order := []Stage{StageIngesting, StageEnriching, StageComputingMetrics, StageSynthesizing, StageCompleted}
	offset := len(order) - len(got)
	require.GreaterOrEqual(t, offset, 0)
	for i, ev := range got {
		assert.Equal(t, order[offset+i], ev.Stage)
	}
	assert.True(t, got[len(got)-1].Terminal)
	assert.Equal(t, 100, got[len(got)-1].Progress)

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, "ACME Corp", result.Facts["company_name"].String())
	assert.NotEmpty(t, result.Attribution)
	assert.Len(t, result.Metrics, 4)
}

func TestRunDocumentFailureIsNoteNotFailure(t *testing.T) {
	extractor := &fakeExtractor{byName: map[string]*extract.Extraction{
		"good1.txt": {Confidence: 0.8, Facts: map[string]extract.ExtractedFact{
			"total_debt": {Value: 5200.0},
		}},
		"good2.txt": {Confidence: 0.9, Facts: map[string]extract.ExtractedFact{
			"cash": {Value: 300.0},
		}},
	}}
	h := newHarness(t, extractor, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{
		Subject: "ACME",
		Documents: []extract.Document{
			{Name: "good1.txt", Data: []byte("x")},
			{Name: "broken.txt", Data: []byte("x")},
			{Name: "good2.txt", Data: []byte("x")},
		},
	})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)

	require.Len(t, result.DocumentNotes, 3)
	var failed int
	for _, note := range result.DocumentNotes {
		if !note.OK {
			failed++
			assert.Equal(t, "broken.txt", note.Document)
			assert.NotEmpty(t, note.Error)
		}
	}
	assert.Equal(t, 1, failed)

	// Facts from the healthy documents survive.
	assert.Equal(t, fact.SourceDocument, result.Facts["total_debt"].SourceKind)
	assert.Equal(t, fact.SourceDocument, result.Facts["cash"].SourceKind)
}

func TestRunDocumentWinsOverProvider(t *testing.T) {
	extractor := &fakeExtractor{byName: map[string]*extract.Extraction{
		"bal.xlsx": {Confidence: 0.9, Facts: map[string]extract.ExtractedFact{
			"revenue": {Value: 1100.0},
		}},
	}}
	h := newHarness(t, extractor, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{
		Subject:   "ACME",
		Documents: []extract.Document{{Name: "bal.xlsx", Data: []byte("x")}},
	})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)

	v, _ := result.Facts["revenue"].Float()
	assert.Equal(t, 1100.0, v)
	assert.Equal(t, fact.SourceDocument, result.Facts["revenue"].SourceKind)
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, "revenue", result.Discrepancies[0].Name)
}

func TestRunCancelKeepsCommittedWork(t *testing.T) {
	extractor := &fakeExtractor{byName: map[string]*extract.Extraction{
		"bal.xlsx": {Confidence: 0.9, Facts: map[string]extract.ExtractedFact{
			"total_debt": {Value: 5200.0},
		}},
	}}
	h := newHarness(t, extractor, &scriptProvider{name: "fmp", block: true})

	id, err := h.coordinator.Start(context.Background(), Request{
		Subject:   "ACME",
		Documents: []extract.Document{{Name: "bal.xlsx", Data: []byte("x")}},
	})
	require.NoError(t, err)

	// Wait for the enrichment stage to begin, then cancel.
	require.Eventually(t, func() bool {
		session, err := h.coordinator.Session(id)
		return err == nil && session.Stage == StageEnriching
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, h.coordinator.Cancel(id))
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	assert.Equal(t, StageCancelled, result.Stage)

	// The ingest stage committed before cancellation; its output is retained.
	v, _ := result.Facts["total_debt"].Float()
	assert.Equal(t, 5200.0, v)
}

func TestStartRejectsConcurrentSession(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp", block: true})

	id, err := h.coordinator.Start(context.Background(), Request{Subject: "ACME"})
	require.NoError(t, err)

	_, err = h.coordinator.Start(context.Background(), Request{Subject: "OTHER"})
	assert.ErrorIs(t, err, ErrSessionActive)

	require.NoError(t, h.coordinator.Cancel(id))
	require.NoError(t, h.coordinator.Wait(id))

	// Once the first session is terminal, new sessions are accepted.
	_, err = h.coordinator.Start(context.Background(), Request{Subject: "OTHER"})
	assert.NoError(t, err)
}

func TestStartRequiresSubjectOrDocuments(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp"})
	_, err := h.coordinator.Start(context.Background(), Request{})
	assert.Error(t, err)
}

func TestRunUnusableSubjectFails(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{Subject: "@@!!"})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, result.Stage)
	assert.NotEmpty(t, result.Error)
}

func TestRunDocumentOnlyMode(t *testing.T) {
	// No subject and no resolvable identifier: enrichment degrades instead
	// of failing.
	extractor := &fakeExtractor{byName: map[string]*extract.Extraction{
		"notes.txt": {Confidence: 0.7, Facts: map[string]extract.ExtractedFact{
			"revenue": {Value: 500.0},
		}},
	}}
	h := newHarness(t, extractor, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{
		Documents: []extract.Document{{Name: "notes.txt", Data: []byte("x")}},
	})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	v, _ := result.Facts["revenue"].Float()
	assert.Equal(t, 500.0, v)
	// No provider attribution: nothing was fetched.
	assert.Empty(t, result.Attribution)

	session, err := h.coordinator.Session(id)
	require.NoError(t, err)
	assert.True(t, session.Outputs.DocumentOnly)
}

func TestResultPendingAndNotFound(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp", block: true})

	_, err := h.coordinator.Result("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, err := h.coordinator.Start(context.Background(), Request{Subject: "ACME"})
	require.NoError(t, err)

	_, err = h.coordinator.Result(id)
	assert.ErrorIs(t, err, ErrSessionPending)

	require.NoError(t, h.coordinator.Cancel(id))
	require.NoError(t, h.coordinator.Wait(id))
}

func TestFinishPersistsAudit(t *testing.T) {
	h := newHarness(t, nil, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{Subject: "ACME"})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	sessions, err := h.audit.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, string(StageCompleted), sessions[0].Stage)
	assert.Greater(t, sessions[0].FactCount, 0)

	records, err := h.audit.SessionAttributions(context.Background(), id)
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestHigherConfidenceDocumentFactWins(t *testing.T) {
	extractor := &fakeExtractor{byName: map[string]*extract.Extraction{
		"low.txt":  {Confidence: 0.5, Facts: map[string]extract.ExtractedFact{"cash": {Value: 100.0}}},
		"high.txt": {Confidence: 0.9, Facts: map[string]extract.ExtractedFact{"cash": {Value: 200.0}}},
	}}
	h := newHarness(t, extractor, &scriptProvider{name: "fmp"})

	id, err := h.coordinator.Start(context.Background(), Request{
		Subject: "ACME",
		Documents: []extract.Document{
			{Name: "low.txt", Data: []byte("x")},
			{Name: "high.txt", Data: []byte("x")},
		},
	})
	require.NoError(t, err)
	require.NoError(t, h.coordinator.Wait(id))

	result, err := h.coordinator.Result(id)
	require.NoError(t, err)
	v, _ := result.Facts["cash"].Float()
	assert.Equal(t, 200.0, v)
	assert.Equal(t, 90, result.Facts["cash"].Confidence)
}
