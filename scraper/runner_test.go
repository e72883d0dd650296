package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_scrooper/models"
)

type fakeResolver struct {
	h SiteHandler
}

func (f *fakeResolver) Resolve(targetURL string) (SiteHandler, error) {
	if targetURL == "bad" {
		return nil, models.Malformed("", "unsupported target %q", targetURL)
	}
	return f.h, nil
}

type memoryRunStore struct {
	mu      sync.Mutex
	runs    map[int64]models.ExtractionRun
	logs    []string
	stats   []string
	cursors map[string]models.Cursor
	cleared [][2]string
	touched [][2]string
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[int64]models.ExtractionRun), cursors: make(map[string]models.Cursor)}
}

func (m *memoryRunStore) CreateRun(run *models.ExtractionRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.runs) + 1)
	m.runs[id] = *run
	return id, nil
}

func (m *memoryRunStore) UpdateRun(run *models.ExtractionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryRunStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, string(level)+": "+message)
	return nil
}

func (m *memoryRunStore) UpdateSiteStats(siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, siteID)
	return nil
}

func (m *memoryRunStore) GetCursor(siteID, targetURL string) (models.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[siteID+" "+targetURL], nil
}

func (m *memoryRunStore) SetCursor(siteID, targetURL string, c models.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[siteID+" "+targetURL] = c
	return nil
}

func (m *memoryRunStore) ClearCursor(siteID, targetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, [2]string{siteID, targetURL})
	delete(m.cursors, siteID+" "+targetURL)
	return nil
}

func (m *memoryRunStore) TouchCursor(siteID, targetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, [2]string{siteID, targetURL})
	return nil
}

type fakeQueue struct {
	runID uuid.UUID
	site  string
	items []*models.MediaCandidate
	err   error
	ctxOK bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, runID uuid.UUID, siteID string, items []*models.MediaCandidate) (int, error) {
	q.runID, q.site, q.items = runID, siteID, items
	q.ctxOK = ctx.Err() == nil
	return len(items), q.err
}

// pagedStatic yields one item per page and leaves a cursor until the
// second page.
func pagedStatic() *countingStrategy {
	return &countingStrategy{kind: models.StrategyStatic, fn: func(_ context.Context, ec *ExtractionContext, _ int) ([]models.RawMedia, error) {
		if ec.ResumePosition() == "page-2" {
			return raws("b"), nil
		}
		ec.SetPosition("page-2")
		return raws("a"), nil
	}}
}

func newTestRunner(h SiteHandler, store RunStore, queue MediaQueue, targets ...Target) *Runner {
	cfg := RunnerConfig{
		Orchestrator: newTestOrchestrator(),
		Resolver:     &fakeResolver{h: h},
		Targets:      targets,
		Resume:       true,
	}
	if store != nil {
		cfg.Store = store
	}
	if queue != nil {
		cfg.Queue = queue
	}
	return NewRunner(cfg)
}

func TestRunner_ExtractPersistsRun(t *testing.T) {
	store := newMemoryRunStore()
	queue := &fakeQueue{}
	r := newTestRunner(handlerWith(pagedStatic()), store, queue)

	res, err := r.Extract(t.Context(), testTarget, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	require.Len(t, store.runs, 1)
	run := store.runs[1]
	assert.Equal(t, int64(1), run.ID)
	assert.Equal(t, "example", run.SiteID)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, string(models.StrategyStatic), run.Winner)
	assert.Equal(t, 1, run.Candidates)
	assert.Equal(t, res.Report.RunID.String(), run.RunID)
	require.NotNil(t, run.FinishedAt)

	var report models.ExtractionReport
	require.NoError(t, json.Unmarshal(run.Report, &report))
	assert.Equal(t, res.Report.RunID, report.RunID)

	assert.Equal(t, []string{"example"}, store.stats)
	assert.Len(t, store.logs, 2)

	assert.Equal(t, res.Report.RunID, queue.runID)
	assert.Equal(t, "example", queue.site)
	assert.Len(t, queue.items, 1)
}

func TestRunner_ResumesFromSavedCursor(t *testing.T) {
	store := newMemoryRunStore()
	r := newTestRunner(handlerWith(pagedStatic()), store, nil)

	first, err := r.Extract(t.Context(), testTarget, testOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, first.Report.Cursor)
	assert.Equal(t, first.Report.Cursor, store.cursors["example "+testTarget])

	second, err := r.Extract(t.Context(), testTarget, testOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://gallery.example.com/photos/b.jpg"}, urlsOf(second.Candidates))
	assert.Empty(t, second.Report.Cursor)
	assert.NotContains(t, store.cursors, "example "+testTarget, "finished listing clears the cursor")
}

func TestRunner_ExplicitCursorWins(t *testing.T) {
	store := newMemoryRunStore()
	store.cursors["example "+testTarget] = models.EncodeCursor(models.StrategyStatic, "page-2")
	r := newTestRunner(handlerWith(pagedStatic()), store, nil)

	opts := testOptions()
	opts.Cursor = models.EncodeCursor(models.StrategyStatic, "page-1")
	res, err := r.Extract(t.Context(), testTarget, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://gallery.example.com/photos/a.jpg"}, urlsOf(res.Candidates))
}

func TestRunner_FailedRunKeepsCursor(t *testing.T) {
	store := newMemoryRunStore()
	saved := models.EncodeCursor(models.StrategyStatic, "page-2")
	store.cursors["example "+testTarget] = saved
	failing := returning(models.StrategyStatic, nil, models.Transient(models.StrategyStatic, errors.New("connection reset")))
	r := newTestRunner(handlerWith(failing), store, nil)

	opts := testOptions()
	opts.MaxRetries = 0
	res, err := r.Extract(t.Context(), testTarget, opts)
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
	require.NotNil(t, res)
	assert.Equal(t, saved, store.cursors["example "+testTarget])
	assert.Empty(t, store.cleared)
	assert.Equal(t, [][2]string{{"example", testTarget}}, store.touched, "failed run restarts the rest period")
	assert.Equal(t, models.RunStatusFailed, store.runs[1].Status)
	assert.Equal(t, 1, store.runs[1].ErrorsCount)
}

func TestRunner_EmptyResumedRunClearsCursor(t *testing.T) {
	store := newMemoryRunStore()
	store.cursors["example "+testTarget] = models.EncodeCursor(models.StrategyStatic, "page-9")
	r := newTestRunner(handlerWith(returning(models.StrategyStatic, nil, nil)), store, nil)

	res, err := r.Extract(t.Context(), testTarget, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Report.Winner)
	assert.Empty(t, res.Report.Cursor)
	assert.NotContains(t, store.cursors, "example "+testTarget)
	assert.Equal(t, [][2]string{{"example", testTarget}}, store.cleared)
	assert.Empty(t, store.touched)
}

func TestRunner_QueueFailureDoesNotFailRun(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue down")}
	r := newTestRunner(handlerWith(returning(models.StrategyStatic, raws("a"), nil)), nil, queue)

	res, err := r.Extract(t.Context(), testTarget, testOptions())
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.True(t, queue.ctxOK)
}

func TestRunner_ResolveErrorHasNoResult(t *testing.T) {
	r := newTestRunner(handlerWith(), nil, nil)
	res, err := r.Extract(t.Context(), "bad", testOptions())
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Nil(t, res)
}

func TestRunner_CommandsAndTargets(t *testing.T) {
	store := newMemoryRunStore()
	static := returning(models.StrategyStatic, raws("a"), nil)
	r := newTestRunner(handlerWith(static), store, nil,
		Target{Site: "example", URL: testTarget, Options: testOptions()},
		Target{Site: "other", URL: "https://other.example.com/x", Options: testOptions()},
	)
	ctx := t.Context()

	require.NoError(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdPause}))
	assert.True(t, r.IsPaused())
	require.NoError(t, r.RunTargets(ctx))
	assert.Equal(t, 0, static.Calls(), "paused runner skips scheduled runs")

	require.NoError(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdResume}))
	require.NoError(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdExtractAll}))
	assert.Equal(t, 2, static.Calls())

	params, _ := json.Marshal(models.CommandParams{Site: "example"})
	require.NoError(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdExtractSite, Params: params}))
	assert.Equal(t, 3, static.Calls())

	params, _ = json.Marshal(models.CommandParams{Site: "example", Target: testTarget})
	require.NoError(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdResetCursor, Params: params}))
	require.NotEmpty(t, store.cleared)
	assert.Equal(t, [2]string{"example", testTarget}, store.cleared[len(store.cleared)-1])

	assert.Error(t, r.RunSite(ctx, "missing"))
	assert.Error(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdExtractTarget}))
	assert.Error(t, r.HandleCommand(ctx, &models.Command{Command: "bogus"}))
	assert.Error(t, r.HandleCommand(ctx, &models.Command{Command: models.CmdExtractSite, Params: json.RawMessage(`{`)}))

	status, err := json.Marshal(r.Status())
	require.NoError(t, err)
	assert.JSONEq(t, `{"paused":false,"targets":["`+testTarget+`","https://other.example.com/x"]}`, string(status))
}
