package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derivekit/derivekit/internal/adapters/memory"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/ports"
)

// fakeComputer answers every request with a fixed expression, or fails.
type fakeComputer struct {
	result string
	err    error
	last   ports.ComputeRequest
	calls  int
}

func (f *fakeComputer) Compute(ctx context.Context, req ports.ComputeRequest) (*expr.Expression, error) {
	f.last = req
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return expr.ParseText(f.result)
}

// failStore wraps the memory store and fails writes on demand.
type failStore struct {
	*memory.Store
	failSave bool
}

func (s *failStore) Save(ctx context.Context, sess *domain.Session) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, sess)
}

// fakeRepo is an in-memory result archive that can fail on demand.
type fakeRepo struct {
	mu     sync.Mutex
	stored map[string]*domain.Result
	fail   bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: make(map[string]*domain.Result)}
}

func (r *fakeRepo) Store(ctx context.Context, result *domain.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("archive unavailable")
	}
	r.stored[result.ID] = result
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.stored[id]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return result, nil
}

func (r *fakeRepo) Find(ctx context.Context, q ports.ResultQuery) ([]*domain.Result, error) {
	return r.List(ctx)
}

func (r *fakeRepo) List(ctx context.Context) ([]*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Result, 0, len(r.stored))
	for _, result := range r.stored {
		out = append(out, result)
	}
	return out, nil
}

func (r *fakeRepo) UpdateMetadata(ctx context.Context, id string, patch domain.ResultPatch) (*domain.Result, error) {
	result, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(result)
	return result, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stored, id)
	return nil
}

func (r *fakeRepo) Stats(ctx context.Context) (ports.RepositoryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ports.RepositoryStats{Total: len(r.stored)}, nil
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeComputer, *fakeRepo) {
	t.Helper()
	comp := &fakeComputer{result: "x"}
	repo := newFakeRepo()
	opts = append([]Option{WithRepository(repo)}, opts...)
	return NewManager(memory.New(), comp, opts...), comp, repo
}

func mustStart(t *testing.T, mgr *Manager) *domain.Session {
	t.Helper()
	sess, err := mgr.Start(context.Background(), "test derivation", "")
	require.NoError(t, err)
	return sess
}

func mustLoad(t *testing.T, mgr *Manager, id, expression string) {
	t.Helper()
	_, _, err := mgr.LoadFormula(context.Background(), id, FormulaInput{
		Input: expr.Input{Text: expression},
	})
	require.NoError(t, err)
}

func TestStartLoadApplyComplete(t *testing.T) {
	ctx := context.Background()
	mgr, comp, repo := newTestManager(t)

	sess := mustStart(t, mgr)
	assert.Equal(t, domain.StatusActive, sess.Status)
	assert.Empty(t, sess.Current)

	sess, step, err := mgr.LoadFormula(ctx, sess.ID, FormulaInput{
		Input: expr.Input{Text: "C_0 * exp(-k*t)"},
		Name:  "decay law",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, step.Number)
	assert.Equal(t, domain.OpLoad, step.Operation)
	assert.Equal(t, "C_0 * exp(-k * t)", sess.Current)
	require.Len(t, sess.Formulas, 1)
	assert.Equal(t, "decay law", sess.Formulas[0].Name)
	assert.Contains(t, sess.Symbols, "C_0")
	assert.Contains(t, sess.Symbols, "k")

	comp.result = "C_0 * exp(-(log(2) / t_half) * t)"
	sess, step, err = mgr.Apply(ctx, sess.ID, ApplyRequest{
		Operation:   domain.OpSubstitute,
		Target:      "k",
		Replacement: "log(2) / t_half",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, step.Number)
	assert.Equal(t, "C_0 * exp(-k * t)", step.Input)
	assert.Equal(t, sess.Current, step.Output)
	assert.Equal(t, "k", comp.last.Target)
	require.NotNil(t, comp.last.Replacement)

	result, err := mgr.Complete(ctx, sess.ID, domain.CompleteOptions{
		Description: "half-life form",
		Category:    "kinetics",
	})
	require.NoError(t, err)
	assert.Equal(t, sess.Current, result.Expression)
	assert.Len(t, result.Steps, 2)

	archived, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "kinetics", archived.Category)

	stored, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestApplyWithoutFormula(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)

	_, _, err := mgr.Apply(context.Background(), sess.ID, ApplyRequest{
		Operation: domain.OpSimplify,
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestSecondLoadIsAdditive(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)

	mustLoad(t, mgr, sess.ID, "a + b")
	after, _, err := mgr.LoadFormula(ctx, sess.ID, FormulaInput{
		Input: expr.Input{Text: "c * d"},
	})
	require.NoError(t, err)

	// The second formula is stocked for reference but the derivation stays
	// where it was.
	assert.Equal(t, "a + b", after.Current)
	assert.Len(t, after.Formulas, 2)
	assert.Len(t, after.Steps, 2)
}

func TestComputeFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	mgr, comp, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**2")

	comp.err = errors.New("backend unavailable")
	_, _, err := mgr.Apply(ctx, sess.ID, ApplyRequest{
		Operation: domain.OpDifferentiate,
		Variable:  "x",
	})
	require.Error(t, err)
	var cerr *domain.ComputationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, domain.OpDifferentiate, cerr.Op)

	stored, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 1)
	assert.Equal(t, "x**2", stored.Current)
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &failStore{Store: memory.New()}
	mgr := NewManager(store, &fakeComputer{result: "2 * x"})
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**2")

	store.failSave = true
	_, _, err := mgr.Apply(ctx, sess.ID, ApplyRequest{
		Operation: domain.OpDifferentiate,
		Variable:  "x",
	})
	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)

	// The stored session never saw the failed step.
	store.failSave = false
	stored, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 1)
	assert.Equal(t, "x**2", stored.Current)
}

func TestValidateApply(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x + y")

	tests := []struct {
		name string
		req  ApplyRequest
	}{
		{"substitute without target", ApplyRequest{Operation: domain.OpSubstitute, Replacement: "z"}},
		{"substitute without replacement", ApplyRequest{Operation: domain.OpSubstitute, Target: "x"}},
		{"solve without variable", ApplyRequest{Operation: domain.OpSolveFor}},
		{"differentiate negative order", ApplyRequest{Operation: domain.OpDifferentiate, Variable: "x", Order: -1}},
		{"unknown simplify method", ApplyRequest{Operation: domain.OpSimplify, Method: "magic"}},
		{"non-compute operation", ApplyRequest{Operation: domain.OpNote}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := mgr.Apply(context.Background(), sess.ID, tt.req)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindInvalidTarget), "got %v", err)
		})
	}
}

func TestRecordManualPreservesProvenance(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**2 + 2*x + 1")

	after, step, err := mgr.RecordManual(ctx, sess.ID, ManualRecord{
		Expression:   "(x + 1)**2",
		Description:  "factored externally",
		ExternalTool: "sympy",
		Source:       domain.SourceExternalHandoff,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OpManualRecord, step.Operation)
	assert.Equal(t, domain.SourceExternalHandoff, step.Source)
	assert.Equal(t, "sympy", step.ExternalTool)
	assert.Equal(t, "(x + 1)**2", after.Current)
}

func TestNotesDoNotAdvanceCurrent(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "v = d / t")

	after, step, err := mgr.AddNote(ctx, sess.ID, NoteInput{
		Text: "assumes constant velocity",
		Type: domain.NoteAssumption,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OpNote, step.Operation)
	assert.Equal(t, domain.NoteAssumption, step.NoteType)
	assert.Equal(t, "v = d / t", after.Current)

	_, _, err = mgr.AddNote(ctx, sess.ID, NoteInput{Text: "   "})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPosition))

	_, _, err = mgr.AddNote(ctx, sess.ID, NoteInput{Text: "x", Type: "hunch"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPosition))
}

func TestInsertNoteRenumbering(t *testing.T) {
	ctx := context.Background()
	mgr, comp, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**2")

	comp.result = "2 * x"
	_, _, err := mgr.Apply(ctx, sess.ID, ApplyRequest{
		Operation: domain.OpDifferentiate,
		Variable:  "x",
	})
	require.NoError(t, err)

	after, _, err := mgr.InsertNote(ctx, sess.ID, 1, NoteInput{
		Text: "power rule applies",
	})
	require.NoError(t, err)
	require.Len(t, after.Steps, 3)
	for i, step := range after.Steps {
		assert.Equal(t, i+1, step.Number)
	}
	assert.Equal(t, domain.OpNote, after.Steps[1].Operation)
	assert.Equal(t, "2 * x", after.Current)

	_, _, err = mgr.InsertNote(ctx, sess.ID, 99, NoteInput{Text: "too far"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPosition))
}

func TestUpdateStepRejectsImmutableFields(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x")

	_, _, err := mgr.UpdateStep(ctx, sess.ID, 1, map[string]any{
		"output_expression": "y",
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindImmutableField))

	after, step, err := mgr.UpdateStep(ctx, sess.ID, 1, map[string]any{
		"description": "seeded the derivation",
		"assumptions": []string{"x is real"},
	})
	require.NoError(t, err)
	assert.Equal(t, "seeded the derivation", step.Description)
	assert.Equal(t, []string{"x is real"}, step.Assumptions)
	assert.Equal(t, "x", after.Current)
}

func TestDeleteStepViaManager(t *testing.T) {
	ctx := context.Background()
	mgr, comp, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**3")

	comp.result = "3 * x**2"
	_, _, err := mgr.Apply(ctx, sess.ID, ApplyRequest{Operation: domain.OpDifferentiate, Variable: "x"})
	require.NoError(t, err)

	_, _, err = mgr.DeleteStep(ctx, sess.ID, 1)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotLastStep))

	after, deleted, err := mgr.DeleteStep(ctx, sess.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.OpDifferentiate, deleted.Operation)
	assert.Equal(t, "x**3", after.Current)
}

func TestRollbackViaManager(t *testing.T) {
	ctx := context.Background()
	mgr, comp, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x**3")

	comp.result = "3 * x**2"
	_, _, err := mgr.Apply(ctx, sess.ID, ApplyRequest{Operation: domain.OpDifferentiate, Variable: "x"})
	require.NoError(t, err)
	comp.result = "6 * x"
	_, _, err = mgr.Apply(ctx, sess.ID, ApplyRequest{Operation: domain.OpDifferentiate, Variable: "x"})
	require.NoError(t, err)

	report, err := mgr.Rollback(ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeletedCount)
	assert.Equal(t, "x**3", report.Current)

	_, err = mgr.Rollback(ctx, sess.ID, 5)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidTarget))
}

func TestCompleteWithNothingDerived(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)

	_, err := mgr.Complete(context.Background(), sess.ID, domain.CompleteOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNothingToComplete))
}

func TestCompleteArchiveFailure(t *testing.T) {
	ctx := context.Background()
	mgr, _, repo := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x + 1")

	repo.fail = true
	result, err := mgr.Complete(ctx, sess.ID, domain.CompleteOptions{})

	// The session write is the commit point: the result is returned and the
	// session stays completed even though archival failed.
	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.NotNil(t, result)
	assert.Equal(t, "x + 1", result.Expression)

	stored, gerr := mgr.Get(ctx, sess.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestTerminalSessionsRejectOperations(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x")

	_, err := mgr.Abort(ctx, sess.ID)
	require.NoError(t, err)

	_, _, err = mgr.LoadFormula(ctx, sess.ID, FormulaInput{Input: expr.Input{Text: "y"}})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotActive))

	_, err = mgr.Complete(ctx, sess.ID, domain.CompleteOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotActive))

	// Aborted sessions stay readable for audit.
	stored, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, stored.Status)
}

func TestLoadFormulaParseError(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)

	_, _, err := mgr.LoadFormula(context.Background(), sess.ID, FormulaInput{
		Input: expr.Input{Text: "x ++ 2"},
	})
	require.Error(t, err)
	pe, ok := expr.AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, expr.KindMalformedSyntax, pe.Kind)

	// Nothing was committed.
	stored, gerr := mgr.Get(context.Background(), sess.ID)
	require.NoError(t, gerr)
	assert.Empty(t, stored.Steps)
}

func TestRecordFormatLoad(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)

	after, _, err := mgr.LoadFormula(ctx, sess.ID, FormulaInput{
		Input: expr.Input{Record: map[string]any{
			"expression": "C_0 * exp(-k*t)",
			"name":       "first-order decay",
			"variables": map[string]any{
				"k": map[string]any{"unit": "1/s", "constraint": "positive"},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, after.Formulas, 1)
	assert.Equal(t, "first-order decay", after.Formulas[0].Name)
	require.Contains(t, after.Symbols, "k")
	assert.Equal(t, "1/s", after.Symbols["k"].Unit)
}

func TestConcurrentMutationsStaySerialized(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)
	sess := mustStart(t, mgr)
	mustLoad(t, mgr, sess.ID, "x")

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, err := mgr.AddNote(ctx, sess.ID, NoteInput{
				Text: fmt.Sprintf("note %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := mgr.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.Steps, writers+1)
	for i, step := range stored.Steps {
		assert.Equal(t, i+1, step.Number)
	}
}

func TestListReturnsOnlyResumableSessions(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t)

	open := mustStart(t, mgr)
	aborted := mustStart(t, mgr)
	finished := mustStart(t, mgr)
	mustLoad(t, mgr, finished.ID, "x + 1")

	_, err := mgr.Abort(ctx, aborted.ID)
	require.NoError(t, err)
	_, err = mgr.Complete(ctx, finished.ID, domain.CompleteOptions{})
	require.NoError(t, err)

	summaries, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, open.ID, summaries[0].ID)
	assert.Equal(t, domain.StatusActive, summaries[0].Status)

	// A session bound to a scope is active but not offered for resumption.
	scope := mgr.NewScope()
	_, err = scope.Resume(ctx, open.ID)
	require.NoError(t, err)

	summaries, err = mgr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	scope.Detach()
	summaries, err = mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, open.ID, summaries[0].ID)
}
