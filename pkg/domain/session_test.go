package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession("sess-1", "decay", "first-order decay")
}

func loadStep(output string) *Step {
	return &Step{
		Operation:   OpLoad,
		Description: "loaded formula",
		Output:      output,
		Source:      SourceInternal,
	}
}

func opStep(op Operation, input, output string) *Step {
	return &Step{
		Operation: op,
		Input:     input,
		Output:    output,
		Source:    SourceInternal,
	}
}

func noteStep(text string) *Step {
	return &Step{
		Operation: OpNote,
		Notes:     text,
		NoteType:  NoteObservation,
		Source:    SourceManual,
	}
}

func TestAppendNumbersDensely(t *testing.T) {
	s := newTestSession()

	require.Nil(t, s.Append(loadStep("C_0 * exp(-k * t)"), true))
	require.Nil(t, s.Append(opStep(OpSimplify, "C_0 * exp(-k * t)", "C_0 * exp(-k * t)"), true))
	require.Nil(t, s.Append(noteStep("units are molar"), false))

	require.Len(t, s.Steps, 3)
	for i, step := range s.Steps {
		assert.Equal(t, i+1, step.Number)
	}
}

func TestAppendAdvancesCurrent(t *testing.T) {
	s := newTestSession()

	require.Nil(t, s.Append(loadStep("x + 1"), true))
	assert.Equal(t, "x + 1", s.Current)

	// Notes never move the current expression.
	require.Nil(t, s.Append(noteStep("still x + 1"), false))
	assert.Equal(t, "x + 1", s.Current)

	require.Nil(t, s.Append(opStep(OpSubstitute, "x + 1", "2 * y + 1"), true))
	assert.Equal(t, "2 * y + 1", s.Current)
}

func TestAppendWithoutAdvanceKeepsCurrent(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("a + b"), true))

	// A second formula loaded for reference is recorded but does not
	// displace the working expression.
	require.Nil(t, s.Append(loadStep("c + d"), false))

	assert.Equal(t, "a + b", s.Current)
	assert.Len(t, s.Steps, 2)
}

func TestDeleteStepOnlyLast(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))
	require.Nil(t, s.Append(opStep(OpSimplify, "x", "x"), true))
	require.Nil(t, s.Append(opStep(OpDifferentiate, "x", "1"), true))

	_, serr := s.DeleteStep(2)
	require.NotNil(t, serr)
	assert.Equal(t, KindNotLastStep, serr.Kind)

	_, serr = s.DeleteStep(9)
	require.NotNil(t, serr)
	assert.Equal(t, KindNotFound, serr.Kind)

	deleted, serr := s.DeleteStep(3)
	require.Nil(t, serr)
	assert.Equal(t, OpDifferentiate, deleted.Operation)
	assert.Len(t, s.Steps, 2)
}

func TestDeleteStepRestoresCurrent(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))
	require.Nil(t, s.Append(opStep(OpDifferentiate, "x", "1"), true))
	require.Equal(t, "1", s.Current)

	_, serr := s.DeleteStep(2)
	require.Nil(t, serr)
	assert.Equal(t, "x", s.Current)
}

func TestRollback(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x**2"), true))
	require.Nil(t, s.Append(opStep(OpDifferentiate, "x**2", "2 * x"), true))
	require.Nil(t, s.Append(noteStep("slope"), false))
	require.Nil(t, s.Append(opStep(OpDifferentiate, "2 * x", "2"), true))

	report, serr := s.RollbackTo(2)
	require.Nil(t, serr)
	assert.Equal(t, 2, report.DeletedCount)
	assert.Equal(t, []int{3, 4}, report.DeletedStepNumbers)
	assert.Equal(t, "2 * x", report.Current)
	assert.Equal(t, "2 * x", s.Current)
	assert.Len(t, s.Steps, 2)
}

func TestRollbackToZeroClearsEverything(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))
	require.Nil(t, s.Append(opStep(OpSimplify, "x", "x"), true))

	report, serr := s.RollbackTo(0)
	require.Nil(t, serr)
	assert.Equal(t, 2, report.DeletedCount)
	assert.Empty(t, s.Steps)
	assert.Empty(t, s.Current)
}

func TestRollbackOutOfRange(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))

	for _, target := range []int{-1, 2, 10} {
		_, serr := s.RollbackTo(target)
		require.NotNil(t, serr, "target %d", target)
		assert.Equal(t, KindInvalidTarget, serr.Kind)
	}
}

func TestInsertNoteRenumbers(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))
	require.Nil(t, s.Append(opStep(OpSimplify, "x", "x"), true))

	inserted, serr := s.InsertNoteAfter(1, noteStep("valid for t >= 0"))
	require.Nil(t, serr)
	assert.Equal(t, 2, inserted.Number)

	require.Len(t, s.Steps, 3)
	for i, step := range s.Steps {
		assert.Equal(t, i+1, step.Number)
	}
	assert.Equal(t, OpNote, s.Steps[1].Operation)
	assert.Equal(t, OpSimplify, s.Steps[2].Operation)

	// The current expression is untouched by annotation inserts.
	assert.Equal(t, "x", s.Current)
}

func TestInsertNoteRejectsNonNotes(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))

	_, serr := s.InsertNoteAfter(0, opStep(OpSimplify, "x", "x"))
	require.NotNil(t, serr)
	assert.Equal(t, KindInvalidPosition, serr.Kind)

	_, serr = s.InsertNoteAfter(5, noteStep("too far"))
	require.NotNil(t, serr)
	assert.Equal(t, KindInvalidPosition, serr.Kind)
}

func TestCompleteRequiresDerivedExpression(t *testing.T) {
	s := newTestSession()

	serr := s.Complete()
	require.NotNil(t, serr)
	assert.Equal(t, KindNothingToComplete, serr.Kind)

	// A ledger of pure notes still has nothing to complete.
	require.Nil(t, s.Append(noteStep("context only"), false))
	serr = s.Complete()
	require.NotNil(t, serr)
	assert.Equal(t, KindNothingToComplete, serr.Kind)

	require.Nil(t, s.Append(loadStep("x"), true))
	require.Nil(t, s.Complete())
	assert.Equal(t, StatusCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)
}

func TestTerminalSessionsRejectMutation(t *testing.T) {
	for _, finish := range []func(s *Session) *StateError{
		func(s *Session) *StateError { return s.Complete() },
		func(s *Session) *StateError { return s.Abort() },
	} {
		s := newTestSession()
		require.Nil(t, s.Append(loadStep("x"), true))
		require.Nil(t, finish(s))
		require.True(t, s.Status.Terminal())

		assertNotActive := func(serr *StateError) {
			require.NotNil(t, serr)
			assert.Equal(t, KindNotActive, serr.Kind)
		}

		assertNotActive(s.Append(loadStep("y"), true))
		_, serr := s.DeleteStep(1)
		assertNotActive(serr)
		_, serr = s.RollbackTo(0)
		assertNotActive(serr)
		_, serr = s.InsertNoteAfter(0, noteStep("late"))
		assertNotActive(serr)
		desc := "edited"
		_, serr = s.UpdateStep(1, StepPatch{Description: &desc})
		assertNotActive(serr)
		assertNotActive(s.Abort())
	}
}

func TestUpdateStepPatchesMetadataOnly(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))

	desc := "better description"
	notes := "checked against table 4"
	assumptions := []string{"t >= 0"}
	step, serr := s.UpdateStep(1, StepPatch{
		Description: &desc,
		Notes:       &notes,
		Assumptions: &assumptions,
	})
	require.Nil(t, serr)
	assert.Equal(t, desc, step.Description)
	assert.Equal(t, notes, step.Notes)
	assert.Equal(t, assumptions, step.Assumptions)
	assert.Equal(t, "x", step.Output)

	_, serr = s.UpdateStep(4, StepPatch{Description: &desc})
	require.NotNil(t, serr)
	assert.Equal(t, KindNotFound, serr.Kind)
}

func TestCheckMutableStepFields(t *testing.T) {
	require.Nil(t, CheckMutableStepFields(map[string]any{
		"description": "a",
		"notes":       "b",
		"assumptions": []string{"c"},
		"limitations": []string{"d"},
	}))

	for _, field := range []string{"output_expression", "input_expression", "operation", "step_number"} {
		serr := CheckMutableStepFields(map[string]any{field: "nope"})
		require.NotNil(t, serr, field)
		assert.Equal(t, KindImmutableField, serr.Kind)
	}
}

func TestLedgerLastOutput(t *testing.T) {
	var l Ledger
	assert.Empty(t, l.LastOutput())

	l = Ledger{
		loadStep("x"),
		noteStep("note"),
	}
	assert.Equal(t, "x", l.LastOutput())
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestSession()
	require.Nil(t, s.Append(loadStep("x"), true))

	c := s.Clone()
	c.Steps[0].Description = "changed"
	require.Nil(t, c.Append(opStep(OpSimplify, "x", "x"), true))

	assert.Equal(t, "loaded formula", s.Steps[0].Description)
	assert.Len(t, s.Steps, 1)
	assert.Len(t, c.Steps, 2)
}
