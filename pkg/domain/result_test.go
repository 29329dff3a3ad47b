package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResultSnapshotsTheSession(t *testing.T) {
	s := newTestSession()
	s.Formulas = []Formula{{ID: "f-1", Expression: "C_0 * exp(-k * t)"}}
	require.Nil(t, s.Append(loadStep("C_0 * exp(-k * t)"), true))
	require.Nil(t, s.Complete())

	r := BuildResult(s, CompleteOptions{
		Description: "decay law",
		Tags:        []string{"kinetics"},
		Category:    "chemistry",
	})

	assert.Equal(t, s.ID, r.ID)
	assert.Equal(t, "C_0 * exp(-k * t)", r.Expression)
	assert.Equal(t, []string{"f-1"}, r.SourceFormulas)
	assert.Equal(t, "chemistry", r.Category)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, *s.CompletedAt, r.CompletedAt)

	// The archived ledger is a copy; later edits to it cannot reach back
	// into the session.
	r.Steps[0].Description = "tampered"
	assert.Equal(t, "loaded formula", s.Steps[0].Description)
}

func TestResultPatchApply(t *testing.T) {
	r := &Result{Name: "old", Category: "misc"}

	name := "new name"
	verified := true
	method := "dimensional analysis"
	ResultPatch{
		Name:               &name,
		Verified:           &verified,
		VerificationMethod: &method,
	}.Apply(r)

	assert.Equal(t, "new name", r.Name)
	assert.Equal(t, "misc", r.Category)
	assert.True(t, r.Verified)
	assert.Equal(t, method, r.VerificationMethod)
	require.NotNil(t, r.VerifiedAt)
}

func TestIsKind(t *testing.T) {
	err := NewStateError(KindNotLastStep, "step 2 of 3")
	assert.True(t, IsKind(err, KindNotLastStep))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(assert.AnError, KindNotFound))
}
