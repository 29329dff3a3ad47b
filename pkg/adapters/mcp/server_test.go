package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derivekit/derivekit/internal/adapters/memory"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/session"
)

func TestNewServerRegistersTools(t *testing.T) {
	mgr := session.NewManager(memory.New(), session.NopComputer{})
	srv := NewServer(mgr, "test")
	require.NotNil(t, srv)
	require.NotNil(t, srv.scope)
	assert.Empty(t, srv.scope.Active())
}

func TestDecodeArgs(t *testing.T) {
	var req session.ApplyRequest
	err := decodeArgs(map[string]any{
		"operation":   "substitute",
		"target":      "k",
		"replacement": "log(2) / t_half",
		"order":       float64(2),
		"assumptions": []any{"t >= 0"},
	}, &req)
	require.NoError(t, err)

	assert.Equal(t, domain.OpSubstitute, req.Operation)
	assert.Equal(t, "k", req.Target)
	assert.Equal(t, "log(2) / t_half", req.Replacement)
	assert.Equal(t, 2, req.Order)
	assert.Equal(t, []string{"t >= 0"}, req.Assumptions)
}

func TestNoteFromArgs(t *testing.T) {
	note, err := noteFromArgs(map[string]any{
		"text":            "assumes ideal gas",
		"note_type":       "assumption",
		"related_symbols": []any{"P", "V"},
	})
	require.NoError(t, err)
	assert.Equal(t, "assumes ideal gas", note.Text)
	assert.Equal(t, domain.NoteAssumption, note.Type)
	assert.Equal(t, []string{"P", "V"}, note.RelatedSymbols)
}

func TestIntArg(t *testing.T) {
	// JSON numbers arrive as float64.
	n, err := intArg(map[string]any{"target_step": float64(3)}, "target_step")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = intArg(map[string]any{}, "target_step")
	require.Error(t, err)

	_, err = intArg(map[string]any{"target_step": "three"}, "target_step")
	require.Error(t, err)
}

func TestRespondShape(t *testing.T) {
	sess := domain.NewSession("sess-1", "decay", "")
	sess.Current = "x + 1"
	step := &domain.Step{Number: 1, Operation: domain.OpLoad, Output: "x + 1"}
	require.Nil(t, sess.Append(step, true))

	out := respond(sess, step)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, "active", out.Status)
	assert.Equal(t, "x + 1", out.Current)
	assert.Equal(t, 1, out.StepCount)
	assert.Same(t, step, out.Step)
}
