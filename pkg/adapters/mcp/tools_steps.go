package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/expr"
	"github.com/derivekit/derivekit/pkg/session"
)

func (s *Server) registerStepTools() {
	s.mcpServer.AddTool(mcp.NewTool("derivation_load_formula",
		mcp.WithDescription("Load a base formula into the active session. Accepts linear notation, typeset markup, or a structured record; the format is auto-detected unless declared."),
		mcp.WithString("expression", mcp.Description("Formula text (linear or typeset)")),
		mcp.WithObject("record", mcp.Description("Structured record form: expression, format, name, description, variables")),
		mcp.WithString("format", mcp.Description("auto, linear, typeset, or record")),
		mcp.WithString("name", mcp.Description("Formula name")),
		mcp.WithString("description", mcp.Description("Formula description")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		var in struct {
			Expression  string         `json:"expression"`
			Record      map[string]any `json:"record"`
			Format      string         `json:"format"`
			Name        string         `json:"name"`
			Description string         `json:"description"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return OpResponse{}, err
		}
		sess, step, err := s.scope.LoadFormula(ctx, session.FormulaInput{
			Input:       expr.Input{Text: in.Expression, Record: in.Record},
			Format:      expr.Format(in.Format),
			Name:        in.Name,
			Description: in.Description,
		})
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))

	s.applyTool("derivation_substitute", "Replace a variable with an expression in the current expression.",
		domain.OpSubstitute,
		mcp.WithString("target", mcp.Required(), mcp.Description("Variable to replace")),
		mcp.WithString("replacement", mcp.Required(), mcp.Description("Replacement expression")),
	)
	s.applyTool("derivation_simplify", "Simplify the current expression.",
		domain.OpSimplify,
		mcp.WithString("method", mcp.Description("auto, trig, radical, or expand_then_simplify")),
	)
	s.applyTool("derivation_solve_for", "Rearrange the current equation to isolate one variable.",
		domain.OpSolveFor,
		mcp.WithString("variable", mcp.Required(), mcp.Description("Variable to isolate")),
	)
	s.applyTool("derivation_differentiate", "Differentiate the current expression.",
		domain.OpDifferentiate,
		mcp.WithString("variable", mcp.Required(), mcp.Description("Differentiation variable")),
		mcp.WithNumber("order", mcp.Description("Derivative order, default 1")),
	)
	s.applyTool("derivation_integrate", "Integrate the current expression, definitely when bounds are given.",
		domain.OpIntegrate,
		mcp.WithString("variable", mcp.Required(), mcp.Description("Integration variable")),
		mcp.WithString("lower_bound", mcp.Description("Lower bound (optional)")),
		mcp.WithString("upper_bound", mcp.Description("Upper bound (optional)")),
	)

	s.mcpServer.AddTool(mcp.NewTool("derivation_record_step",
		mcp.WithDescription("Record an externally derived expression as a trusted manual step."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("The derived expression")),
		mcp.WithString("description", mcp.Description("What was done")),
		mcp.WithString("external_tool", mcp.Description("Tool or method that produced it")),
		mcp.WithString("notes", mcp.Description("Free-text notes")),
		mcp.WithArray("assumptions", mcp.Description("Assumptions used")),
		mcp.WithArray("limitations", mcp.Description("Known limitations")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		var rec session.ManualRecord
		if err := decodeArgs(args, &rec); err != nil {
			return OpResponse{}, err
		}
		sess, step, err := s.scope.RecordManual(ctx, rec)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_add_note",
		mcp.WithDescription("Append an annotation step. Notes never change the current expression."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("note_type", mcp.Description("assumption, limitation, observation, correction, domain_context, or physical_meaning")),
		mcp.WithArray("related_symbols", mcp.Description("Symbols the note refers to")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		note, err := noteFromArgs(args)
		if err != nil {
			return OpResponse{}, err
		}
		sess, step, err := s.scope.AddNote(ctx, note)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_insert_note",
		mcp.WithDescription("Insert an annotation after a given position, renumbering later steps. Position 0 inserts before everything."),
		mcp.WithNumber("position", mcp.Required(), mcp.Description("Step number to insert after")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("note_type", mcp.Description("Note type")),
		mcp.WithArray("related_symbols", mcp.Description("Symbols the note refers to")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		note, err := noteFromArgs(args)
		if err != nil {
			return OpResponse{}, err
		}
		pos, err := intArg(args, "position")
		if err != nil {
			return OpResponse{}, err
		}
		sess, step, err := s.scope.InsertNote(ctx, pos, note)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_get_steps",
		mcp.WithDescription("Return the full step ledger of the active session."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		steps, err := s.scope.Steps(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(steps)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_get_step",
		mcp.WithDescription("Return one step by number."),
		mcp.WithNumber("step_number", mcp.Required(), mcp.Description("1-based step number")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := intArg(request.GetArguments(), "step_number")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		step, err := s.scope.Step(ctx, n)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(step)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_update_step",
		mcp.WithDescription("Update the free-text metadata of a step (description, notes, assumptions, limitations). Expressions are immutable; anything else is rejected."),
		mcp.WithNumber("step_number", mcp.Required(), mcp.Description("1-based step number")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Field name to new value")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		n, err := intArg(args, "step_number")
		if err != nil {
			return OpResponse{}, err
		}
		fields, _ := args["fields"].(map[string]any)
		if len(fields) == 0 {
			return OpResponse{}, fmt.Errorf("fields must be a non-empty object")
		}
		sess, step, err := s.scope.UpdateStep(ctx, n, fields)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_delete_step",
		mcp.WithDescription("Delete the last step. Interior steps cannot be deleted; use rollback."),
		mcp.WithNumber("step_number", mcp.Required(), mcp.Description("Must be the last step's number")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		n, err := intArg(args, "step_number")
		if err != nil {
			return OpResponse{}, err
		}
		sess, deleted, err := s.scope.DeleteStep(ctx, n)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, deleted), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_rollback",
		mcp.WithDescription("Discard every step after the target. Target 0 discards the whole ledger."),
		mcp.WithNumber("target_step", mcp.Required(), mcp.Description("Last step number to keep")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := intArg(request.GetArguments(), "target_step")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		report, err := s.scope.Rollback(ctx, n)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(report)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// applyTool registers one computed-operation tool sharing the common
// argument set and handler shape.
func (s *Server) applyTool(name, description string, op domain.Operation, extra ...mcp.ToolOption) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("description", mcp.Description("Step description override")),
		mcp.WithString("notes", mcp.Description("Free-text notes on the step")),
		mcp.WithOutputSchema[OpResponse](),
	}
	opts = append(opts, extra...)

	s.mcpServer.AddTool(mcp.NewTool(name, opts...),
		mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
			var req session.ApplyRequest
			if err := decodeArgs(args, &req); err != nil {
				return OpResponse{}, err
			}
			req.Operation = op
			sess, step, err := s.scope.Apply(ctx, req)
			if err != nil {
				return OpResponse{}, err
			}
			return respond(sess, step), nil
		}))
}

func noteFromArgs(args map[string]any) (session.NoteInput, error) {
	var in struct {
		Text           string   `json:"text"`
		NoteType       string   `json:"note_type"`
		RelatedSymbols []string `json:"related_symbols"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return session.NoteInput{}, err
	}
	return session.NoteInput{
		Text:           in.Text,
		Type:           domain.NoteType(in.NoteType),
		RelatedSymbols: in.RelatedSymbols,
	}, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
