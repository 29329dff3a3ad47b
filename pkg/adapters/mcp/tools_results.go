package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/handoff"
	"github.com/derivekit/derivekit/pkg/ports"
)

func (s *Server) repoOrError() (ports.ResultRepository, error) {
	repo := s.mgr.Repository()
	if repo == nil {
		return nil, fmt.Errorf("no result archive is configured")
	}
	return repo, nil
}

func (s *Server) registerResultTools() {
	s.mcpServer.AddTool(mcp.NewTool("derivation_results_list",
		mcp.WithDescription("List archived derivation results, optionally by category."),
		mcp.WithString("category", mcp.Description("Restrict to one category")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		category, _ := request.GetArguments()["category"].(string)
		results, err := repo.Find(ctx, ports.ResultQuery{Category: category})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(results)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_results_get",
		mcp.WithDescription("Fetch one archived result by ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Result ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, _ := request.GetArguments()["id"].(string)
		result, err := repo.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_results_search",
		mcp.WithDescription("Search archived results by text, category, and tags."),
		mcp.WithString("query", mcp.Description("Matched against name and description")),
		mcp.WithString("category", mcp.Description("Restrict to one category")),
		mcp.WithArray("tags", mcp.Description("Results must carry all listed tags")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var in struct {
			Query    string   `json:"query"`
			Category string   `json:"category"`
			Tags     []string `json:"tags"`
		}
		if err := decodeArgs(request.GetArguments(), &in); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		results, err := repo.Find(ctx, ports.ResultQuery{
			Text:     in.Query,
			Category: in.Category,
			Tags:     in.Tags,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(results)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_results_update",
		mcp.WithDescription("Update the bounded metadata of an archived result. The expression and steps are immutable."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Result ID")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Metadata field to new value")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args := request.GetArguments()
		id, _ := args["id"].(string)
		fields, _ := args["fields"].(map[string]any)
		if len(fields) == 0 {
			return mcp.NewToolResultError("fields must be a non-empty object"), nil
		}

		var patch domain.ResultPatch
		dec, derr := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &patch,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if derr != nil {
			return mcp.NewToolResultError(derr.Error()), nil
		}
		if derr := dec.Decode(fields); derr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("only result metadata may change: %v", derr)), nil
		}

		result, err := repo.UpdateMetadata(ctx, id, patch)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_results_delete",
		mcp.WithDescription("Delete one archived result by ID."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Result ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, _ := request.GetArguments()["id"].(string)
		if err := repo.Delete(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("result %s deleted", id)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_results_stats",
		mcp.WithDescription("Summarize the archive: totals, verified count, per-category counts."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo, err := s.repoOrError()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		stats, err := repo.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(stats)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) registerHandoffTools() {
	s.mcpServer.AddTool(mcp.NewTool("derivation_export_handoff",
		mcp.WithDescription("Build a handoff payload for an external symbolic engine: symbol declarations, the current expression, and suggested actions."),
		mcp.WithOutputSchema[handoff.Payload](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (handoff.Payload, error) {
		sess, err := s.scope.Session(ctx)
		if err != nil {
			return handoff.Payload{}, err
		}
		payload, err := handoff.Export(sess)
		if err != nil {
			return handoff.Payload{}, err
		}
		return *payload, nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_import_handoff",
		mcp.WithDescription("Fold an externally computed expression back into the session as a provenance-stamped step."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("The expression the external engine produced")),
		mcp.WithString("operation_performed", mcp.Description("What the external engine did")),
		mcp.WithString("external_tool", mcp.Description("Which engine produced it")),
		mcp.WithString("notes", mcp.Description("Free-text notes")),
		mcp.WithArray("assumptions_used", mcp.Description("Assumptions applied externally")),
		mcp.WithArray("limitations", mcp.Description("Known limitations")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		var imp handoff.Import
		if err := decodeArgs(args, &imp); err != nil {
			return OpResponse{}, err
		}
		sess, step, err := s.scope.RecordManual(ctx, imp.Record())
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, step), nil
	}))
}
