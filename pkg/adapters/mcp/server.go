// Package mcp exposes the derivation engine as an MCP server, one tool per
// session operation. The server keeps one scope per connection, so the
// one-active-session rule maps directly onto the MCP conversation.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/derivekit/derivekit/internal/logging"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/session"
)

// OpResponse is the unified payload returned by every mutating tool.
type OpResponse struct {
	SessionID string       `json:"session_id"`
	Name      string       `json:"name,omitempty"`
	Status    string       `json:"status"`
	Current   string       `json:"current_expression,omitempty"`
	StepCount int          `json:"step_count"`
	Step      *domain.Step `json:"step,omitempty"`
}

func respond(sess *domain.Session, step *domain.Step) OpResponse {
	return OpResponse{
		SessionID: sess.ID,
		Name:      sess.Name,
		Status:    string(sess.Status),
		Current:   sess.Current,
		StepCount: len(sess.Steps),
		Step:      step,
	}
}

// Server wraps the session manager and exposes it over MCP.
type Server struct {
	mgr       *session.Manager
	scope     *session.Scope
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance over the manager.
func NewServer(mgr *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		mgr:       mgr,
		scope:     mgr.NewScope(),
		mcpServer: server.NewMCPServer("derivekit", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerLifecycleTools()
	s.registerStepTools()
	s.registerResultTools()
	s.registerHandoffTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// decodeArgs maps the flat keyword arguments onto a request struct.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) registerLifecycleTools() {
	s.mcpServer.AddTool(mcp.NewTool("derivation_start",
		mcp.WithDescription("Start a new derivation session. Fails if a session is already active in this conversation."),
		mcp.WithString("name", mcp.Description("Human-readable session name")),
		mcp.WithString("description", mcp.Description("What this derivation sets out to show")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		var in struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return OpResponse{}, err
		}
		sess, err := s.scope.Start(ctx, in.Name, in.Description)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, nil), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_resume",
		mcp.WithDescription("Resume a persisted session by ID. Exactly one caller can hold a session at a time."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session to resume")),
		mcp.WithOutputSchema[OpResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (OpResponse, error) {
		id, _ := args["session_id"].(string)
		sess, err := s.scope.Resume(ctx, id)
		if err != nil {
			return OpResponse{}, err
		}
		return respond(sess, nil), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("derivation_detach",
		mcp.WithDescription("Release the active session without ending it, leaving it resumable."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := s.scope.Active()
		s.scope.Detach()
		if id == "" {
			return mcp.NewToolResultText("no session was active"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("detached from session %s", id)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_list",
		mcp.WithDescription("List resumable sessions with status and step counts."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summaries, err := s.mgr.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(summaries)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_status",
		mcp.WithDescription("Show the active session: status, current expression, formulas, step count."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := s.scope.Session(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(sess)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_complete",
		mcp.WithDescription("Freeze the session, archive its result, and release it. Terminal."),
		mcp.WithString("description", mcp.Description("What the derived expression means")),
		mcp.WithArray("assumptions", mcp.Description("Assumptions the result depends on")),
		mcp.WithArray("limitations", mcp.Description("Known limits of validity")),
		mcp.WithArray("references", mcp.Description("Citations or links")),
		mcp.WithArray("tags", mcp.Description("Search tags")),
		mcp.WithString("category", mcp.Description("Archive category")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var opts domain.CompleteOptions
		if err := decodeArgs(request.GetArguments(), &opts); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := s.scope.Complete(ctx, opts)
		if err != nil {
			if result == nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			s.logger.Warn("completed with archive failure", "err", err)
		}
		jsonBytes, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("derivation_abort",
		mcp.WithDescription("Terminate the session without archiving anything. Terminal."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := s.scope.Abort(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("session %s aborted", sess.ID)), nil
	})
}
