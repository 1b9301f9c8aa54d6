// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the octopad board as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/syncer"
)

const contractURI = "octopad://board-format"

// Server wraps the MCP server with board tools.
type Server struct {
	mcp      *server.MCPServer
	coord    *syncer.Coordinator
	resolver *syncer.Resolver
	userID   string
}

// New creates a new MCP server operating on coord on behalf of userID (may be empty).
func New(coord *syncer.Coordinator, userID string) *Server {
	s := &Server{coord: coord, resolver: syncer.NewResolver(coord), userID: userID}

	s.mcp = server.NewMCPServer(
		"Octopad",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tiers",
		mcp.WithDescription("List the board: every tier in order with its pads."),
	), s.listTiers)

	s.mcp.AddTool(mcp.NewTool("sync_board",
		mcp.WithDescription("Merge the remote tiers of the configured user into the local board and return it."),
	), s.syncBoard)

	s.mcp.AddTool(mcp.NewTool("rename_tier",
		mcp.WithDescription("Rename a tier. A non-empty name publishes the tier."),
		mcp.WithString("tier_id", mcp.Required(), mcp.Description("Tier id from list_tiers")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name; empty keeps the tier local")),
	), s.renameTier)

	s.mcp.AddTool(mcp.NewTool("add_pad",
		mcp.WithDescription("Put a pad into a slot of a tier. Read the board contract first via "+
			"get_board_contract or the "+contractURI+" resource."),
		mcp.WithString("tier_id", mcp.Required(), mcp.Description("Tier id from list_tiers")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Target URL; https:// is added when missing")),
		mcp.WithNumber("position", mcp.Required(), mcp.Description("Slot 0-7")),
		mcp.WithString("name", mcp.Description("Label shown under the pad")),
		mcp.WithString("icon_url", mcp.Description("Optional icon URL")),
	), s.addPad)

	s.mcp.AddTool(mcp.NewTool("delete_pad",
		mcp.WithDescription("Remove a pad from a tier."),
		mcp.WithString("tier_id", mcp.Required(), mcp.Description("Tier id")),
		mcp.WithString("pad_id", mcp.Required(), mcp.Description("Pad id")),
	), s.deletePad)

	s.mcp.AddTool(mcp.NewTool("delete_tier",
		mcp.WithDescription("Delete a tier and, when it was published, its remote copy."),
		mcp.WithString("tier_id", mcp.Required(), mcp.Description("Tier id")),
	), s.deleteTier)

	s.mcp.AddTool(mcp.NewTool("reorder_tiers",
		mcp.WithDescription("Move tiers into the given order."),
		mcp.WithString("tier_ids", mcp.Required(), mcp.Description("Comma-separated tier ids, first row first")),
	), s.reorderTiers)

	s.mcp.AddTool(mcp.NewTool("import_tier",
		mcp.WithDescription("Append a copy of the tier published under a share code."),
		mcp.WithString("code", mcp.Required(), mcp.Description("8-character share code (case-insensitive)")),
	), s.importTier)

	s.mcp.AddTool(mcp.NewTool("get_board_contract",
		mcp.WithDescription("Returns the board model contract. Call this before editing tiers or pads."),
	), s.getBoardContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Board Contract",
			mcp.WithResourceDescription("Rules for tiers, pads, slots and share codes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBoardContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listTiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.coord.Tiers()), nil
}

func (s *Server) syncBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.coord.Connected() || s.userID == "" {
		return mcp.NewToolResultError("no server or user configured; the board is local only"), nil
	}
	return jsonResult(s.coord.Reconcile(ctx, s.userID)), nil
}

func (s *Server) renameTier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tierID, err := req.RequireString("tier_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := s.coord.Mutate(ctx, s.userID, tierID, syncer.RenameTier{Name: name})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tier), nil
}

func (s *Server) addPad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tierID, err := req.RequireString("tier_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	position, err := req.RequireFloat("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pad := models.Pad{
		Name:     req.GetString("name", ""),
		URL:      url,
		IconURL:  req.GetString("icon_url", ""),
		Position: int(position),
	}
	tier, err := s.coord.Mutate(ctx, s.userID, tierID, syncer.AddPad{Pad: pad})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tier), nil
}

func (s *Server) deletePad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tierID, err := req.RequireString("tier_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	padID, err := req.RequireString("pad_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := s.coord.Mutate(ctx, s.userID, tierID, syncer.DeletePad{PadID: padID})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tier), nil
}

func (s *Server) deleteTier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tierID, err := req.RequireString("tier_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.coord.DeleteTier(ctx, s.userID, tierID); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", tierID)), nil
}

func (s *Server) reorderTiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("tier_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	tiers, err := s.coord.Reorder(ctx, s.userID, ids)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tiers), nil
}

func (s *Server) importTier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tier, err := s.resolver.Import(ctx, s.userID, code)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tier), nil
}

func (s *Server) getBoardContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BoardFormatContract), nil
}

func (s *Server) readBoardContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     BoardFormatContract,
		},
	}, nil
}
