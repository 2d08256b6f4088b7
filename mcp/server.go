// Package mcp exposes a tasksync client as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/tasksync"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerVersion is reported in the initialize handshake.
const ServerVersion = "1.0.0"

// Server wraps the MCP server with tasksync tools.
type Server struct {
	client    *tasksync.Client
	mcpServer *server.MCPServer
	session   *RefSession
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with tasksync tools registered.
func NewServer(client *tasksync.Client) *Server {
	s := &Server{
		client:  client,
		session: NewRefSession(),
	}

	s.mcpServer = server.NewMCPServer(
		"tasksync",
		ServerVersion,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// Run serves on stdin/stdout until the client disconnects.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "tasksync_sync", Description: "Run one full sync cycle between the daily notes and Microsoft To Do"},
		{Name: "tasksync_status", Description: "Show identity record count and recent sync runs"},
		{Name: "tasksync_lookup", Description: "Find identity records by date, title or remote ID"},
		{Name: "tasksync_forget", Description: "Remove identity records so the tasks are treated as unlinked"},
		{Name: "tasksync_prune", Description: "Remove identity records not synced within a number of days"},
	}
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "tasksync_sync":
		return s.handleSync(ctx, args)
	case "tasksync_status":
		return s.handleStatus(ctx, args)
	case "tasksync_lookup":
		return s.handleLookup(ctx, args)
	case "tasksync_forget":
		return s.handleForget(ctx, args)
	case "tasksync_prune":
		return s.handlePrune(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("tasksync_sync",
		mcp.WithDescription("Run one full sync cycle: repair identity records, pull remote tasks into daily notes, push new local tasks, then reconcile completions. Requires the vault path and access token to be configured."),
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("tasksync_status",
		mcp.WithDescription("Show identity record count, last sync time and recent sync runs. Read-only."),
		mcp.WithNumber("limit",
			mcp.Description("Number of recent runs to include (default: 5)"),
		),
	), s.wrap(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("tasksync_lookup",
		mcp.WithDescription("Find identity records. Results carry session refs (T1, T2, ...) usable with tasksync_forget."),
		mcp.WithString("date",
			mcp.Description("Calendar date YYYY-MM-DD"),
		),
		mcp.WithString("title",
			mcp.Description("Title or title fragment, matched case-insensitively on the given date"),
		),
		mcp.WithString("remote_id",
			mcp.Description("Remote task ID"),
		),
		mcp.WithString("start",
			mcp.Description("Range start YYYY-MM-DD, used with end"),
		),
		mcp.WithString("end",
			mcp.Description("Range end YYYY-MM-DD, used with start"),
		),
	), s.wrap(s.handleLookup))

	s.mcpServer.AddTool(mcp.NewTool("tasksync_forget",
		mcp.WithDescription("Remove identity records. The next sync treats the tasks as unlinked."),
		mcp.WithArray("refs",
			mcp.Description("Session refs from tasksync_lookup (T1, T2, ...)"),
			mcp.WithStringItems(),
		),
		mcp.WithString("remote_id",
			mcp.Description("Remove every record linked to this remote task ID"),
		),
	), s.wrap(s.handleForget))

	s.mcpServer.AddTool(mcp.NewTool("tasksync_prune",
		mcp.WithDescription("Remove identity records not synced within the given number of days."),
		mcp.WithNumber("days",
			mcp.Description("Maximum record age in days"),
			mcp.Required(),
		),
	), s.wrap(s.handlePrune))
}

type handlerFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) wrap(h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func (s *Server) handleSync(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	result, err := s.client.Sync(ctx)
	switch {
	case errors.Is(err, tasksync.ErrSyncInProgress), errors.Is(err, tasksync.ErrLocked):
		return &ToolResult{Content: "A sync is already running; try again shortly.", IsError: true}, nil
	case errors.Is(err, tasksync.ErrNotConfigured):
		return &ToolResult{Content: "sync is not configured: set the vault path and access token", IsError: true}, nil
	case err != nil:
		return &ToolResult{Content: fmt.Sprintf("sync failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatSyncResult(result)}, nil
}

func (s *Server) handleStatus(_ context.Context, args map[string]any) (*ToolResult, error) {
	limit := 5
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	if err := s.client.Refresh(); err != nil {
		return &ToolResult{Content: fmt.Sprintf("status failed: %v", err), IsError: true}, nil
	}
	stats, err := s.client.Stats()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("status failed: %v", err), IsError: true}, nil
	}
	runs, err := s.client.History(limit)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("status failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatStatus(stats, runs)}, nil
}

func (s *Server) handleLookup(_ context.Context, args map[string]any) (*ToolResult, error) {
	if err := s.client.Refresh(); err != nil {
		return &ToolResult{Content: fmt.Sprintf("lookup failed: %v", err), IsError: true}, nil
	}
	identity := s.client.Identity()
	date, _ := args["date"].(string)
	title, _ := args["title"].(string)
	remoteID, _ := args["remote_id"].(string)
	start, _ := args["start"].(string)
	end, _ := args["end"].(string)

	var records []tasksync.TaskMetadata
	switch {
	case remoteID != "":
		if rec, ok := identity.FindByRemoteID(remoteID); ok {
			records = append(records, *rec)
		}
	case start != "" || end != "":
		if start == "" || end == "" {
			return &ToolResult{Content: "start and end must be given together", IsError: true}, nil
		}
		if !tasksync.ValidDate(start) || !tasksync.ValidDate(end) {
			return &ToolResult{Content: "start and end must be YYYY-MM-DD dates", IsError: true}, nil
		}
		records = identity.ByDateRange(start, end)
	case date != "":
		if !tasksync.ValidDate(date) {
			return &ToolResult{Content: fmt.Sprintf("invalid date: %s", date), IsError: true}, nil
		}
		if title != "" {
			records = identity.FindByPartialTitle(date, tasksync.CleanTitle(title))
		} else {
			records = identity.ByDate(date)
		}
	default:
		return &ToolResult{Content: "one of date, remote_id or start/end is required", IsError: true}, nil
	}

	if len(records) == 0 {
		return &ToolResult{Content: "No matching identity records."}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d identity records:\n\n", len(records))
	for _, rec := range records {
		ref := s.session.Track(RecordRef{Date: rec.Date, Title: rec.Title, RemoteID: rec.RemoteID})
		fmt.Fprintf(&sb, "[%s] %s  %s\n", ref, rec.Date, rec.Title)
		fmt.Fprintf(&sb, "    remote: %s\n", rec.RemoteID)
		fmt.Fprintf(&sb, "    last synced: %s\n", rec.LastSynced.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\nUse tasksync_forget with refs (T1, T2, ...) to unlink records.")
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleForget(_ context.Context, args map[string]any) (*ToolResult, error) {
	refs := toStringSlice(args["refs"])
	remoteID, _ := args["remote_id"].(string)

	if len(refs) == 0 && remoteID == "" {
		return &ToolResult{Content: "refs or remote_id is required", IsError: true}, nil
	}

	var removed, unknown []string
	err := s.client.Update(func(identity *tasksync.IdentityStore) {
		for _, ref := range refs {
			rec, ok := s.session.Resolve(ref)
			if !ok {
				unknown = append(unknown, ref)
				continue
			}
			identity.RemoveMetadata(rec.Date, rec.Title)
			s.session.Forget(ref)
			removed = append(removed, fmt.Sprintf("%s (%s %s)", ref, rec.Date, rec.Title))
		}
		if remoteID != "" {
			before := identity.Len()
			identity.RemoveByRemoteID(remoteID)
			if identity.Len() < before {
				removed = append(removed, "remote "+remoteID)
			} else {
				unknown = append(unknown, "remote "+remoteID)
			}
		}
	})
	if errors.Is(err, tasksync.ErrLocked) {
		return &ToolResult{Content: "A sync is running; try again shortly.", IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("forget failed: %v", err), IsError: true}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Removed %d:\n", len(removed))
	for _, r := range removed {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	if len(unknown) > 0 {
		fmt.Fprintf(&sb, "Not found: %s\n", strings.Join(unknown, ", "))
	}
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handlePrune(_ context.Context, args map[string]any) (*ToolResult, error) {
	days, ok := args["days"].(float64)
	if !ok {
		return &ToolResult{Content: "days is required", IsError: true}, nil
	}
	n, err := s.client.Prune(int(days))
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("prune failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("Pruned %d identity records older than %d days.", n, int(days))}, nil
}

func formatSyncResult(r *tasksync.SyncResult) string {
	var sb strings.Builder
	sb.WriteString("Sync completed:\n")
	fmt.Fprintf(&sb, "  Identity: %d kept, %d renamed, %d removed\n",
		r.Reconcile.Kept, r.Reconcile.Renamed, r.Reconcile.Removed)
	fmt.Fprintf(&sb, "  Remote -> local: %d added\n", r.RemoteToLocal.Added)
	fmt.Fprintf(&sb, "  Local -> remote: %d added\n", r.LocalToRemote.Added)
	fmt.Fprintf(&sb, "  Completions: %d (%d to notes, %d to To Do)\n",
		r.Completions.Completed, r.Completions.ToLocal, r.Completions.ToRemote)
	if r.Pruned > 0 {
		fmt.Fprintf(&sb, "  Pruned: %d stale records\n", r.Pruned)
	}

	if n := r.ErrorCount(); n > 0 {
		fmt.Fprintf(&sb, "\n%d errors:\n", n)
		for _, list := range [][]string{r.Reconcile.Errors, r.RemoteToLocal.Errors, r.LocalToRemote.Errors, r.Completions.Errors} {
			for _, e := range list {
				fmt.Fprintf(&sb, "  - %s\n", e)
			}
		}
	}
	return sb.String()
}

func formatStatus(stats *tasksync.StoreStats, runs []tasksync.SyncRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Identity records: %d\n", stats.IdentityRecords)
	if stats.LastSync.IsZero() {
		sb.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&sb, "Last sync: %s\n", stats.LastSync.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "Recorded runs: %d\n", stats.RunCount)

	if len(runs) == 0 {
		return sb.String()
	}
	sb.WriteString("\nRecent runs:\n")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "error: " + run.Error
		} else if run.Result != nil && run.Result.ErrorCount() > 0 {
			status = fmt.Sprintf("%d item errors", run.Result.ErrorCount())
		}
		changes := 0
		if run.Result != nil {
			changes = run.Result.Changes()
		}
		fmt.Fprintf(&sb, "  %s  %s  %d changes  %s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04"), changes, status)
	}
	return sb.String()
}

// toStringSlice converts various array types to []string.
func toStringSlice(v any) []string {
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
