package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/hyperengineering/tasksync"
	"github.com/hyperengineering/tasksync/internal/notes"
	tasksyncmcp "github.com/hyperengineering/tasksync/mcp"
)

var fixedNow = time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)

// memRemote is an in-memory remote task service.
type memRemote struct {
	tasks  []tasksync.RemoteTask
	nextID int
}

func (m *memRemote) ListTasks(context.Context) ([]tasksync.RemoteTask, error) {
	return append([]tasksync.RemoteTask(nil), m.tasks...), nil
}

func (m *memRemote) CreateTask(ctx context.Context, title string) (*tasksync.RemoteTask, error) {
	return m.CreateTaskWithStartDate(ctx, title, "")
}

func (m *memRemote) CreateTaskWithStartDate(_ context.Context, title, date string) (*tasksync.RemoteTask, error) {
	m.nextID++
	t := tasksync.RemoteTask{
		ID:        fmt.Sprintf("new-%d", m.nextID),
		Title:     title,
		Status:    tasksync.StatusNotStarted,
		CreatedAt: fixedNow.Format(time.RFC3339),
	}
	if date != "" {
		t.DueAt = date + "T00:00:00.0000000"
	}
	m.tasks = append(m.tasks, t)
	return &t, nil
}

func (m *memRemote) UpdateTitle(_ context.Context, id, title string) error {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks[i].Title = title
		}
	}
	return nil
}

func (m *memRemote) Complete(_ context.Context, id string) error {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks[i].Status = tasksync.StatusCompleted
		}
	}
	return nil
}

func (m *memRemote) DefaultListID() (string, bool) { return "list-1", true }

func newClient(t *testing.T, withAdapters bool) (*tasksync.Client, string) {
	t.Helper()
	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")

	cfg := tasksync.Config{DBPath: filepath.Join(dir, "tasksync.db"), Timezone: "UTC"}
	clock := func() time.Time { return fixedNow }

	var (
		client *tasksync.Client
		err    error
	)
	if withAdapters {
		vault := notes.New(vaultDir, "Daily", notes.WithLocation(time.UTC), notes.WithClock(clock))
		remote := &memRemote{tasks: []tasksync.RemoteTask{{
			ID: "r1", Title: "Call dentist", Status: tasksync.StatusNotStarted,
			CreatedAt: "2024-01-20T09:00:00Z",
		}}}
		client, err = tasksync.New(cfg, vault, remote, tasksync.WithClientClock(clock))
	} else {
		client, err = tasksync.New(cfg, nil, nil)
	}
	if err != nil {
		t.Fatalf("tasksync.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, vaultDir
}

func TestServer_ToolsList(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	want := []string{"tasksync_sync", "tasksync_status", "tasksync_lookup", "tasksync_forget", "tasksync_prune"}
	tools := server.ListTools()
	if len(tools) != len(want) {
		t.Fatalf("ListTools() returned %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d = %q, want %q", i, tools[i].Name, name)
		}
	}
}

func TestTool_Unknown(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	result, err := server.CallTool(context.Background(), "tasksync_nope", nil)
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !result.IsError {
		t.Error("unknown tool should return an error result")
	}
}

func TestTool_Sync_NotConfigured(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	result, err := server.CallTool(context.Background(), "tasksync_sync", nil)
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !result.IsError {
		t.Error("sync without adapters should be an error result")
	}
	if !strings.Contains(result.Content, "not configured") {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestTool_Sync_WritesNote(t *testing.T) {
	client, vaultDir := newClient(t, true)
	server := tasksyncmcp.NewServer(client)

	result, err := server.CallTool(context.Background(), "tasksync_sync", nil)
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("sync failed: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Remote -> local: 1 added") {
		t.Errorf("Content = %q", result.Content)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "Daily", "2024-01-20.md"))
	if err != nil {
		t.Fatalf("note not written: %v", err)
	}
	if !strings.Contains(string(data), "- [ ] Call dentist") {
		t.Errorf("note content = %q", data)
	}
}

func TestTool_Status(t *testing.T) {
	client, _ := newClient(t, true)
	server := tasksyncmcp.NewServer(client)
	ctx := context.Background()

	before, _ := server.CallTool(ctx, "tasksync_status", nil)
	if !strings.Contains(before.Content, "Last sync: never") {
		t.Errorf("fresh status = %q", before.Content)
	}

	if _, err := server.CallTool(ctx, "tasksync_sync", nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	after, err := server.CallTool(ctx, "tasksync_status", map[string]any{"limit": float64(3)})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !strings.Contains(after.Content, "Identity records: 1") {
		t.Errorf("status = %q", after.Content)
	}
	if !strings.Contains(after.Content, "Recent runs:") {
		t.Errorf("status should list runs: %q", after.Content)
	}
}

func TestTool_LookupAndForget(t *testing.T) {
	client, _ := newClient(t, false)
	client.Identity().SetMetadata("2024-01-20", "Call dentist", "r1")
	client.Identity().SetMetadata("2024-01-20", "Buy milk", "r2")
	client.Identity().SetMetadata("2024-01-22", "Write report", "r3")

	server := tasksyncmcp.NewServer(client)
	ctx := context.Background()

	result, err := server.CallTool(ctx, "tasksync_lookup", map[string]any{"date": "2024-01-20", "title": "DENTIST"})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !strings.Contains(result.Content, "[T1] 2024-01-20  Call dentist") {
		t.Errorf("lookup = %q", result.Content)
	}
	if strings.Contains(result.Content, "Buy milk") {
		t.Errorf("lookup should filter by title: %q", result.Content)
	}

	forget, err := server.CallTool(ctx, "tasksync_forget", map[string]any{"refs": []any{"T1", "T9"}})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !strings.Contains(forget.Content, "Removed 1") || !strings.Contains(forget.Content, "Not found: T9") {
		t.Errorf("forget = %q", forget.Content)
	}
	if _, ok := client.Identity().GetRemoteID("2024-01-20", "Call dentist"); ok {
		t.Error("record should be removed")
	}

	if _, err := server.CallTool(ctx, "tasksync_forget", map[string]any{"remote_id": "r3"}); err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if client.Identity().Len() != 1 {
		t.Errorf("Len() = %d, want 1", client.Identity().Len())
	}
}

func TestTool_ForgetKeepsRecordsFromOtherProcesses(t *testing.T) {
	client, _ := newClient(t, false)
	client.Identity().SetMetadata("2024-01-20", "Call dentist", "r1")
	server := tasksyncmcp.NewServer(client)
	ctx := context.Background()

	other, err := tasksync.New(client.Config(), nil, nil)
	if err != nil {
		t.Fatalf("tasksync.New() returned error: %v", err)
	}
	defer other.Close()
	if err := other.Update(func(ids *tasksync.IdentityStore) {
		ids.SetMetadata("2024-01-21", "Pay rent", "r5")
	}); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}

	lookup, err := server.CallTool(ctx, "tasksync_lookup", map[string]any{"remote_id": "r5"})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !strings.Contains(lookup.Content, "Pay rent") {
		t.Errorf("lookup should see records saved elsewhere: %q", lookup.Content)
	}

	if _, err := server.CallTool(ctx, "tasksync_forget", map[string]any{"remote_id": "r1"}); err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}

	fresh, err := tasksync.New(client.Config(), nil, nil)
	if err != nil {
		t.Fatalf("tasksync.New() returned error: %v", err)
	}
	defer fresh.Close()
	if _, ok := fresh.Identity().FindByRemoteID("r5"); !ok {
		t.Error("forget erased a record saved by another client")
	}
	if _, ok := fresh.Identity().FindByRemoteID("r1"); ok {
		t.Error("forgotten record still persisted")
	}
}

func TestTool_Sync_Locked(t *testing.T) {
	client, vaultDir := newClient(t, true)
	cfg := client.Config()
	held := flock.New(cfg.LockPath())
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: %v, %v", locked, err)
	}
	defer func() { _ = held.Unlock() }()

	server := tasksyncmcp.NewServer(client)
	result, err := server.CallTool(context.Background(), "tasksync_sync", nil)
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "already running") {
		t.Errorf("sync while locked = %+v", result)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Daily", "2024-01-20.md")); !os.IsNotExist(err) {
		t.Errorf("locked sync touched the vault: %v", err)
	}

	forget, err := server.CallTool(context.Background(), "tasksync_forget", map[string]any{"remote_id": "r1"})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !forget.IsError {
		t.Errorf("forget while locked = %+v", forget)
	}
}

func TestTool_Lookup_Validation(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"no criteria", map[string]any{}},
		{"bad date", map[string]any{"date": "yesterday"}},
		{"half range", map[string]any{"start": "2024-01-01"}},
		{"bad range", map[string]any{"start": "2024-01-01", "end": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.CallTool(context.Background(), "tasksync_lookup", tt.args)
			if err != nil {
				t.Fatalf("CallTool() returned error: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected error result, got %q", result.Content)
			}
		})
	}
}

func TestTool_Lookup_Range(t *testing.T) {
	client, _ := newClient(t, false)
	client.Identity().SetMetadata("2024-01-20", "A", "r1")
	client.Identity().SetMetadata("2024-01-25", "B", "r2")
	client.Identity().SetMetadata("2024-02-01", "C", "r3")
	server := tasksyncmcp.NewServer(client)

	result, err := server.CallTool(context.Background(), "tasksync_lookup", map[string]any{
		"start": "2024-01-20", "end": "2024-01-31",
	})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if !strings.Contains(result.Content, "Found 2 identity records") {
		t.Errorf("lookup = %q", result.Content)
	}
}

func TestTool_Prune(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)
	ctx := context.Background()

	missing, _ := server.CallTool(ctx, "tasksync_prune", map[string]any{})
	if !missing.IsError {
		t.Error("prune without days should fail")
	}

	zero, _ := server.CallTool(ctx, "tasksync_prune", map[string]any{"days": float64(0)})
	if !zero.IsError {
		t.Error("prune with days=0 should fail validation")
	}

	ok, err := server.CallTool(ctx, "tasksync_prune", map[string]any{"days": float64(30)})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if ok.IsError || !strings.Contains(ok.Content, "Pruned 0") {
		t.Errorf("prune = %+v", ok)
	}
}

func TestProtocol_Initialize(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	initRequest := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`
	respMap := roundTrip(t, server, initRequest)

	if _, hasError := respMap["error"]; hasError {
		t.Fatalf("Initialize response has error: %v", respMap["error"])
	}
	result, ok := respMap["result"].(map[string]any)
	if !ok {
		t.Fatal("Initialize response missing result")
	}
	serverInfo, ok := result["serverInfo"].(map[string]any)
	if !ok {
		t.Fatal("Initialize result missing serverInfo")
	}
	if serverInfo["name"] != "tasksync" {
		t.Errorf("serverInfo.name = %v, want tasksync", serverInfo["name"])
	}
	if serverInfo["version"] != tasksyncmcp.ServerVersion {
		t.Errorf("serverInfo.version = %v", serverInfo["version"])
	}
	capabilities, ok := result["capabilities"].(map[string]any)
	if !ok {
		t.Fatal("Initialize result missing capabilities")
	}
	if _, hasTools := capabilities["tools"]; !hasTools {
		t.Error("Capabilities should include tools")
	}
}

func TestProtocol_Errors(t *testing.T) {
	client, _ := newClient(t, false)
	server := tasksyncmcp.NewServer(client)

	tests := []struct {
		name    string
		message string
		code    int
	}{
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"unknown/method","params":{}}`, -32601},
		{"malformed JSON", `{"jsonrpc":"2.0","id":1,"method":`, -32700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			respMap := roundTrip(t, server, tt.message)
			errorObj, ok := respMap["error"].(map[string]any)
			if !ok {
				t.Fatal("response should carry an error")
			}
			code, ok := errorObj["code"].(float64)
			if !ok {
				t.Fatal("error missing code field")
			}
			if int(code) != tt.code {
				t.Errorf("code = %v, want %d", code, tt.code)
			}
		})
	}
}

func roundTrip(t *testing.T, server *tasksyncmcp.Server, message string) map[string]any {
	t.Helper()
	response := server.HandleMessage(context.Background(), []byte(message))
	if response == nil {
		t.Fatal("HandleMessage() returned nil response")
	}
	respBytes, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var respMap map[string]any
	if err := json.Unmarshal(respBytes, &respMap); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return respMap
}
