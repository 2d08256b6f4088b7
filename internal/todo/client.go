// Package todo implements the remote task store over the Microsoft To Do
// endpoints of Microsoft Graph.
package todo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/tasksync"
)

// DefaultListName is the well-known name of the account's default list.
const DefaultListName = "defaultList"

// graphDateTimeLayout is the wall-clock layout Graph uses in dateTimeTimeZone.
const graphDateTimeLayout = "2006-01-02T15:04:05.0000000"

var _ tasksync.RemoteStore = (*Client)(nil)

// Client implements tasksync.RemoteStore against Microsoft Graph.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	timeZone   string
	httpClient *http.Client
	debug      *tasksync.DebugLogger

	mu     sync.RWMutex
	listID string
}

// NewClient creates a Graph To Do client. listID may be empty, in which case
// ResolveDefaultList must run before the list is used.
func NewClient(baseURL, token, listID string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		listID:   listID,
		timeZone: "UTC",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// WithDebugLogger enables wire logging.
func (c *Client) WithDebugLogger(l *tasksync.DebugLogger) *Client {
	c.debug = l
	return c
}

// WithTimeZone sets the zone name sent with start dates.
func (c *Client) WithTimeZone(name string) *Client {
	if name != "" {
		c.timeZone = name
	}
	return c
}

// DefaultListID returns the list the client operates on.
func (c *Client) DefaultListID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listID, c.listID != ""
}

// ResolveDefaultList looks up the account's default list when no list ID was
// configured and remembers it.
func (c *Client) ResolveDefaultList(ctx context.Context) (string, error) {
	if id, ok := c.DefaultListID(); ok {
		return id, nil
	}

	next := c.baseURL + "/me/todo/lists"
	for next != "" {
		var page listPage
		if err := c.do(ctx, "list_lists", http.MethodGet, next, nil, &page); err != nil {
			return "", err
		}
		for _, l := range page.Value {
			if l.WellknownListName == DefaultListName {
				c.mu.Lock()
				c.listID = l.ID
				c.mu.Unlock()
				return l.ID, nil
			}
		}
		next = page.NextLink
	}
	return "", tasksync.ErrNoDefaultList
}

// ListTasks returns every task in the list, following pagination links.
func (c *Client) ListTasks(ctx context.Context) ([]tasksync.RemoteTask, error) {
	base, err := c.tasksURL()
	if err != nil {
		return nil, err
	}

	var tasks []tasksync.RemoteTask
	next := base
	for next != "" {
		var page taskPage
		if err := c.do(ctx, "list_tasks", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Value {
			tasks = append(tasks, toRemoteTask(t))
		}
		next = page.NextLink
	}
	return tasks, nil
}

// CreateTask creates an incomplete task.
func (c *Client) CreateTask(ctx context.Context, title string) (*tasksync.RemoteTask, error) {
	return c.createTask(ctx, todoTask{Title: title})
}

// CreateTaskWithStartDate creates an incomplete task starting on date.
func (c *Client) CreateTaskWithStartDate(ctx context.Context, title, date string) (*tasksync.RemoteTask, error) {
	start, err := tasksync.ParseDate(date)
	if err != nil {
		return nil, &tasksync.SyncError{Operation: "create_task", Err: err}
	}
	return c.createTask(ctx, todoTask{
		Title: title,
		StartDateTime: &dateTimeTimeZone{
			DateTime: start.Format(graphDateTimeLayout),
			TimeZone: c.timeZone,
		},
	})
}

func (c *Client) createTask(ctx context.Context, body todoTask) (*tasksync.RemoteTask, error) {
	base, err := c.tasksURL()
	if err != nil {
		return nil, err
	}

	var created todoTask
	if err := c.do(ctx, "create_task", http.MethodPost, base, body, &created); err != nil {
		return nil, err
	}
	task := toRemoteTask(created)
	return &task, nil
}

// UpdateTitle renames a task.
func (c *Client) UpdateTitle(ctx context.Context, id, title string) error {
	return c.patch(ctx, "update_title", id, patchTask{Title: title})
}

// Complete marks a task completed.
func (c *Client) Complete(ctx context.Context, id string) error {
	return c.patch(ctx, "complete_task", id, patchTask{Status: string(tasksync.StatusCompleted)})
}

func (c *Client) patch(ctx context.Context, op, id string, body patchTask) error {
	base, err := c.tasksURL()
	if err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPatch, base+"/"+url.PathEscape(id), body, nil)
}

func (c *Client) tasksURL() (string, error) {
	id, ok := c.DefaultListID()
	if !ok {
		return "", tasksync.ErrNoDefaultList
	}
	return c.baseURL + "/me/todo/lists/" + url.PathEscape(id) + "/tasks", nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tasksync-client/1.0")
	req.Header.Set("client-request-id", requestID)
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, op, method, target string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return &tasksync.SyncError{Operation: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return &tasksync.SyncError{Operation: op, Err: err}
	}
	requestID := uuid.NewString()
	c.setHeaders(req, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.debug.LogRequest(method, target, requestID, payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debug.LogError(op, err)
		return &tasksync.SyncError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.debug.LogError(op, err)
		return &tasksync.SyncError{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.debug.LogResponse(resp.StatusCode, resp.Status, body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newSyncError(op, resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &tasksync.SyncError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func newSyncError(op string, statusCode int, body []byte) *tasksync.SyncError {
	msg := ""
	if len(body) > 0 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &tasksync.SyncError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

// toRemoteTask maps the wire form onto the engine's task. Only dueDateTime
// feeds DueAt; the start date set on tasks created from notes does not take
// part in placement.
func toRemoteTask(t todoTask) tasksync.RemoteTask {
	rt := tasksync.RemoteTask{
		ID:        t.ID,
		Title:     t.Title,
		Status:    tasksync.TaskStatus(t.Status),
		CreatedAt: t.CreatedDateTime,
	}
	if t.DueDateTime != nil {
		rt.DueAt = t.DueDateTime.DateTime
	}
	if t.CompletedDateTime != nil {
		rt.CompletedAt = instant(*t.CompletedDateTime)
	}
	return rt
}

// instant turns a UTC dateTimeTimeZone into an RFC 3339 instant. Values in
// other zones are passed through unchanged.
func instant(dt dateTimeTimeZone) string {
	if dt.DateTime == "" {
		return ""
	}
	if strings.EqualFold(dt.TimeZone, "UTC") && !strings.HasSuffix(dt.DateTime, "Z") {
		return dt.DateTime + "Z"
	}
	return dt.DateTime
}
