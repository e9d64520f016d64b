// Package planfix is the destination-system client. Planfix exposes an
// XML-over-POST RPC API: every request names a method, carries the account
// and a session token, and returns a <response> document. Descriptions are
// shipped as CDATA so rendered HTML passes through unmangled.
package planfix

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// titlePrefix marks mirrored tasks in Planfix task lists.
const titlePrefix = "[JIRA] "

// Client provides access to the Planfix XML API. Authenticate must be
// called before any mutation; the session token it obtains is attached to
// every subsequent request.
type Client struct {
	URL        string
	Account    string
	APIKey     string
	Login      string
	Password   string
	HTTPClient *http.Client

	// Task routing, fixed per deployment.
	ProjectID      int64
	Workers        []int64
	Members        []int64
	CommentOwnerID int64

	sid string
}

// NewClient creates a Planfix client. Call Authenticate before use.
func NewClient(url, account, apiKey, login, password string) *Client {
	return &Client{
		URL:      url,
		Account:  account,
		APIKey:   apiKey,
		Login:    login,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// cdata wraps text in a CDATA section when marshaled. encoding/xml splits
// embedded "]]>" sequences across sections automatically.
type cdata struct {
	Text string `xml:",cdata"`
}

type userIDs struct {
	IDs []int64 `xml:"users>id"`
}

type response struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status,attr"`
	Message string   `xml:"message"`
	Sid     string   `xml:"sid"`
	Task    struct {
		ID int64 `xml:"id"`
	} `xml:"task"`
	Action struct {
		ID int64 `xml:"id"`
	} `xml:"action"`
}

// Authenticate obtains a session token via auth.login. It must succeed
// before any other call; a response without <sid> is a hard failure.
func (c *Client) Authenticate(ctx context.Context) error {
	req := struct {
		XMLName  xml.Name `xml:"request"`
		Method   string   `xml:"method,attr"`
		Account  string   `xml:"account"`
		Login    string   `xml:"login"`
		Password string   `xml:"password"`
	}{
		Method:   "auth.login",
		Account:  c.Account,
		Login:    c.Login,
		Password: c.Password,
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		return fmt.Errorf("auth.login: %w", err)
	}
	if resp.Sid == "" {
		return fmt.Errorf("auth.login: response missing <sid>")
	}
	c.sid = resp.Sid
	return nil
}

// CreateTask creates a mirrored task via task.add and returns its id.
// sourceLink is appended to the description so the operator can jump back
// to the source issue.
func (c *Client) CreateTask(ctx context.Context, title, description, sourceLink string) (int64, error) {
	req := struct {
		XMLName xml.Name `xml:"request"`
		Method  string   `xml:"method,attr"`
		Account string   `xml:"account"`
		Sid     string   `xml:"sid"`
		Task    struct {
			Title       string  `xml:"title"`
			Description cdata   `xml:"description"`
			Workers     userIDs `xml:"workers"`
			Members     userIDs `xml:"members"`
			Project     struct {
				ID int64 `xml:"id"`
			} `xml:"project"`
		} `xml:"task"`
	}{
		Method:  "task.add",
		Account: c.Account,
		Sid:     c.sid,
	}
	req.Task.Title = titlePrefix + title
	req.Task.Description = cdata{Text: describeWithLink(description, sourceLink)}
	req.Task.Workers = userIDs{IDs: c.Workers}
	req.Task.Members = userIDs{IDs: c.Members}
	req.Task.Project.ID = c.ProjectID

	resp, err := c.call(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("task.add: %w", err)
	}
	if resp.Task.ID == 0 {
		return 0, fmt.Errorf("task.add: response missing task <id>")
	}
	return resp.Task.ID, nil
}

// UpdateTaskDescription rewrites a mirrored task's description via
// task.update.
func (c *Client) UpdateTaskDescription(ctx context.Context, taskID int64, description, sourceLink string) error {
	req := struct {
		XMLName xml.Name `xml:"request"`
		Method  string   `xml:"method,attr"`
		Account string   `xml:"account"`
		Sid     string   `xml:"sid"`
		Task    struct {
			General     int64 `xml:"general"`
			Description cdata `xml:"description"`
		} `xml:"task"`
	}{
		Method:  "task.update",
		Account: c.Account,
		Sid:     c.sid,
	}
	req.Task.General = taskID
	req.Task.Description = cdata{Text: describeWithLink(description, sourceLink)}

	if _, err := c.call(ctx, req); err != nil {
		return fmt.Errorf("task.update: %w", err)
	}
	return nil
}

// AddComment appends a comment to a task via action.add and returns the new
// comment's id.
func (c *Client) AddComment(ctx context.Context, taskID int64, text string) (int64, error) {
	req := struct {
		XMLName xml.Name `xml:"request"`
		Method  string   `xml:"method,attr"`
		Account string   `xml:"account"`
		Sid     string   `xml:"sid"`
		Action  struct {
			Description cdata `xml:"description"`
			Task        struct {
				ID int64 `xml:"id"`
			} `xml:"task"`
			Owner struct {
				ID int64 `xml:"id"`
			} `xml:"owner"`
		} `xml:"action"`
	}{
		Method:  "action.add",
		Account: c.Account,
		Sid:     c.sid,
	}
	req.Action.Description = cdata{Text: text}
	req.Action.Task.ID = taskID
	req.Action.Owner.ID = c.CommentOwnerID

	resp, err := c.call(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("action.add: %w", err)
	}
	if resp.Action.ID == 0 {
		return 0, fmt.Errorf("action.add: response missing action <id>")
	}
	return resp.Action.ID, nil
}

// UpdateComment rewrites an existing comment's content via action.update.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, text string) error {
	req := struct {
		XMLName xml.Name `xml:"request"`
		Method  string   `xml:"method,attr"`
		Account string   `xml:"account"`
		Sid     string   `xml:"sid"`
		Action  struct {
			ID          int64 `xml:"id"`
			Description cdata `xml:"description"`
		} `xml:"action"`
	}{
		Method:  "action.update",
		Account: c.Account,
		Sid:     c.sid,
	}
	req.Action.ID = commentID
	req.Action.Description = cdata{Text: text}

	resp, err := c.call(ctx, req)
	if err != nil {
		return fmt.Errorf("action.update: %w", err)
	}
	if resp.Action.ID == 0 {
		return fmt.Errorf("action.update: response missing action <id>")
	}
	return nil
}

// call marshals the request, POSTs it, and decodes the <response>
// envelope. Non-200 statuses, malformed XML, and status="error" responses
// are all hard failures.
func (c *Client) call(ctx context.Context, reqBody interface{}) (*response, error) {
	data, err := xml.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.URL, strings.NewReader(xml.Header+string(data)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(c.APIKey, "")
	httpReq.Header.Set("Accept", "application/xml")
	httpReq.Header.Set("Content-Type", "application/xml; charset=utf-8")

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("planfix API returned %d: %s", httpResp.StatusCode, truncate(string(body), 200))
	}

	var resp response
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid XML response: %w: %s", err, truncate(string(body), 200))
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("planfix API error: status=%s message=%s", resp.Status, resp.Message)
	}
	return &resp, nil
}

func describeWithLink(description, link string) string {
	if link == "" {
		return description
	}
	return description + "\n\nSource issue: " + link
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
