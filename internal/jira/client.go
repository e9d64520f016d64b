// Package jira is the source-tracker client. It retrieves the operator's
// open issues with their rendered HTML descriptions, comment threads, and
// attachment content from the Jira REST API.
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// searchPageSize is the page size for search and comment listing requests.
const searchPageSize = 100

// openIssuesJQL selects the operator's issues that still need mirroring.
const openIssuesJQL = "assignee = currentUser() AND statusCategory != Done ORDER BY statusCategory, status, updated DESC"

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client

	// PauseStatus names an issue status excluded from sync (e.g. issues
	// parked as "On pause / Blocked"). Empty disables the filter.
	PauseStatus string
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string) *Client {
	return &Client{
		URL:      strings.TrimSuffix(url, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// searchResult is a Jira JQL search response page.
type searchResult struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Self   string `json:"self"`
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issues"`
}

// SearchOpenIssues returns the API refs (self URLs) of all open issues
// assigned to the authenticated user, handling pagination. Issues in the
// configured pause status are excluded.
func (c *Client) SearchOpenIssues(ctx context.Context) ([]string, error) {
	var refs []string
	startAt := 0

	for {
		params := url.Values{
			"jql":        {openIssuesJQL},
			"fields":     {"status"},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", searchPageSize)},
		}

		apiURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.URL, params.Encode())

		body, err := c.doRequest(ctx, "GET", apiURL)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result searchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, issue := range result.Issues {
			if c.PauseStatus != "" && issue.Fields.Status.Name == c.PauseStatus {
				continue
			}
			refs = append(refs, issue.Self)
		}

		startAt += len(result.Issues)
		if startAt >= result.Total || len(result.Issues) == 0 {
			break
		}
	}

	return refs, nil
}

// GetIssue fetches one issue by its API ref, with the description rendered
// to HTML (expand=renderedFields).
func (c *Client) GetIssue(ctx context.Context, ref string) (*Issue, error) {
	apiURL := fmt.Sprintf("%s?fields=summary,attachment&expand=renderedFields", ref)

	body, err := c.doRequest(ctx, "GET", apiURL)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", ref, err)
	}

	var raw struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Fields struct {
			Summary    string `json:"summary"`
			Attachment []struct {
				ID       string `json:"id"`
				Filename string `json:"filename"`
				Content  string `json:"content"`
			} `json:"attachment"`
		} `json:"fields"`
		RenderedFields struct {
			Description string `json:"description"`
		} `json:"renderedFields"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	id, err := parseID(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", ref, err)
	}

	issue := &Issue{
		ID:          id,
		Key:         raw.Key,
		Title:       raw.Fields.Summary,
		Description: raw.RenderedFields.Description,
		Link:        fmt.Sprintf("%s/browse/%s", c.URL, raw.Key),
	}
	for _, a := range raw.Fields.Attachment {
		attID, err := parseID(a.ID)
		if err != nil {
			return nil, fmt.Errorf("issue %s attachment: %w", raw.Key, err)
		}
		issue.Attachments = append(issue.Attachments, Attachment{
			ID:         attID,
			Filename:   a.Filename,
			ContentURL: a.Content,
		})
	}

	return issue, nil
}

// commentPage is one page of a Jira comment listing.
type commentPage struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Comments   []struct {
		ID     string `json:"id"`
		Author struct {
			DisplayName string `json:"displayName"`
		} `json:"author"`
		Created      string `json:"created"`
		RenderedBody string `json:"renderedBody"`
	} `json:"comments"`
}

// ListComments returns all comments on an issue, sorted ascending by
// creation time, with bodies rendered to HTML. Pagination continues until
// the reported total has been seen: an empty page short of the total
// advances past it rather than ending the listing early.
func (c *Client) ListComments(ctx context.Context, issueID int64) ([]Comment, error) {
	var comments []Comment
	startAt := 0

	for {
		params := url.Values{
			"expand":     {"renderedBody"},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", searchPageSize)},
		}
		apiURL := fmt.Sprintf("%s/rest/api/2/issue/%d/comment?%s", c.URL, issueID, params.Encode())

		body, err := c.doRequest(ctx, "GET", apiURL)
		if err != nil {
			return nil, fmt.Errorf("list comments for issue %d: %w", issueID, err)
		}

		var page commentPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse comments response: %w", err)
		}

		for _, raw := range page.Comments {
			id, err := parseID(raw.ID)
			if err != nil {
				return nil, fmt.Errorf("issue %d comment: %w", issueID, err)
			}
			created, err := ParseTimestamp(raw.Created)
			if err != nil {
				return nil, fmt.Errorf("issue %d comment %d: %w", issueID, id, err)
			}
			comments = append(comments, Comment{
				ID:      id,
				IssueID: issueID,
				Author:  raw.Author.DisplayName,
				Created: created,
				Body:    raw.RenderedBody,
			})
		}

		if len(page.Comments) > 0 {
			startAt += len(page.Comments)
		} else {
			// Some deployments return sparse pages; skip the hole instead
			// of treating it as the end of the listing.
			startAt += page.MaxResults
			if page.MaxResults == 0 {
				break
			}
		}
		if startAt >= page.Total || page.Total == 0 {
			break
		}
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Created.Before(comments[j].Created)
	})
	return comments, nil
}

// doRequest executes an authenticated request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, apiURL string) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "taskbridge/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// setAuth sets the appropriate authentication header on the request.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

// issueRef builds the API ref for an issue id, matching the self URLs
// returned by search.
func (c *Client) issueRef(id int64) string {
	return fmt.Sprintf("%s/rest/api/2/issue/%d", c.URL, id)
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("malformed id %q", s)
	}
	return id, nil
}

// ParseTimestamp parses Jira's timestamp format into a time.Time.
// Jira uses ISO 8601 with timezone: 2024-01-15T10:30:00.000+0000 or 2024-01-15T10:30:00.000Z
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}
