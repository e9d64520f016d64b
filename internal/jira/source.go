package jira

import (
	"context"

	"github.com/steveyegge/taskbridge/internal/bridge"
)

// Source adapts Client to the sync engine's source interface.
type Source struct {
	Client *Client
	// DownloadDir is the root directory attachment files are saved under,
	// one subdirectory per issue id.
	DownloadDir string
}

// NewSource wraps a Client for use by the sync engine.
func NewSource(client *Client, downloadDir string) *Source {
	return &Source{Client: client, DownloadDir: downloadDir}
}

func (s *Source) ListOpenIssueRefs(ctx context.Context) ([]string, error) {
	return s.Client.SearchOpenIssues(ctx)
}

func (s *Source) FetchIssue(ctx context.Context, ref string) (*bridge.Issue, error) {
	issue, err := s.Client.GetIssue(ctx, ref)
	if err != nil {
		return nil, err
	}

	out := &bridge.Issue{
		ID:          issue.ID,
		Key:         issue.Key,
		Title:       issue.Title,
		Description: issue.Description,
		Link:        issue.Link,
	}
	for _, a := range issue.Attachments {
		out.Attachments = append(out.Attachments, bridge.Attachment{ID: a.ID, Filename: a.Filename})
	}
	return out, nil
}

func (s *Source) FetchComments(ctx context.Context, issueID int64) ([]bridge.Comment, error) {
	comments, err := s.Client.ListComments(ctx, issueID)
	if err != nil {
		return nil, err
	}

	out := make([]bridge.Comment, len(comments))
	for i, c := range comments {
		out[i] = bridge.Comment{
			ID:      c.ID,
			IssueID: c.IssueID,
			Author:  c.Author,
			Created: c.Created,
			Body:    c.Body,
		}
	}
	return out, nil
}

// DownloadAttachments re-fetches the issue to get fresh attachment content
// URLs, then saves every file under DownloadDir.
func (s *Source) DownloadAttachments(ctx context.Context, issue *bridge.Issue) ([]string, error) {
	if len(issue.Attachments) == 0 {
		return nil, nil
	}

	// The engine's neutral attachment type carries no content URL, so map
	// ids back to the client's attachment list.
	full, err := s.Client.GetIssue(ctx, s.Client.issueRef(issue.ID))
	if err != nil {
		return nil, err
	}
	return s.Client.DownloadAttachments(ctx, full.Attachments, issue.ID, s.DownloadDir)
}
