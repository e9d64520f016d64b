// Package bridge implements the one-way synchronization pass from the
// source tracker to the destination tracker.
//
// The engine depends on small Source and Destination interfaces plus the
// state store; tracker clients adapt themselves to these interfaces. The
// decision core (fingerprinting and change classification) is pure and
// performs no I/O.
package bridge

import (
	"context"
	"time"
)

// Issue is one source issue in the engine's neutral form.
type Issue struct {
	ID          int64
	Key         string // human-readable identifier (e.g., "PROJ-123")
	Title       string
	Description string // rendered HTML
	Attachments []Attachment
	Link        string // web URL to the source issue
}

// Attachment identifies one file attached to an issue.
type Attachment struct {
	ID       int64
	Filename string
}

// Comment is one source comment in the engine's neutral form.
type Comment struct {
	ID      int64
	IssueID int64
	Author  string
	Created time.Time
	Body    string
}

// Source is the tracker the bridge reads from.
type Source interface {
	// ListOpenIssueRefs returns opaque refs for all issues currently in
	// scope. A failure here aborts the pass.
	ListOpenIssueRefs(ctx context.Context) ([]string, error)

	// FetchIssue resolves one ref to a full issue.
	FetchIssue(ctx context.Context, ref string) (*Issue, error)

	// FetchComments returns an issue's comments sorted ascending by
	// creation time.
	FetchComments(ctx context.Context, issueID int64) ([]Comment, error)

	// DownloadAttachments fetches the issue's current attachments to local
	// files and returns their paths.
	DownloadAttachments(ctx context.Context, issue *Issue) ([]string, error)
}

// Destination is the tracker the bridge writes to. Authenticate must be
// called once per pass before any other method.
type Destination interface {
	Authenticate(ctx context.Context) error
	CreateTask(ctx context.Context, title, description, sourceLink string) (int64, error)
	UpdateTaskDescription(ctx context.Context, taskID int64, description, sourceLink string) error
	UploadFiles(ctx context.Context, taskID int64, paths []string) error
	AddComment(ctx context.Context, taskID int64, text string) (int64, error)
	UpdateComment(ctx context.Context, commentID int64, text string) error
}

// PassStats accumulates the outcome counts of one synchronization pass.
type PassStats struct {
	IssuesCreated   int
	IssuesUpdated   int
	IssuesSkipped   int
	CommentsCreated int
	CommentsUpdated int
	CommentsSkipped int
	Failures        int
}
