// Package store persists the bridge's idempotency state: per-issue content
// fingerprints, issue-to-task link records, and comment link records. All
// writes go through atomic upsert-and-report-new operations so that
// concurrent passes cannot lose updates or observe partial records.
package store

import (
	"context"
	"time"

	"github.com/steveyegge/taskbridge/internal/fingerprint"
)

// IssueRecord tracks the last synchronized content of a source issue.
// A record exists iff the issue has been synchronized at least once.
type IssueRecord struct {
	IssueID     int64
	Description fingerprint.Digest
	// Attachments is the digest of the issue's attachment-id set. A zero
	// digest means the issue had no attachments when last synchronized.
	Attachments fingerprint.Digest
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LinkRecord maps a source issue to its mirrored destination task.
// Created exactly once; the task id is never reassigned.
type LinkRecord struct {
	IssueID   int64
	TaskID    int64
	CreatedAt time.Time
}

// CommentRecord maps a source comment to its mirrored destination comment.
type CommentRecord struct {
	CommentID     int64
	DestCommentID int64
	TaskID        int64
	Description   fingerprint.Digest
	CreatedAt     time.Time
}

// Store is the key-value state backend. Get methods return (nil, nil) when
// no record exists; they never return partially populated records. Upsert
// methods report true when the call created the record. On an existing
// record only fields that differ are written, and the issue record's
// UpdatedAt is bumped only when a field actually changed.
type Store interface {
	GetIssue(ctx context.Context, issueID int64) (*IssueRecord, error)
	UpsertIssue(ctx context.Context, issueID int64, description, attachments fingerprint.Digest) (bool, error)

	// ListIssueIDs enumerates the ids of all issue records. Iteration is
	// batched under the hood; ordering is not guaranteed.
	ListIssueIDs(ctx context.Context) ([]int64, error)

	GetLink(ctx context.Context, issueID int64) (*LinkRecord, error)
	UpsertLink(ctx context.Context, issueID, taskID int64) (bool, error)

	GetComment(ctx context.Context, commentID int64) (*CommentRecord, error)
	UpsertComment(ctx context.Context, commentID, destCommentID, taskID int64, description fingerprint.Digest) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
