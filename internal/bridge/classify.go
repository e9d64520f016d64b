package bridge

import (
	"fmt"

	"github.com/steveyegge/taskbridge/internal/canon"
	"github.com/steveyegge/taskbridge/internal/fingerprint"
	"github.com/steveyegge/taskbridge/internal/store"
)

// IssueFingerprints holds the content digests of an issue as currently
// observed at the source. Attachments is absent when the issue has none.
type IssueFingerprints struct {
	Description fingerprint.Digest
	Attachments fingerprint.Digest
}

// Fingerprints computes an issue's content digests. The description is
// canonicalized first so that rendering-only differences (markup,
// whitespace, entity encoding, case) do not register as changes.
func Fingerprints(issue *Issue) IssueFingerprints {
	fp := IssueFingerprints{
		Description: fingerprint.Text(canon.Canonicalize(issue.Description)),
	}
	if len(issue.Attachments) > 0 {
		ids := make([]int64, len(issue.Attachments))
		for i, a := range issue.Attachments {
			ids[i] = a.ID
		}
		fp.Attachments = fingerprint.IDSet(ids)
	}
	return fp
}

// IssueChange is the classification of one issue against its stored state.
type IssueChange struct {
	// Unseen means no record exists for the issue yet.
	Unseen bool
	// Description and Attachments flag which content dimension differs
	// from the stored record. Both false on an unchanged issue.
	Description bool
	Attachments bool
}

// Changed reports whether any content dimension differs.
func (c IssueChange) Changed() bool { return c.Description || c.Attachments }

// ClassifyIssue compares current fingerprints against the stored record.
// An attachment digest transitioning between absent and present counts as
// an attachment change in either direction.
func ClassifyIssue(current IssueFingerprints, stored *store.IssueRecord) IssueChange {
	if stored == nil {
		return IssueChange{Unseen: true}
	}
	return IssueChange{
		Description: !fingerprint.Equal(current.Description, stored.Description),
		Attachments: !fingerprint.Equal(current.Attachments, stored.Attachments),
	}
}

// FormatComment renders the composite comment text mirrored to the
// destination. Author and timestamp are part of the composite, so an
// edit to either is a content change like a body edit.
func FormatComment(c *Comment) string {
	return fmt.Sprintf("%s / %s\n\n%s", c.Author, c.Created.Format("2006-01-02 15:04"), c.Body)
}

// CommentFingerprint computes the digest of a comment's composite text.
func CommentFingerprint(c *Comment) fingerprint.Digest {
	return fingerprint.Text(canon.Canonicalize(FormatComment(c)))
}

// CommentState classifies a comment against its stored record.
type CommentState int

const (
	// CommentNew means the comment has never been mirrored.
	CommentNew CommentState = iota
	// CommentUnchanged means the stored digest matches the current one.
	CommentUnchanged
	// CommentChanged means the comment was mirrored but its composite
	// text has since changed.
	CommentChanged
)

// ClassifyComment compares a comment's current digest against its stored
// record.
func ClassifyComment(current fingerprint.Digest, stored *store.CommentRecord) CommentState {
	switch {
	case stored == nil:
		return CommentNew
	case fingerprint.Equal(current, stored.Description):
		return CommentUnchanged
	default:
		return CommentChanged
	}
}
