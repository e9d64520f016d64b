package jira

import "time"

// Issue is one Jira issue as the bridge consumes it: identity, rendered
// HTML description, and the current attachment set.
type Issue struct {
	ID          int64
	Key         string
	Title       string
	Description string
	Attachments []Attachment
	// Link is the human-facing browse URL, appended to mirrored task
	// descriptions so the operator can jump back to the source.
	Link string
}

// Attachment identifies one file attached to an issue.
type Attachment struct {
	ID         int64
	Filename   string
	ContentURL string
}

// Comment is one rendered comment on an issue.
type Comment struct {
	ID      int64
	IssueID int64
	Author  string
	Created time.Time
	Body    string
}
