package bridge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/taskbridge/internal/store"
)

// RunPass executes one full synchronization pass: issue phase first,
// comment phase strictly after. Listing and destination authentication
// failures abort the pass; per-item failures are reported to the operator
// and the pass continues.
func (b *Bridge) RunPass(ctx context.Context) error {
	stats := &PassStats{}

	refs, err := b.source.ListOpenIssueRefs(ctx)
	if err != nil {
		return fmt.Errorf("listing open issues: %w", err)
	}
	b.logger.Printf("pass starting (%d open issues)", len(refs))

	issues := b.fetchIssues(ctx, refs, stats)

	if err := b.dest.Authenticate(ctx); err != nil {
		return fmt.Errorf("destination authentication: %w", err)
	}

	knownIDs, err := b.store.ListIssueIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing known issues: %w", err)
	}
	known := make(map[int64]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	for _, issue := range issues {
		if err := b.syncIssue(ctx, issue, known, stats); err != nil {
			stats.Failures++
			b.alert(ctx, fmt.Sprintf("sync failed for issue %s: %v", issue.Key, err))
		}
	}

	b.syncComments(ctx, issues, stats)

	b.logger.Printf("pass complete (issues: created=%d updated=%d skipped=%d; comments: created=%d updated=%d skipped=%d; failures=%d)",
		stats.IssuesCreated, stats.IssuesUpdated, stats.IssuesSkipped,
		stats.CommentsCreated, stats.CommentsUpdated, stats.CommentsSkipped,
		stats.Failures)
	return nil
}

// fetchIssues resolves refs to full issues concurrently. A failed fetch
// drops that issue from the pass; the rest proceed.
func (b *Bridge) fetchIssues(ctx context.Context, refs []string, stats *PassStats) []*Issue {
	results := make([]*Issue, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.FetchConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			issue, err := b.source.FetchIssue(gctx, ref)
			if err != nil {
				b.alert(gctx, fmt.Sprintf("fetch failed for %s: %v", ref, err))
				return nil
			}
			results[i] = issue
			return nil
		})
	}
	_ = g.Wait()

	issues := results[:0]
	for _, issue := range results {
		if issue != nil {
			issues = append(issues, issue)
		}
	}
	stats.Failures += len(refs) - len(issues)
	return issues
}

// syncIssue reconciles one issue with the destination. Unchanged issues
// produce no destination call and no store write.
func (b *Bridge) syncIssue(ctx context.Context, issue *Issue, known map[int64]bool, stats *PassStats) error {
	fp := Fingerprints(issue)

	var stored *store.IssueRecord
	if known[issue.ID] {
		var err error
		stored, err = b.store.GetIssue(ctx, issue.ID)
		if err != nil {
			return fmt.Errorf("reading issue record: %w", err)
		}
	}
	change := ClassifyIssue(fp, stored)

	if !change.Unseen && !change.Changed() {
		stats.IssuesSkipped++
		return nil
	}

	if change.Unseen {
		return b.createTask(ctx, issue, fp, stats)
	}

	link, err := b.store.GetLink(ctx, issue.ID)
	if err != nil {
		return fmt.Errorf("reading issue link: %w", err)
	}
	if link == nil {
		// Issue record without a link record. Repair by mirroring from
		// scratch; UpsertLink keeps the first task id if one ever appears.
		b.logger.Printf("issue %s has a record but no link, re-mirroring", issue.Key)
		return b.createTask(ctx, issue, fp, stats)
	}

	if change.Description {
		if err := b.dest.UpdateTaskDescription(ctx, link.TaskID, issue.Description, issue.Link); err != nil {
			return fmt.Errorf("updating task %d: %w", link.TaskID, err)
		}
	}
	if change.Attachments {
		if err := b.uploadAttachments(ctx, issue, link.TaskID); err != nil {
			return err
		}
	}

	if _, err := b.store.UpsertIssue(ctx, issue.ID, fp.Description, fp.Attachments); err != nil {
		return fmt.Errorf("recording issue %s: %w", issue.Key, err)
	}
	stats.IssuesUpdated++
	b.logger.Printf("issue %s updated (description=%t attachments=%t)", issue.Key, change.Description, change.Attachments)
	return nil
}

// createTask mirrors an issue to a fresh destination task and records the
// link and content fingerprints.
func (b *Bridge) createTask(ctx context.Context, issue *Issue, fp IssueFingerprints, stats *PassStats) error {
	taskID, err := b.dest.CreateTask(ctx, issue.Title, issue.Description, issue.Link)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	if _, err := b.store.UpsertLink(ctx, issue.ID, taskID); err != nil {
		return fmt.Errorf("recording link for %s: %w", issue.Key, err)
	}
	if _, err := b.store.UpsertIssue(ctx, issue.ID, fp.Description, fp.Attachments); err != nil {
		return fmt.Errorf("recording issue %s: %w", issue.Key, err)
	}

	if len(issue.Attachments) > 0 {
		if err := b.uploadAttachments(ctx, issue, taskID); err != nil {
			return err
		}
	}

	stats.IssuesCreated++
	b.logger.Printf("issue %s mirrored to task %d", issue.Key, taskID)
	return nil
}

func (b *Bridge) uploadAttachments(ctx context.Context, issue *Issue, taskID int64) error {
	paths, err := b.source.DownloadAttachments(ctx, issue)
	if err != nil {
		return fmt.Errorf("downloading attachments for %s: %w", issue.Key, err)
	}
	if len(paths) == 0 {
		return nil
	}
	if err := b.dest.UploadFiles(ctx, taskID, paths); err != nil {
		return fmt.Errorf("uploading attachments to task %d: %w", taskID, err)
	}
	return nil
}

// syncComments runs the comment phase over the issues that survived the
// issue phase. Comment lists are fetched concurrently; each issue's
// comments are then applied oldest first.
func (b *Bridge) syncComments(ctx context.Context, issues []*Issue, stats *PassStats) {
	lists := make([][]Comment, len(issues))
	failed := make([]bool, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.FetchConcurrency)
	for i, issue := range issues {
		i, issue := i, issue
		g.Go(func() error {
			comments, err := b.source.FetchComments(gctx, issue.ID)
			if err != nil {
				failed[i] = true
				b.alert(gctx, fmt.Sprintf("listing comments failed for %s: %v", issue.Key, err))
				return nil
			}
			lists[i] = comments
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failed {
		if f {
			stats.Failures++
		}
	}

	for i, issue := range issues {
		for j := range lists[i] {
			if err := b.syncComment(ctx, &lists[i][j], stats); err != nil {
				stats.Failures++
				b.alert(ctx, fmt.Sprintf("comment sync failed for %s: %v", issue.Key, err))
			}
		}
	}
}

// syncComment reconciles one comment with the destination.
func (b *Bridge) syncComment(ctx context.Context, c *Comment, stats *PassStats) error {
	digest := CommentFingerprint(c)

	stored, err := b.store.GetComment(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("reading comment record: %w", err)
	}

	switch ClassifyComment(digest, stored) {
	case CommentUnchanged:
		stats.CommentsSkipped++
		return nil

	case CommentNew:
		link, err := b.store.GetLink(ctx, c.IssueID)
		if err != nil {
			return fmt.Errorf("reading issue link: %w", err)
		}
		if link == nil {
			// Comment for an issue that was never mirrored. The issue
			// phase should have repaired this already, so flag it.
			stats.Failures++
			b.alert(ctx, fmt.Sprintf("data inconsistency: comment %d references issue %d with no mirrored task", c.ID, c.IssueID))
			return nil
		}
		destID, err := b.dest.AddComment(ctx, link.TaskID, FormatComment(c))
		if err != nil {
			return fmt.Errorf("adding comment to task %d: %w", link.TaskID, err)
		}
		if _, err := b.store.UpsertComment(ctx, c.ID, destID, link.TaskID, digest); err != nil {
			return fmt.Errorf("recording comment %d: %w", c.ID, err)
		}
		stats.CommentsCreated++
		return nil

	default: // CommentChanged
		if err := b.dest.UpdateComment(ctx, stored.DestCommentID, FormatComment(c)); err != nil {
			return fmt.Errorf("updating comment %d: %w", stored.DestCommentID, err)
		}
		if _, err := b.store.UpsertComment(ctx, c.ID, stored.DestCommentID, stored.TaskID, digest); err != nil {
			return fmt.Errorf("recording comment %d: %w", c.ID, err)
		}
		stats.CommentsUpdated++
		return nil
	}
}
