package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/steveyegge/taskbridge/internal/fingerprint"
)

func TestMemoryStoreImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestUpsertIssueReportsNew(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	d1 := fingerprint.Text("description one")
	att := fingerprint.IDSet([]int64{10, 11})

	created, err := s.UpsertIssue(ctx, 100, d1, att)
	if err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	if !created {
		t.Error("first upsert should report newly created")
	}

	created, err = s.UpsertIssue(ctx, 100, d1, att)
	if err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	if created {
		t.Error("second upsert should report already existed")
	}
}

func TestUpsertIssueIdenticalFieldsKeepsUpdatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return clock }

	d := fingerprint.Text("stable")
	if _, err := s.UpsertIssue(ctx, 7, d, ""); err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	first, err := s.GetIssue(ctx, 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}

	clock = clock.Add(time.Hour)
	if _, err := s.UpsertIssue(ctx, 7, d, ""); err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	second, err := s.GetIssue(ctx, 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}

	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("identical upsert bumped UpdatedAt: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestUpsertIssueChangedFieldBumpsUpdatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if _, err := s.UpsertIssue(ctx, 7, fingerprint.Text("v1"), ""); err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}

	clock = clock.Add(time.Hour)
	created, err := s.UpsertIssue(ctx, 7, fingerprint.Text("v2"), "")
	if err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	if created {
		t.Error("upsert of existing record must report already existed")
	}

	rec, err := s.GetIssue(ctx, 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if rec.Description != fingerprint.Text("v2") {
		t.Errorf("Description = %s, want digest of v2", rec.Description)
	}
	if !rec.UpdatedAt.Equal(clock) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, clock)
	}
	if !rec.CreatedAt.Equal(clock.Add(-time.Hour)) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, clock.Add(-time.Hour))
	}
}

func TestGetIssueNotFound(t *testing.T) {
	s := NewMemoryStore()
	rec, err := s.GetIssue(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if rec != nil {
		t.Errorf("GetIssue(unknown) = %+v, want nil", rec)
	}
}

func TestUpsertIssueAbsentAttachments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Absent attachment digest round-trips as absent, distinct from any
	// present digest.
	if _, err := s.UpsertIssue(ctx, 1, fingerprint.Text("d"), ""); err != nil {
		t.Fatalf("UpsertIssue() error = %v", err)
	}
	rec, err := s.GetIssue(ctx, 1)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if !rec.Attachments.IsZero() {
		t.Errorf("Attachments = %q, want absent", rec.Attachments)
	}
}

func TestUpsertLinkCreatedOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.UpsertLink(ctx, 42, 9001)
	if err != nil {
		t.Fatalf("UpsertLink() error = %v", err)
	}
	if !created {
		t.Error("first link upsert should report newly created")
	}

	// A second upsert must not reassign the destination task.
	created, err = s.UpsertLink(ctx, 42, 9999)
	if err != nil {
		t.Fatalf("UpsertLink() error = %v", err)
	}
	if created {
		t.Error("second link upsert should report already existed")
	}

	link, err := s.GetLink(ctx, 42)
	if err != nil {
		t.Fatalf("GetLink() error = %v", err)
	}
	if link.TaskID != 9001 {
		t.Errorf("TaskID = %d, want 9001 (links are never reassigned)", link.TaskID)
	}
}

func TestUpsertCommentUpdatesDigestInPlace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	d1 := fingerprint.Text("comment v1")
	d2 := fingerprint.Text("comment v2")

	created, err := s.UpsertComment(ctx, 500, 7700, 9001, d1)
	if err != nil {
		t.Fatalf("UpsertComment() error = %v", err)
	}
	if !created {
		t.Error("first comment upsert should report newly created")
	}

	created, err = s.UpsertComment(ctx, 500, 7700, 9001, d2)
	if err != nil {
		t.Fatalf("UpsertComment() error = %v", err)
	}
	if created {
		t.Error("second comment upsert should report already existed")
	}

	rec, err := s.GetComment(ctx, 500)
	if err != nil {
		t.Fatalf("GetComment() error = %v", err)
	}
	if rec.Description != d2 {
		t.Errorf("Description = %s, want digest of comment v2", rec.Description)
	}
	if rec.DestCommentID != 7700 || rec.TaskID != 9001 {
		t.Errorf("mapping = (%d, %d), want (7700, 9001)", rec.DestCommentID, rec.TaskID)
	}
}

func TestListIssueIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ids, err := s.ListIssueIDs(ctx)
	if err != nil {
		t.Fatalf("ListIssueIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ListIssueIDs() on empty store = %v, want empty", ids)
	}

	for _, id := range []int64{3, 1, 2} {
		if _, err := s.UpsertIssue(ctx, id, fingerprint.Text("d"), ""); err != nil {
			t.Fatalf("UpsertIssue(%d) error = %v", id, err)
		}
	}
	// Links must not leak into the issue listing.
	if _, err := s.UpsertLink(ctx, 99, 1); err != nil {
		t.Fatalf("UpsertLink() error = %v", err)
	}

	ids, err = s.ListIssueIDs(ctx)
	if err != nil {
		t.Fatalf("ListIssueIDs() error = %v", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := []int64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("ListIssueIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListIssueIDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}
