package store

import (
	"context"
	"sync"
	"time"

	"github.com/steveyegge/taskbridge/internal/fingerprint"
)

// MemoryStore is an in-memory Store implementation with the same upsert
// contract as the Redis backend. Used by tests and local dry runs; nothing
// survives process exit.
type MemoryStore struct {
	mu       sync.Mutex
	issues   map[int64]*IssueRecord
	links    map[int64]*LinkRecord
	comments map[int64]*CommentRecord
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:   make(map[int64]*IssueRecord),
		links:    make(map[int64]*LinkRecord),
		comments: make(map[int64]*CommentRecord),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetIssue(_ context.Context, issueID int64) (*IssueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.issues[issueID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpsertIssue(_ context.Context, issueID int64, description, attachments fingerprint.Digest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.issues[issueID]
	if !ok {
		now := s.now()
		s.issues[issueID] = &IssueRecord{
			IssueID:     issueID,
			Description: description,
			Attachments: attachments,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return true, nil
	}

	changed := false
	if rec.Description != description {
		rec.Description = description
		changed = true
	}
	if rec.Attachments != attachments {
		rec.Attachments = attachments
		changed = true
	}
	if changed {
		rec.UpdatedAt = s.now()
	}
	return false, nil
}

func (s *MemoryStore) ListIssueIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.issues))
	for id := range s.issues {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) GetLink(_ context.Context, issueID int64) (*LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.links[issueID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpsertLink(_ context.Context, issueID, taskID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[issueID]; ok {
		// Links are never reassigned.
		return false, nil
	}
	s.links[issueID] = &LinkRecord{
		IssueID:   issueID,
		TaskID:    taskID,
		CreatedAt: s.now(),
	}
	return true, nil
}

func (s *MemoryStore) GetComment(_ context.Context, commentID int64) (*CommentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[commentID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpsertComment(_ context.Context, commentID, destCommentID, taskID int64, description fingerprint.Digest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[commentID]
	if !ok {
		s.comments[commentID] = &CommentRecord{
			CommentID:     commentID,
			DestCommentID: destCommentID,
			TaskID:        taskID,
			Description:   description,
			CreatedAt:     s.now(),
		}
		return true, nil
	}
	rec.DestCommentID = destCommentID
	rec.TaskID = taskID
	rec.Description = description
	return false, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
