package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steveyegge/taskbridge/internal/fingerprint"
)

const defaultNamespace = "taskbridge"

// scanBatch is the COUNT hint passed to SCAN when listing issue keys.
const scanBatch = 500

// RedisOption is a functional option for configuring the Redis store.
type RedisOption func(*RedisStore)

// WithNamespace sets the key namespace prefix for Redis keys.
func WithNamespace(ns string) RedisOption {
	return func(s *RedisStore) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// RedisStore implements Store on top of Redis hashes. Each record kind lives
// in its own key namespace (issue:, issue_link:, comment_link:). Upserts run
// as server-side Lua scripts so the read-modify-write is atomic with respect
// to concurrent callers on the same key.
type RedisStore struct {
	client    *redis.Client
	namespace string
	closed    atomic.Bool
}

// Upsert scripts return 1 when the record was created, 0 when it already
// existed. Timestamps come from the Redis server clock (unix seconds) so
// records stay consistent across bridge restarts and hosts.
var (
	upsertIssueScript = redis.NewScript(`
local key = KEYS[1]
local new_desc = ARGV[1]
local new_att = ARGV[2]
local is_new = 0
if redis.call('EXISTS', key) == 0 then
  redis.call('HSET', key, 'created_at', redis.call('TIME')[1])
  is_new = 1
end
local changed = 0
local old_desc = redis.call('HGET', key, 'h_description')
if (not old_desc) or (old_desc ~= new_desc) then
  redis.call('HSET', key, 'h_description', new_desc)
  changed = 1
end
local old_att = redis.call('HGET', key, 'h_attachment') or ''
if old_att ~= new_att then
  redis.call('HSET', key, 'h_attachment', new_att)
  changed = 1
end
if changed == 1 then
  redis.call('HSET', key, 'updated_at', redis.call('TIME')[1])
end
return is_new`)

	// Link records are created exactly once and never reassigned; an upsert
	// on an existing link leaves it untouched.
	upsertLinkScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
  return 0
end
redis.call('HSET', key, 'task_id', ARGV[1], 'created_at', redis.call('TIME')[1])
return 1`)

	upsertCommentScript = redis.NewScript(`
local key = KEYS[1]
local is_new = 0
if redis.call('EXISTS', key) == 0 then
  redis.call('HSET', key, 'created_at', redis.call('TIME')[1])
  is_new = 1
end
local old_desc = redis.call('HGET', key, 'h_description')
if (not old_desc) or (old_desc ~= ARGV[3]) then
  redis.call('HSET', key, 'h_description', ARGV[3])
end
redis.call('HSET', key, 'dest_comment_id', ARGV[1], 'task_id', ARGV[2])
return is_new`)
)

// NewRedisStore connects to Redis and verifies connectivity.
// redisURL should be a valid Redis URL (e.g., "redis://localhost:6379/0").
func NewRedisStore(redisURL string, opts ...RedisOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	s := &RedisStore{
		client:    redis.NewClient(redisOpts),
		namespace: defaultNamespace,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

func (s *RedisStore) issueKey(id int64) string {
	return fmt.Sprintf("%s:issue:%d", s.namespace, id)
}

func (s *RedisStore) linkKey(id int64) string {
	return fmt.Sprintf("%s:issue_link:%d", s.namespace, id)
}

func (s *RedisStore) commentKey(id int64) string {
	return fmt.Sprintf("%s:comment_link:%d", s.namespace, id)
}

// GetIssue returns the issue record, or nil if the issue has never been
// synchronized.
func (s *RedisStore) GetIssue(ctx context.Context, issueID int64) (*IssueRecord, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("store is closed")
	}
	data, err := s.client.HGetAll(ctx, s.issueKey(issueID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting issue %d: %w", issueID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &IssueRecord{
		IssueID:     issueID,
		Description: fingerprint.Digest(data["h_description"]),
		Attachments: fingerprint.Digest(data["h_attachment"]),
		CreatedAt:   parseUnix(data["created_at"]),
		UpdatedAt:   parseUnix(data["updated_at"]),
	}, nil
}

// UpsertIssue writes the issue fingerprints, creating the record on first
// sync. Reports true when the record was newly created.
func (s *RedisStore) UpsertIssue(ctx context.Context, issueID int64, description, attachments fingerprint.Digest) (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("store is closed")
	}
	res, err := upsertIssueScript.Run(ctx, s.client,
		[]string{s.issueKey(issueID)},
		string(description), string(attachments)).Int()
	if err != nil {
		return false, fmt.Errorf("upserting issue %d: %w", issueID, err)
	}
	return res == 1, nil
}

// ListIssueIDs enumerates all issue record ids via SCAN. The key space is
// walked in server-side batches; ordering is not guaranteed.
func (s *RedisStore) ListIssueIDs(ctx context.Context) ([]int64, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("store is closed")
	}
	prefix := s.namespace + ":issue:"
	var ids []int64
	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), prefix), 10, 64)
		if err != nil {
			continue // foreign key under the namespace
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning issue keys: %w", err)
	}
	return ids, nil
}

// GetLink returns the issue-to-task link record, or nil if absent.
func (s *RedisStore) GetLink(ctx context.Context, issueID int64) (*LinkRecord, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("store is closed")
	}
	data, err := s.client.HGetAll(ctx, s.linkKey(issueID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting link %d: %w", issueID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	taskID, err := strconv.ParseInt(data["task_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("link %d has malformed task_id %q", issueID, data["task_id"])
	}
	return &LinkRecord{
		IssueID:   issueID,
		TaskID:    taskID,
		CreatedAt: parseUnix(data["created_at"]),
	}, nil
}

// UpsertLink records the issue-to-task mapping. An existing link is never
// reassigned; in that case the call reports false and leaves it untouched.
func (s *RedisStore) UpsertLink(ctx context.Context, issueID, taskID int64) (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("store is closed")
	}
	res, err := upsertLinkScript.Run(ctx, s.client,
		[]string{s.linkKey(issueID)},
		strconv.FormatInt(taskID, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("upserting link %d: %w", issueID, err)
	}
	return res == 1, nil
}

// GetComment returns the comment link record, or nil if absent.
func (s *RedisStore) GetComment(ctx context.Context, commentID int64) (*CommentRecord, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("store is closed")
	}
	data, err := s.client.HGetAll(ctx, s.commentKey(commentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting comment %d: %w", commentID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	destID, err := strconv.ParseInt(data["dest_comment_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("comment %d has malformed dest_comment_id %q", commentID, data["dest_comment_id"])
	}
	taskID, err := strconv.ParseInt(data["task_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("comment %d has malformed task_id %q", commentID, data["task_id"])
	}
	return &CommentRecord{
		CommentID:     commentID,
		DestCommentID: destID,
		TaskID:        taskID,
		Description:   fingerprint.Digest(data["h_description"]),
		CreatedAt:     parseUnix(data["created_at"]),
	}, nil
}

// UpsertComment records the comment mapping and its content fingerprint.
// Reports true when the record was newly created.
func (s *RedisStore) UpsertComment(ctx context.Context, commentID, destCommentID, taskID int64, description fingerprint.Digest) (bool, error) {
	if s.closed.Load() {
		return false, fmt.Errorf("store is closed")
	}
	res, err := upsertCommentScript.Run(ctx, s.client,
		[]string{s.commentKey(commentID)},
		strconv.FormatInt(destCommentID, 10),
		strconv.FormatInt(taskID, 10),
		string(description)).Int()
	if err != nil {
		return false, fmt.Errorf("upserting comment %d: %w", commentID, err)
	}
	return res == 1, nil
}

// Ping verifies connectivity to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("store is closed")
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func parseUnix(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
