package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// downloadMaxRetries bounds attachment download attempts: the first try
// plus up to three retries for transient failures.
const downloadMaxRetries = 3

// downloadTimeout covers a single attachment transfer, not the whole batch.
const downloadTimeout = 2 * time.Minute

func newDownloadBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	// The default randomization factor supplies the jitter.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(bo, downloadMaxRetries)
}

// retryableStatus reports whether an HTTP status is worth retrying:
// rate limiting and server-side errors.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// DownloadAttachments fetches attachment content into dir/<issueID>/,
// returning the saved paths. Any previously downloaded files for the issue
// are removed first so the directory mirrors the current attachment set.
// Transient failures (network errors, 429, 5xx) are retried with jittered
// exponential backoff, a bounded number of times; other failures abort the
// batch immediately.
func (c *Client) DownloadAttachments(ctx context.Context, attachments []Attachment, issueID int64, dir string) ([]string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	outDir := filepath.Join(dir, fmt.Sprintf("%d", issueID))
	if err := clearDir(outDir); err != nil {
		return nil, fmt.Errorf("prepare download dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare download dir: %w", err)
	}

	var saved []string
	for _, att := range attachments {
		name := safeFilename(att.Filename, fmt.Sprintf("%d.bin", att.ID))
		dest := filepath.Join(outDir, name)
		if err := c.downloadWithRetries(ctx, att.ContentURL, dest); err != nil {
			return nil, fmt.Errorf("download attachment %d (%s): %w", att.ID, att.Filename, err)
		}
		saved = append(saved, dest)
	}

	return saved, nil
}

// downloadWithRetries streams one attachment to dest, retrying transient
// failures per newDownloadBackoff.
func (c *Client) downloadWithRetries(ctx context.Context, srcURL, dest string) error {
	op := func() error {
		err := c.downloadOnce(ctx, srcURL, dest)
		if err == nil {
			return nil
		}
		var httpErr *httpStatusError
		if errors.As(err, &httpErr) && !retryableStatus(httpErr.code) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(newDownloadBackoff(), ctx))
}

func (c *Client) downloadOnce(ctx context.Context, srcURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srcURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	c.setAuth(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err // network errors are retryable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{code: resp.StatusCode}
	}

	f, err := os.Create(dest)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create file: %w", err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// clearDir removes regular files directly under dir. Missing dir is fine.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// safeFilename reduces an attachment filename to a bare base name,
// falling back when the result is empty.
func safeFilename(name, fallback string) string {
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fallback
	}
	return name
}
