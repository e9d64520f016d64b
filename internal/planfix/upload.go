package planfix

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

type uploadFile struct {
	Name       string `xml:"name"`
	SourceType string `xml:"sourceType"`
	Body       string `xml:"body"`
	NewVersion int    `xml:"newversion"`
}

// UploadFiles attaches local files to a task via file.upload. File bodies
// travel base64-encoded in the request, so this is only suitable for
// attachment-sized payloads.
func (c *Client) UploadFiles(ctx context.Context, taskID int64, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	req := struct {
		XMLName xml.Name `xml:"request"`
		Method  string   `xml:"method,attr"`
		Account string   `xml:"account"`
		Sid     string   `xml:"sid"`
		Task    struct {
			ID int64 `xml:"id"`
		} `xml:"task"`
		Target string       `xml:"target"`
		Files  []uploadFile `xml:"files>file"`
	}{
		Method:  "file.upload",
		Account: c.Account,
		Sid:     c.sid,
		Target:  "task",
	}
	req.Task.ID = taskID

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		req.Files = append(req.Files, uploadFile{
			Name:       filepath.Base(path),
			SourceType: "FILESYSTEM",
			Body:       base64.StdEncoding.EncodeToString(data),
			NewVersion: 1,
		})
	}

	if _, err := c.call(ctx, req); err != nil {
		return fmt.Errorf("file.upload: %w", err)
	}
	return nil
}
