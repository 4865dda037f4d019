// Package client talks to the upload/merge service and drives a workspace
// session the way the organizer UI does: uploads one file at a time, applies
// mutations under a lock, dispatches merges with an in-flight guard and
// reports every user-visible failure through a single transient notification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/local/foliocraft/internal/workspace"
)

// TooLargeMessage is shown when the service rejects an upload with 413 and no
// message of its own.
const TooLargeMessage = "File is too large. Maximum size is 100 MB."

// APIError is a non-success answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Client is the HTTP client for POST /upload and POST /merge.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a client for the service at baseURL. A nil hc uses
// http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

type uploadReply struct {
	workspace.Upload
	Error string `json:"error"`
}

// Upload sends one file as the multipart field "file".
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (workspace.Upload, error) {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return workspace.Upload{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return workspace.Upload{}, fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return workspace.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", &b)
	if err != nil {
		return workspace.Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.hc.Do(req)
	if err != nil {
		return workspace.Upload{}, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return workspace.Upload{}, fmt.Errorf("read upload reply: %w", err)
	}
	var out uploadReply
	jsonErr := json.Unmarshal(body, &out)
	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		msg := out.Error
		if msg == "" {
			msg = TooLargeMessage
		}
		return workspace.Upload{}, &APIError{Status: resp.StatusCode, Message: msg}
	case out.Error != "":
		return workspace.Upload{}, &APIError{Status: resp.StatusCode, Message: out.Error}
	case resp.StatusCode/100 != 2:
		return workspace.Upload{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	case jsonErr != nil:
		return workspace.Upload{}, fmt.Errorf("decode upload reply: %w", jsonErr)
	case out.FileID == "":
		return workspace.Upload{}, &APIError{Status: resp.StatusCode, Message: "upload reply has no file_id"}
	}
	return out.Upload, nil
}

// Merge posts the merge request and returns the merged PDF bytes. A
// non-success answer becomes an APIError carrying the response body.
func (c *Client) Merge(ctx context.Context, mr workspace.MergeRequest) ([]byte, error) {
	payload, err := json.Marshal(mr)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/merge", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read merge reply: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
