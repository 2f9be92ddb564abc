// Package synapse is a minimal client for the Synapse REST API: table
// queries through the asynchronous job protocol, file-handle downloads
// through a local cache, and result storage with provenance. The client
// is injected only into the I/O layers; the numeric pipeline never sees
// a session handle.
package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to one Synapse endpoint authenticated by a bearer token.
type Client struct {
	// PollInterval paces the async-job polling loop.
	PollInterval time.Duration

	endpoint string
	token    string
	hc       *http.Client
}

// NewClient builds a client for the endpoint. The token is sent as a
// bearer credential on every request.
func NewClient(endpoint, token string) *Client {
	return &Client{
		PollInterval: time.Second,
		endpoint:     strings.TrimRight(endpoint, "/"),
		token:        token,
		hc: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

// doJSON sends a JSON request and decodes a JSON response. in and out
// may be nil for body-less requests and discarded responses.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}

// DownloadFileHandle streams a file handle's content to dest and returns
// the byte count.
func (c *Client) DownloadFileHandle(ctx context.Context, handleID, dest string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/fileHandle/"+handleID+"/content", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("downloading file handle %s: %w", handleID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, apiError("/fileHandle/"+handleID+"/content", resp)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", dest, err)
	}
	return n, nil
}

func apiError(path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("synapse %s returned %d: %s", path, resp.StatusCode, msg)
}
