package synapse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// Activity is the provenance record attached to stored results: the
// entities the run read from and the code that produced it.
type Activity struct {
	Name     string
	Used     []string // source entity IDs
	Executed []string // script or binary URLs
}

type usedEntity struct {
	Reference   reference `json:"reference"`
	WasExecuted bool      `json:"wasExecuted"`
}

type reference struct {
	TargetID string `json:"targetId"`
}

type usedURL struct {
	URL         string `json:"url"`
	WasExecuted bool   `json:"wasExecuted"`
}

type activityRequest struct {
	Name string        `json:"name"`
	Used []interface{} `json:"used"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// StoreFile uploads a local file as a child entity of parentID and
// attaches the activity as its provenance. It returns the new entity ID.
func (c *Client) StoreFile(ctx context.Context, localPath, parentID string, act Activity) (string, error) {
	handleID, err := c.uploadFileHandle(ctx, localPath)
	if err != nil {
		return "", err
	}

	activityID, err := c.createActivity(ctx, act)
	if err != nil {
		return "", err
	}

	entity := map[string]interface{}{
		"concreteType":     "org.sagebionetworks.repo.model.FileEntity",
		"name":             filepath.Base(localPath),
		"parentId":         parentID,
		"dataFileHandleId": handleID,
	}
	var created createdResponse
	path := "/entity?generatedBy=" + url.QueryEscape(activityID)
	if err := c.doJSON(ctx, http.MethodPost, path, entity, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// uploadFileHandle pushes the file's bytes and returns the new handle ID.
func (c *Client) uploadFileHandle(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	path := "/fileHandle?name=" + url.QueryEscape(filepath.Base(localPath))
	req, err := c.newRequest(ctx, http.MethodPost, path, f)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", localPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiError(path, resp)
	}

	var created createdResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding file handle response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) createActivity(ctx context.Context, act Activity) (string, error) {
	req := activityRequest{Name: act.Name}
	for _, id := range act.Used {
		req.Used = append(req.Used, usedEntity{Reference: reference{TargetID: id}})
	}
	for _, u := range act.Executed {
		req.Used = append(req.Used, usedURL{URL: u, WasExecuted: true})
	}

	var created createdResponse
	if err := c.doJSON(ctx, http.MethodPost, "/activity", req, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}
