package synapse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Cohort is the matched-demographics filter: the set of health codes a
// filtered run keeps.
type Cohort map[string]bool

// FetchCohort downloads a CSV file entity and extracts its healthCode
// column into a filter set.
func (c *Client) FetchCohort(ctx context.Context, entityID string) (Cohort, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/entity/"+entityID+"/file", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching cohort entity %s: %w", entityID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("/entity/"+entityID+"/file", resp)
	}

	reader := csv.NewReader(resp.Body)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading cohort header: %w", err)
	}
	col := -1
	for i, name := range header {
		if name == "healthCode" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("cohort file %s has no healthCode column", entityID)
	}

	cohort := make(Cohort)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading cohort rows: %w", err)
		}
		if col < len(row) && row[col] != "" {
			cohort[row[col]] = true
		}
	}
	return cohort, nil
}
