package synapse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

// Generation identifies the study table family a query targets; it
// decides which columns hold the motion file handles.
type Generation string

const (
	MPowerV1  Generation = "MPOWER_V1"
	MPowerV2  Generation = "MPOWER_V2"
	Passive   Generation = "PASSIVE"
	ElevateMS Generation = "ELEVATE_MS"
)

// MotionColumnMarker returns the substring that identifies the
// generation's motion file-handle columns.
func (g Generation) MotionColumnMarker() (string, error) {
	switch g {
	case MPowerV1, ElevateMS:
		return "deviceMotion", nil
	case MPowerV2, Passive:
		return "json", nil
	}
	return "", fmt.Errorf("unknown table generation %q", g)
}

// RowSet is a decoded table-query result: column names plus rows of
// string cells, empty where the stored value was null.
type RowSet struct {
	Headers []string
	Rows    [][]string
}

// Column returns the index of a named column.
func (rs *RowSet) Column(name string) (int, bool) {
	for i, h := range rs.Headers {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

type queryRequest struct {
	Query    querySpec `json:"query"`
	PartMask int       `json:"partMask"`
}

type querySpec struct {
	SQL string `json:"sql"`
}

type asyncToken struct {
	Token string `json:"token"`
}

type queryBundle struct {
	QueryResult struct {
		QueryResults struct {
			Headers []struct {
				Name string `json:"name"`
			} `json:"headers"`
			Rows []struct {
				Values []*string `json:"values"`
			} `json:"rows"`
		} `json:"queryResults"`
	} `json:"queryResult"`
}

// TableSQL builds the standard SELECT for a table, optionally restricted
// to specific record IDs.
func TableSQL(tableID string, recordIDs []string) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(tableID)
	if len(recordIDs) > 0 {
		quoted := make([]string, len(recordIDs))
		for i, id := range recordIDs {
			quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
		}
		b.WriteString(" WHERE recordId IN (")
		b.WriteString(strings.Join(quoted, ","))
		b.WriteString(")")
	}
	return b.String()
}

// QueryTable runs sql against the table through the asynchronous job
// protocol: start a query job, then poll its token until the result
// bundle is ready.
func (c *Client) QueryTable(ctx context.Context, tableID, sql string) (*RowSet, error) {
	var tok asyncToken
	start := "/entity/" + tableID + "/table/query/async/start"
	if err := c.doJSON(ctx, http.MethodPost, start, queryRequest{Query: querySpec{SQL: sql}, PartMask: 1}, &tok); err != nil {
		return nil, err
	}

	path := "/entity/" + tableID + "/table/query/async/get/" + tok.Token
	for {
		rs, done, err := c.pollQuery(ctx, path)
		if err != nil {
			return nil, err
		}
		if done {
			return rs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}

func (c *Client) pollQuery(ctx context.Context, path string) (*RowSet, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("polling %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil, false, nil
	case http.StatusOK:
		var bundle queryBundle
		if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
			return nil, false, fmt.Errorf("decoding query bundle: %w", err)
		}
		return bundleToRowSet(&bundle), true, nil
	default:
		return nil, false, apiError(path, resp)
	}
}

func bundleToRowSet(bundle *queryBundle) *RowSet {
	results := bundle.QueryResult.QueryResults
	rs := &RowSet{Headers: make([]string, len(results.Headers))}
	for i, h := range results.Headers {
		rs.Headers[i] = h.Name
	}
	for _, row := range results.Rows {
		cells := make([]string, len(rs.Headers))
		for i, v := range row.Values {
			if i >= len(cells) {
				break
			}
			if v != nil {
				cells[i] = *v
			}
		}
		rs.Rows = append(rs.Rows, cells)
	}
	return rs
}

// MotionColumns lists the file-handle columns of a result for one table
// generation, in header order.
func MotionColumns(headers []string, g Generation) ([]string, error) {
	marker, err := g.MotionColumnMarker()
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, h := range headers {
		if strings.Contains(h, marker) {
			cols = append(cols, h)
		}
	}
	return cols, nil
}

// BuildRecordRows maps a query result onto recording rows, resolving
// every motion file handle to a local path through the cache. Cells with
// no handle, and handles that fail to download, become missing inputs so
// the batch stays complete.
func (c *Client) BuildRecordRows(ctx context.Context, cache *Cache, rs *RowSet, g Generation) ([]types.RecordRow, error) {
	motionCols, err := MotionColumns(rs.Headers, g)
	if err != nil {
		return nil, err
	}
	if len(motionCols) == 0 {
		return nil, fmt.Errorf("query result has no motion columns for generation %s", g)
	}

	cell := func(row []string, name string) string {
		if idx, ok := rs.Column(name); ok && idx < len(row) {
			return row[idx]
		}
		return ""
	}

	rows := make([]types.RecordRow, 0, len(rs.Rows))
	for _, raw := range rs.Rows {
		rec := types.RecordRow{
			RecordID:   cell(raw, "recordId"),
			HealthCode: cell(raw, "healthCode"),
			AppVersion: cell(raw, "appVersion"),
			PhoneInfo:  cell(raw, "phoneInfo"),
		}
		if v := cell(raw, "createdOn"); v != "" {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				rec.CreatedOn = ms
			}
		}

		for _, col := range motionCols {
			handle := cell(raw, col)
			input := types.MissingInput()
			if handle != "" {
				path, err := cache.Resolve(ctx, c, handle)
				if err != nil {
					log.Warnf("resolving file handle %s for record %s: %v", handle, rec.RecordID, err)
				} else {
					input = types.FileInput(path)
				}
			}
			rec.Segments = append(rec.Segments, types.Segment{Name: col, Input: input})
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
