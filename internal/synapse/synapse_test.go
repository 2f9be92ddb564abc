package synapse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

func TestTableSQL(t *testing.T) {
	tests := []struct {
		name      string
		tableID   string
		recordIDs []string
		want      string
	}{
		{
			name:    "whole table",
			tableID: "syn12345",
			want:    "SELECT * FROM syn12345",
		},
		{
			name:      "restricted to records",
			tableID:   "syn12345",
			recordIDs: []string{"r1", "r2"},
			want:      "SELECT * FROM syn12345 WHERE recordId IN ('r1','r2')",
		},
		{
			name:      "quotes escaped",
			tableID:   "syn1",
			recordIDs: []string{"o'brien"},
			want:      "SELECT * FROM syn1 WHERE recordId IN ('o''brien')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableSQL(tt.tableID, tt.recordIDs); got != tt.want {
				t.Errorf("TableSQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMotionColumns(t *testing.T) {
	headers := []string{"recordId", "healthCode", "deviceMotion_walking_outbound.json.items", "walk_motion.json", "createdOn"}

	tests := []struct {
		name       string
		generation Generation
		want       []string
		wantErr    bool
	}{
		{
			name:       "v1 picks deviceMotion columns",
			generation: MPowerV1,
			want:       []string{"deviceMotion_walking_outbound.json.items"},
		},
		{
			name:       "v2 picks json columns",
			generation: MPowerV2,
			want:       []string{"deviceMotion_walking_outbound.json.items", "walk_motion.json"},
		},
		{
			name:       "unknown generation",
			generation: Generation("MPOWER_V9"),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MotionColumns(headers, tt.generation)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MotionColumns error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("MotionColumns = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("column %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func queryBundleJSON(headers []string, rows [][]interface{}) string {
	type header struct {
		Name string `json:"name"`
	}
	hs := make([]header, len(headers))
	for i, h := range headers {
		hs[i] = header{Name: h}
	}
	type row struct {
		Values []interface{} `json:"values"`
	}
	rs := make([]row, len(rows))
	for i, r := range rows {
		rs[i] = row{Values: r}
	}
	bundle := map[string]interface{}{
		"queryResult": map[string]interface{}{
			"queryResults": map[string]interface{}{
				"headers": hs,
				"rows":    rs,
			},
		},
	}
	buf, _ := json.Marshal(bundle)
	return string(buf)
}

func TestQueryTable(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/entity/syn999/table/query/async/start":
			var req queryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding start request: %v", err)
			}
			if req.Query.SQL != "SELECT * FROM syn999" {
				t.Errorf("sql = %q", req.Query.SQL)
			}
			fmt.Fprint(w, `{"token":"job-7"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/entity/syn999/table/query/async/get/job-7":
			if atomic.AddInt32(&polls, 1) == 1 {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			fmt.Fprint(w, queryBundleJSON(
				[]string{"recordId", "healthCode"},
				[][]interface{}{
					{"r1", "hc1"},
					{"r2", nil},
				},
			))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	client.PollInterval = time.Millisecond

	rs, err := client.QueryTable(context.Background(), "syn999", "SELECT * FROM syn999")
	if err != nil {
		t.Fatalf("QueryTable: %v", err)
	}
	if atomic.LoadInt32(&polls) < 2 {
		t.Errorf("expected the poll loop to wait through a 202, polled %d times", polls)
	}
	if len(rs.Headers) != 2 || rs.Headers[0] != "recordId" {
		t.Fatalf("headers = %v", rs.Headers)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("rows = %v", rs.Rows)
	}
	if rs.Rows[0][1] != "hc1" {
		t.Errorf("row 0 healthCode = %q", rs.Rows[0][1])
	}
	if rs.Rows[1][1] != "" {
		t.Errorf("null cell = %q, want empty", rs.Rows[1][1])
	}
}

func TestQueryTableJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/start") {
			fmt.Fprint(w, `{"token":"job-1"}`)
			return
		}
		http.Error(w, "table is unavailable", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	client.PollInterval = time.Millisecond

	_, err := client.QueryTable(context.Background(), "syn1", "SELECT * FROM syn1")
	if err == nil || !strings.Contains(err.Error(), "table is unavailable") {
		t.Errorf("expected the job failure to surface, got %v", err)
	}
}

// stubDownloader counts downloads and writes fixed content.
type stubDownloader struct {
	calls int32
}

func (s *stubDownloader) DownloadFileHandle(_ context.Context, handleID, dest string) (int64, error) {
	atomic.AddInt32(&s.calls, 1)
	data := []byte(`[{"timestamp": 1, "sensorType": "userAcceleration", "x": 0, "y": 0, "z": 0}]`)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func TestCacheResolve(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	dl := &stubDownloader{}
	ctx := context.Background()

	path, err := cache.Resolve(ctx, dl, "h-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("resolved path missing: %v", err)
	}
	if dl.calls != 1 {
		t.Fatalf("expected 1 download, got %d", dl.calls)
	}

	again, err := cache.Resolve(ctx, dl, "h-1")
	if err != nil {
		t.Fatalf("Resolve (hit): %v", err)
	}
	if again != path {
		t.Errorf("cache hit path = %q, want %q", again, path)
	}
	if dl.calls != 1 {
		t.Errorf("cache hit should not download, got %d calls", dl.calls)
	}

	// A vanished file forces a fresh download.
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing cached file: %v", err)
	}
	if _, err := cache.Resolve(ctx, dl, "h-1"); err != nil {
		t.Fatalf("Resolve (re-download): %v", err)
	}
	if dl.calls != 2 {
		t.Errorf("expected re-download after eviction, got %d calls", dl.calls)
	}

	count, size, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if count != 1 || size <= 0 {
		t.Errorf("Stats = (%d, %d)", count, size)
	}
}

func TestBuildRecordRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fileHandle/") && strings.HasSuffix(r.URL.Path, "/content") {
			fmt.Fprint(w, `[]`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	rs := &RowSet{
		Headers: []string{"recordId", "healthCode", "appVersion", "phoneInfo", "createdOn", "walk_motion.json"},
		Rows: [][]string{
			{"r1", "hc1", "version 2.0", "iPhone 8", "1596000000000", "fh-1"},
			{"r2", "hc2", "version 2.0", "iPhone X", "", ""},
		},
	}

	rows, err := client.BuildRecordRows(context.Background(), cache, rs, MPowerV2)
	if err != nil {
		t.Fatalf("BuildRecordRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.RecordID != "r1" || first.HealthCode != "hc1" || first.CreatedOn != 1596000000000 {
		t.Errorf("row 0 metadata = %+v", first)
	}
	if len(first.Segments) != 1 || first.Segments[0].Name != "walk_motion.json" {
		t.Fatalf("row 0 segments = %+v", first.Segments)
	}
	if first.Segments[0].Input.Kind != types.FileReference {
		t.Errorf("row 0 input kind = %v, want FileReference", first.Segments[0].Input.Kind)
	}
	if _, err := os.Stat(first.Segments[0].Input.Path); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
	if filepath.Dir(first.Segments[0].Input.Path) == "" {
		t.Error("expected a cache-rooted path")
	}

	second := rows[1]
	if second.Segments[0].Input.Kind != types.MissingSource {
		t.Errorf("empty handle should map to MissingSource, got %v", second.Segments[0].Input.Kind)
	}
	if second.CreatedOn != 0 {
		t.Errorf("row 1 createdOn = %d, want 0", second.CreatedOn)
	}
}

func TestBuildRecordRowsNoMotionColumns(t *testing.T) {
	client := NewClient("http://unused", "tok")
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	rs := &RowSet{Headers: []string{"recordId", "healthCode"}}
	if _, err := client.BuildRecordRows(context.Background(), cache, rs, MPowerV1); err == nil {
		t.Error("expected an error when no motion columns match")
	}
}

func TestStoreFile(t *testing.T) {
	var mu sync.Mutex
	var gotActivity activityRequest
	var gotEntity map[string]interface{}
	var generatedBy string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/fileHandle":
			if r.URL.Query().Get("name") != "features.csv" {
				t.Errorf("upload name = %q", r.URL.Query().Get("name"))
			}
			fmt.Fprint(w, `{"id":"fh-9"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/activity":
			if err := json.NewDecoder(r.Body).Decode(&gotActivity); err != nil {
				t.Errorf("decoding activity: %v", err)
			}
			fmt.Fprint(w, `{"id":"act-3"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/entity":
			generatedBy = r.URL.Query().Get("generatedBy")
			if err := json.NewDecoder(r.Body).Decode(&gotEntity); err != nil {
				t.Errorf("decoding entity: %v", err)
			}
			fmt.Fprint(w, `{"id":"syn-new"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "features.csv")
	if err := os.WriteFile(local, []byte("recordId\nr1\n"), 0o644); err != nil {
		t.Fatalf("writing local file: %v", err)
	}

	client := NewClient(srv.URL, "tok")
	id, err := client.StoreFile(context.Background(), local, "syn-parent", Activity{
		Name:     "gait feature extraction",
		Used:     []string{"syn-table"},
		Executed: []string{"https://example.org/gait-extract"},
	})
	if err != nil {
		t.Fatalf("StoreFile: %v", err)
	}
	if id != "syn-new" {
		t.Errorf("entity id = %q, want syn-new", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if generatedBy != "act-3" {
		t.Errorf("generatedBy = %q, want act-3", generatedBy)
	}
	if len(gotActivity.Used) != 2 {
		t.Errorf("activity used = %+v, want table reference plus executed URL", gotActivity.Used)
	}
	if gotEntity["parentId"] != "syn-parent" || gotEntity["dataFileHandleId"] != "fh-9" {
		t.Errorf("entity = %+v", gotEntity)
	}
}

func TestFetchCohort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entity/syn-demo/file" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "healthCode,version\nhc1,1\nhc2,1\n,1\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	cohort, err := client.FetchCohort(context.Background(), "syn-demo")
	if err != nil {
		t.Fatalf("FetchCohort: %v", err)
	}
	if len(cohort) != 2 || !cohort["hc1"] || !cohort["hc2"] {
		t.Errorf("cohort = %v", cohort)
	}
}

func TestFetchCohortMissingColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "subject,version\ns1,1\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	if _, err := client.FetchCohort(context.Background(), "syn-demo"); err == nil {
		t.Error("expected an error for a cohort file without healthCode")
	}
}
