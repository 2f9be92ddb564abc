package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	RecordID string  `json:"recordId"`
	Turns    float64 `json:"rotation.no_of_turns"`
}

func TestWriteResponseJSON(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/features", nil)

	err := f.WriteResponse(w, req, payload{RecordID: "rec-1", Turns: 4}, map[string]string{"X-Total": "1"})
	if err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Total") != "1" {
		t.Error("custom header not set")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header not set")
	}

	var got payload
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.RecordID != "rec-1" || got.Turns != 4 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/features?format=msgpack", nil)

	if err := f.WriteResponse(w, req, payload{RecordID: "rec-2", Turns: 2}, nil); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("Content-Type = %q", ct)
	}

	// The encoder uses json struct tags, so decode with the same tag set.
	var got map[string]any
	dec := msgpack.NewDecoder(w.Body)
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("decoding msgpack body: %v", err)
	}
	if got["recordId"] != "rec-2" {
		t.Errorf("recordId = %v", got["recordId"])
	}
}

func TestWriteError(t *testing.T) {
	f := NewFormatter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/features/rec-9", nil)

	if err := f.WriteError(w, req, http.StatusNotFound, "record not found"); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got["error"] != "record not found" {
		t.Errorf("error = %v", got["error"])
	}
}
