package server

import (
	"bytes"
	"encoding/json"
	"net/http"
)

type indexResponse struct {
	Status       string            `json:"status"`
	Message      string            `json:"message"`
	Endpoints    map[string]string `json:"endpoints"`
	StoredKeys   []string          `json:"stored_keys"`
	TotalEntries int               `json:"total_entries"`
}

type listResponse struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

type saveResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Key         string `json:"key,omitempty"`
	Size        int    `json:"size"`
	TotalStored int    `json:"total_stored"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Path    string `json:"path,omitempty"`
}

// writeJSON writes v with 2-space indentation.
//
// Note: the response types above always marshal; an error here would be a
// programming mistake, so it is reported as a bare 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeRawJSON re-indents an already encoded document with 2 spaces. When
// raw is not valid JSON nothing is written and the error is returned.
func writeRawJSON(w http.ResponseWriter, status int, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf.WriteTo(w)
	return nil
}
